package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meetwire/signal-service/internal/domain"
)

type StreamRepository struct {
	db *pgxpool.Pool
}

func NewStreamRepository(db *pgxpool.Pool) *StreamRepository {
	return &StreamRepository{db: db}
}

func (r *StreamRepository) SaveStream(ctx context.Context, st *domain.Stream) error {
	query := `
		INSERT INTO streams (id, session_id, participant_id, kind, quality, resolution, is_active, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`
	_, err := r.db.Exec(ctx, query,
		st.ID, st.SessionID, st.ParticipantID, string(st.Kind), string(st.Quality),
		st.Resolution, st.IsActive, st.StartedAt)
	return err
}

func (r *StreamRepository) UpdateStream(ctx context.Context, st *domain.Stream) error {
	query := `
		UPDATE streams
		SET quality=$2, resolution=$3, is_active=$4, ended_at=$5
		WHERE id=$1`
	_, err := r.db.Exec(ctx, query,
		st.ID, string(st.Quality), st.Resolution, st.IsActive, st.EndedAt)
	return err
}
