package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meetwire/signal-service/internal/domain"
)

// SessionRepository is the durable trail of session records. Writes are
// upserts: the in-memory directory is authoritative and may replay.
type SessionRepository struct {
	db *pgxpool.Pool
}

func NewSessionRepository(db *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) SaveSession(ctx context.Context, s *domain.Session) error {
	query := `
		INSERT INTO sessions (id, name, creator_id, participants, is_active, started_at, max_participants)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    participants = EXCLUDED.participants,
		    is_active = EXCLUDED.is_active,
		    max_participants = EXCLUDED.max_participants`
	_, err := r.db.Exec(ctx, query,
		s.ID, s.Name, s.CreatorID, s.Participants, s.IsActive, s.StartedAt, s.MaxParticipants)
	return err
}

func (r *SessionRepository) UpdateParticipants(ctx context.Context, sessionID string, participants []string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE sessions SET participants=$2 WHERE id=$1`,
		sessionID, participants)
	return err
}

func (r *SessionRepository) EndSession(ctx context.Context, sessionID string, endedAt time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE sessions SET is_active=false, ended_at=$2 WHERE id=$1`,
		sessionID, endedAt)
	return err
}
