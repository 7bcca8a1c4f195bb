package http

import (
	"time"

	"github.com/meetwire/signal-service/internal/domain"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type CreateSessionRequest struct {
	Name            string `json:"name"`
	MaxParticipants int    `json:"max_participants,omitempty"`
}

type SessionItem struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	CreatorID       string     `json:"creator_id"`
	Participants    []string   `json:"participants"`
	IsActive        bool       `json:"is_active"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	MaxParticipants int        `json:"max_participants"`
}

type SessionsListResponse struct {
	Items []SessionItem `json:"items"`
}

type ParticipantsResponse struct {
	Items []string `json:"items"`
}

type JoinSessionResponse struct {
	SessionID     string `json:"session_id"`
	ParticipantID string `json:"participant_id"`
}

type StreamItem struct {
	ID            string     `json:"stream_id"`
	SessionID     string     `json:"session_id"`
	ParticipantID string     `json:"participant_id"`
	Kind          string     `json:"kind"`
	Quality       string     `json:"quality"`
	Resolution    string     `json:"resolution,omitempty"`
	IsActive      bool       `json:"is_active"`
	StartedAt     time.Time  `json:"started_at"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
}

type StreamsListResponse struct {
	Items []StreamItem `json:"items"`
}

type SetQualityRequest struct {
	Quality string `json:"quality"`
}

func sessionItem(s *domain.Session) SessionItem {
	return SessionItem{
		ID:              s.ID,
		Name:            s.Name,
		CreatorID:       s.CreatorID,
		Participants:    s.Participants,
		IsActive:        s.IsActive,
		StartedAt:       s.StartedAt,
		EndedAt:         s.EndedAt,
		MaxParticipants: s.MaxParticipants,
	}
}

func streamItem(st *domain.Stream) StreamItem {
	return StreamItem{
		ID:            st.ID,
		SessionID:     st.SessionID,
		ParticipantID: st.ParticipantID,
		Kind:          string(st.Kind),
		Quality:       string(st.Quality),
		Resolution:    st.Resolution,
		IsActive:      st.IsActive,
		StartedAt:     st.StartedAt,
		EndedAt:       st.EndedAt,
	}
}
