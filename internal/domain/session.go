package domain

import "time"

// Session is a bounded group conversation. The in-memory directory is the
// source of truth for the process lifetime; the persistence sink only keeps
// a durable trail.
type Session struct {
	ID              string     `db:"id" json:"id"`
	Name            string     `db:"name" json:"name"`
	CreatorID       string     `db:"creator_id" json:"creatorId"`
	Participants    []string   `db:"participants" json:"participants"` // ordered by join time, no duplicates
	IsActive        bool       `db:"is_active" json:"isActive"`
	StartedAt       time.Time  `db:"started_at" json:"startedAt"`
	EndedAt         *time.Time `db:"ended_at" json:"endedAt,omitempty"`
	MaxParticipants int        `db:"max_participants" json:"maxParticipants"`
}

// HasParticipant reports whether id is currently in the participant list.
func (s *Session) HasParticipant(id string) bool {
	for _, p := range s.Participants {
		if p == id {
			return true
		}
	}
	return false
}

// Full reports whether the session is at capacity. MaxParticipants <= 0
// means unlimited.
func (s *Session) Full() bool {
	return s.MaxParticipants > 0 && len(s.Participants) >= s.MaxParticipants
}
