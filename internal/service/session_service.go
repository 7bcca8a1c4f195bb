package service

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/meetwire/signal-service/internal/domain"
	"github.com/meetwire/signal-service/internal/metrics"
)

// StreamStopper lets the session directory cascade an end-session into the
// stream registry without importing it.
type StreamStopper interface {
	StopSessionStreams(ctx context.Context, sessionID string) int
}

// SessionService is the session directory: create/fetch/end over session
// records plus participant membership with capacity enforcement.
type SessionService struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session

	sink       SessionSink   // nil: in-memory only
	streams    StreamStopper // nil: no cascade
	met        *metrics.Metrics
	defaultMax int
}

func NewSessionService(sink SessionSink, met *metrics.Metrics, defaultMax int) *SessionService {
	if defaultMax <= 0 {
		defaultMax = 50
	}
	return &SessionService{
		sessions:   make(map[string]*domain.Session),
		sink:       sink,
		met:        met,
		defaultMax: defaultMax,
	}
}

// SetStreamStopper wires the stream registry in after construction; the two
// services reference each other one way only.
func (s *SessionService) SetStreamStopper(st StreamStopper) { s.streams = st }

func (s *SessionService) Create(ctx context.Context, name, creatorID string, maxParticipants int) (*domain.Session, error) {
	if maxParticipants <= 0 {
		maxParticipants = s.defaultMax
	}

	sess := &domain.Session{
		ID:              uuid.New().String(),
		Name:            name,
		CreatorID:       creatorID,
		Participants:    []string{creatorID},
		IsActive:        true,
		StartedAt:       time.Now(),
		MaxParticipants: maxParticipants,
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	if s.met != nil {
		s.met.SessionsActive.Inc()
	}

	if s.sink != nil {
		snap := cloneSession(sess)
		persist(s.met, "session.save", func(ctx context.Context) error {
			return s.sink.SaveSession(ctx, snap)
		})
	}
	slog.Info("session created", "session", sess.ID, "creator", creatorID, "max", maxParticipants)

	return cloneSession(sess), nil
}

func (s *SessionService) Get(ctx context.Context, id string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return cloneSession(sess), nil
}

func (s *SessionService) ListActive(ctx context.Context) []domain.Session {
	s.mu.RLock()
	out := make([]domain.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		if sess.IsActive {
			out = append(out, *cloneSession(sess))
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

func (s *SessionService) Participants(ctx context.Context, id string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return append([]string(nil), sess.Participants...), nil
}

// AddParticipant appends participantID to the session, enforcing capacity.
// Adding a participant that is already present is a no-op, not an error, so
// a second connection from the same user can join freely.
func (s *SessionService) AddParticipant(ctx context.Context, sessionID, participantID string) error {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		return domain.ErrSessionNotFound
	}
	if !sess.IsActive {
		s.mu.Unlock()
		return domain.ErrSessionEnded
	}
	if sess.HasParticipant(participantID) {
		s.mu.Unlock()
		return nil
	}
	if sess.Full() {
		s.mu.Unlock()
		return domain.ErrSessionFull
	}
	sess.Participants = append(sess.Participants, participantID)
	snap := append([]string(nil), sess.Participants...)
	s.mu.Unlock()

	if s.sink != nil {
		persist(s.met, "session.participants", func(ctx context.Context) error {
			return s.sink.UpdateParticipants(ctx, sessionID, snap)
		})
	}
	slog.Info("participant added", "session", sessionID, "participant", participantID)

	return nil
}

// RemoveParticipant drops participantID from the session. When the list
// becomes empty the session ends automatically. Removing an absent
// participant or from an unknown session is a no-op.
func (s *SessionService) RemoveParticipant(ctx context.Context, sessionID, participantID string) error {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		return nil
	}

	kept := sess.Participants[:0]
	removed := false
	for _, p := range sess.Participants {
		if p == participantID {
			removed = true
			continue
		}
		kept = append(kept, p)
	}
	sess.Participants = kept

	var (
		snap  = append([]string(nil), sess.Participants...)
		ended bool
	)
	if removed && len(sess.Participants) == 0 {
		ended = s.endLocked(sess)
	}
	s.mu.Unlock()

	if !removed {
		return nil
	}
	if s.sink != nil {
		persist(s.met, "session.participants", func(ctx context.Context) error {
			return s.sink.UpdateParticipants(ctx, sessionID, snap)
		})
	}
	slog.Info("participant removed", "session", sessionID, "participant", participantID)
	if ended {
		s.afterEnd(ctx, sessionID)
	}

	return nil
}

// End marks the session inactive. Ending an already-ended session is a no-op.
func (s *SessionService) End(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		return domain.ErrSessionNotFound
	}
	ended := s.endLocked(sess)
	s.mu.Unlock()

	if ended {
		s.afterEnd(ctx, sessionID)
	}
	return nil
}

// endLocked flips the active -> ended transition exactly once. Caller holds
// the write lock.
func (s *SessionService) endLocked(sess *domain.Session) bool {
	if !sess.IsActive {
		return false
	}
	now := time.Now()
	sess.IsActive = false
	sess.EndedAt = &now
	return true
}

// afterEnd runs the side effects of an end transition outside the lock.
func (s *SessionService) afterEnd(ctx context.Context, sessionID string) {
	if s.streams != nil {
		s.streams.StopSessionStreams(ctx, sessionID)
	}
	if s.sink != nil {
		endedAt := time.Now()
		persist(s.met, "session.end", func(ctx context.Context) error {
			return s.sink.EndSession(ctx, sessionID, endedAt)
		})
	}
	if s.met != nil {
		s.met.SessionsActive.Dec()
	}
	slog.Info("session ended", "session", sessionID)
}

func cloneSession(sess *domain.Session) *domain.Session {
	cp := *sess
	cp.Participants = append([]string(nil), sess.Participants...)
	if sess.EndedAt != nil {
		t := *sess.EndedAt
		cp.EndedAt = &t
	}
	return &cp
}
