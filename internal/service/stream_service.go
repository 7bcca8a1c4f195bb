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

// StreamService tracks stream records: one per active media kind per
// participant per session. Records are bookkeeping only; no media passes
// through here.
type StreamService struct {
	mu      sync.RWMutex
	streams map[string]*domain.Stream

	sink      StreamSink // nil: in-memory only
	met       *metrics.Metrics
	retention time.Duration
}

func NewStreamService(sink StreamSink, met *metrics.Metrics, retention time.Duration) *StreamService {
	if retention <= 0 {
		retention = 30 * time.Minute
	}
	return &StreamService{
		streams:   make(map[string]*domain.Stream),
		sink:      sink,
		met:       met,
		retention: retention,
	}
}

func (s *StreamService) Create(ctx context.Context, sessionID, participantID string, kind domain.StreamKind, quality domain.StreamQuality) (*domain.Stream, error) {
	if quality == "" {
		quality = domain.QualityHigh
	}
	if !domain.ValidQuality(kind, quality) {
		return nil, domain.ErrBadQuality
	}

	st := &domain.Stream{
		ID:            uuid.New().String(),
		SessionID:     sessionID,
		ParticipantID: participantID,
		Kind:          kind,
		Quality:       quality,
		IsActive:      true,
		StartedAt:     time.Now(),
	}
	if kind == domain.StreamVideo {
		st.Resolution = domain.ResolutionFor(quality)
	}

	s.mu.Lock()
	s.streams[st.ID] = st
	s.mu.Unlock()

	if s.sink != nil {
		snap := *st
		persist(s.met, "stream.save", func(ctx context.Context) error {
			return s.sink.SaveStream(ctx, &snap)
		})
	}
	if s.met != nil {
		s.met.StreamsActive.Inc()
	}
	slog.Info("stream created",
		"stream", st.ID, "session", sessionID, "participant", participantID,
		"kind", kind, "quality", quality)

	return cloneStream(st), nil
}

func (s *StreamService) Get(ctx context.Context, id string) (*domain.Stream, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.streams[id]
	if !ok {
		return nil, domain.ErrStreamNotFound
	}
	return cloneStream(st), nil
}

// ListBySession returns the active stream records of a session, oldest first.
func (s *StreamService) ListBySession(ctx context.Context, sessionID string) []domain.Stream {
	s.mu.RLock()
	out := make([]domain.Stream, 0, 8)
	for _, st := range s.streams {
		if st.SessionID == sessionID && st.IsActive {
			out = append(out, *cloneStream(st))
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

// Stop marks a stream inactive. Stopping an already-stopped stream is a
// no-op.
func (s *StreamService) Stop(ctx context.Context, id string) error {
	s.mu.Lock()
	st, ok := s.streams[id]
	if !ok {
		s.mu.Unlock()
		return domain.ErrStreamNotFound
	}
	stopped := stopLocked(st)
	var snap domain.Stream
	if stopped {
		snap = *st
	}
	s.mu.Unlock()

	if !stopped {
		return nil
	}
	s.flushStop(&snap)
	return nil
}

// SetQuality adjusts the quality of an active stream. Ended streams are
// immutable.
func (s *StreamService) SetQuality(ctx context.Context, id string, quality domain.StreamQuality) (*domain.Stream, error) {
	s.mu.Lock()
	st, ok := s.streams[id]
	if !ok {
		s.mu.Unlock()
		return nil, domain.ErrStreamNotFound
	}
	if !st.IsActive {
		s.mu.Unlock()
		return nil, domain.ErrStreamEnded
	}
	if !domain.ValidQuality(st.Kind, quality) {
		s.mu.Unlock()
		return nil, domain.ErrBadQuality
	}
	st.Quality = quality
	if st.Kind == domain.StreamVideo {
		st.Resolution = domain.ResolutionFor(quality)
	}
	snap := *st
	s.mu.Unlock()

	if s.sink != nil {
		persist(s.met, "stream.update", func(ctx context.Context) error {
			return s.sink.UpdateStream(ctx, &snap)
		})
	}
	slog.Info("stream quality changed", "stream", id, "quality", quality)

	return cloneStream(&snap), nil
}

// StopParticipantStreams stops every active stream the participant holds in
// the session and returns how many were stopped.
func (s *StreamService) StopParticipantStreams(ctx context.Context, sessionID, participantID string) int {
	return s.stopWhere(func(st *domain.Stream) bool {
		return st.SessionID == sessionID && st.ParticipantID == participantID
	})
}

// StopSessionStreams stops every active stream of the session.
func (s *StreamService) StopSessionStreams(ctx context.Context, sessionID string) int {
	return s.stopWhere(func(st *domain.Stream) bool {
		return st.SessionID == sessionID
	})
}

func (s *StreamService) stopWhere(match func(*domain.Stream) bool) int {
	s.mu.Lock()
	stopped := make([]domain.Stream, 0, 4)
	for _, st := range s.streams {
		if st.IsActive && match(st) && stopLocked(st) {
			stopped = append(stopped, *st)
		}
	}
	s.mu.Unlock()

	for i := range stopped {
		s.flushStop(&stopped[i])
	}
	return len(stopped)
}

// Run sweeps inactive records past the retention window on a fixed interval
// until ctx is cancelled. Removal is about bounded memory, not correctness;
// active records are never swept.
func (s *StreamService) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("stream sweep started", "interval", interval, "retention", s.retention)
	for {
		select {
		case <-ctx.Done():
			slog.Info("stream sweep stopped")
			return
		case <-ticker.C:
			if n := s.sweep(time.Now()); n > 0 {
				slog.Debug("stream records swept", "count", n)
			}
		}
	}
}

// sweep removes inactive records whose endedAt is older than the retention
// window as of now. The sink is untouched: durable records outlive memory.
func (s *StreamService) sweep(now time.Time) int {
	cutoff := now.Add(-s.retention)

	s.mu.Lock()
	n := 0
	for id, st := range s.streams {
		if !st.IsActive && st.EndedAt != nil && st.EndedAt.Before(cutoff) {
			delete(s.streams, id)
			n++
		}
	}
	s.mu.Unlock()

	if n > 0 && s.met != nil {
		s.met.StreamsSwept.Add(float64(n))
	}
	return n
}

func (s *StreamService) flushStop(snap *domain.Stream) {
	if s.sink != nil {
		persist(s.met, "stream.update", func(ctx context.Context) error {
			return s.sink.UpdateStream(ctx, snap)
		})
	}
	if s.met != nil {
		s.met.StreamsActive.Dec()
	}
	slog.Info("stream stopped", "stream", snap.ID, "session", snap.SessionID)
}

func stopLocked(st *domain.Stream) bool {
	if !st.IsActive {
		return false
	}
	now := time.Now()
	st.IsActive = false
	st.EndedAt = &now
	return true
}

func cloneStream(st *domain.Stream) *domain.Stream {
	cp := *st
	if st.EndedAt != nil {
		t := *st.EndedAt
		cp.EndedAt = &t
	}
	return &cp
}
