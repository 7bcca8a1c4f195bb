package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/meetwire/signal-service/internal/domain"
	"github.com/meetwire/signal-service/internal/metrics"
)

// SessionSink is the optional write-through persistence boundary for session
// records. The in-memory directory is authoritative; sink failures are logged
// and never affect the caller.
type SessionSink interface {
	SaveSession(ctx context.Context, s *domain.Session) error
	UpdateParticipants(ctx context.Context, sessionID string, participants []string) error
	EndSession(ctx context.Context, sessionID string, endedAt time.Time) error
}

// StreamSink is the same boundary for stream records.
type StreamSink interface {
	SaveStream(ctx context.Context, st *domain.Stream) error
	UpdateStream(ctx context.Context, st *domain.Stream) error
}

const sinkTimeout = 5 * time.Second

// persist runs a sink write off the caller's goroutine. Registry mutations
// must never block on network I/O, so the write is fire-and-forget with its
// own deadline.
func persist(met *metrics.Metrics, op string, fn func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			if met != nil {
				met.SinkErrors.Inc()
			}
			slog.Warn("persistence sink write failed", "op", op, "err", err)
		}
	}()
}
