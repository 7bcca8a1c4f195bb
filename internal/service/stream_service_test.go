package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/meetwire/signal-service/internal/domain"
)

func TestCreateStream(t *testing.T) {
	ctx := context.Background()
	svc := NewStreamService(nil, nil, 0)

	st, err := svc.Create(ctx, "s1", "u1", domain.StreamVideo, domain.QualityMedium)
	if err != nil {
		t.Fatal(err)
	}
	if !st.IsActive || st.SessionID != "s1" || st.ParticipantID != "u1" {
		t.Fatalf("bad stream: %+v", st)
	}
	if st.Resolution != domain.ResolutionFor(domain.QualityMedium) {
		t.Fatalf("resolution = %q", st.Resolution)
	}

	// Audio records carry no resolution.
	st, err = svc.Create(ctx, "s1", "u1", domain.StreamAudio, domain.QualityHigh)
	if err != nil {
		t.Fatal(err)
	}
	if st.Resolution != "" {
		t.Fatalf("audio stream has resolution %q", st.Resolution)
	}
}

func TestCreateStreamQualityRules(t *testing.T) {
	ctx := context.Background()
	svc := NewStreamService(nil, nil, 0)

	// hd is a video-only tier.
	if _, err := svc.Create(ctx, "s1", "u1", domain.StreamAudio, domain.QualityHD); !errors.Is(err, domain.ErrBadQuality) {
		t.Fatalf("err = %v, want ErrBadQuality", err)
	}
	if _, err := svc.Create(ctx, "s1", "u1", domain.StreamVideo, domain.QualityHD); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Create(ctx, "s1", "u1", domain.StreamVideo, "4k"); !errors.Is(err, domain.ErrBadQuality) {
		t.Fatalf("err = %v, want ErrBadQuality", err)
	}

	// Empty quality defaults to high.
	st, err := svc.Create(ctx, "s1", "u1", domain.StreamAudio, "")
	if err != nil {
		t.Fatal(err)
	}
	if st.Quality != domain.QualityHigh {
		t.Fatalf("quality = %q, want high", st.Quality)
	}
}

func TestStopStream(t *testing.T) {
	ctx := context.Background()
	svc := NewStreamService(nil, nil, 0)
	st, _ := svc.Create(ctx, "s1", "u1", domain.StreamAudio, domain.QualityHigh)

	if err := svc.Stop(ctx, st.ID); err != nil {
		t.Fatal(err)
	}
	got, _ := svc.Get(ctx, st.ID)
	if got.IsActive || got.EndedAt == nil {
		t.Fatalf("stream not stopped: %+v", got)
	}

	// Idempotent.
	if err := svc.Stop(ctx, st.ID); err != nil {
		t.Fatal(err)
	}
	if err := svc.Stop(ctx, "nope"); !errors.Is(err, domain.ErrStreamNotFound) {
		t.Fatalf("err = %v, want ErrStreamNotFound", err)
	}
}

func TestSetQuality(t *testing.T) {
	ctx := context.Background()
	svc := NewStreamService(nil, nil, 0)
	st, _ := svc.Create(ctx, "s1", "u1", domain.StreamVideo, domain.QualityLow)

	got, err := svc.SetQuality(ctx, st.ID, domain.QualityHD)
	if err != nil {
		t.Fatal(err)
	}
	if got.Quality != domain.QualityHD || got.Resolution != domain.ResolutionFor(domain.QualityHD) {
		t.Fatalf("after change: %+v", got)
	}

	if _, err := svc.SetQuality(ctx, st.ID, "ultra"); !errors.Is(err, domain.ErrBadQuality) {
		t.Fatalf("err = %v, want ErrBadQuality", err)
	}

	_ = svc.Stop(ctx, st.ID)
	if _, err := svc.SetQuality(ctx, st.ID, domain.QualityLow); !errors.Is(err, domain.ErrStreamEnded) {
		t.Fatalf("err = %v, want ErrStreamEnded", err)
	}
}

func TestListBySessionActiveOnly(t *testing.T) {
	ctx := context.Background()
	svc := NewStreamService(nil, nil, 0)

	a, _ := svc.Create(ctx, "s1", "u1", domain.StreamAudio, domain.QualityHigh)
	time.Sleep(time.Millisecond)
	b, _ := svc.Create(ctx, "s1", "u2", domain.StreamAudio, domain.QualityHigh)
	_, _ = svc.Create(ctx, "s2", "u3", domain.StreamAudio, domain.QualityHigh)
	_ = svc.Stop(ctx, a.ID)

	got := svc.ListBySession(ctx, "s1")
	if len(got) != 1 || got[0].ID != b.ID {
		t.Fatalf("list = %+v, want only %s", got, b.ID)
	}
}

func TestStopParticipantStreams(t *testing.T) {
	ctx := context.Background()
	svc := NewStreamService(nil, nil, 0)

	_, _ = svc.Create(ctx, "s1", "u1", domain.StreamAudio, domain.QualityHigh)
	_, _ = svc.Create(ctx, "s1", "u1", domain.StreamVideo, domain.QualityHigh)
	keep, _ := svc.Create(ctx, "s1", "u2", domain.StreamAudio, domain.QualityHigh)

	if n := svc.StopParticipantStreams(ctx, "s1", "u1"); n != 2 {
		t.Fatalf("stopped %d, want 2", n)
	}
	got := svc.ListBySession(ctx, "s1")
	if len(got) != 1 || got[0].ID != keep.ID {
		t.Fatalf("remaining = %+v", got)
	}
	// Nothing left for u1.
	if n := svc.StopParticipantStreams(ctx, "s1", "u1"); n != 0 {
		t.Fatalf("second pass stopped %d, want 0", n)
	}
}

func TestStopSessionStreams(t *testing.T) {
	ctx := context.Background()
	svc := NewStreamService(nil, nil, 0)

	_, _ = svc.Create(ctx, "s1", "u1", domain.StreamAudio, domain.QualityHigh)
	_, _ = svc.Create(ctx, "s1", "u2", domain.StreamVideo, domain.QualityHigh)
	other, _ := svc.Create(ctx, "s2", "u3", domain.StreamAudio, domain.QualityHigh)

	if n := svc.StopSessionStreams(ctx, "s1"); n != 2 {
		t.Fatalf("stopped %d, want 2", n)
	}
	if got, _ := svc.Get(ctx, other.ID); !got.IsActive {
		t.Fatal("stream in another session was stopped")
	}
}

func TestSweepRemovesOnlyExpiredInactive(t *testing.T) {
	ctx := context.Background()
	svc := NewStreamService(nil, nil, 30*time.Minute)

	active, _ := svc.Create(ctx, "s1", "u1", domain.StreamAudio, domain.QualityHigh)
	fresh, _ := svc.Create(ctx, "s1", "u2", domain.StreamAudio, domain.QualityHigh)
	old, _ := svc.Create(ctx, "s1", "u3", domain.StreamAudio, domain.QualityHigh)
	_ = svc.Stop(ctx, fresh.ID)
	_ = svc.Stop(ctx, old.ID)

	// Backdate the old record past the retention window.
	svc.mu.Lock()
	past := time.Now().Add(-time.Hour)
	svc.streams[old.ID].EndedAt = &past
	svc.mu.Unlock()

	if n := svc.sweep(time.Now()); n != 1 {
		t.Fatalf("swept %d, want 1", n)
	}
	if _, err := svc.Get(ctx, old.ID); !errors.Is(err, domain.ErrStreamNotFound) {
		t.Fatalf("expired record still present: %v", err)
	}
	if _, err := svc.Get(ctx, fresh.ID); err != nil {
		t.Fatal("record inside the retention window was swept")
	}
	if got, _ := svc.Get(ctx, active.ID); !got.IsActive {
		t.Fatal("active record was swept")
	}

	// Nothing else expires on a rerun.
	if n := svc.sweep(time.Now()); n != 0 {
		t.Fatalf("second sweep removed %d", n)
	}
}
