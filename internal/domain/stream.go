package domain

import "time"

type StreamKind string

const (
	StreamAudio StreamKind = "audio"
	StreamVideo StreamKind = "video"
)

type StreamQuality string

const (
	QualityLow    StreamQuality = "low"
	QualityMedium StreamQuality = "medium"
	QualityHigh   StreamQuality = "high"
	QualityHD     StreamQuality = "hd" // video only
)

// Stream is the bookkeeping record of one active media flow for a
// participant. It is never the media itself.
type Stream struct {
	ID            string        `db:"id" json:"streamId"`
	SessionID     string        `db:"session_id" json:"sessionId"`
	ParticipantID string        `db:"participant_id" json:"participantId"`
	Kind          StreamKind    `db:"kind" json:"kind"`
	Quality       StreamQuality `db:"quality" json:"quality"`
	Resolution    string        `db:"resolution" json:"resolution,omitempty"` // video only, derived from quality
	IsActive      bool          `db:"is_active" json:"isActive"`
	StartedAt     time.Time     `db:"started_at" json:"startedAt"`
	EndedAt       *time.Time    `db:"ended_at" json:"endedAt,omitempty"`
}

// ResolutionFor maps a video quality to its capture resolution.
func ResolutionFor(q StreamQuality) string {
	switch q {
	case QualityLow:
		return "320x240"
	case QualityMedium:
		return "640x480"
	case QualityHigh:
		return "1280x720"
	case QualityHD:
		return "1920x1080"
	default:
		return ""
	}
}

// ValidQuality reports whether q is allowed for streams of kind k.
// The hd tier exists only for video.
func ValidQuality(k StreamKind, q StreamQuality) bool {
	switch q {
	case QualityLow, QualityMedium, QualityHigh:
		return true
	case QualityHD:
		return k == StreamVideo
	default:
		return false
	}
}
