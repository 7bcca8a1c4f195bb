package domain

import "errors"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionFull     = errors.New("session is full")
	ErrSessionEnded    = errors.New("session already ended")
	ErrStreamNotFound  = errors.New("stream not found")
	ErrStreamEnded     = errors.New("stream already ended")
	ErrBadQuality      = errors.New("invalid stream quality")
)
