// Package recognizer defines the streaming speech recognition boundary.
package recognizer

import (
	"context"
	"errors"
	"fmt"

	"github.com/rbright/hifz/internal/align"
)

var (
	// ErrUnsupported indicates no recognition backend is usable on this system.
	ErrUnsupported = errors.New("speech recognition is not supported")
	// ErrPermissionDenied indicates the microphone or recognition service refused access.
	ErrPermissionDenied = errors.New("speech recognition permission denied")
	// ErrEndOfInput indicates a finite source has nothing more to deliver.
	ErrEndOfInput = errors.New("recognition input exhausted")
)

// Stream is one running recognition session.
type Stream interface {
	// Segments delivers hypotheses in arrival order and is closed when the stream ends.
	Segments() <-chan align.Segment
	// Err reports why the stream ended. It is valid after Segments is closed.
	Err() error
	// Stop ends the stream. It is safe to call more than once.
	Stop() error
}

// Recognizer starts recognition streams.
type Recognizer interface {
	Start(context.Context) (Stream, error)
}

// Unavailable is the recognizer used when no backend can run.
type Unavailable struct {
	Reason string
}

func (u Unavailable) Start(context.Context) (Stream, error) {
	if u.Reason == "" {
		return nil, ErrUnsupported
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, u.Reason)
}
