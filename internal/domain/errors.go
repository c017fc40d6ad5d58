package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrPlayerDestroyed = errors.New("player destroyed")
	ErrNoSource        = errors.New("no source set")
)

// UnsupportedSourceError is returned when no backend can play any candidate.
type UnsupportedSourceError struct {
	Sources []Source
}

func (e *UnsupportedSourceError) Error() string {
	if len(e.Sources) == 0 {
		return "unsupported source: no candidates"
	}

	srcs := make([]string, 0, len(e.Sources))
	for _, s := range e.Sources {
		srcs = append(srcs, fmt.Sprintf("%s (%s)", s.Src, s.Type))
	}

	return "unsupported source: " + strings.Join(srcs, ", ")
}

// BackendPlaybackError wraps a decode or network failure reported by a backend.
type BackendPlaybackError struct {
	Backend BackendKind
	Reason  error
}

func (e *BackendPlaybackError) Error() string {
	return fmt.Sprintf("%s backend playback error: %v", e.Backend, e.Reason)
}

func (e *BackendPlaybackError) Unwrap() error {
	return e.Reason
}

// InvalidCommandError is a synchronous rejection; state is left unchanged.
type InvalidCommandError struct {
	Command string
	Reason  string
}

func (e *InvalidCommandError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Command, e.Reason)
}
