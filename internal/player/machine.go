package player

import "github.com/omplayer/server/internal/domain"

type trigger int

const (
	triggerLoad trigger = iota
	triggerMetadata
	triggerPlay
	triggerPause
	triggerEnded
	triggerFailure
	triggerDestroy
)

func (t trigger) String() string {
	switch t {
	case triggerLoad:
		return "load"
	case triggerMetadata:
		return "metadata"
	case triggerPlay:
		return "play"
	case triggerPause:
		return "pause"
	case triggerEnded:
		return "ended"
	case triggerFailure:
		return "failure"
	case triggerDestroy:
		return "destroy"
	default:
		return "unknown"
	}
}

// next is the whole transition table. ok is false when t is not a
// transition out of from.
func next(from domain.PlaybackState, t trigger) (domain.PlaybackState, bool) {
	switch t {
	case triggerLoad:
		return domain.StateLoading, true
	case triggerMetadata:
		if from == domain.StateLoading {
			return domain.StateReady, true
		}
	case triggerPlay:
		if from == domain.StateReady || from == domain.StatePaused {
			return domain.StatePlaying, true
		}
	case triggerPause:
		if from == domain.StatePlaying {
			return domain.StatePaused, true
		}
	case triggerEnded:
		if from == domain.StatePlaying {
			return domain.StateEnded, true
		}
	case triggerFailure:
		if from != domain.StateIdle {
			return domain.StateError, true
		}
	case triggerDestroy:
		return domain.StateIdle, true
	}

	return from, false
}

// holdsCommands reports whether play, pause and seek are parked in the
// pending slot instead of being applied.
func holdsCommands(s domain.PlaybackState) bool {
	return s == domain.StateLoading || s == domain.StateError
}
