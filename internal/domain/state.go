package domain

type PlaybackState int

const (
	StateIdle PlaybackState = iota
	StateLoading
	StateReady
	StatePlaying
	StatePaused
	StateEnded
	StateError
)

func (s PlaybackState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateEnded:
		return "ended"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

func (s PlaybackState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type InputModality int

const (
	ModalityMouse InputModality = iota
	ModalityKeyboard
)

func (m InputModality) String() string {
	if m == ModalityKeyboard {
		return "keyboard"
	}
	return "mouse"
}

func (m InputModality) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}
