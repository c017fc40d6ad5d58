package backend

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/omplayer/server/internal/domain"
	"github.com/omplayer/server/internal/media"
)

var ErrUnknownBackend = errors.New("unknown backend")

type EventKind int

const (
	EventMetadata EventKind = iota
	EventPlaying
	EventPaused
	EventTimeUpdate
	EventEnded
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventMetadata:
		return "metadata"
	case EventPlaying:
		return "playing"
	case EventPaused:
		return "paused"
	case EventTimeUpdate:
		return "timeupdate"
	case EventEnded:
		return "ended"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is the canonical, backend independent playback signal.
type Event struct {
	Kind     EventKind
	Time     float64
	Duration float64
	// Buffering is only meaningful on EventTimeUpdate.
	Buffering bool
	Err       error
}

type Emitter func(Event)

// Adapter is the uniform capability surface over one playback technology.
// Implementations: native, hls, dash, ad.
type Adapter interface {
	Kind() domain.BackendKind
	Load(src domain.Source)
	Play()
	Pause()
	Paused() bool
	Seek(t float64)
	CurrentTime() float64
	SetCurrentTime(t float64)
	Duration() float64
	SetMuted(muted bool)
	SetVolume(v float64)
	SetLoop(loop bool)
	Destroy() error
}

type Config struct {
	MediaKind domain.MediaKind
	Elements  media.Factory
	Emit      Emitter
	Logger    *slog.Logger
	// HTTPClient fetches manifests and ad tags.
	HTTPClient *http.Client
	// NativeProber probes progressive sources for the native backend.
	NativeProber media.Prober
	AdLoader     AdLoader
}

// New builds the adapter for kind.
func New(kind domain.BackendKind, cfg Config) (Adapter, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.Emit == nil {
		cfg.Emit = func(Event) {}
	}

	switch kind {
	case domain.BackendNative:
		return newNative(cfg), nil
	case domain.BackendHLS:
		return newHLS(cfg), nil
	case domain.BackendDASH:
		return newDASH(cfg), nil
	case domain.BackendAd:
		return newAd(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, kind)
	}
}
