package media

import (
	"context"
	"fmt"

	"github.com/omplayer/server/internal/domain"
)

type EventType string

const (
	EventEmptied        EventType = "emptied"
	EventLoadStart      EventType = "loadstart"
	EventLoadedMetadata EventType = "loadedmetadata"
	EventCanPlay        EventType = "canplay"
	EventPlay           EventType = "play"
	EventPlaying        EventType = "playing"
	EventPause          EventType = "pause"
	EventWaiting        EventType = "waiting"
	EventSeeked         EventType = "seeked"
	EventTimeUpdate     EventType = "timeupdate"
	EventVolumeChange   EventType = "volumechange"
	EventEnded          EventType = "ended"
	EventError          EventType = "error"
)

type Event struct {
	Type EventType
	Err  error
}

type Listener func(Event)

// Element is the native playback surface. Events are delivered to listeners
// in the order the element produces them.
type Element interface {
	Kind() domain.MediaKind
	SetSrc(src, mime string)
	Src() string
	Load()
	Play()
	Pause()
	Paused() bool
	Ended() bool
	CurrentTime() float64
	SetCurrentTime(t float64)
	// Duration is NaN until metadata is known and +Inf for live streams.
	Duration() float64
	Muted() bool
	SetMuted(muted bool)
	Volume() float64
	SetVolume(v float64)
	SetLoop(loop bool)
	Listen(l Listener) (unlisten func())
	Release()
}

type Factory interface {
	New(kind domain.MediaKind, prober Prober) Element
}

type Metadata struct {
	Duration float64
}

// Prober fetches whatever is needed to know a source's metadata.
type Prober interface {
	Probe(ctx context.Context, src, mime string) (Metadata, error)
}

type ProberFunc func(ctx context.Context, src, mime string) (Metadata, error)

func (f ProberFunc) Probe(ctx context.Context, src, mime string) (Metadata, error) {
	return f(ctx, src, mime)
}

// Fixed is a prober answering with a constant duration.
func Fixed(duration float64) Prober {
	return ProberFunc(func(context.Context, string, string) (Metadata, error) {
		return Metadata{Duration: duration}, nil
	})
}

type ErrorCode int

const (
	ErrAborted      ErrorCode = 1
	ErrNetwork      ErrorCode = 2
	ErrDecode       ErrorCode = 3
	ErrSrcNotSupped ErrorCode = 4
)

// Error mirrors the native MediaError.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("media error %d: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}
