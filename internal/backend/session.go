package backend

import (
	"log/slog"
	"math"
	"sync"

	"github.com/omplayer/server/pkg/clamp"

	"github.com/omplayer/server/internal/domain"
	"github.com/omplayer/server/internal/media"
)

// session holds the element shared by all variants. Variants supply the
// translation from element events to canonical events.
type session struct {
	kind   domain.BackendKind
	el     media.Element
	emit   Emitter
	logger *slog.Logger

	mu        sync.Mutex
	unlisten  func()
	destroyed bool
}

func newSession(kind domain.BackendKind, cfg Config, prober media.Prober, translate media.Listener) *session {
	s := &session{
		kind:   kind,
		el:     cfg.Elements.New(cfg.MediaKind, prober),
		emit:   cfg.Emit,
		logger: cfg.Logger.With("backend", kind.String()),
	}
	s.unlisten = s.el.Listen(func(e media.Event) {
		if s.isDestroyed() {
			return
		}
		translate(e)
	})

	return s
}

func (s *session) Kind() domain.BackendKind {
	return s.kind
}

func (s *session) isDestroyed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.destroyed
}

// attach replaces whatever the element was playing with src.
func (s *session) attach(src domain.Source) {
	if s.isDestroyed() {
		return
	}
	s.logger.Debug("attaching source", "src", src.Src, "type", src.Type)
	s.el.SetSrc(src.Src, src.Type)
	s.el.Load()
}

func (s *session) Play() {
	if s.isDestroyed() || !s.el.Paused() {
		return
	}
	s.el.Play()
}

func (s *session) Pause() {
	if s.isDestroyed() || s.el.Paused() {
		return
	}
	s.el.Pause()
}

func (s *session) Paused() bool {
	return s.el.Paused()
}

func (s *session) Seek(t float64) {
	if s.isDestroyed() {
		return
	}
	d := s.el.Duration()
	if math.IsNaN(d) {
		s.logger.Info("seek ignored, duration unknown", "time", t)
		return
	}
	s.el.SetCurrentTime(clamp.Clamp(t, 0, d))
}

func (s *session) SetCurrentTime(t float64) {
	s.Seek(t)
}

func (s *session) CurrentTime() float64 {
	return s.el.CurrentTime()
}

func (s *session) Duration() float64 {
	return s.el.Duration()
}

func (s *session) SetMuted(muted bool) {
	s.el.SetMuted(muted)
}

func (s *session) SetVolume(v float64) {
	s.el.SetVolume(v)
}

func (s *session) SetLoop(loop bool) {
	s.el.SetLoop(loop)
}

func (s *session) Destroy() error {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return nil
	}
	s.destroyed = true
	unlisten := s.unlisten
	s.unlisten = nil
	s.mu.Unlock()

	if unlisten != nil {
		unlisten()
	}
	s.el.Release()
	s.logger.Debug("backend destroyed")

	return nil
}

// translateElement covers the element events every variant shares.
func (s *session) translateElement(e media.Event) {
	switch e.Type {
	case media.EventLoadedMetadata:
		s.emit(Event{Kind: EventMetadata, Duration: s.el.Duration()})
	case media.EventPlaying:
		s.emit(Event{Kind: EventPlaying, Time: s.el.CurrentTime()})
	case media.EventPause:
		// the element pauses itself right before ending
		if !s.el.Ended() {
			s.emit(Event{Kind: EventPaused, Time: s.el.CurrentTime()})
		}
	case media.EventTimeUpdate:
		s.emit(Event{Kind: EventTimeUpdate, Time: s.el.CurrentTime(), Duration: s.el.Duration()})
	case media.EventWaiting:
		s.emit(Event{Kind: EventTimeUpdate, Time: s.el.CurrentTime(), Duration: s.el.Duration(), Buffering: true})
	case media.EventEnded:
		s.emit(Event{Kind: EventEnded, Time: s.el.CurrentTime(), Duration: s.el.Duration()})
	case media.EventError:
		s.emit(Event{Kind: EventError, Err: e.Err})
	}
}
