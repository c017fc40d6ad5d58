package player

import (
	"reflect"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/omplayer/server/internal/controls"
	"github.com/omplayer/server/internal/domain"
)

const defaultTimeRefresh = 250 * time.Millisecond

type subscription struct {
	id string
	fn func(controls.View)
}

// synchronizer turns snapshots into views and fans changed views out to
// subscribers. Everything but View runs on the player loop.
type synchronizer struct {
	interval time.Duration
	now      func() time.Time

	displayed   float64
	refreshedAt time.Time

	latest atomic.Pointer[controls.View]
	subs   []subscription
}

func newSynchronizer(interval time.Duration, now func() time.Time) *synchronizer {
	if interval <= 0 {
		interval = defaultTimeRefresh
	}
	if now == nil {
		now = time.Now
	}
	return &synchronizer{interval: interval, now: now}
}

// View implements controls.Container.
func (s *synchronizer) View() controls.View {
	if v := s.latest.Load(); v != nil {
		return *v
	}
	return controls.View{}
}

// tick offers a new playback position to the time displays; it is taken
// at most once per interval.
func (s *synchronizer) tick(t float64) {
	now := s.now()
	if now.Sub(s.refreshedAt) < s.interval {
		return
	}
	s.displayed = t
	s.refreshedAt = now
}

// syncTime moves the time displays right away, used for seeks and state
// changes.
func (s *synchronizer) syncTime(t float64) {
	s.displayed = t
	s.refreshedAt = s.now()
}

func (s *synchronizer) displayedTime() float64 {
	return s.displayed
}

// refresh renders snap and notifies subscribers if the view changed.
func (s *synchronizer) refresh(snap controls.Snapshot) bool {
	v := controls.Render(snap)
	if prev := s.latest.Load(); prev != nil && reflect.DeepEqual(*prev, v) {
		return false
	}
	s.latest.Store(&v)

	for _, sub := range s.subs {
		sub.fn(v)
	}
	return true
}

func (s *synchronizer) subscribe(fn func(controls.View)) string {
	id := uuid.NewString()
	s.subs = append(s.subs, subscription{id: id, fn: fn})
	return id
}

func (s *synchronizer) unsubscribe(id string) {
	for i, sub := range s.subs {
		if sub.id == id {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			return
		}
	}
}

func (s *synchronizer) clear() {
	s.subs = nil
}

type intentKind int

const (
	intentPlay intentKind = iota
	intentPause
	intentSeek
	intentMute
	intentUnmute
	intentVolume
	intentToggleSettings
	intentToggleFullscreen
	intentSelectCaptions
)

type intent struct {
	kind   intentKind
	time   float64
	volume float64
	track  string
}

// translate maps a widget action to a command given the current view
// inputs. It never touches the view itself.
func translate(a controls.Action, snap controls.Snapshot) (intent, error) {
	invalid := func(reason string) (intent, error) {
		return intent{}, &domain.InvalidCommandError{Command: "action " + a.Widget, Reason: reason}
	}

	switch a.Widget {
	case controls.WidgetPlay:
		if snap.State == domain.StatePlaying {
			return intent{kind: intentPause}, nil
		}
		return intent{kind: intentPlay}, nil
	case controls.WidgetProgress:
		t, err := strconv.ParseFloat(a.Value, 64)
		if err != nil {
			return invalid("bad time " + strconv.Quote(a.Value))
		}
		return intent{kind: intentSeek, time: t}, nil
	case controls.WidgetMute:
		if snap.Muted {
			return intent{kind: intentUnmute}, nil
		}
		return intent{kind: intentMute}, nil
	case controls.WidgetVolume:
		v, err := strconv.ParseFloat(a.Value, 64)
		if err != nil {
			return invalid("bad volume " + strconv.Quote(a.Value))
		}
		return intent{kind: intentVolume, volume: v}, nil
	case controls.WidgetCaptions:
		if len(snap.Tracks) == 0 {
			return invalid("no caption tracks")
		}
		if snap.ActiveTrack != "" {
			return intent{kind: intentSelectCaptions}, nil
		}
		track := snap.Tracks[0].ID()
		for _, t := range snap.Tracks {
			if t.Default {
				track = t.ID()
				break
			}
		}
		return intent{kind: intentSelectCaptions, track: track}, nil
	case controls.WidgetSettings:
		return intent{kind: intentToggleSettings}, nil
	case controls.WidgetMenu:
		id, ok := controls.TrackFromMenuValue(a.Value)
		if !ok {
			return invalid("unknown menu value " + strconv.Quote(a.Value))
		}
		return intent{kind: intentSelectCaptions, track: id}, nil
	case controls.WidgetFullscreen:
		if snap.Kind == domain.MediaAudio {
			return invalid("audio players have no fullscreen")
		}
		return intent{kind: intentToggleFullscreen}, nil
	default:
		return invalid("unknown widget")
	}
}
