package media

import (
	"context"
	"errors"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/omplayer/server/pkg/clamp"

	"github.com/omplayer/server/internal/domain"
)

// VirtualFactory builds Virtual elements and counts how many are alive.
type VirtualFactory struct {
	// TickInterval drives playback time; zero means time only moves via Advance.
	TickInterval time.Duration
	ProbeTimeout time.Duration
	// OnCreate, when set, observes every created element.
	OnCreate func(*Virtual)

	live atomic.Int64
}

func (f *VirtualFactory) New(kind domain.MediaKind, prober Prober) Element {
	v := NewVirtual(kind, prober, f.TickInterval)
	v.probeTimeout = f.ProbeTimeout
	f.live.Add(1)
	v.onRelease = func() { f.live.Add(-1) }
	if f.OnCreate != nil {
		f.OnCreate(v)
	}
	return v
}

// Live returns the number of created and not yet released elements.
func (f *VirtualFactory) Live() int {
	return int(f.live.Load())
}

// Virtual is an in-process playback surface with native element semantics.
type Virtual struct {
	mu           sync.Mutex
	kind         domain.MediaKind
	prober       Prober
	tickInterval time.Duration
	probeTimeout time.Duration
	onRelease    func()

	src      string
	mime     string
	loadSeq  uint64
	cancel   context.CancelFunc
	duration float64
	current  float64
	paused   bool
	ended    bool
	muted    bool
	volume   float64
	loop     bool
	released bool
	stopTick chan struct{}

	listeners map[int]Listener
	nextID    int
}

func NewVirtual(kind domain.MediaKind, prober Prober, tickInterval time.Duration) *Virtual {
	return &Virtual{
		kind:         kind,
		prober:       prober,
		tickInterval: tickInterval,
		duration:     math.NaN(),
		paused:       true,
		volume:       1,
		listeners:    make(map[int]Listener),
	}
}

func (v *Virtual) Kind() domain.MediaKind { return v.kind }

func (v *Virtual) SetSrc(src, mime string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.src = src
	v.mime = mime
}

func (v *Virtual) Src() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.src
}

func (v *Virtual) Load() {
	v.mu.Lock()
	if v.released {
		v.mu.Unlock()
		return
	}
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
	v.stopTickerLocked()
	v.loadSeq++
	seq := v.loadSeq
	v.duration = math.NaN()
	v.current = 0
	v.paused = true
	v.ended = false
	src, mime, prober := v.src, v.mime, v.prober

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if v.probeTimeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), v.probeTimeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	v.cancel = cancel
	v.mu.Unlock()

	v.emit(Event{Type: EventEmptied})
	v.emit(Event{Type: EventLoadStart})

	if src == "" {
		cancel()
		v.emit(Event{Type: EventError, Err: &Error{Code: ErrSrcNotSupped, Message: "empty src"}})
		return
	}

	go v.probe(ctx, seq, src, mime, prober)
}

func (v *Virtual) probe(ctx context.Context, seq uint64, src, mime string, prober Prober) {
	md := Metadata{Duration: math.Inf(1)}
	var err error
	if prober != nil {
		md, err = prober.Probe(ctx, src, mime)
	}

	v.mu.Lock()
	if v.released || seq != v.loadSeq || errors.Is(ctx.Err(), context.Canceled) {
		v.mu.Unlock()
		return
	}
	v.cancel = nil
	if err != nil {
		v.mu.Unlock()
		var mediaErr *Error
		if !errors.As(err, &mediaErr) {
			err = &Error{Code: ErrNetwork, Message: err.Error(), Cause: err}
		}
		v.emit(Event{Type: EventError, Err: err})
		return
	}
	v.duration = md.Duration
	startPlaying := !v.paused
	if startPlaying {
		v.startTickerLocked()
	}
	v.mu.Unlock()

	v.emit(Event{Type: EventLoadedMetadata})
	v.emit(Event{Type: EventCanPlay})
	if startPlaying {
		v.emit(Event{Type: EventPlaying})
	}
}

func (v *Virtual) Play() {
	v.mu.Lock()
	if v.released || !v.paused {
		v.mu.Unlock()
		return
	}
	v.paused = false
	if v.ended {
		v.ended = false
		v.current = 0
	}
	ready := !math.IsNaN(v.duration)
	if ready {
		v.startTickerLocked()
	}
	v.mu.Unlock()

	v.emit(Event{Type: EventPlay})
	if ready {
		v.emit(Event{Type: EventPlaying})
	} else {
		v.emit(Event{Type: EventWaiting})
	}
}

func (v *Virtual) Pause() {
	v.mu.Lock()
	if v.released || v.paused {
		v.mu.Unlock()
		return
	}
	v.paused = true
	v.stopTickerLocked()
	v.mu.Unlock()

	v.emit(Event{Type: EventPause})
}

func (v *Virtual) Paused() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.paused
}

func (v *Virtual) Ended() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.ended
}

func (v *Virtual) CurrentTime() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

func (v *Virtual) SetCurrentTime(t float64) {
	v.mu.Lock()
	if v.released || math.IsNaN(v.duration) {
		v.mu.Unlock()
		return
	}
	v.current = clamp.Clamp(t, 0, v.duration)
	if v.current < v.duration {
		v.ended = false
	}
	v.mu.Unlock()

	v.emit(Event{Type: EventSeeked})
	v.emit(Event{Type: EventTimeUpdate})
}

func (v *Virtual) Duration() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.duration
}

func (v *Virtual) Muted() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.muted
}

func (v *Virtual) SetMuted(muted bool) {
	v.mu.Lock()
	changed := v.muted != muted
	v.muted = muted
	v.mu.Unlock()

	if changed {
		v.emit(Event{Type: EventVolumeChange})
	}
}

func (v *Virtual) Volume() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.volume
}

func (v *Virtual) SetVolume(vol float64) {
	v.mu.Lock()
	vol = clamp.Clamp(vol, 0, 1)
	changed := v.volume != vol
	v.volume = vol
	v.mu.Unlock()

	if changed {
		v.emit(Event{Type: EventVolumeChange})
	}
}

func (v *Virtual) SetLoop(loop bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.loop = loop
}

// Advance moves playback forward by d as if that much wall time had passed.
func (v *Virtual) Advance(d time.Duration) {
	v.mu.Lock()
	if v.released || v.paused || v.ended || math.IsNaN(v.duration) {
		v.mu.Unlock()
		return
	}
	v.current += d.Seconds()
	finished := false
	if v.current >= v.duration {
		if v.loop && v.duration > 0 {
			v.current = math.Mod(v.current, v.duration)
		} else {
			v.current = v.duration
			v.ended = true
			v.paused = true
			v.stopTickerLocked()
			finished = true
		}
	}
	v.mu.Unlock()

	v.emit(Event{Type: EventTimeUpdate})
	if finished {
		v.emit(Event{Type: EventPause})
		v.emit(Event{Type: EventEnded})
	}
}

// Fail reports a playback failure as the decoder would.
func (v *Virtual) Fail(err error) {
	v.mu.Lock()
	if v.released {
		v.mu.Unlock()
		return
	}
	v.paused = true
	v.stopTickerLocked()
	v.mu.Unlock()

	v.emit(Event{Type: EventError, Err: err})
}

// Stall reports a buffering stall.
func (v *Virtual) Stall() {
	v.emit(Event{Type: EventWaiting})
}

func (v *Virtual) Listen(l Listener) func() {
	v.mu.Lock()
	defer v.mu.Unlock()
	id := v.nextID
	v.nextID++
	v.listeners[id] = l

	return func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		delete(v.listeners, id)
	}
}

func (v *Virtual) Release() {
	v.mu.Lock()
	if v.released {
		v.mu.Unlock()
		return
	}
	v.released = true
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
	v.stopTickerLocked()
	v.listeners = make(map[int]Listener)
	onRelease := v.onRelease
	v.mu.Unlock()

	if onRelease != nil {
		onRelease()
	}
}

func (v *Virtual) Released() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.released
}

func (v *Virtual) emit(e Event) {
	v.mu.Lock()
	if v.released {
		v.mu.Unlock()
		return
	}
	ids := make([]int, 0, len(v.listeners))
	for id := range v.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	ls := make([]Listener, 0, len(ids))
	for _, id := range ids {
		ls = append(ls, v.listeners[id])
	}
	v.mu.Unlock()

	for _, l := range ls {
		l(e)
	}
}

func (v *Virtual) startTickerLocked() {
	if v.tickInterval <= 0 || v.stopTick != nil {
		return
	}
	stop := make(chan struct{})
	v.stopTick = stop
	interval := v.tickInterval

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				v.Advance(interval)
			}
		}
	}()
}

func (v *Virtual) stopTickerLocked() {
	if v.stopTick != nil {
		close(v.stopTick)
		v.stopTick = nil
	}
}
