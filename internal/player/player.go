package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"slices"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/omplayer/server/internal/backend"
	"github.com/omplayer/server/internal/captions"
	"github.com/omplayer/server/internal/controls"
	"github.com/omplayer/server/internal/domain"
	"github.com/omplayer/server/internal/media"
	"github.com/omplayer/server/internal/resolver"
	"github.com/omplayer/server/pkg/clamp"
)

type Config struct {
	Kind         domain.MediaKind
	Capabilities resolver.Capabilities
	Elements     media.Factory
	HTTPClient   *http.Client
	NativeProber media.Prober
	AdLoader     backend.AdLoader
	// Captions fetches cue files; tracks stay empty when nil.
	Captions captions.Fetcher
	Logger   *slog.Logger
	// TimeRefresh is the minimum delay between two time display updates.
	TimeRefresh time.Duration
	Now         func() time.Time
	// SeekStep is the arrow key step used when the options carry none.
	SeekStep float64
	// OnStateChange observes every transition. It runs on the player loop
	// and must not call back into the player synchronously.
	OnStateChange func(domain.Snapshot)
}

type commandKind int

const (
	cmdPlay commandKind = iota
	cmdPause
	cmdSeek
)

type command struct {
	kind commandKind
	time float64
}

// Player is one logical media player. All mutable state below the loop
// field belongs to the loop goroutine.
type Player struct {
	id        string
	cfg       Config
	logger    *slog.Logger
	sync      *synchronizer
	destroyed atomic.Bool

	loop *loop

	state       domain.PlaybackState
	err         error
	sources     []domain.Source
	active      domain.Source
	adapter     backend.Adapter
	generation  uint64
	pending     *command
	autoplay    bool
	muted       bool
	looping     bool
	volume      float64
	startTime   float64
	step        float64
	adsURL      string
	adsDone     bool
	buffering   bool
	currentTime float64
	duration    float64

	captions      *captions.Manager
	captionsCtx   context.Context
	cancelFetches context.CancelFunc

	modality     domain.InputModality
	settingsOpen bool
	fullscreen   bool
}

// New creates an idle player. Invalid caption tracks in opts are rejected.
func New(id string, cfg Config, opts domain.Options) (*Player, error) {
	if cfg.Elements == nil {
		cfg.Elements = &media.VirtualFactory{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	p := &Player{
		id:       id,
		cfg:      cfg,
		logger:   cfg.Logger.With("player_id", id),
		sync:     newSynchronizer(cfg.TimeRefresh, cfg.Now),
		state:    domain.StateIdle,
		autoplay: opts.Autoplay,
		muted:    opts.Mute,
		looping:  opts.Loop,
		volume:   1,
		// zero start means start at the beginning anyway
		startTime: math.Max(opts.StartTime, 0),
		step:      opts.Step,
		adsURL:    opts.Ads,
		duration:  math.NaN(),
		captions:  captions.NewManager(),
	}
	if opts.Volume != nil {
		p.volume = clamp.Clamp(*opts.Volume, 0, 1)
	}
	if p.step <= 0 {
		p.step = cfg.SeekStep
	}
	if p.step <= 0 {
		p.step = defaultStep
	}
	p.captionsCtx, p.cancelFetches = context.WithCancel(context.Background())

	for _, t := range opts.Captions {
		if err := p.captions.AddTrack(t); err != nil {
			p.cancelFetches()
			return nil, fmt.Errorf("failed to add caption track: %w", err)
		}
	}

	p.loop = newLoop()
	p.loop.do(func() {
		p.fetchCaptions()
		p.render()
	})

	return p, nil
}

func (p *Player) ID() string {
	return p.id
}

func (p *Player) Kind() domain.MediaKind {
	return p.cfg.Kind
}

// Load resolves the current sources and (re)starts playback on the chosen
// backend. The previous backend is destroyed first.
func (p *Player) Load() error {
	var err error
	if !p.loop.do(func() { err = p.load() }) {
		return domain.ErrPlayerDestroyed
	}
	return err
}

func (p *Player) Play() {
	p.loop.post(func() {
		p.play()
		p.render()
	})
}

func (p *Player) Pause() {
	p.loop.post(func() {
		p.pause()
		p.render()
	})
}

func (p *Player) SetSrc(sources ...domain.Source) {
	sources = slices.Clone(sources)
	p.loop.post(func() {
		p.sources = sources
	})
}

// Src returns the sources; after a load their types are filled in.
func (p *Player) Src() []domain.Source {
	var out []domain.Source
	p.loop.do(func() { out = slices.Clone(p.sources) })
	return out
}

// SetAutoplay sets the flag. Turning it on while ready starts playback;
// an ended or paused session is left alone.
func (p *Player) SetAutoplay(autoplay bool) {
	p.loop.post(func() {
		p.autoplay = autoplay
		if autoplay && p.state == domain.StateReady {
			p.play()
			p.render()
		}
	})
}

func (p *Player) Autoplay() bool {
	var out bool
	p.loop.do(func() { out = p.autoplay })
	return out
}

func (p *Player) CurrentTime() float64 {
	var out float64
	p.loop.do(func() { out = p.position() })
	return out
}

func (p *Player) SetCurrentTime(t float64) {
	p.loop.post(func() {
		p.seek(t)
		p.render()
	})
}

// Duration is NaN until metadata is known.
func (p *Player) Duration() float64 {
	out := math.NaN()
	p.loop.do(func() { out = p.duration })
	return out
}

func (p *Player) Muted() bool {
	var out bool
	p.loop.do(func() { out = p.muted })
	return out
}

func (p *Player) SetMuted(muted bool) {
	p.loop.post(func() {
		p.setMuted(muted)
		p.render()
	})
}

func (p *Player) Volume() float64 {
	var out float64
	p.loop.do(func() { out = p.volume })
	return out
}

func (p *Player) SetVolume(v float64) {
	p.loop.post(func() {
		p.setVolume(v)
		p.render()
	})
}

// IsAd reports whether the ad backend is active.
func (p *Player) IsAd() bool {
	var out bool
	p.loop.do(func() { out = p.adapter != nil && p.adapter.Kind() == domain.BackendAd })
	return out
}

func (p *Player) State() domain.PlaybackState {
	out := domain.StateIdle
	p.loop.do(func() { out = p.state })
	return out
}

// Err is the reason of the last failure.
func (p *Player) Err() error {
	var out error
	p.loop.do(func() { out = p.err })
	return out
}

// Container is a read-only handle on the rendered view. It is safe to use
// from any goroutine, including subscribers.
func (p *Player) Container() controls.Container {
	return p.sync
}

func (p *Player) AddCaptions(track domain.CaptionTrack) error {
	var err error
	if !p.loop.do(func() {
		if err = p.captions.AddTrack(track); err != nil {
			return
		}
		p.fetchCaptions()
		p.captions.Update(p.position())
		p.render()
	}) {
		return domain.ErrPlayerDestroyed
	}
	return err
}

// SelectCaptions shows track id; an empty id disables captions.
func (p *Player) SelectCaptions(id string) error {
	var err error
	if !p.loop.do(func() { err = p.selectCaptions(id) }) {
		return domain.ErrPlayerDestroyed
	}
	return err
}

func (p *Player) DisableCaptions() {
	p.loop.post(func() {
		p.captions.DisableTracks()
		p.render()
	})
}

func (p *Player) Captions() []domain.CaptionTrack {
	var out []domain.CaptionTrack
	p.loop.do(func() { out = p.captions.Tracks() })
	return out
}

// HandleAction routes a widget action to the matching command.
func (p *Player) HandleAction(a controls.Action) error {
	var err error
	if !p.loop.do(func() { err = p.handleAction(a) }) {
		return domain.ErrPlayerDestroyed
	}
	return err
}

func (p *Player) HandleKey(e KeyEvent) {
	p.loop.post(func() { p.handleKey(e) })
}

func (p *Player) HandlePointer() {
	p.loop.post(p.handlePointer)
}

// Subscribe registers fn for every changed view. fn runs on the player
// loop; it may read Container but must not call blocking player methods.
func (p *Player) Subscribe(fn func(controls.View)) func() {
	var id string
	if !p.loop.do(func() { id = p.sync.subscribe(fn) }) {
		return func() {}
	}
	return func() {
		p.loop.post(func() { p.sync.unsubscribe(id) })
	}
}

// Snapshot summarizes the session for persistence.
func (p *Player) Snapshot() domain.Snapshot {
	snap := *domain.NewSnapshot(p.id)
	p.loop.do(func() { snap = p.snapshot() })
	return snap
}

// Destroy releases the backend and leaves the container bare. It is safe
// to call more than once.
func (p *Player) Destroy() error {
	if !p.destroyed.CompareAndSwap(false, true) {
		return nil
	}

	var result *multierror.Error
	p.loop.do(func() {
		if err := p.teardown(); err != nil {
			result = multierror.Append(result, err)
		}
		p.cancelFetches()
		p.pending = nil
		p.captions.Reset()
		p.transition(triggerDestroy)
		p.sync.refresh(controls.Snapshot{Destroyed: true})
		p.sync.clear()
	})
	p.loop.close()
	p.loop.wait()

	p.logger.Info("player destroyed")

	return result.ErrorOrNil()
}

func (p *Player) load() error {
	if p.destroyed.Load() {
		return domain.ErrPlayerDestroyed
	}

	if err := p.teardown(); err != nil {
		p.logger.Warn("failed to destroy previous backend", "error", err)
	}
	p.err = nil
	p.buffering = false
	p.currentTime = 0
	p.duration = math.NaN()
	p.sync.syncTime(0)
	p.transition(triggerLoad)

	req := resolver.Request{Sources: p.sources, Kind: p.cfg.Kind}
	if !p.adsDone {
		req.AdsURL = p.adsURL
	}
	res, err := resolver.Resolve(req, p.cfg.Capabilities)
	p.sources = res.Sources
	if err != nil {
		p.fail(err)
		p.render()
		return err
	}

	p.generation++
	adapter, err := backend.New(res.Backend, backend.Config{
		MediaKind:    p.cfg.Kind,
		Elements:     p.cfg.Elements,
		Emit:         p.emitter(p.generation),
		Logger:       p.logger,
		HTTPClient:   p.cfg.HTTPClient,
		NativeProber: p.cfg.NativeProber,
		AdLoader:     p.cfg.AdLoader,
	})
	if err != nil {
		p.fail(err)
		p.render()
		return err
	}

	p.adapter = adapter
	p.active = res.Source
	adapter.SetMuted(p.muted)
	adapter.SetVolume(p.volume)
	adapter.SetLoop(p.looping && res.Backend != domain.BackendAd)
	adapter.Load(res.Source)

	p.logger.Info("source loaded", "src", res.Source.Src, "type", res.Source.Type, "backend", res.Backend.String())

	p.fetchCaptions()
	p.render()

	return nil
}

// teardown destroys the active backend; its late events are dropped by
// the generation check.
func (p *Player) teardown() error {
	if p.adapter == nil {
		return nil
	}
	adapter := p.adapter
	p.adapter = nil
	p.generation++

	if err := adapter.Destroy(); err != nil {
		return fmt.Errorf("failed to destroy %s backend: %w", adapter.Kind(), err)
	}
	return nil
}

func (p *Player) emitter(gen uint64) backend.Emitter {
	return func(e backend.Event) {
		p.loop.post(func() { p.onBackendEvent(gen, e) })
	}
}

func (p *Player) onBackendEvent(gen uint64, e backend.Event) {
	if gen != p.generation || p.adapter == nil {
		p.logger.Debug("stale backend event dropped", "event", e.Kind.String())
		return
	}
	isAd := p.adapter.Kind() == domain.BackendAd

	switch e.Kind {
	case backend.EventMetadata:
		p.duration = e.Duration
		if p.transition(triggerMetadata) {
			p.onReady(isAd)
		}
	case backend.EventPlaying:
		p.buffering = false
		if p.state == domain.StateReady || p.state == domain.StatePaused {
			p.transition(triggerPlay)
		}
	case backend.EventPaused:
		p.transition(triggerPause)
	case backend.EventTimeUpdate:
		p.buffering = e.Buffering
		p.currentTime = e.Time
		if !math.IsNaN(e.Duration) && e.Duration > 0 {
			p.duration = e.Duration
		}
		p.sync.tick(e.Time)
		p.captions.Update(e.Time)
	case backend.EventEnded:
		p.currentTime = e.Time
		if isAd {
			p.logger.Info("ad finished, loading content")
			p.startContent(true)
			return
		}
		p.transition(triggerEnded)
	case backend.EventError:
		if isAd {
			p.logger.Warn("ad failed, loading content", "error", e.Err)
			p.startContent(p.state == domain.StatePlaying)
			return
		}
		p.fail(&domain.BackendPlaybackError{Backend: p.adapter.Kind(), Reason: e.Err})
	}

	p.render()
}

func (p *Player) startContent(play bool) {
	p.adsDone = true
	if play {
		p.pending = &command{kind: cmdPlay}
	}
	if len(p.sources) == 0 {
		if err := p.teardown(); err != nil {
			p.logger.Warn("failed to destroy ad backend", "error", err)
		}
		p.transition(triggerDestroy)
		p.render()
		return
	}
	if err := p.load(); err != nil {
		p.logger.Info("failed to load content after ad", "error", err)
	}
}

// onReady applies the start time, then the pending command or autoplay.
func (p *Player) onReady(isAd bool) {
	if p.startTime > 0 && !isAd {
		p.adapter.Seek(p.startTime)
		p.currentTime = p.adapter.CurrentTime()
		p.sync.syncTime(p.currentTime)
	}

	cmd := p.pending
	p.pending = nil

	if cmd != nil {
		p.logger.Debug("applying pending command", "command", cmd.kind)
		switch cmd.kind {
		case cmdPlay:
			p.play()
			return
		case cmdPause:
			return
		case cmdSeek:
			p.seek(cmd.time)
		}
	}

	if p.autoplay {
		p.play()
	}
}

func (p *Player) play() {
	switch {
	case p.state == domain.StateIdle:
		if len(p.sources) == 0 && p.adsURL == "" {
			p.logger.Info("play ignored", "error", domain.ErrNoSource)
			return
		}
		p.pending = &command{kind: cmdPlay}
		if err := p.load(); err != nil {
			p.logger.Info("failed to load on play", "error", err)
		}
	case holdsCommands(p.state):
		p.pending = &command{kind: cmdPlay}
	default:
		if !p.transition(triggerPlay) {
			p.logger.Debug("play ignored", "state", p.state.String())
			return
		}
		p.adapter.Play()
	}
}

func (p *Player) pause() {
	if holdsCommands(p.state) {
		p.pending = &command{kind: cmdPause}
		return
	}
	if p.transition(triggerPause) {
		p.adapter.Pause()
	}
}

func (p *Player) seek(t float64) {
	switch {
	case holdsCommands(p.state):
		p.pending = &command{kind: cmdSeek, time: math.Max(t, 0)}
	case p.adapter == nil:
		p.logger.Debug("seek ignored, nothing loaded", "time", t)
	default:
		p.adapter.Seek(t)
		p.currentTime = p.adapter.CurrentTime()
		p.sync.syncTime(p.currentTime)
		p.captions.Update(p.currentTime)
	}
}

func (p *Player) setMuted(muted bool) {
	p.muted = muted
	if p.adapter != nil {
		p.adapter.SetMuted(muted)
	}
}

func (p *Player) setVolume(v float64) {
	p.volume = clamp.Clamp(v, 0, 1)
	if p.adapter != nil {
		p.adapter.SetVolume(p.volume)
	}
}

func (p *Player) selectCaptions(id string) error {
	if err := p.captions.SelectTrack(id); err != nil {
		return err
	}
	p.captions.Update(p.position())
	p.render()
	return nil
}

func (p *Player) handleAction(a controls.Action) error {
	in, err := translate(a, p.controlsSnapshot())
	if err != nil {
		return err
	}

	switch in.kind {
	case intentPlay:
		p.play()
	case intentPause:
		p.pause()
	case intentSeek:
		p.seek(in.time)
	case intentMute:
		p.setMuted(true)
	case intentUnmute:
		p.setMuted(false)
	case intentVolume:
		p.setVolume(in.volume)
	case intentToggleSettings:
		p.settingsOpen = !p.settingsOpen
	case intentToggleFullscreen:
		p.fullscreen = !p.fullscreen
	case intentSelectCaptions:
		if err := p.captions.SelectTrack(in.track); err != nil {
			return err
		}
		p.captions.Update(p.position())
		if a.Widget == controls.WidgetMenu {
			p.settingsOpen = false
		}
	}

	p.render()
	return nil
}

// transition applies t and reports whether the state changed.
func (p *Player) transition(t trigger) bool {
	to, ok := next(p.state, t)
	if !ok {
		return false
	}
	from := p.state
	p.state = to
	if to != domain.StateError {
		p.err = nil
	}
	p.sync.syncTime(p.position())

	p.logger.Debug("state changed", "from", from.String(), "to", to.String(), "trigger", t.String())

	if p.cfg.OnStateChange != nil {
		p.cfg.OnStateChange(p.snapshot())
	}
	return true
}

func (p *Player) fail(err error) {
	if p.transition(triggerFailure) || p.state == domain.StateError {
		p.err = err
	}
	p.buffering = false

	var unsupported *domain.UnsupportedSourceError
	if errors.As(err, &unsupported) {
		p.logger.Info("no playable source", "error", err)
		return
	}
	p.logger.Warn("playback failed", "error", err)
}

func (p *Player) fetchCaptions() {
	if p.cfg.Captions == nil {
		return
	}
	for _, t := range p.captions.Pending() {
		p.captions.MarkRequested(t.ID())
		go func(t domain.CaptionTrack) {
			cues, err := p.cfg.Captions.Fetch(p.captionsCtx, t.Src)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					p.logger.Warn("failed to fetch captions", "track", t.ID(), "error", err)
				}
				return
			}
			p.loop.post(func() {
				if err := p.captions.SetCues(t.ID(), cues); err != nil {
					p.logger.Debug("captions track gone", "track", t.ID())
					return
				}
				p.captions.Update(p.position())
				p.render()
			})
		}(t)
	}
}

// position is the playback time of the active backend.
func (p *Player) position() float64 {
	if p.adapter != nil {
		return p.adapter.CurrentTime()
	}
	return p.currentTime
}

// knownDuration is the duration, or zero while unknown or unbounded.
func (p *Player) knownDuration() float64 {
	if math.IsNaN(p.duration) || math.IsInf(p.duration, 0) {
		return 0
	}
	return p.duration
}

func (p *Player) controlsSnapshot() controls.Snapshot {
	active, _ := p.captions.Active()
	return controls.Snapshot{
		Kind:         p.cfg.Kind,
		State:        p.state,
		Buffering:    p.buffering,
		CurrentTime:  p.sync.displayedTime(),
		Duration:     p.duration,
		Muted:        p.muted,
		Volume:       p.volume,
		Modality:     p.modality,
		Tracks:       p.captions.Tracks(),
		ActiveTrack:  active.ID(),
		CaptionText:  p.captions.Text(),
		SettingsOpen: p.settingsOpen,
		Fullscreen:   p.fullscreen,
		Ad:           p.adapter != nil && p.adapter.Kind() == domain.BackendAd,
	}
}

func (p *Player) render() {
	if p.destroyed.Load() {
		return
	}
	p.sync.refresh(p.controlsSnapshot())
}

func (p *Player) snapshot() domain.Snapshot {
	backendKind := domain.BackendNone
	if p.adapter != nil {
		backendKind = p.adapter.Kind()
	}
	return domain.Snapshot{
		PlayerID:    p.id,
		Src:         p.active.Src,
		Type:        p.active.Type,
		Backend:     backendKind.String(),
		State:       p.state.String(),
		CurrentTime: finite(p.position()),
		Duration:    finite(p.duration),
		Muted:       p.muted,
		Volume:      p.volume,
		Autoplay:    p.autoplay,
		UpdatedAt:   time.Now().Unix(),
	}
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
