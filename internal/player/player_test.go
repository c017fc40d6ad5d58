package player

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omplayer/server/internal/backend"
	"github.com/omplayer/server/internal/captions"
	"github.com/omplayer/server/internal/controls"
	"github.com/omplayer/server/internal/domain"
	"github.com/omplayer/server/internal/media"
	"github.com/omplayer/server/internal/resolver"
)

const (
	waitFor = 2 * time.Second
	tick    = time.Millisecond
)

type harness struct {
	factory  *media.VirtualFactory
	mu       sync.Mutex
	elements []*media.Virtual
}

func newHarness() *harness {
	h := &harness{}
	h.factory = &media.VirtualFactory{OnCreate: func(v *media.Virtual) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.elements = append(h.elements, v)
	}}
	return h
}

func (h *harness) last() *media.Virtual {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.elements[len(h.elements)-1]
}

func (h *harness) config() Config {
	return Config{
		Kind:         domain.MediaVideo,
		Capabilities: resolver.Capabilities{MSE: true},
		Elements:     h.factory,
		NativeProber: media.Fixed(10),
	}
}

func newPlayer(t *testing.T, cfg Config, opts domain.Options) *Player {
	t.Helper()
	p, err := New("player-1", cfg, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Destroy() })
	return p
}

func waitState(t *testing.T, p *Player, want domain.PlaybackState) {
	t.Helper()
	require.Eventually(t, func() bool { return p.State() == want }, waitFor, tick, "want %s", want)
}

func loadMP4(t *testing.T, p *Player) {
	t.Helper()
	p.SetSrc(domain.Source{Src: "https://cdn.example.com/movie.mp4"})
	require.NoError(t, p.Load())
	waitState(t, p, domain.StateReady)
}

type counter struct {
	mu sync.Mutex
	n  int
}

func (c *counter) inc(controls.View) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
}

func (c *counter) get() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Add(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func find(t *testing.T, p *Player, selector string) controls.Node {
	t.Helper()
	n, ok := p.Container().View().Find(selector)
	require.True(t, ok, selector)
	return n
}

func TestLoadPlayPause(t *testing.T) {
	h := newHarness()
	p := newPlayer(t, h.config(), domain.Options{})
	assert.Equal(t, domain.StateIdle, p.State())

	loadMP4(t, p)
	assert.Equal(t, 10.0, p.Duration())
	assert.Equal(t, "00:10", find(t, p, "."+controls.ClassDuration).Text)

	p.Play()
	waitState(t, p, domain.StatePlaying)
	assert.True(t, find(t, p, "."+controls.ClassPlay).HasClass(controls.ClassPlayPaused))

	p.Pause()
	waitState(t, p, domain.StatePaused)
	assert.False(t, find(t, p, "."+controls.ClassPlay).HasClass(controls.ClassPlayPaused))
}

func TestPauseWhilePausedEmitsNoUpdate(t *testing.T) {
	h := newHarness()
	p := newPlayer(t, h.config(), domain.Options{})
	loadMP4(t, p)

	p.Play()
	waitState(t, p, domain.StatePlaying)
	p.Pause()
	waitState(t, p, domain.StatePaused)

	c := &counter{}
	unsubscribe := p.Subscribe(c.inc)
	defer unsubscribe()

	p.Pause()
	p.Pause()
	assert.Equal(t, domain.StatePaused, p.State())
	assert.Zero(t, c.get())

	p.Play()
	waitState(t, p, domain.StatePlaying)
	assert.Equal(t, 1, c.get())
}

const hlsPlaylist = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:6
#EXTINF:6.000,
a.ts
#EXTINF:6.000,
b.ts
#EXT-X-ENDLIST
`

func TestSwitchBetweenMP4AndHLS(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, hlsPlaylist)
	}))
	defer srv.Close()

	h := newHarness()
	p := newPlayer(t, h.config(), domain.Options{})

	for i := 0; i < 2; i++ {
		loadMP4(t, p)
		assert.Equal(t, resolver.MimeMP4, p.Src()[0].Type)
		assert.Equal(t, 1, h.factory.Live())

		p.SetSrc(domain.Source{Src: srv.URL + "/stream/index.m3u8"})
		require.NoError(t, p.Load())
		assert.Equal(t, 1, h.factory.Live())
		waitState(t, p, domain.StateReady)
		assert.Equal(t, resolver.MimeHLS, p.Src()[0].Type)
		assert.Equal(t, 12.0, p.Duration())
		assert.Equal(t, 1, h.factory.Live())
		assert.False(t, p.IsAd())
	}
}

func TestKeyboardSeek(t *testing.T) {
	h := newHarness()
	p := newPlayer(t, h.config(), domain.Options{})
	loadMP4(t, p)
	assert.True(t, p.Container().View().Root.HasClass(controls.ClassKeyboardInactive))

	p.HandleKey(KeyEvent{Key: "ArrowRight"})
	assert.Zero(t, p.CurrentTime(), "unfocused keys are ignored")

	p.HandleKey(KeyEvent{Key: "ArrowRight", Focused: true})
	assert.Greater(t, p.CurrentTime(), 0.0)
	assert.False(t, p.Container().View().Root.HasClass(controls.ClassKeyboardInactive))

	p.HandleKey(KeyEvent{Code: 39, Focused: true})
	p.HandleKey(KeyEvent{Code: 39, Focused: true})
	assert.Equal(t, 10.0, p.CurrentTime(), "clamped at duration")

	for i := 0; i < 5; i++ {
		p.HandleKey(KeyEvent{Key: "ArrowLeft", Focused: true})
		assert.GreaterOrEqual(t, p.CurrentTime(), 0.0)
	}
	assert.Equal(t, 0.0, p.CurrentTime())

	p.HandleKey(KeyEvent{Key: "End", Focused: true})
	assert.Equal(t, 10.0, p.CurrentTime())
	p.HandleKey(KeyEvent{Key: "Home", Focused: true})
	assert.Equal(t, 0.0, p.CurrentTime())

	p.HandleKey(KeyEvent{Key: " ", Focused: true})
	waitState(t, p, domain.StatePlaying)
	p.HandleKey(KeyEvent{Code: 13, Focused: true})
	waitState(t, p, domain.StatePaused)

	p.HandlePointer()
	require.Eventually(t, func() bool {
		return p.Container().View().Root.HasClass(controls.ClassKeyboardInactive)
	}, waitFor, tick)
}

func TestKeyboardSeekStep(t *testing.T) {
	h := newHarness()
	cfg := h.config()
	cfg.SeekStep = 2
	p := newPlayer(t, cfg, domain.Options{})
	loadMP4(t, p)

	p.HandleKey(KeyEvent{Key: "ArrowRight", Focused: true})
	assert.Equal(t, 2.0, p.CurrentTime())

	q := newPlayer(t, cfg, domain.Options{Step: 3})
	loadMP4(t, q)

	q.HandleKey(KeyEvent{Key: "ArrowRight", Focused: true})
	assert.Equal(t, 3.0, q.CurrentTime(), "options win over the configured step")
}

func TestKeyboardVolume(t *testing.T) {
	h := newHarness()
	p := newPlayer(t, h.config(), domain.Options{})

	p.HandleKey(KeyEvent{Key: "ArrowDown", Focused: true})
	assert.InDelta(t, 0.9, p.Volume(), 0.0001)
	p.HandleKey(KeyEvent{Key: "ArrowUp", Focused: true})
	p.HandleKey(KeyEvent{Key: "ArrowUp", Focused: true})
	assert.Equal(t, 1.0, p.Volume())
}

func TestDefaultCaptionTrack(t *testing.T) {
	h := newHarness()
	p := newPlayer(t, h.config(), domain.Options{
		Captions: []domain.CaptionTrack{
			{Srclang: "en", Src: "en.vtt", Label: "English"},
			{Srclang: "br_PT", Src: "pt.vtt", Label: "Portuguese (BR)", Default: true},
		},
	})

	root := p.Container().View().Root
	assert.True(t, root.HasClass(controls.ClassCaptionsDetected))
	assert.True(t, find(t, p, "."+controls.ClassCaptionsBtn).HasClass(controls.ClassCaptionsOn))

	entry := find(t, p, `.om-settings__menu-label[data-value="captions-br_PT"]`)
	assert.Equal(t, "Portuguese (BR)", entry.Text)
	assert.Equal(t, "true", entry.Attr("aria-checked"))

	var invalid *domain.InvalidCommandError
	err := p.AddCaptions(domain.CaptionTrack{Srclang: "pt", Src: "pt2.vtt", Label: "Portuguese (BR)"})
	require.ErrorAs(t, err, &invalid)
	assert.Len(t, p.Captions(), 2)

	require.NoError(t, p.SelectCaptions(""))
	assert.False(t, find(t, p, "."+controls.ClassCaptionsBtn).HasClass(controls.ClassCaptionsOn))
}

func TestNewRejectsDuplicateCaptionLabels(t *testing.T) {
	h := newHarness()
	_, err := New("dup", h.config(), domain.Options{Captions: []domain.CaptionTrack{
		{Srclang: "en", Src: "en.vtt", Label: "English"},
		{Srclang: "us", Src: "us.vtt", Label: "English"},
	}})

	var invalid *domain.InvalidCommandError
	assert.ErrorAs(t, err, &invalid)
}

func TestCaptionTextFollowsPlayback(t *testing.T) {
	h := newHarness()
	cfg := h.config()
	cfg.Captions = captions.FetcherFunc(func(ctx context.Context, src string) ([]domain.Cue, error) {
		return []domain.Cue{{Start: 0.5, End: 2, Text: "hello"}, {Start: 3, End: 4, Text: "bye"}}, nil
	})
	p := newPlayer(t, cfg, domain.Options{})
	loadMP4(t, p)

	require.NoError(t, p.AddCaptions(domain.CaptionTrack{Srclang: "en", Src: "en.vtt", Label: "English", Default: true}))

	p.SetCurrentTime(1)
	require.Eventually(t, func() bool {
		n, ok := p.Container().View().Find("." + controls.ClassCaptions)
		return ok && n.Text == "hello"
	}, waitFor, tick)

	p.SetCurrentTime(2.5)
	require.Eventually(t, func() bool {
		n, _ := p.Container().View().Find("." + controls.ClassCaptions)
		return n.Text == "" && n.Attr("aria-hidden") == "true"
	}, waitFor, tick)
}

func TestDestroyClearsContainer(t *testing.T) {
	h := newHarness()
	p := newPlayer(t, h.config(), domain.Options{Captions: []domain.CaptionTrack{
		{Srclang: "en", Src: "en.vtt", Label: "English", Default: true},
	}})
	loadMP4(t, p)
	p.Play()
	waitState(t, p, domain.StatePlaying)

	var (
		mu   sync.Mutex
		last controls.View
	)
	p.Subscribe(func(v controls.View) {
		mu.Lock()
		defer mu.Unlock()
		last = v
	})

	require.NoError(t, p.Destroy())
	require.NoError(t, p.Destroy())

	assert.Empty(t, p.Container().View().Root.Classes)
	assert.Empty(t, p.Container().View().FindAll("."+controls.ClassControls))
	mu.Lock()
	assert.Empty(t, last.Root.Classes)
	mu.Unlock()

	assert.Zero(t, h.factory.Live())
	assert.ErrorIs(t, p.Load(), domain.ErrPlayerDestroyed)
	assert.Equal(t, domain.StateIdle, p.State())
}

func TestPendingCommandAppliedAtReady(t *testing.T) {
	newBlocked := func(t *testing.T) (*Player, chan struct{}) {
		h := newHarness()
		cfg := h.config()
		release := make(chan struct{})
		cfg.NativeProber = media.ProberFunc(func(ctx context.Context, _, _ string) (media.Metadata, error) {
			select {
			case <-release:
				return media.Metadata{Duration: 10}, nil
			case <-ctx.Done():
				return media.Metadata{}, ctx.Err()
			}
		})
		p := newPlayer(t, cfg, domain.Options{})
		p.SetSrc(domain.Source{Src: "movie.mp4"})
		require.NoError(t, p.Load())
		require.Equal(t, domain.StateLoading, p.State())
		return p, release
	}

	t.Run("last seek wins", func(t *testing.T) {
		p, release := newBlocked(t)
		p.Play()
		p.SetCurrentTime(3)
		assert.Equal(t, domain.StateLoading, p.State())

		close(release)
		waitState(t, p, domain.StateReady)
		assert.Equal(t, 3.0, p.CurrentTime())
	})

	t.Run("play", func(t *testing.T) {
		p, release := newBlocked(t)
		p.Pause()
		p.Play()

		close(release)
		waitState(t, p, domain.StatePlaying)
	})
}

func TestPlayInIdleLoads(t *testing.T) {
	h := newHarness()
	p := newPlayer(t, h.config(), domain.Options{})
	p.SetSrc(domain.Source{Src: "movie.mp4"})
	p.Play()
	waitState(t, p, domain.StatePlaying)
}

func TestAutoplay(t *testing.T) {
	h := newHarness()
	p := newPlayer(t, h.config(), domain.Options{Autoplay: true, StartTime: 4})
	p.SetSrc(domain.Source{Src: "movie.mp4"})
	require.NoError(t, p.Load())
	waitState(t, p, domain.StatePlaying)
	assert.Equal(t, 4.0, p.CurrentTime())
	assert.True(t, p.Autoplay())
}

func TestAutoplayTurnedOnWhileReady(t *testing.T) {
	h := newHarness()
	p := newPlayer(t, h.config(), domain.Options{})
	loadMP4(t, p)

	p.SetAutoplay(true)
	waitState(t, p, domain.StatePlaying)
}

func TestAutoplayDoesNotRestartEnded(t *testing.T) {
	h := newHarness()
	p := newPlayer(t, h.config(), domain.Options{})
	loadMP4(t, p)
	p.Play()
	waitState(t, p, domain.StatePlaying)

	p.SetCurrentTime(9.5)
	assert.Equal(t, 9.5, p.CurrentTime())
	h.last().Advance(time.Second)
	waitState(t, p, domain.StateEnded)

	p.SetAutoplay(true)
	p.Play()
	assert.Equal(t, domain.StateEnded, p.State())
}

func TestEndedOnlyLeftByLoad(t *testing.T) {
	h := newHarness()
	p := newPlayer(t, h.config(), domain.Options{})
	loadMP4(t, p)
	p.Play()
	waitState(t, p, domain.StatePlaying)
	p.SetCurrentTime(9.5)
	h.last().Advance(time.Second)
	waitState(t, p, domain.StateEnded)

	require.NoError(t, p.HandleAction(controls.Action{Widget: controls.WidgetProgress, Value: "2"}))
	require.NoError(t, p.HandleAction(controls.Action{Widget: controls.WidgetPlay}))
	assert.Equal(t, domain.StateEnded, p.State())
	assert.Equal(t, 2.0, p.CurrentTime())

	require.NoError(t, p.Load())
	waitState(t, p, domain.StateReady)
}

func TestUnsupportedSource(t *testing.T) {
	h := newHarness()
	cfg := h.config()
	cfg.Capabilities = resolver.Capabilities{}
	p := newPlayer(t, cfg, domain.Options{})

	p.SetSrc(domain.Source{Src: "https://cdn.example.com/manifest.mpd"})
	err := p.Load()

	var unsupported *domain.UnsupportedSourceError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, domain.StateError, p.State())
	assert.ErrorAs(t, p.Err(), &unsupported)
	assert.Zero(t, h.factory.Live())
}

func TestLoadWithoutSource(t *testing.T) {
	h := newHarness()
	p := newPlayer(t, h.config(), domain.Options{})

	err := p.Load()
	var unsupported *domain.UnsupportedSourceError
	require.ErrorAs(t, err, &unsupported)
	assert.Empty(t, unsupported.Sources)
	assert.Equal(t, domain.StateError, p.State())
	assert.Zero(t, h.factory.Live())

	loadMP4(t, p)
	assert.NoError(t, p.Err())
}

func TestBackendFailure(t *testing.T) {
	h := newHarness()
	p := newPlayer(t, h.config(), domain.Options{})
	loadMP4(t, p)

	reason := &media.Error{Code: media.ErrDecode, Message: "corrupt frame"}
	h.last().Fail(reason)
	waitState(t, p, domain.StateError)

	var playbackErr *domain.BackendPlaybackError
	require.ErrorAs(t, p.Err(), &playbackErr)
	assert.Equal(t, domain.BackendNative, playbackErr.Backend)
	assert.True(t, errors.Is(p.Err(), reason))

	// commands wait for the next load
	p.Play()
	assert.Equal(t, domain.StateError, p.State())
	require.NoError(t, p.Load())
	waitState(t, p, domain.StatePlaying)
	assert.NoError(t, p.Err())
}

func TestStaleBackendEventsDropped(t *testing.T) {
	h := newHarness()
	p := newPlayer(t, h.config(), domain.Options{})
	loadMP4(t, p)

	p.loop.do(func() {
		p.onBackendEvent(p.generation-1, backend.Event{Kind: backend.EventError, Err: errors.New("old")})
		p.onBackendEvent(p.generation-1, backend.Event{Kind: backend.EventPlaying})
	})
	assert.Equal(t, domain.StateReady, p.State())
	assert.NoError(t, p.Err())
}

func TestTimeDisplayThrottled(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	h := newHarness()
	cfg := h.config()
	cfg.Now = clock.Now
	p := newPlayer(t, cfg, domain.Options{})
	loadMP4(t, p)
	p.Play()
	waitState(t, p, domain.StatePlaying)

	h.last().Advance(time.Second)
	assert.Equal(t, 1.0, p.CurrentTime())
	assert.Equal(t, "00:00", find(t, p, "."+controls.ClassCurrent).Text)

	clock.Add(300 * time.Millisecond)
	h.last().Advance(time.Second)
	require.Eventually(t, func() bool {
		n, _ := p.Container().View().Find("." + controls.ClassCurrent)
		return n.Text == "00:02"
	}, waitFor, tick)
}

func TestHandleAction(t *testing.T) {
	h := newHarness()
	p := newPlayer(t, h.config(), domain.Options{Captions: []domain.CaptionTrack{
		{Srclang: "en", Src: "en.vtt", Label: "English"},
	}})
	loadMP4(t, p)

	require.NoError(t, p.HandleAction(controls.Action{Widget: controls.WidgetPlay, Event: "click"}))
	assert.Equal(t, domain.StatePlaying, p.State())
	require.NoError(t, p.HandleAction(controls.Action{Widget: controls.WidgetPlay, Event: "click"}))
	assert.Equal(t, domain.StatePaused, p.State())

	require.NoError(t, p.HandleAction(controls.Action{Widget: controls.WidgetProgress, Value: "7.5"}))
	assert.Equal(t, 7.5, p.CurrentTime())

	require.NoError(t, p.HandleAction(controls.Action{Widget: controls.WidgetMute}))
	assert.True(t, p.Muted())
	assert.True(t, find(t, p, "."+controls.ClassMute).HasClass(controls.ClassMuteMuted))
	require.NoError(t, p.HandleAction(controls.Action{Widget: controls.WidgetMute}))
	assert.False(t, p.Muted())

	require.NoError(t, p.HandleAction(controls.Action{Widget: controls.WidgetSettings}))
	assert.Equal(t, "false", find(t, p, "."+controls.ClassSettings).Attr("aria-hidden"))

	require.NoError(t, p.HandleAction(controls.Action{Widget: controls.WidgetMenu, Value: "captions-en"}))
	assert.Equal(t, "true", find(t, p, "."+controls.ClassSettings).Attr("aria-hidden"))
	assert.True(t, find(t, p, "."+controls.ClassCaptionsBtn).HasClass(controls.ClassCaptionsOn))

	require.NoError(t, p.HandleAction(controls.Action{Widget: controls.WidgetCaptions}))
	assert.False(t, find(t, p, "."+controls.ClassCaptionsBtn).HasClass(controls.ClassCaptionsOn))

	require.NoError(t, p.HandleAction(controls.Action{Widget: controls.WidgetFullscreen}))
	assert.True(t, find(t, p, "."+controls.ClassFullscreen).HasClass(controls.ClassFullOut))

	require.NoError(t, p.HandleAction(controls.Action{Widget: controls.WidgetVolume, Value: "0.25"}))
	assert.Equal(t, 0.25, p.Volume())

	var invalid *domain.InvalidCommandError
	assert.ErrorAs(t, p.HandleAction(controls.Action{Widget: "rewind"}), &invalid)
	assert.ErrorAs(t, p.HandleAction(controls.Action{Widget: controls.WidgetProgress, Value: "soon"}), &invalid)
	assert.ErrorAs(t, p.HandleAction(controls.Action{Widget: controls.WidgetMenu, Value: "captions-xx"}), &invalid)
}

func TestAudioPlayerHasNoFullscreen(t *testing.T) {
	h := newHarness()
	cfg := h.config()
	cfg.Kind = domain.MediaAudio
	p := newPlayer(t, cfg, domain.Options{})

	assert.True(t, p.Container().View().Root.HasClass(controls.ClassAudio))
	_, ok := p.Container().View().Find("." + controls.ClassFullscreen)
	assert.False(t, ok)

	var invalid *domain.InvalidCommandError
	assert.ErrorAs(t, p.HandleAction(controls.Action{Widget: controls.WidgetFullscreen}), &invalid)

	p.SetSrc(domain.Source{Src: "song"})
	require.NoError(t, p.Load())
	assert.Equal(t, resolver.MimeAudioMP4, p.Src()[0].Type)
}

type stubAds struct{}

func (stubAds) LoadAd(context.Context, string) (backend.Ad, error) {
	return backend.Ad{ID: "pre", Duration: 2}, nil
}

func TestAdThenContent(t *testing.T) {
	h := newHarness()
	cfg := h.config()
	cfg.Capabilities.Ads = true
	cfg.AdLoader = stubAds{}
	p := newPlayer(t, cfg, domain.Options{Autoplay: true, Ads: "https://ads.example.com/vast.xml"})
	assert.False(t, p.IsAd())

	p.SetSrc(domain.Source{Src: "movie.mp4"})
	require.NoError(t, p.Load())
	waitState(t, p, domain.StatePlaying)
	assert.True(t, p.IsAd())
	assert.True(t, p.Container().View().Root.HasClass(controls.ClassAd))

	h.last().Advance(2 * time.Second)
	require.Eventually(t, func() bool {
		return !p.IsAd() && p.State() == domain.StatePlaying
	}, waitFor, tick)
	assert.Equal(t, 10.0, p.Duration())
	assert.Equal(t, 1, h.factory.Live())
}

func TestOnStateChange(t *testing.T) {
	var (
		mu     sync.Mutex
		states []string
	)
	h := newHarness()
	cfg := h.config()
	cfg.OnStateChange = func(s domain.Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, s.State)
	}
	p, err := New("observed", cfg, domain.Options{})
	require.NoError(t, err)

	loadMP4(t, p)
	p.Play()
	waitState(t, p, domain.StatePlaying)
	require.NoError(t, p.Destroy())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"loading", "ready", "playing", "idle"}, states)
}
