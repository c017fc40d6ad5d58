package media

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omplayer/server/internal/domain"
)

type recorder struct {
	mu     sync.Mutex
	events []EventType
}

func (r *recorder) listen(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e.Type)
}

func (r *recorder) has(t EventType) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e == t {
			return true
		}
	}
	return false
}

func loaded(t *testing.T, duration float64) (*Virtual, *recorder) {
	t.Helper()
	v := NewVirtual(domain.MediaVideo, Fixed(duration), 0)
	r := &recorder{}
	v.Listen(r.listen)
	v.SetSrc("movie.mp4", "video/mp4")
	v.Load()
	require.Eventually(t, func() bool { return r.has(EventLoadedMetadata) }, time.Second, time.Millisecond)
	return v, r
}

func TestVirtualLoadAndPlay(t *testing.T) {
	v, r := loaded(t, 10)
	assert.Equal(t, 10.0, v.Duration())
	assert.True(t, v.Paused())

	v.Play()
	assert.False(t, v.Paused())
	assert.True(t, r.has(EventPlaying))

	v.Advance(1500 * time.Millisecond)
	assert.InDelta(t, 1.5, v.CurrentTime(), 1e-9)

	v.Pause()
	v.Advance(time.Second)
	assert.InDelta(t, 1.5, v.CurrentTime(), 1e-9)
}

func TestVirtualEndsAtDuration(t *testing.T) {
	v, r := loaded(t, 2)
	v.Play()
	v.Advance(3 * time.Second)

	assert.True(t, v.Ended())
	assert.True(t, v.Paused())
	assert.Equal(t, 2.0, v.CurrentTime())
	assert.True(t, r.has(EventEnded))
}

func TestVirtualLoopWrapsInsteadOfEnding(t *testing.T) {
	v, r := loaded(t, 2)
	v.SetLoop(true)
	v.Play()
	v.Advance(3 * time.Second)

	assert.False(t, v.Ended())
	assert.InDelta(t, 1.0, v.CurrentTime(), 1e-9)
	assert.False(t, r.has(EventEnded))
}

func TestVirtualSeekClamps(t *testing.T) {
	v, _ := loaded(t, 8)
	v.SetCurrentTime(100)
	assert.Equal(t, 8.0, v.CurrentTime())
	v.SetCurrentTime(-1)
	assert.Equal(t, 0.0, v.CurrentTime())
}

func TestVirtualProbeFailure(t *testing.T) {
	v := NewVirtual(domain.MediaVideo, ProberFunc(func(_ context.Context, _, _ string) (Metadata, error) {
		return Metadata{}, errors.New("connection refused")
	}), 0)
	r := &recorder{}
	v.Listen(r.listen)
	v.SetSrc("movie.mp4", "video/mp4")
	v.Load()

	require.Eventually(t, func() bool { return r.has(EventError) }, time.Second, time.Millisecond)
	assert.True(t, math.IsNaN(v.Duration()))
}

func TestVirtualReleaseSilencesListeners(t *testing.T) {
	f := &VirtualFactory{}
	el := f.New(domain.MediaAudio, Fixed(5))
	assert.Equal(t, 1, f.Live())

	r := &recorder{}
	el.Listen(r.listen)
	el.Release()
	el.Release()
	assert.Equal(t, 0, f.Live())

	el.Play()
	assert.False(t, r.has(EventPlay))
}

func TestHTTPProber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/known.mp4":
			w.Header().Set("X-Content-Duration", "42.5")
		case "/missing.mp4":
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	p := &HTTPProber{DefaultDuration: 30}
	md, err := p.Probe(context.Background(), srv.URL+"/known.mp4", "video/mp4")
	require.NoError(t, err)
	assert.Equal(t, 42.5, md.Duration)

	md, err = p.Probe(context.Background(), srv.URL+"/other.mp4", "video/mp4")
	require.NoError(t, err)
	assert.Equal(t, 30.0, md.Duration)

	_, err = p.Probe(context.Background(), srv.URL+"/missing.mp4", "video/mp4")
	var mediaErr *Error
	require.ErrorAs(t, err, &mediaErr)
	assert.Equal(t, ErrNetwork, mediaErr.Code)
}
