package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/bluenviron/gohlslib/v2/pkg/playlist"

	"github.com/omplayer/server/internal/domain"
	"github.com/omplayer/server/internal/media"
)

type HLSErrorType string

const (
	HLSNetworkError HLSErrorType = "networkError"
	HLSMediaError   HLSErrorType = "mediaError"
)

// HLSError is the error vocabulary of the HLS engine.
type HLSError struct {
	Type    HLSErrorType
	Details string
	Fatal   bool
	Err     error
}

func (e *HLSError) Error() string {
	return fmt.Sprintf("hls %s (%s): %v", e.Type, e.Details, e.Err)
}

func (e *HLSError) Unwrap() error {
	return e.Err
}

const hlsMaxRecoveries = 1

// maxManifestSize bounds every manifest and ad document read.
const maxManifestSize = 4 << 20

var errManifestTooLarge = errors.New("manifest too large")

// readManifest reads at most maxManifestSize bytes of r.
func readManifest(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, maxManifestSize+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxManifestSize {
		return nil, errManifestTooLarge
	}
	return body, nil
}

type hls struct {
	*session
	manifest *hlsManifestLoader

	source     domain.Source
	recoveries int
}

func newHLS(cfg Config) *hls {
	h := &hls{manifest: &hlsManifestLoader{client: cfg.HTTPClient}}
	h.session = newSession(domain.BackendHLS, cfg, h.manifest, h.translate)
	return h
}

func (h *hls) Load(src domain.Source) {
	h.mu.Lock()
	h.recoveries = 0
	h.source = src
	h.mu.Unlock()

	h.attach(src)
}

func (h *hls) tryRecover() (domain.Source, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.recoveries >= hlsMaxRecoveries {
		return domain.Source{}, false
	}
	h.recoveries++
	return h.source, true
}

func (h *hls) translate(e media.Event) {
	if e.Type != media.EventError {
		if e.Type == media.EventLoadedMetadata {
			h.logger.Debug("hls manifest parsed", "variants", h.manifest.Variants())
		}
		h.translateElement(e)
		return
	}

	var hlsErr *HLSError
	if errors.As(e.Err, &hlsErr) && !hlsErr.Fatal {
		if src, ok := h.tryRecover(); ok {
			h.logger.Info("recovering from non-fatal hls error", "error", hlsErr)
			h.emit(Event{Kind: EventTimeUpdate, Time: h.el.CurrentTime(), Buffering: true})
			h.attach(src)
			return
		}
	}

	h.emit(Event{Kind: EventError, Err: e.Err})
}

// hlsManifestLoader fetches the manifest and derives the presentation
// duration from its segments.
type hlsManifestLoader struct {
	client   *http.Client
	variants atomic.Int32
}

func (l *hlsManifestLoader) Variants() int {
	return int(l.variants.Load())
}

func (l *hlsManifestLoader) Probe(ctx context.Context, src, _ string) (media.Metadata, error) {
	pl, err := l.fetch(ctx, src)
	if err != nil {
		return media.Metadata{}, err
	}

	l.variants.Store(0)
	if mv, ok := pl.(*playlist.Multivariant); ok {
		l.variants.Store(int32(len(mv.Variants)))
		if len(mv.Variants) == 0 {
			return media.Metadata{}, &HLSError{Type: HLSMediaError, Details: "manifestIncompatibleCodecsError", Fatal: true, Err: errors.New("no variants")}
		}

		variantURL, err := resolveReference(src, mv.Variants[0].URI)
		if err != nil {
			return media.Metadata{}, &HLSError{Type: HLSMediaError, Details: "manifestParsingError", Fatal: true, Err: err}
		}

		pl, err = l.fetch(ctx, variantURL)
		if err != nil {
			return media.Metadata{}, err
		}
	}

	mp, ok := pl.(*playlist.Media)
	if !ok {
		return media.Metadata{}, &HLSError{Type: HLSMediaError, Details: "levelParsingError", Fatal: true, Err: errors.New("expected a media playlist")}
	}

	if !mp.Endlist {
		return media.Metadata{Duration: math.Inf(1)}, nil
	}

	var total time.Duration
	for _, seg := range mp.Segments {
		total += seg.Duration
	}

	return media.Metadata{Duration: total.Seconds()}, nil
}

func (l *hlsManifestLoader) fetch(ctx context.Context, src string) (playlist.Playlist, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, &HLSError{Type: HLSNetworkError, Details: "manifestLoadError", Fatal: true, Err: err}
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, &HLSError{Type: HLSNetworkError, Details: "manifestLoadError", Fatal: false, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &HLSError{
			Type:    HLSNetworkError,
			Details: "manifestLoadError",
			Fatal:   resp.StatusCode < http.StatusInternalServerError,
			Err:     fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	body, err := readManifest(resp.Body)
	if err != nil {
		return nil, &HLSError{
			Type:    HLSNetworkError,
			Details: "manifestLoadError",
			Fatal:   errors.Is(err, errManifestTooLarge),
			Err:     err,
		}
	}

	pl, err := playlist.Unmarshal(body)
	if err != nil {
		return nil, &HLSError{Type: HLSMediaError, Details: "manifestParsingError", Fatal: true, Err: err}
	}

	return pl, nil
}

func resolveReference(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(r).String(), nil
}
