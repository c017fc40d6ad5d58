package backend

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/omplayer/server/internal/domain"
	"github.com/omplayer/server/internal/media"
)

var ErrNoAd = errors.New("no linear ad in response")

type AdEventType string

const (
	AdsLoaded       AdEventType = "adsLoaded"
	AdStarted       AdEventType = "adStarted"
	AdPaused        AdEventType = "adPaused"
	AdResumed       AdEventType = "adResumed"
	AdProgress      AdEventType = "adProgress"
	AdComplete      AdEventType = "adComplete"
	AdError         AdEventType = "adError"
	AllAdsCompleted AdEventType = "allAdsCompleted"
)

type AdEvent struct {
	Type AdEventType
	Err  error
}

type Ad struct {
	ID       string
	Duration float64
	MediaURL string
}

// AdLoader fetches and interprets an ad tag.
type AdLoader interface {
	LoadAd(ctx context.Context, tagURL string) (Ad, error)
}

type ad struct {
	*session
	loader  AdLoader
	started bool
}

func newAd(cfg Config) *ad {
	a := &ad{loader: cfg.AdLoader}
	if a.loader == nil {
		a.loader = &VASTLoader{Client: cfg.HTTPClient}
	}
	a.session = newSession(domain.BackendAd, cfg, media.ProberFunc(a.probe), a.sdk)
	return a
}

func (a *ad) Load(src domain.Source) {
	a.mu.Lock()
	a.started = false
	a.mu.Unlock()

	a.attach(src)
}

// Seek is not allowed while an ad plays.
func (a *ad) Seek(t float64) {
	a.logger.Info("seek ignored during ad", "time", t)
}

func (a *ad) SetCurrentTime(t float64) {
	a.Seek(t)
}

func (a *ad) probe(ctx context.Context, src, _ string) (media.Metadata, error) {
	loaded, err := a.loader.LoadAd(ctx, src)
	if err != nil {
		return media.Metadata{}, err
	}
	a.logger.Debug("ad loaded", "ad_id", loaded.ID, "media_url", loaded.MediaURL)
	return media.Metadata{Duration: loaded.Duration}, nil
}

// sdk turns element events into ad SDK events.
func (a *ad) sdk(e media.Event) {
	switch e.Type {
	case media.EventLoadedMetadata:
		a.translate(AdEvent{Type: AdsLoaded})
	case media.EventPlaying:
		a.mu.Lock()
		first := !a.started
		a.started = true
		a.mu.Unlock()
		if first {
			a.translate(AdEvent{Type: AdStarted})
		} else {
			a.translate(AdEvent{Type: AdResumed})
		}
	case media.EventPause:
		if !a.el.Ended() {
			a.translate(AdEvent{Type: AdPaused})
		}
	case media.EventTimeUpdate:
		a.translate(AdEvent{Type: AdProgress})
	case media.EventEnded:
		a.translate(AdEvent{Type: AdComplete})
		a.translate(AdEvent{Type: AllAdsCompleted})
	case media.EventError:
		a.translate(AdEvent{Type: AdError, Err: e.Err})
	}
}

func (a *ad) translate(e AdEvent) {
	switch e.Type {
	case AdsLoaded:
		a.emit(Event{Kind: EventMetadata, Duration: a.el.Duration()})
	case AdStarted, AdResumed:
		a.emit(Event{Kind: EventPlaying, Time: a.el.CurrentTime()})
	case AdPaused:
		a.emit(Event{Kind: EventPaused, Time: a.el.CurrentTime()})
	case AdProgress:
		a.emit(Event{Kind: EventTimeUpdate, Time: a.el.CurrentTime(), Duration: a.el.Duration()})
	case AllAdsCompleted:
		a.emit(Event{Kind: EventEnded, Time: a.el.CurrentTime(), Duration: a.el.Duration()})
	case AdError:
		a.emit(Event{Kind: EventError, Err: e.Err})
	}
}

type vast struct {
	Ads []struct {
		ID     string `xml:"id,attr"`
		InLine struct {
			Creatives []struct {
				Linear struct {
					Duration   string `xml:"Duration"`
					MediaFiles []struct {
						Type string `xml:"type,attr"`
						URL  string `xml:",chardata"`
					} `xml:"MediaFiles>MediaFile"`
				} `xml:"Linear"`
			} `xml:"Creatives>Creative"`
		} `xml:"InLine"`
	} `xml:"Ad"`
}

// VASTLoader reads the first linear creative of a VAST response.
type VASTLoader struct {
	Client *http.Client
}

func (l *VASTLoader) LoadAd(ctx context.Context, tagURL string) (Ad, error) {
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tagURL, nil)
	if err != nil {
		return Ad{}, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return Ad{}, &media.Error{Code: media.ErrNetwork, Message: err.Error(), Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Ad{}, &media.Error{Code: media.ErrNetwork, Message: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}

	var v vast
	if err := xml.NewDecoder(io.LimitReader(resp.Body, maxManifestSize)).Decode(&v); err != nil {
		return Ad{}, fmt.Errorf("failed to decode vast: %w", err)
	}

	for _, a := range v.Ads {
		for _, c := range a.InLine.Creatives {
			if c.Linear.Duration == "" {
				continue
			}
			d, err := parseClock(c.Linear.Duration)
			if err != nil {
				return Ad{}, err
			}
			var mediaURL string
			if len(c.Linear.MediaFiles) > 0 {
				mediaURL = strings.TrimSpace(c.Linear.MediaFiles[0].URL)
			}
			return Ad{ID: a.ID, Duration: d, MediaURL: mediaURL}, nil
		}
	}

	return Ad{}, ErrNoAd
}

// parseClock parses HH:MM:SS(.mmm).
func parseClock(s string) (float64, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid clock value %q", s)
	}

	var total float64
	for i, unit := range []float64{3600, 60, 1} {
		v, err := strconv.ParseFloat(parts[i], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid clock value %q: %w", s, err)
		}
		total += v * unit
	}

	return total, nil
}
