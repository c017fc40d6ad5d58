package backend

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"regexp"
	"strconv"

	"github.com/omplayer/server/internal/domain"
	"github.com/omplayer/server/internal/media"
)

// DASH engine error codes.
const (
	DASHManifestDownloadError = 25
	DASHManifestParseError    = 31
)

type DASHError struct {
	Code    int
	Message string
}

func (e *DASHError) Error() string {
	return fmt.Sprintf("dash error %d: %s", e.Code, e.Message)
}

type dash struct {
	*session
}

func newDASH(cfg Config) *dash {
	d := &dash{}
	d.session = newSession(domain.BackendDASH, cfg, &mpdLoader{client: cfg.HTTPClient}, d.translate)
	return d
}

func (d *dash) Load(src domain.Source) {
	d.attach(src)
}

func (d *dash) translate(e media.Event) {
	if e.Type == media.EventLoadedMetadata {
		d.logger.Debug("dash stream initialized", "duration", d.el.Duration())
	}
	d.translateElement(e)
}

type mpd struct {
	XMLName                   xml.Name `xml:"MPD"`
	Type                      string   `xml:"type,attr"`
	MediaPresentationDuration string   `xml:"mediaPresentationDuration,attr"`
}

type mpdLoader struct {
	client *http.Client
}

func (l *mpdLoader) Probe(ctx context.Context, src, _ string) (media.Metadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return media.Metadata{}, &DASHError{Code: DASHManifestDownloadError, Message: err.Error()}
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return media.Metadata{}, &DASHError{Code: DASHManifestDownloadError, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return media.Metadata{}, &DASHError{Code: DASHManifestDownloadError, Message: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}

	var m mpd
	if err := xml.NewDecoder(io.LimitReader(resp.Body, maxManifestSize)).Decode(&m); err != nil {
		return media.Metadata{}, &DASHError{Code: DASHManifestParseError, Message: err.Error()}
	}

	if m.Type == "dynamic" || m.MediaPresentationDuration == "" {
		return media.Metadata{Duration: math.Inf(1)}, nil
	}

	d, err := parseISODuration(m.MediaPresentationDuration)
	if err != nil {
		return media.Metadata{}, &DASHError{Code: DASHManifestParseError, Message: err.Error()}
	}

	return media.Metadata{Duration: d}, nil
}

var isoDuration = regexp.MustCompile(`^P(?:(\d+(?:\.\d+)?)D)?(?:T(?:(\d+(?:\.\d+)?)H)?(?:(\d+(?:\.\d+)?)M)?(?:(\d+(?:\.\d+)?)S)?)?$`)

// parseISODuration handles the xs:duration subset used by MPDs, in seconds.
func parseISODuration(s string) (float64, error) {
	m := isoDuration.FindStringSubmatch(s)
	if m == nil || s == "P" || s == "PT" {
		return 0, errors.New("invalid duration " + strconv.Quote(s))
	}

	var total float64
	for i, unit := range []float64{86400, 3600, 60, 1} {
		if m[i+1] == "" {
			continue
		}
		v, err := strconv.ParseFloat(m[i+1], 64)
		if err != nil {
			return 0, err
		}
		total += v * unit
	}

	return total, nil
}
