package media

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
)

// HTTPProber checks a progressive source with a HEAD request. Servers that
// know the duration report it in X-Content-Duration.
type HTTPProber struct {
	Client *http.Client
	// DefaultDuration is used when the server does not report one; zero
	// means the duration is unbounded.
	DefaultDuration float64
}

func (p *HTTPProber) Probe(ctx context.Context, src, _ string) (Metadata, error) {
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, src, nil)
	if err != nil {
		return Metadata{}, &Error{Code: ErrSrcNotSupped, Message: err.Error()}
	}

	resp, err := client.Do(req)
	if err != nil {
		return Metadata{}, &Error{Code: ErrNetwork, Message: err.Error()}
	}
	resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return Metadata{}, &Error{Code: ErrNetwork, Message: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}

	if h := resp.Header.Get("X-Content-Duration"); h != "" {
		if d, err := strconv.ParseFloat(h, 64); err == nil && d >= 0 {
			return Metadata{Duration: d}, nil
		}
	}

	if p.DefaultDuration > 0 {
		return Metadata{Duration: p.DefaultDuration}, nil
	}
	return Metadata{Duration: math.Inf(1)}, nil
}
