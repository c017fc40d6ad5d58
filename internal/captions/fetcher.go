package captions

import (
	"context"
	"fmt"
	"net/http"

	"github.com/omplayer/server/internal/domain"
)

// Fetcher retrieves and parses the cues of a track source.
type Fetcher interface {
	Fetch(ctx context.Context, src string) ([]domain.Cue, error)
}

type FetcherFunc func(ctx context.Context, src string) ([]domain.Cue, error)

func (f FetcherFunc) Fetch(ctx context.Context, src string) ([]domain.Cue, error) {
	return f(ctx, src)
}

type HTTPFetcher struct {
	Client *http.Client
}

func (f *HTTPFetcher) Fetch(ctx context.Context, src string) ([]domain.Cue, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build caption request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch captions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch captions: unexpected status %d", resp.StatusCode)
	}

	cues, err := ParseVTT(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse captions: %w", err)
	}

	return cues, nil
}
