package resolver

import (
	"github.com/samber/lo"

	"github.com/omplayer/server/internal/domain"
)

// Capabilities describes what the hosting environment can decode.
type Capabilities struct {
	// NativeHLS means the native surface plays HLS manifests directly.
	NativeHLS bool `json:"native_hls"`
	// MSE means script-driven backends (HLS, DASH) can attach to the surface.
	MSE bool `json:"mse"`
	Ads bool `json:"ads"`
}

type Resolution struct {
	Backend domain.BackendKind
	// Source is the active, normalized source.
	Source domain.Source
	// Sources is the whole candidate list with types filled in.
	Sources []domain.Source
}

type Request struct {
	Sources []domain.Source
	Kind    domain.MediaKind
	// AdsURL short-circuits to the ad backend when set.
	AdsURL string
}

// Normalize fills in missing types, keeping the order.
func Normalize(sources []domain.Source, kind domain.MediaKind) []domain.Source {
	return lo.Map(sources, func(s domain.Source, _ int) domain.Source {
		if s.Type == "" {
			s.Type = InferType(s.Src, kind)
		}
		return s
	})
}

// Resolve picks the first playable source and the backend able to play it.
// It has no side effects, so equal inputs always give equal results.
func Resolve(req Request, caps Capabilities) (Resolution, error) {
	sources := Normalize(lo.Filter(req.Sources, func(s domain.Source, _ int) bool {
		return s.Src != ""
	}), req.Kind)

	if req.AdsURL != "" && caps.Ads {
		ad := domain.Source{Src: req.AdsURL, Type: MimeVAST}
		return Resolution{
			Backend: domain.BackendAd,
			Source:  ad,
			Sources: sources,
		}, nil
	}

	for _, s := range sources {
		if kind := Backend(s.Type, caps); kind != domain.BackendNone {
			return Resolution{
				Backend: kind,
				Source:  s,
				Sources: sources,
			}, nil
		}
	}

	return Resolution{Sources: sources}, &domain.UnsupportedSourceError{Sources: sources}
}

// Backend returns the backend for one MIME type, or BackendNone.
func Backend(mime string, caps Capabilities) domain.BackendKind {
	switch {
	case IsVAST(mime):
		if caps.Ads {
			return domain.BackendAd
		}
	case IsHLS(mime):
		if caps.NativeHLS {
			return domain.BackendNative
		}
		if caps.MSE {
			return domain.BackendHLS
		}
	case IsDASH(mime):
		if caps.MSE {
			return domain.BackendDASH
		}
	case isMedia(mime):
		return domain.BackendNative
	}

	return domain.BackendNone
}
