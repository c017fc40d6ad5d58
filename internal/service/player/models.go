package player

import (
	"math"

	"github.com/omplayer/server/internal/controls"
	"github.com/omplayer/server/internal/domain"
	playerrepo "github.com/omplayer/server/internal/repository/player"
)

type Player struct {
	ID          string                `json:"id"`
	Kind        string                `json:"kind"`
	State       string                `json:"state"`
	Src         []domain.Source       `json:"src"`
	CurrentTime float64               `json:"current_time"`
	Duration    float64               `json:"duration"`
	Muted       bool                  `json:"muted"`
	Volume      float64               `json:"volume"`
	Autoplay    bool                  `json:"autoplay"`
	IsAd        bool                  `json:"is_ad"`
	Error       *string               `json:"error"`
	Captions    []domain.CaptionTrack `json:"captions"`
	Container   controls.View         `json:"container"`
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func toRepoSnapshot(s domain.Snapshot) playerrepo.Snapshot {
	return playerrepo.Snapshot{
		PlayerID:    s.PlayerID,
		Src:         s.Src,
		Type:        s.Type,
		Backend:     s.Backend,
		State:       s.State,
		CurrentTime: s.CurrentTime,
		Duration:    s.Duration,
		Muted:       s.Muted,
		Volume:      s.Volume,
		Autoplay:    s.Autoplay,
		UpdatedAt:   s.UpdatedAt,
	}
}

func fromRepoSnapshot(s playerrepo.Snapshot) domain.Snapshot {
	return domain.Snapshot{
		PlayerID:    s.PlayerID,
		Src:         s.Src,
		Type:        s.Type,
		Backend:     s.Backend,
		State:       s.State,
		CurrentTime: s.CurrentTime,
		Duration:    s.Duration,
		Muted:       s.Muted,
		Volume:      s.Volume,
		Autoplay:    s.Autoplay,
		UpdatedAt:   s.UpdatedAt,
	}
}
