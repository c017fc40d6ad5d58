package captions

import (
	"sort"

	"github.com/omplayer/server/internal/domain"
)

// FindCue returns the cue whose [Start, End) interval contains t. When
// cues overlap, the one starting last wins. cues must be sorted by Start.
func FindCue(cues []domain.Cue, t float64) (domain.Cue, bool) {
	// last cue starting at or before t
	i := sort.Search(len(cues), func(i int) bool { return cues[i].Start > t }) - 1
	for ; i >= 0; i-- {
		if t < cues[i].End {
			return cues[i], true
		}
	}

	return domain.Cue{}, false
}

func sortCues(cues []domain.Cue) {
	sort.SliceStable(cues, func(i, j int) bool { return cues[i].Start < cues[j].Start })
}
