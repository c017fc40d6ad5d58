package domain

// CaptionTrack describes a text track. The track id is its Srclang.
type CaptionTrack struct {
	Srclang string `json:"srclang" validate:"required"`
	Src     string `json:"src" validate:"required"`
	Kind    string `json:"kind"`
	Label   string `json:"label" validate:"required"`
	Default bool   `json:"default"`
}

func (t CaptionTrack) ID() string {
	return t.Srclang
}

// Cue is a timed caption interval [Start, End) in seconds.
type Cue struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}
