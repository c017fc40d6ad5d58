package domain

// Options are the recognized construction settings. Unknown JSON keys are
// ignored by the decoder.
type Options struct {
	Autoplay  bool           `json:"autoplay"`
	Mute      bool           `json:"mute"`
	Loop      bool           `json:"loop"`
	StartTime float64        `json:"startTime" validate:"gte=0"`
	Captions  []CaptionTrack `json:"captions" validate:"dive"`
	// Ads is a VAST tag URL.
	Ads    string   `json:"ads,omitempty"`
	Step   float64  `json:"step,omitempty" validate:"gte=0"`
	Volume *float64 `json:"volume,omitempty" validate:"omitempty,gte=0,lte=1"`
}
