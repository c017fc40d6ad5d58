package domain

// Source is one candidate media resource. Type is a MIME string; an empty
// Type is inferred by the resolver.
type Source struct {
	Src  string `json:"src" validate:"required"`
	Type string `json:"type,omitempty"`
}

type BackendKind int

const (
	BackendNone BackendKind = iota
	BackendNative
	BackendHLS
	BackendDASH
	BackendAd
)

func (k BackendKind) String() string {
	switch k {
	case BackendNative:
		return "native"
	case BackendHLS:
		return "hls"
	case BackendDASH:
		return "dash"
	case BackendAd:
		return "ad"
	default:
		return "none"
	}
}

func (k BackendKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// MediaKind tells whether the player wraps a video or an audio surface.
type MediaKind int

const (
	MediaVideo MediaKind = iota
	MediaAudio
)

func (k MediaKind) String() string {
	if k == MediaAudio {
		return "audio"
	}
	return "video"
}

func ParseMediaKind(s string) MediaKind {
	if s == "audio" {
		return MediaAudio
	}
	return MediaVideo
}
