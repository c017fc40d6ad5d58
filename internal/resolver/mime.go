package resolver

import (
	"net/url"
	"path"
	"strings"

	"github.com/omplayer/server/internal/domain"
)

const (
	MimeHLS      = "application/x-mpegURL"
	MimeDASH     = "application/dash+xml"
	MimeVAST     = "application/x-vast+xml"
	MimeMP4      = "video/mp4"
	MimeAudioMP4 = "audio/mp4"
)

var extensionTypes = map[string]string{
	".m3u8": MimeHLS,
	".m3u":  MimeHLS,
	".mpd":  MimeDASH,
	".mp4":  MimeMP4,
	".m4v":  MimeMP4,
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".ogv":  "video/ogg",
	".m4a":  MimeAudioMP4,
	".mp3":  "audio/mpeg",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".wav":  "audio/wav",
	".flac": "audio/flac",
}

var hlsTypes = []string{
	"application/x-mpegurl",
	"application/vnd.apple.mpegurl",
	"audio/mpegurl",
	"audio/x-mpegurl",
}

// InferType derives a MIME type from the URL path extension.
func InferType(src string, kind domain.MediaKind) string {
	p := src
	if u, err := url.Parse(src); err == nil {
		p = u.Path
	}

	if t, ok := extensionTypes[strings.ToLower(path.Ext(p))]; ok {
		return t
	}

	if kind == domain.MediaAudio {
		return MimeAudioMP4
	}
	return MimeMP4
}

func IsHLS(mime string) bool {
	m := baseType(mime)
	for _, t := range hlsTypes {
		if m == t {
			return true
		}
	}
	return false
}

func IsDASH(mime string) bool {
	return baseType(mime) == strings.ToLower(MimeDASH)
}

func IsVAST(mime string) bool {
	return baseType(mime) == MimeVAST
}

func isMedia(mime string) bool {
	m := baseType(mime)
	return strings.HasPrefix(m, "video/") || strings.HasPrefix(m, "audio/")
}

// baseType drops parameters such as codecs and lowercases the rest.
func baseType(mime string) string {
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return strings.ToLower(strings.TrimSpace(mime))
}
