package controls

import (
	"fmt"
	"math"
	"strconv"

	"github.com/samber/lo"

	"github.com/omplayer/server/internal/domain"
)

// Class names rendered into the view.
const (
	ClassPlayer           = "om-player"
	ClassKeyboardInactive = "om-player__keyboard--inactive"
	ClassVideo            = "om-player__video"
	ClassAudio            = "om-player__audio"
	ClassCaptionsDetected = "om-captions--detected"
	ClassLoading          = "om-player--loading"
	ClassAd               = "om-player--ad"

	ClassPlay        = "om-player__play"
	ClassPlayPaused  = "om-player__play--paused"
	ClassLoader      = "om-player__loader"
	ClassCaptions    = "om-captions"
	ClassControls    = "om-controls"
	ClassProgress    = "om-controls__progress"
	ClassCurrent     = "om-controls__current"
	ClassDuration    = "om-controls__duration"
	ClassMute        = "om-controls__mute"
	ClassMuteMuted   = "om-controls__mute--muted"
	ClassVolume      = "om-controls__volume"
	ClassCaptionsBtn = "om-controls__captions"
	ClassCaptionsOn  = "om-controls__captions--on"
	ClassSettingsBtn = "om-controls__settings"
	ClassFullscreen  = "om-controls__fullscreen"
	ClassFullOut     = "om-controls__fullscreen--out"
	ClassSettings    = "om-settings"
	ClassMenuLabel   = "om-settings__menu-label"
)

const (
	attrHidden = "aria-hidden"
	attrValue  = "data-value"
)

// Snapshot is everything the view is computed from.
type Snapshot struct {
	Kind         domain.MediaKind
	State        domain.PlaybackState
	Buffering    bool
	CurrentTime  float64
	Duration     float64
	Muted        bool
	Volume       float64
	Modality     domain.InputModality
	Tracks       []domain.CaptionTrack
	ActiveTrack  string
	CaptionText  string
	SettingsOpen bool
	Fullscreen   bool
	Ad           bool
	// Destroyed renders a bare container with no player-owned classes.
	Destroyed bool
}

// Render computes the full view from s.
func Render(s Snapshot) View {
	if s.Destroyed {
		return View{Root: Node{Classes: []string{}}}
	}

	root := Node{Classes: []string{ClassPlayer}}
	if s.Modality != domain.ModalityKeyboard {
		root.Classes = append(root.Classes, ClassKeyboardInactive)
	}
	if s.Kind == domain.MediaAudio {
		root.Classes = append(root.Classes, ClassAudio)
	} else {
		root.Classes = append(root.Classes, ClassVideo)
	}
	if len(s.Tracks) > 0 {
		root.Classes = append(root.Classes, ClassCaptionsDetected)
	}
	busy := s.State == domain.StateLoading || s.Buffering
	if busy {
		root.Classes = append(root.Classes, ClassLoading)
	}
	if s.Ad {
		root.Classes = append(root.Classes, ClassAd)
	}

	play := Node{Classes: []string{ClassPlay}, Attrs: map[string]string{"aria-label": "Play"}}
	if s.State == domain.StatePlaying {
		play.Classes = append(play.Classes, ClassPlayPaused)
		play.Attrs["aria-label"] = "Pause"
	}

	root.Children = append(root.Children,
		play,
		Node{Classes: []string{ClassLoader}, Attrs: map[string]string{attrHidden: strconv.FormatBool(!busy)}},
	)
	if len(s.Tracks) > 0 {
		root.Children = append(root.Children, Node{
			Classes: []string{ClassCaptions},
			Attrs:   map[string]string{attrHidden: strconv.FormatBool(s.CaptionText == "")},
			Text:    s.CaptionText,
		})
	}
	root.Children = append(root.Children, renderControls(s), renderSettings(s))

	return View{Root: root}
}

func renderControls(s Snapshot) Node {
	controls := Node{
		Classes: []string{ClassControls},
		Attrs:   map[string]string{attrHidden: strconv.FormatBool(s.State == domain.StateIdle)},
	}

	duration := s.Duration
	if math.IsNaN(duration) || math.IsInf(duration, 0) {
		duration = 0
	}

	mute := Node{Classes: []string{ClassMute}}
	if s.Muted {
		mute.Classes = append(mute.Classes, ClassMuteMuted)
	}

	controls.Children = []Node{
		{
			Classes: []string{ClassProgress},
			Attrs: map[string]string{
				"aria-valuemin": "0",
				"aria-valuemax": formatSeconds(duration),
				"aria-valuenow": formatSeconds(s.CurrentTime),
			},
		},
		{Classes: []string{ClassCurrent}, Text: FormatTime(s.CurrentTime)},
		{Classes: []string{ClassDuration}, Text: FormatTime(s.Duration)},
		mute,
		{Classes: []string{ClassVolume}, Attrs: map[string]string{"aria-valuenow": formatSeconds(volume(s))}},
	}

	if len(s.Tracks) > 0 {
		captions := Node{Classes: []string{ClassCaptionsBtn}}
		if s.ActiveTrack != "" {
			captions.Classes = append(captions.Classes, ClassCaptionsOn)
		}
		controls.Children = append(controls.Children, captions)
	}

	controls.Children = append(controls.Children, Node{Classes: []string{ClassSettingsBtn}})

	if s.Kind != domain.MediaAudio {
		fs := Node{Classes: []string{ClassFullscreen}}
		if s.Fullscreen {
			fs.Classes = append(fs.Classes, ClassFullOut)
		}
		controls.Children = append(controls.Children, fs)
	}

	return controls
}

func renderSettings(s Snapshot) Node {
	settings := Node{
		Classes: []string{ClassSettings},
		Attrs:   map[string]string{attrHidden: strconv.FormatBool(!s.SettingsOpen)},
	}
	if len(s.Tracks) == 0 {
		return settings
	}

	settings.Children = lo.Map(s.Tracks, func(t domain.CaptionTrack, _ int) Node {
		return menuLabel(MenuValue(t.ID()), t.Label, s.ActiveTrack == t.ID())
	})
	settings.Children = append(settings.Children, menuLabel(MenuValueOff, "Off", s.ActiveTrack == ""))

	return settings
}

const (
	menuPrefix   = "captions-"
	MenuValueOff = "captions-off"
)

// MenuValue is the settings menu value selecting track id.
func MenuValue(id string) string {
	return menuPrefix + id
}

// TrackFromMenuValue reverses MenuValue; "" means captions off.
func TrackFromMenuValue(v string) (string, bool) {
	if v == MenuValueOff {
		return "", true
	}
	if len(v) <= len(menuPrefix) || v[:len(menuPrefix)] != menuPrefix {
		return "", false
	}
	return v[len(menuPrefix):], true
}

func menuLabel(value, label string, checked bool) Node {
	return Node{
		Classes: []string{ClassMenuLabel},
		Attrs: map[string]string{
			attrValue:      value,
			"aria-checked": strconv.FormatBool(checked),
		},
		Text: label,
	}
}

func volume(s Snapshot) float64 {
	if s.Muted {
		return 0
	}
	return s.Volume
}

// FormatTime renders seconds as MM:SS, or HH:MM:SS from one hour on.
// Unknown or infinite values render as 00:00.
func FormatTime(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		seconds = 0
	}
	total := int(math.Floor(seconds))
	h, m, sec := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%02d:%02d", m, sec)
}

func formatSeconds(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
