package controls

// Widgets that accept user actions.
const (
	WidgetPlay       = "play"
	WidgetProgress   = "progress"
	WidgetMute       = "mute"
	WidgetVolume     = "volume"
	WidgetCaptions   = "captions"
	WidgetSettings   = "settings"
	WidgetMenu       = "menu"
	WidgetFullscreen = "fullscreen"
)

// Action is a user interaction reported by a widget. Value carries the
// widget payload: a time for progress, a volume, or a menu value.
type Action struct {
	Widget string `json:"widget" validate:"required,oneof=play progress mute volume captions settings menu fullscreen"`
	Event  string `json:"event"`
	Value  string `json:"value"`
}
