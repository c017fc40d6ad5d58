package player

import "github.com/omplayer/server/internal/domain"

const (
	defaultStep   = 5.0
	volumeStep    = 0.1
	keySpace      = "Space"
	keyEnter      = "Enter"
	keyTab        = "Tab"
	keyEscape     = "Escape"
	keyHome       = "Home"
	keyEnd        = "End"
	keyArrowLeft  = "ArrowLeft"
	keyArrowRight = "ArrowRight"
	keyArrowUp    = "ArrowUp"
	keyArrowDown  = "ArrowDown"
)

// KeyEvent is a keydown observed on the page.
type KeyEvent struct {
	Key string `json:"key"`
	// Code is the legacy keyCode, used when Key is empty.
	Code int `json:"code"`
	// Focused tells whether the player container holds focus.
	Focused bool `json:"focused"`
}

var legacyKeys = map[int]string{
	9:  keyTab,
	13: keyEnter,
	27: keyEscape,
	32: keySpace,
	35: keyEnd,
	36: keyHome,
	37: keyArrowLeft,
	38: keyArrowUp,
	39: keyArrowRight,
	40: keyArrowDown,
}

func (e KeyEvent) name() string {
	switch e.Key {
	case "":
		return legacyKeys[e.Code]
	case " ", "Spacebar":
		return keySpace
	case "Left":
		return keyArrowLeft
	case "Right":
		return keyArrowRight
	case "Up":
		return keyArrowUp
	case "Down":
		return keyArrowDown
	case "Esc":
		return keyEscape
	}
	return e.Key
}

func isNavigation(key string) bool {
	switch key {
	case keyTab, keyEnter, keySpace, keyEscape, keyHome, keyEnd,
		keyArrowLeft, keyArrowRight, keyArrowUp, keyArrowDown:
		return true
	}
	return false
}

// handleKey runs on the loop.
func (p *Player) handleKey(e KeyEvent) {
	if !e.Focused {
		return
	}

	key := e.name()
	if isNavigation(key) {
		p.modality = domain.ModalityKeyboard
	}

	switch key {
	case keyArrowRight:
		p.seek(p.position() + p.step)
	case keyArrowLeft:
		p.seek(p.position() - p.step)
	case keyHome:
		p.seek(0)
	case keyEnd:
		p.seek(p.knownDuration())
	case keyEnter, keySpace:
		if p.state == domain.StatePlaying {
			p.pause()
		} else {
			p.play()
		}
	case keyArrowUp:
		p.setVolume(p.volume + volumeStep)
	case keyArrowDown:
		p.setVolume(p.volume - volumeStep)
	case keyEscape:
		p.settingsOpen = false
	}

	p.render()
}

func (p *Player) handlePointer() {
	p.modality = domain.ModalityMouse
	p.render()
}
