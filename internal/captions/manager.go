package captions

import (
	"strings"

	"github.com/samber/lo"

	"github.com/omplayer/server/internal/domain"
	"github.com/omplayer/server/pkg/validator"
)

type track struct {
	domain.CaptionTrack
	cues      []domain.Cue
	requested bool
}

// Manager owns the text tracks of one player. It is not safe for concurrent
// use; the player loop is its only caller.
type Manager struct {
	validator *validator.Validator
	tracks    []*track
	active    string
	cue       *domain.Cue
}

func NewManager() *Manager {
	return &Manager{validator: validator.NewValidator()}
}

// AddTrack registers t. A Default track becomes the active one.
func (m *Manager) AddTrack(t domain.CaptionTrack) error {
	if errs, ok := m.validator.Validate(t); !ok {
		fields := lo.Map(errs, func(e validator.ValidationError, _ int) string { return e.Field })
		return &domain.InvalidCommandError{Command: "addCaptions", Reason: "missing " + strings.Join(fields, ", ")}
	}

	if _, dup := lo.Find(m.tracks, func(tr *track) bool { return tr.Label == t.Label }); dup {
		return &domain.InvalidCommandError{Command: "addCaptions", Reason: "duplicate label " + t.Label}
	}
	if _, dup := lo.Find(m.tracks, func(tr *track) bool { return tr.Srclang == t.Srclang }); dup {
		return &domain.InvalidCommandError{Command: "addCaptions", Reason: "duplicate srclang " + t.Srclang}
	}

	if t.Kind == "" {
		t.Kind = "subtitles"
	}
	m.tracks = append(m.tracks, &track{CaptionTrack: t})
	if t.Default {
		m.activate(t.ID())
	}

	return nil
}

// SetCues stores the parsed cues of track id.
func (m *Manager) SetCues(id string, cues []domain.Cue) error {
	tr, ok := m.find(id)
	if !ok {
		return &domain.InvalidCommandError{Command: "setCues", Reason: "unknown track " + id}
	}

	sorted := append([]domain.Cue(nil), cues...)
	sortCues(sorted)
	tr.cues = sorted
	tr.requested = true

	return nil
}

// SelectTrack shows track id; an empty id disables captions.
func (m *Manager) SelectTrack(id string) error {
	if id == "" {
		m.DisableTracks()
		return nil
	}

	if _, ok := m.find(id); !ok {
		return &domain.InvalidCommandError{Command: "selectCaptions", Reason: "unknown track " + id}
	}
	m.activate(id)

	return nil
}

func (m *Manager) DisableTracks() {
	m.active = ""
	m.cue = nil
}

// Active returns the showing track.
func (m *Manager) Active() (domain.CaptionTrack, bool) {
	if m.active == "" {
		return domain.CaptionTrack{}, false
	}
	tr, ok := m.find(m.active)
	if !ok {
		return domain.CaptionTrack{}, false
	}
	return tr.CaptionTrack, true
}

func (m *Manager) Tracks() []domain.CaptionTrack {
	return lo.Map(m.tracks, func(tr *track, _ int) domain.CaptionTrack { return tr.CaptionTrack })
}

func (m *Manager) Len() int {
	return len(m.tracks)
}

// Pending lists tracks whose cues were never requested.
func (m *Manager) Pending() []domain.CaptionTrack {
	pending := lo.Filter(m.tracks, func(tr *track, _ int) bool { return !tr.requested && tr.Src != "" })
	return lo.Map(pending, func(tr *track, _ int) domain.CaptionTrack { return tr.CaptionTrack })
}

// MarkRequested keeps a track out of Pending.
func (m *Manager) MarkRequested(id string) {
	if tr, ok := m.find(id); ok {
		tr.requested = true
	}
}

// Update moves the active cue to the one covering t and reports whether
// the displayed text changed.
func (m *Manager) Update(t float64) bool {
	prev := m.Text()

	m.cue = nil
	if tr, ok := m.find(m.active); ok {
		if cue, found := FindCue(tr.cues, t); found {
			m.cue = &cue
		}
	}

	return m.Text() != prev
}

// Text is the text of the active cue, empty when none.
func (m *Manager) Text() string {
	if m.cue == nil {
		return ""
	}
	return m.cue.Text
}

// Reset drops every track.
func (m *Manager) Reset() {
	m.tracks = nil
	m.DisableTracks()
}

func (m *Manager) activate(id string) {
	if m.active != id {
		m.cue = nil
	}
	m.active = id
}

func (m *Manager) find(id string) (*track, bool) {
	if id == "" {
		return nil, false
	}
	return lo.Find(m.tracks, func(tr *track) bool { return tr.ID() == id })
}
