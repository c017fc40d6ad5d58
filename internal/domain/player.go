package domain

// Snapshot is the persisted summary of a player session.
type Snapshot struct {
	PlayerID    string  `json:"player_id"`
	Src         string  `json:"src"`
	Type        string  `json:"type"`
	Backend     string  `json:"backend"`
	State       string  `json:"state"`
	CurrentTime float64 `json:"current_time"`
	Duration    float64 `json:"duration"`
	Muted       bool    `json:"muted"`
	Volume      float64 `json:"volume"`
	Autoplay    bool    `json:"autoplay"`
	UpdatedAt   int64   `json:"updated_at"`
}

func NewSnapshot(playerID string) *Snapshot {
	return &Snapshot{
		PlayerID: playerID,
		State:    StateIdle.String(),
		Backend:  BackendNone.String(),
		Volume:   1,
	}
}
