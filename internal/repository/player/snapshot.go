package player

// Snapshot is the stored form of a player session.
type Snapshot struct {
	PlayerID    string  `redis:"player_id"`
	Src         string  `redis:"src"`
	Type        string  `redis:"type"`
	Backend     string  `redis:"backend"`
	State       string  `redis:"state"`
	CurrentTime float64 `redis:"current_time"`
	Duration    float64 `redis:"duration"`
	Muted       bool    `redis:"muted"`
	Volume      float64 `redis:"volume"`
	Autoplay    bool    `redis:"autoplay"`
	UpdatedAt   int64   `redis:"updated_at"`
}

type SetSnapshotParams struct {
	Snapshot Snapshot
}
