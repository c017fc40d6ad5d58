package player

import "errors"

var (
	ErrPlayerNotFound   = errors.New("player not found")
	ErrAlreadyExists    = errors.New("player already exists")
	ErrSnapshotNotFound = errors.New("snapshot not found")
)
