package inmemory

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/omplayer/server/internal/player"
	repo "github.com/omplayer/server/internal/repository/player"
)

// registry maps player ids to live players.
type registry struct {
	players map[string]*player.Player
	mu      sync.RWMutex
}

func NewRegistry() *registry {
	return &registry{players: make(map[string]*player.Player)}
}

func (r *registry) Add(p *player.Player) error {
	funcName := "player.inmemory.Add"
	r.mu.Lock()
	defer r.mu.Unlock()

	slog.Debug(funcName, "player_id", p.ID())
	if _, ok := r.players[p.ID()]; ok {
		slog.Info(funcName, "error", repo.ErrAlreadyExists)
		return repo.ErrAlreadyExists
	}
	r.players[p.ID()] = p

	return nil
}

func (r *registry) Get(id string) (*player.Player, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.players[id]
	if !ok {
		slog.Debug("player.inmemory.Get", "error", repo.ErrPlayerNotFound, "player_id", id)
		return nil, repo.ErrPlayerNotFound
	}

	return p, nil
}

func (r *registry) Remove(id string) (*player.Player, error) {
	funcName := "player.inmemory.Remove"
	r.mu.Lock()
	defer r.mu.Unlock()

	slog.Debug(funcName, "player_id", id)
	p, ok := r.players[id]
	if !ok {
		slog.Info(funcName, "error", repo.ErrPlayerNotFound)
		return nil, repo.ErrPlayerNotFound
	}
	delete(r.players, id)

	return p, nil
}

// IDs returns the registered ids in sorted order.
func (r *registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.players))
	for id := range r.players {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return ids
}
