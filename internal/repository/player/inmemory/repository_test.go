package inmemory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omplayer/server/internal/domain"
	"github.com/omplayer/server/internal/player"
	repo "github.com/omplayer/server/internal/repository/player"
)

func newPlayer(t *testing.T, id string) *player.Player {
	t.Helper()
	p, err := player.New(id, player.Config{}, domain.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Destroy() })
	return p
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	a, b := newPlayer(t, "b-player"), newPlayer(t, "a-player")

	require.NoError(t, r.Add(a))
	require.NoError(t, r.Add(b))
	assert.ErrorIs(t, r.Add(a), repo.ErrAlreadyExists)
	assert.Equal(t, []string{"a-player", "b-player"}, r.IDs())

	got, err := r.Get("b-player")
	require.NoError(t, err)
	assert.Same(t, a, got)

	removed, err := r.Remove("b-player")
	require.NoError(t, err)
	assert.Same(t, a, removed)

	_, err = r.Get("b-player")
	assert.ErrorIs(t, err, repo.ErrPlayerNotFound)
	_, err = r.Remove("b-player")
	assert.ErrorIs(t, err, repo.ErrPlayerNotFound)
	assert.Equal(t, []string{"a-player"}, r.IDs())
}
