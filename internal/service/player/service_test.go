package player

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omplayer/server/internal/domain"
	"github.com/omplayer/server/internal/media"
	omplayer "github.com/omplayer/server/internal/player"
	"github.com/omplayer/server/internal/repository/connection/inmemory"
	playerInmemory "github.com/omplayer/server/internal/repository/player/inmemory"
	playerRedis "github.com/omplayer/server/internal/repository/player/redis"
	"github.com/omplayer/server/internal/resolver"
)

func newService(t *testing.T) (*service, *media.VirtualFactory) {
	t.Helper()
	s := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { rc.Close() })

	factory := &media.VirtualFactory{}
	svc := NewService(
		playerInmemory.NewRegistry(),
		playerRedis.NewRepo(rc, time.Hour),
		inmemory.NewRepo(),
		omplayer.Config{
			Capabilities: resolver.Capabilities{MSE: true},
			Elements:     factory,
			NativeProber: media.Fixed(30),
		},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	t.Cleanup(func() { svc.Shutdown(context.Background()) })

	return svc, factory
}

func TestPlayerLifecycle(t *testing.T) {
	svc, factory := newService(t)
	ctx := context.Background()

	created, err := svc.CreatePlayer(ctx, &CreatePlayerParams{
		ContainerID: "main-video",
		Sources:     []domain.Source{{Src: "https://cdn.example.com/movie.mp4"}},
		Options:     domain.Options{Autoplay: true},
	})
	require.NoError(t, err)
	assert.Equal(t, "main-video", created.ID)
	assert.True(t, created.Container.Root.HasClass("om-player"))
	assert.Equal(t, []string{"main-video"}, svc.ListPlayers(ctx))

	require.Eventually(t, func() bool {
		snapshot, err := svc.GetSnapshot(ctx, "main-video")
		return err == nil && snapshot.State == "playing"
	}, 2*time.Second, time.Millisecond)

	res, err := svc.GetPlayer(ctx, "main-video")
	require.NoError(t, err)
	assert.Equal(t, "video", res.Kind)
	assert.Equal(t, 30.0, res.Duration)
	assert.Equal(t, "video/mp4", res.Src[0].Type)
	assert.Nil(t, res.Error)
	assert.Equal(t, 1, factory.Live())

	_, err = svc.CreatePlayer(ctx, &CreatePlayerParams{ContainerID: "main-video"})
	assert.ErrorIs(t, err, ErrPlayerAlreadyExists)

	require.NoError(t, svc.DestroyPlayer(ctx, "main-video"))
	assert.ErrorIs(t, svc.DestroyPlayer(ctx, "main-video"), ErrPlayerNotFound)
	assert.Empty(t, svc.ListPlayers(ctx))
	assert.Zero(t, factory.Live())

	_, err = svc.GetPlayer(ctx, "main-video")
	assert.ErrorIs(t, err, ErrPlayerNotFound)

	require.Eventually(t, func() bool {
		_, err := svc.GetSnapshot(ctx, "main-video")
		return err == ErrSnapshotNotFound
	}, 2*time.Second, time.Millisecond)
}

func TestCreatePlayerGeneratesID(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	created, err := svc.CreatePlayer(ctx, &CreatePlayerParams{Kind: "audio"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.True(t, created.Container.Root.HasClass("om-player__audio"))
}

func TestCreatePlayerValidation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.CreatePlayer(ctx, &CreatePlayerParams{Kind: "hologram"})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "kind", validationErr.Errors[0].Field)

	_, err = svc.CreatePlayer(ctx, &CreatePlayerParams{Sources: []domain.Source{{Type: "video/mp4"}}})
	require.ErrorAs(t, err, &validationErr)

	_, err = svc.CreatePlayer(ctx, &CreatePlayerParams{Options: domain.Options{StartTime: -1}})
	require.ErrorAs(t, err, &validationErr)
}

func TestCreatePlayerWithUnsupportedSource(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.CreatePlayer(ctx, &CreatePlayerParams{
		ContainerID: "bad",
		Sources:     []domain.Source{{Src: "https://cdn.example.com/file.bin", Type: "application/octet-stream"}},
	})
	var unsupported *domain.UnsupportedSourceError
	require.ErrorAs(t, err, &unsupported)
	assert.Empty(t, svc.ListPlayers(ctx))
}

func TestLoadAndCaptions(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.CreatePlayer(ctx, &CreatePlayerParams{ContainerID: "p"})
	require.NoError(t, err)

	require.NoError(t, svc.LoadPlayer(ctx, &LoadPlayerParams{
		PlayerID: "p",
		Sources:  []domain.Source{{Src: "https://cdn.example.com/movie.mp4"}},
	}))
	assert.ErrorIs(t, svc.LoadPlayer(ctx, &LoadPlayerParams{PlayerID: "nope"}), ErrPlayerNotFound)

	require.NoError(t, svc.AddCaptions(ctx, &AddCaptionsParams{
		PlayerID: "p",
		Track:    domain.CaptionTrack{Srclang: "br_PT", Src: "pt.vtt", Label: "Portuguese (BR)", Default: true},
	}))

	err = svc.AddCaptions(ctx, &AddCaptionsParams{
		PlayerID: "p",
		Track:    domain.CaptionTrack{Srclang: "pt", Src: "pt2.vtt", Label: "Portuguese (BR)"},
	})
	var invalid *domain.InvalidCommandError
	assert.ErrorAs(t, err, &invalid)

	err = svc.AddCaptions(ctx, &AddCaptionsParams{PlayerID: "p", Track: domain.CaptionTrack{Srclang: "de"}})
	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)

	res, err := svc.GetPlayer(ctx, "p")
	require.NoError(t, err)
	require.Len(t, res.Captions, 1)
	_, ok := res.Container.Find(`.om-settings__menu-label[data-value="captions-br_PT"]`)
	assert.True(t, ok)
}

func TestClientConnections(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.CreatePlayer(ctx, &CreatePlayerParams{ContainerID: "p"})
	require.NoError(t, err)

	conn := &websocket.Conn{}
	p, err := svc.ConnectClient(ctx, &ConnectClientParams{Conn: conn, PlayerID: "p"})
	require.NoError(t, err)
	assert.Equal(t, "p", p.ID())

	_, err = svc.ConnectClient(ctx, &ConnectClientParams{Conn: conn, PlayerID: "p"})
	assert.Error(t, err)

	_, err = svc.ConnectClient(ctx, &ConnectClientParams{Conn: &websocket.Conn{}, PlayerID: "missing"})
	assert.ErrorIs(t, err, ErrPlayerNotFound)

	svc.DisconnectClient(ctx, conn)
	svc.DisconnectClient(ctx, conn)
}
