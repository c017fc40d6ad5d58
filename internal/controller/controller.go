package controller

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/omplayer/server/internal/domain"
	omplayer "github.com/omplayer/server/internal/player"
	"github.com/omplayer/server/internal/service/player"
	"github.com/omplayer/server/pkg/validator"
	"github.com/omplayer/server/pkg/wsrouter"
)

type iPlayerService interface {
	CreatePlayer(context.Context, *player.CreatePlayerParams) (player.CreatePlayerResponse, error)
	GetInstance(context.Context, string) (*omplayer.Player, error)
	GetPlayer(context.Context, string) (player.Player, error)
	ListPlayers(context.Context) []string
	DestroyPlayer(context.Context, string) error
	LoadPlayer(context.Context, *player.LoadPlayerParams) error
	AddCaptions(context.Context, *player.AddCaptionsParams) error
	GetSnapshot(context.Context, string) (domain.Snapshot, error)
	ConnectClient(context.Context, *player.ConnectClientParams) (*omplayer.Player, error)
	DisconnectClient(context.Context, *websocket.Conn)
}

type controller struct {
	playerService iPlayerService
	upgrader      websocket.Upgrader
	validate      *validator.Validator
	wsmux         *wsrouter.WSRouter
	logger        *slog.Logger
}

func NewController(playerService iPlayerService, logger *slog.Logger) *controller {
	c := &controller{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		playerService: playerService,
		validate:      validator.NewValidator(),
		logger:        logger,
	}
	c.wsmux = c.getWSRouter()

	return c
}
