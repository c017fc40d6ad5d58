package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/omplayer/server/internal/controls"
	"github.com/omplayer/server/internal/domain"
	omplayer "github.com/omplayer/server/internal/player"
	"github.com/omplayer/server/internal/service/player"
	"github.com/omplayer/server/pkg/ctxlogger"
)

type Output struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type EmptyInput struct{}

func controlsUpdated(view controls.View) *Output {
	return &Output{Type: "CONTROLS_UPDATED", Payload: view}
}

func errorOutput(err error) *Output {
	payload := map[string]any{
		"code":    errorCode(err),
		"message": err.Error(),
	}

	var validationErr *player.ValidationError
	if errors.As(err, &validationErr) {
		payload["errors"] = validationErr.Errors
	}

	return &Output{Type: "ERROR", Payload: payload}
}

func (c controller) connectPlayer(w http.ResponseWriter, r *http.Request) {
	playerId := chi.URLParam(r, "player-id")
	ctx := ctxlogger.AppendCtx(r.Context(), slog.String("player_id", playerId))

	if _, err := c.playerService.GetInstance(ctx, playerId); err != nil {
		c.writeError(w, r.WithContext(ctx), err)
		return
	}

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(ctx, "failed to upgrade to websocket", "error", err)
		return
	}
	defer conn.Close()

	p, err := c.playerService.ConnectClient(ctx, &player.ConnectClientParams{
		Conn:     conn,
		PlayerID: playerId,
	})
	if err != nil {
		c.logger.InfoContext(ctx, "failed to connect client", "error", err)
		conn.WriteJSON(errorOutput(err))
		return
	}
	defer c.playerService.DisconnectClient(ctx, conn)

	cl := newClient(conn, c.logger.With("player_id", playerId))
	go cl.writeLoop()
	defer cl.close()

	cl.sendView(p.Container().View())
	unsubscribe := p.Subscribe(cl.sendView)
	defer unsubscribe()

	ctx = context.WithValue(ctx, playerIdCtxKey, playerId)

	c.logger.InfoContext(ctx, "client connected")

	if err := c.wsmux.ServeConn(ctx, conn, func(ctx context.Context, err error) {
		c.logger.InfoContext(ctx, "failed to handle message", "error", err)
		cl.send(errorOutput(err))
	}); err != nil {
		c.logger.InfoContext(ctx, "client disconnected", "error", err)
	}
}

func (c controller) playerFromCtx(ctx context.Context) (*omplayer.Player, error) {
	return c.playerService.GetInstance(ctx, c.getPlayerIdFromCtx(ctx))
}

func (c controller) validateInput(input any) error {
	if errs, ok := c.validate.Validate(input); !ok {
		return &player.ValidationError{Errors: errs}
	}
	return nil
}

func (c controller) handleAlive(_ context.Context, _ *websocket.Conn, _ EmptyInput) error {
	return nil
}

func (c controller) handlePlay(ctx context.Context, _ *websocket.Conn, _ EmptyInput) error {
	p, err := c.playerFromCtx(ctx)
	if err != nil {
		return err
	}

	p.Play()
	return nil
}

func (c controller) handlePause(ctx context.Context, _ *websocket.Conn, _ EmptyInput) error {
	p, err := c.playerFromCtx(ctx)
	if err != nil {
		return err
	}

	p.Pause()
	return nil
}

type SeekInput struct {
	Time *float64 `json:"time" validate:"required"`
}

func (c controller) handleSeek(ctx context.Context, _ *websocket.Conn, input SeekInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	p, err := c.playerFromCtx(ctx)
	if err != nil {
		return err
	}

	p.SetCurrentTime(*input.Time)
	return nil
}

type SetMutedInput struct {
	Muted bool `json:"muted"`
}

func (c controller) handleSetMuted(ctx context.Context, _ *websocket.Conn, input SetMutedInput) error {
	p, err := c.playerFromCtx(ctx)
	if err != nil {
		return err
	}

	p.SetMuted(input.Muted)
	return nil
}

type SetVolumeInput struct {
	Volume *float64 `json:"volume" validate:"required,gte=0,lte=1"`
}

func (c controller) handleSetVolume(ctx context.Context, _ *websocket.Conn, input SetVolumeInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	p, err := c.playerFromCtx(ctx)
	if err != nil {
		return err
	}

	p.SetVolume(*input.Volume)
	return nil
}

type SetAutoplayInput struct {
	Autoplay bool `json:"autoplay"`
}

func (c controller) handleSetAutoplay(ctx context.Context, _ *websocket.Conn, input SetAutoplayInput) error {
	p, err := c.playerFromCtx(ctx)
	if err != nil {
		return err
	}

	p.SetAutoplay(input.Autoplay)
	return nil
}

type SetSrcInput struct {
	Src []domain.Source `json:"src" validate:"required,min=1,dive"`
}

func (c controller) handleSetSrc(ctx context.Context, _ *websocket.Conn, input SetSrcInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	p, err := c.playerFromCtx(ctx)
	if err != nil {
		return err
	}

	p.SetSrc(input.Src...)
	return nil
}

type LoadInput struct {
	Src []domain.Source `json:"src"`
}

func (c controller) handleLoad(ctx context.Context, _ *websocket.Conn, input LoadInput) error {
	if err := c.playerService.LoadPlayer(ctx, &player.LoadPlayerParams{
		PlayerID: c.getPlayerIdFromCtx(ctx),
		Sources:  input.Src,
	}); err != nil {
		return fmt.Errorf("failed to load player: %w", err)
	}

	return nil
}

func (c controller) handleWidgetAction(ctx context.Context, _ *websocket.Conn, input controls.Action) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	p, err := c.playerFromCtx(ctx)
	if err != nil {
		return err
	}

	return p.HandleAction(input)
}

func (c controller) handleKeydown(ctx context.Context, _ *websocket.Conn, input omplayer.KeyEvent) error {
	p, err := c.playerFromCtx(ctx)
	if err != nil {
		return err
	}

	p.HandleKey(input)
	return nil
}

func (c controller) handlePointer(ctx context.Context, _ *websocket.Conn, _ EmptyInput) error {
	p, err := c.playerFromCtx(ctx)
	if err != nil {
		return err
	}

	p.HandlePointer()
	return nil
}

func (c controller) handleAddCaptions(ctx context.Context, _ *websocket.Conn, input domain.CaptionTrack) error {
	if err := c.playerService.AddCaptions(ctx, &player.AddCaptionsParams{
		PlayerID: c.getPlayerIdFromCtx(ctx),
		Track:    input,
	}); err != nil {
		return fmt.Errorf("failed to add captions: %w", err)
	}

	return nil
}

type SelectCaptionsInput struct {
	ID string `json:"id"`
}

func (c controller) handleSelectCaptions(ctx context.Context, _ *websocket.Conn, input SelectCaptionsInput) error {
	p, err := c.playerFromCtx(ctx)
	if err != nil {
		return err
	}

	return p.SelectCaptions(input.ID)
}
