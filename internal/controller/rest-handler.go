package controller

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/omplayer/server/internal/service/player"
	"github.com/omplayer/server/pkg/ctxlogger"
)

func (c controller) playerIdParam(r *http.Request) (string, *http.Request) {
	playerId := chi.URLParam(r, "player-id")
	ctx := ctxlogger.AppendCtx(r.Context(), slog.String("player_id", playerId))
	return playerId, r.WithContext(ctx)
}

func (c controller) createPlayer(w http.ResponseWriter, r *http.Request) {
	var req player.CreatePlayerParams
	if err := c.readJSON(w, r, &req); err != nil {
		c.writeJSON(w, http.StatusBadRequest, envelope{"error": err.Error()})
		return
	}

	resp, err := c.playerService.CreatePlayer(r.Context(), &req)
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	c.writeJSON(w, http.StatusCreated, envelope{"data": resp})
}

func (c controller) listPlayers(w http.ResponseWriter, r *http.Request) {
	c.writeJSON(w, http.StatusOK, envelope{"data": c.playerService.ListPlayers(r.Context())})
}

func (c controller) getPlayer(w http.ResponseWriter, r *http.Request) {
	playerId, r := c.playerIdParam(r)

	resp, err := c.playerService.GetPlayer(r.Context(), playerId)
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	c.writeJSON(w, http.StatusOK, envelope{"data": resp})
}

func (c controller) destroyPlayer(w http.ResponseWriter, r *http.Request) {
	playerId, r := c.playerIdParam(r)

	if err := c.playerService.DestroyPlayer(r.Context(), playerId); err != nil {
		c.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (c controller) loadPlayer(w http.ResponseWriter, r *http.Request) {
	playerId, r := c.playerIdParam(r)

	var req player.LoadPlayerParams
	if r.ContentLength != 0 {
		if err := c.readJSON(w, r, &req); err != nil {
			c.writeJSON(w, http.StatusBadRequest, envelope{"error": err.Error()})
			return
		}
	}
	req.PlayerID = playerId

	if err := c.playerService.LoadPlayer(r.Context(), &req); err != nil {
		c.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (c controller) addCaptions(w http.ResponseWriter, r *http.Request) {
	playerId, r := c.playerIdParam(r)

	var req player.AddCaptionsParams
	if err := c.readJSON(w, r, &req); err != nil {
		c.writeJSON(w, http.StatusBadRequest, envelope{"error": err.Error()})
		return
	}
	req.PlayerID = playerId

	if err := c.playerService.AddCaptions(r.Context(), &req); err != nil {
		c.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (c controller) getSnapshot(w http.ResponseWriter, r *http.Request) {
	playerId, r := c.playerIdParam(r)

	snapshot, err := c.playerService.GetSnapshot(r.Context(), playerId)
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	c.writeJSON(w, http.StatusOK, envelope{"data": snapshot})
}
