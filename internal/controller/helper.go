package controller

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/omplayer/server/internal/domain"
	"github.com/omplayer/server/internal/service/player"
	"github.com/omplayer/server/pkg/wsrouter"
)

const maxBodySize = 1 << 20

type envelope map[string]any

func (c controller) generateTimeBasedId() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return id.String()
}

func (c controller) readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("body must not be empty")
		}
		return fmt.Errorf("failed to decode body: %w", err)
	}

	return nil
}

func (c controller) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		c.logger.Warn("failed to write json", "error", err)
	}
}

// errorStatus maps service and domain errors to an HTTP status.
func errorStatus(err error) int {
	var (
		validationErr  *player.ValidationError
		unsupportedErr *domain.UnsupportedSourceError
		invalidErr     *domain.InvalidCommandError
	)

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.Is(err, player.ErrPlayerNotFound), errors.Is(err, player.ErrSnapshotNotFound):
		return http.StatusNotFound
	case errors.Is(err, player.ErrPlayerAlreadyExists):
		return http.StatusConflict
	case errors.As(err, &unsupportedErr), errors.As(err, &invalidErr), errors.Is(err, domain.ErrNoSource):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrPlayerDestroyed):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

// errorCode names err for websocket ERROR replies.
func errorCode(err error) string {
	switch {
	case errors.Is(err, wsrouter.ErrUnknownMessageType):
		return "UNKNOWN_MESSAGE_TYPE"
	case errors.Is(err, wsrouter.ErrInvalidMessage):
		return "INVALID_MESSAGE"
	}

	switch errorStatus(err) {
	case http.StatusBadRequest:
		return "VALIDATION_ERROR"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusUnprocessableEntity:
		return "INVALID_COMMAND"
	case http.StatusGone:
		return "PLAYER_DESTROYED"
	default:
		return "INTERNAL_ERROR"
	}
}

func (c controller) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		c.logger.WarnContext(r.Context(), "request failed", "error", err)
	} else {
		c.logger.DebugContext(r.Context(), "request rejected", "status", status, "error", err)
	}

	var validationErr *player.ValidationError
	if errors.As(err, &validationErr) {
		c.writeJSON(w, status, envelope{"errors": validationErr.Errors})
		return
	}

	c.writeJSON(w, status, envelope{"error": err.Error()})
}
