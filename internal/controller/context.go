package controller

import "context"

type contextKey int

const (
	playerIdCtxKey contextKey = iota
)

func (c controller) getPlayerIdFromCtx(ctx context.Context) string {
	playerId, ok := ctx.Value(playerIdCtxKey).(string)
	if !ok {
		return ""
	}

	return playerId
}
