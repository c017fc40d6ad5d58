package inmemory

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/omplayer/server/internal/repository/connection"
)

// repo tracks the websocket connections attached to each player.
type repo struct {
	connList map[*websocket.Conn]string
	idList   map[string]map[*websocket.Conn]struct{}
	mu       sync.RWMutex
}

func NewRepo() *repo {
	return &repo{
		connList: make(map[*websocket.Conn]string),
		idList:   make(map[string]map[*websocket.Conn]struct{}),
	}
}

func (r *repo) Add(conn *websocket.Conn, playerID string) error {
	funcName := "connection.inmemory.Add"
	r.mu.Lock()
	defer r.mu.Unlock()

	slog.Debug(funcName, "player_id", playerID)
	if _, ok := r.connList[conn]; ok {
		slog.Info(funcName, "error", connection.ErrAlreadyExists)
		return connection.ErrAlreadyExists
	}

	r.connList[conn] = playerID
	if r.idList[playerID] == nil {
		r.idList[playerID] = make(map[*websocket.Conn]struct{})
	}
	r.idList[playerID][conn] = struct{}{}

	slog.Debug(funcName, "result", "OK")
	return nil
}

func (r *repo) RemoveByConn(conn *websocket.Conn) (string, error) {
	funcName := "connection.inmemory.RemoveByConn"
	r.mu.Lock()
	defer r.mu.Unlock()

	slog.Debug(funcName)
	playerID, ok := r.connList[conn]
	if !ok {
		slog.Info(funcName, "error", connection.ErrNotFound)
		return "", connection.ErrNotFound
	}

	delete(r.connList, conn)
	delete(r.idList[playerID], conn)
	if len(r.idList[playerID]) == 0 {
		delete(r.idList, playerID)
	}

	slog.Debug(funcName, "result", playerID)
	return playerID, nil
}

// RemoveByPlayerID forgets and returns every connection of playerID.
func (r *repo) RemoveByPlayerID(playerID string) []*websocket.Conn {
	funcName := "connection.inmemory.RemoveByPlayerID"
	r.mu.Lock()
	defer r.mu.Unlock()

	slog.Debug(funcName, "player_id", playerID)
	conns := make([]*websocket.Conn, 0, len(r.idList[playerID]))
	for conn := range r.idList[playerID] {
		conns = append(conns, conn)
		delete(r.connList, conn)
	}
	delete(r.idList, playerID)

	slog.Debug(funcName, "result", len(conns))
	return conns
}

func (r *repo) GetPlayerID(conn *websocket.Conn) (string, error) {
	funcName := "connection.inmemory.GetPlayerID"
	r.mu.RLock()
	defer r.mu.RUnlock()

	playerID, ok := r.connList[conn]
	if !ok {
		slog.Info(funcName, "error", connection.ErrNotFound)
		return "", connection.ErrNotFound
	}

	return playerID, nil
}

func (r *repo) Count(playerID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.idList[playerID])
}
