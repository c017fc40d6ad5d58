package controller

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/omplayer/server/internal/controls"
)

const (
	clientBufferSize = 64
	writeWait        = 10 * time.Second
)

// client owns the write side of one websocket connection. Player
// subscribers run on the player loop, so sends never block. Views are
// coalesced: only the newest pending view is written.
type client struct {
	conn      *websocket.Conn
	out       chan *Output
	done      chan struct{}
	closeOnce sync.Once
	logger    *slog.Logger

	mu        sync.Mutex
	view      *Output
	viewReady chan struct{}
}

func newClient(conn *websocket.Conn, logger *slog.Logger) *client {
	return &client{
		conn:      conn,
		out:       make(chan *Output, clientBufferSize),
		done:      make(chan struct{}),
		viewReady: make(chan struct{}, 1),
		logger:    logger,
	}
}

// sendView replaces any pending view with view.
func (cl *client) sendView(view controls.View) {
	cl.mu.Lock()
	cl.view = controlsUpdated(view)
	cl.mu.Unlock()

	select {
	case cl.viewReady <- struct{}{}:
	default:
	}
}

func (cl *client) takeView() *Output {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	v := cl.view
	cl.view = nil
	return v
}

// send queues a reply; it is dropped when the queue is full.
func (cl *client) send(o *Output) bool {
	select {
	case <-cl.done:
		return false
	default:
	}

	select {
	case cl.out <- o:
		return true
	case <-cl.done:
		return false
	default:
		cl.logger.Warn("client buffer is full, message dropped", "type", o.Type)
		return false
	}
}

func (cl *client) writeLoop() {
	for {
		var o *Output
		select {
		case o = <-cl.out:
		case <-cl.viewReady:
			o = cl.takeView()
		case <-cl.done:
			return
		}
		if o == nil {
			continue
		}

		cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := cl.conn.WriteJSON(o); err != nil {
			cl.logger.Info("failed to write to conn", "error", err)
			cl.close()
			return
		}
	}
}

func (cl *client) close() {
	cl.closeOnce.Do(func() {
		close(cl.done)
	})
}
