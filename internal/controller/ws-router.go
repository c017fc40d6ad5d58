package controller

import (
	"github.com/omplayer/server/pkg/wsrouter"
)

func (c controller) getWSRouter() *wsrouter.WSRouter {
	mux := wsrouter.New()
	mux.Use(c.wsRequestIdWSMw(), c.loggerWSMw())

	wsrouter.Handle(mux, "ALIVE", c.handleAlive)

	// playback
	wsrouter.Handle(mux, "PLAY", c.handlePlay)
	wsrouter.Handle(mux, "PAUSE", c.handlePause)
	wsrouter.Handle(mux, "SEEK", c.handleSeek)
	wsrouter.Handle(mux, "SET_MUTED", c.handleSetMuted)
	wsrouter.Handle(mux, "SET_VOLUME", c.handleSetVolume)
	wsrouter.Handle(mux, "SET_AUTOPLAY", c.handleSetAutoplay)

	// source
	wsrouter.Handle(mux, "SET_SRC", c.handleSetSrc)
	wsrouter.Handle(mux, "LOAD", c.handleLoad)

	// input
	wsrouter.Handle(mux, "WIDGET_ACTION", c.handleWidgetAction)
	wsrouter.Handle(mux, "KEYDOWN", c.handleKeydown)
	wsrouter.Handle(mux, "POINTER", c.handlePointer)

	// captions
	wsrouter.Handle(mux, "ADD_CAPTIONS", c.handleAddCaptions)
	wsrouter.Handle(mux, "SELECT_CAPTIONS", c.handleSelectCaptions)

	return mux
}
