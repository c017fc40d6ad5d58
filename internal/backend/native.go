package backend

import (
	"github.com/omplayer/server/internal/domain"
	"github.com/omplayer/server/internal/media"
)

type native struct {
	*session
}

func newNative(cfg Config) *native {
	n := &native{}
	n.session = newSession(domain.BackendNative, cfg, cfg.NativeProber, n.translate)
	return n
}

func (n *native) Load(src domain.Source) {
	n.attach(src)
}

func (n *native) translate(e media.Event) {
	n.translateElement(e)
}
