package player

import "sync"

// loop serializes all work of one player on a single goroutine. The queue
// is unbounded so that posting never blocks an element callback.
type loop struct {
	mu     sync.Mutex
	queue  []func()
	notify chan struct{}
	closed bool
	done   chan struct{}
}

func newLoop() *loop {
	l := &loop{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *loop) run() {
	defer close(l.done)
	for {
		<-l.notify

		for {
			l.mu.Lock()
			if len(l.queue) == 0 {
				closed := l.closed
				l.mu.Unlock()
				if closed {
					return
				}
				break
			}
			fn := l.queue[0]
			l.queue[0] = nil
			l.queue = l.queue[1:]
			l.mu.Unlock()

			fn()
		}
	}
}

// post queues fn. It reports false once the loop is closed.
func (l *loop) post(fn func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.notify <- struct{}{}:
	default:
	}
	return true
}

// do runs fn on the loop and waits for it. Never call it from the loop.
func (l *loop) do(fn func()) bool {
	done := make(chan struct{})
	if !l.post(func() {
		defer close(done)
		fn()
	}) {
		return false
	}
	<-done
	return true
}

// close stops accepting work; already queued work still runs.
func (l *loop) close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.mu.Unlock()

	select {
	case l.notify <- struct{}{}:
	default:
	}
}

// wait blocks until the loop goroutine has exited.
func (l *loop) wait() {
	<-l.done
}
