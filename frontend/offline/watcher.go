package offline

import (
	"context"
	"sync"
	"time"
)

// ProbeFunc checks backend reachability; a nil error means online.
type ProbeFunc func(ctx context.Context) error

// Watcher polls the backend and fires a drain whenever connectivity comes
// back. It also answers the Online question the toggle path branches on.
type Watcher struct {
	probe    ProbeFunc
	engine   *Engine
	interval time.Duration

	mu     sync.Mutex
	online bool

	stop chan struct{}
	done chan struct{}
}

// NewWatcher creates a Watcher that probes at the given interval.
func NewWatcher(probe ProbeFunc, engine *Engine, interval time.Duration) *Watcher {
	return &Watcher{
		probe:    probe,
		engine:   engine,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start probes once immediately, draining if the backend is reachable, then
// keeps polling in the background. Each offline-to-online transition
// triggers another drain. Drain errors are swallowed here: background sync
// must never interrupt the user.
func (w *Watcher) Start(ctx context.Context) {
	w.setOnline(w.probe(ctx) == nil)
	if w.Online() {
		go func() { _ = w.engine.Drain(ctx) }()
	}

	go w.loop(ctx)
}

// Stop ends the polling loop and waits for it to exit. The watcher cannot
// be restarted.
func (w *Watcher) Stop() {
	close(w.stop)
	<-w.done
}

// Online reports the result of the most recent probe.
func (w *Watcher) Online() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.online
}

func (w *Watcher) setOnline(v bool) {
	w.mu.Lock()
	w.online = v
	w.mu.Unlock()
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			wasOnline := w.Online()
			nowOnline := w.probe(ctx) == nil
			w.setOnline(nowOnline)
			if nowOnline && !wasOnline {
				_ = w.engine.Drain(ctx)
			}
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}
