package watch

import (
	"sync"
	"time"
)

// debouncer collapses rapid changes to the same path into one emission
// after a quiet window.
type debouncer struct {
	window time.Duration
	emit   func(Change)

	mu      sync.Mutex
	timers  map[string]*time.Timer
	pending map[string]Change
	stopped bool
}

func newDebouncer(window time.Duration, emit func(Change)) *debouncer {
	return &debouncer{
		window:  window,
		emit:    emit,
		timers:  make(map[string]*time.Timer),
		pending: make(map[string]Change),
	}
}

func (d *debouncer) feed(c Change) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	d.pending[c.Path] = c
	if t, ok := d.timers[c.Path]; ok {
		t.Reset(d.window)
		return
	}

	path := c.Path
	d.timers[path] = time.AfterFunc(d.window, func() {
		d.mu.Lock()
		ev, ok := d.pending[path]
		delete(d.timers, path)
		delete(d.pending, path)
		stopped := d.stopped
		d.mu.Unlock()
		if ok && !stopped {
			d.emit(ev)
		}
	})
}

// stop cancels pending timers without emitting.
func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	for _, t := range d.timers {
		t.Stop()
	}
	d.timers = nil
	d.pending = nil
}
