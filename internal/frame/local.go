package frame

import (
	"slices"
	"sync"
)

// LocalWindow is an in-process window. Deliveries are posted to the loop it
// belongs to, so listeners always run on the loop goroutine in send order.
type LocalWindow struct {
	loop *Loop

	mu        sync.Mutex
	origin    string
	listeners map[int]func(Event)
	nextID    int
}

// NewLocalWindow creates a window with the given origin on loop.
func NewLocalWindow(loop *Loop, origin string) *LocalWindow {
	return &LocalWindow{
		loop:      loop,
		origin:    origin,
		listeners: make(map[int]func(Event)),
	}
}

// Origin implements Window.
func (w *LocalWindow) Origin() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.origin
}

// SetOrigin records a navigation to a document of another origin.
func (w *LocalWindow) SetOrigin(origin string) {
	w.mu.Lock()
	w.origin = origin
	w.mu.Unlock()
}

// PostMessage implements Window.
func (w *LocalWindow) PostMessage(data []byte, targetOrigin string, source Window) {
	ev := Event{Data: append([]byte(nil), data...), Source: source}
	if source != nil {
		ev.Origin = source.Origin()
	}

	w.loop.Post(func() {
		if targetOrigin != AnyOrigin && targetOrigin != w.Origin() {
			return
		}
		for _, fn := range w.snapshot() {
			fn(ev)
		}
	})
}

// AddListener implements Window.
func (w *LocalWindow) AddListener(fn func(Event)) (remove func()) {
	w.mu.Lock()
	id := w.nextID
	w.nextID++
	w.listeners[id] = fn
	w.mu.Unlock()

	return func() {
		w.mu.Lock()
		delete(w.listeners, id)
		w.mu.Unlock()
	}
}

// Listeners returns the number of registered listeners.
func (w *LocalWindow) Listeners() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.listeners)
}

func (w *LocalWindow) snapshot() []func(Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	ids := make([]int, 0, len(w.listeners))
	for id := range w.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	fns := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, w.listeners[id])
	}
	return fns
}
