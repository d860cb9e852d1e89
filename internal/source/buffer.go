package source

import (
	"sync"

	"github.com/jonboulle/clockwork"

	"go-live-docs/internal/contracts"
)

// Buffer is an in-memory source, fed by an editor.
type Buffer struct {
	notifier
	clock clockwork.Clock

	mu   sync.RWMutex
	path string
	text []byte
	set  bool
}

// NewBuffer creates an empty buffer source.
func NewBuffer(clock clockwork.Clock) *Buffer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Buffer{clock: clock}
}

// Path implements Source.
func (b *Buffer) Path() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.path
}

// Read implements Source.
func (b *Buffer) Read() ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.set {
		return nil, ErrNotFound
	}
	return append([]byte(nil), b.text...), nil
}

// Publish replaces the buffer contents and notifies subscribers. The first
// publish, or one under a new path, is reported as an addition.
func (b *Buffer) Publish(text []byte, path string) {
	b.mu.Lock()
	kind := contracts.ChangeKindChanged
	if !b.set || path != b.path {
		kind = contracts.ChangeKindAdded
	}
	b.text = append([]byte(nil), text...)
	b.path = path
	b.set = true
	b.mu.Unlock()

	b.notify(contracts.ContentChange{Kind: kind, Path: path, Timestamp: b.clock.Now().UnixMilli()})
}

// Clear removes the contents and notifies subscribers.
func (b *Buffer) Clear() {
	b.mu.Lock()
	path := b.path
	b.text = nil
	b.set = false
	b.mu.Unlock()

	b.notify(contracts.ContentChange{Kind: contracts.ChangeKindRemoved, Path: path, Timestamp: b.clock.Now().UnixMilli()})
}
