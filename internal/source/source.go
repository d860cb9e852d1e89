// Package source provides the markdown served to viewers and notifies
// subscribers whenever it may have changed.
package source

import (
	"sync"

	"github.com/pkg/errors"

	"go-live-docs/internal/contracts"
)

// ErrNotFound is returned by Read when no markdown is available.
var ErrNotFound = errors.New("markdown source not found")

// Source is a markdown document with change notifications.
type Source interface {
	// Path identifies the document, used to resolve relative assets.
	Path() string
	// Read returns the current markdown.
	Read() ([]byte, error)
	// Subscribe registers fn for change notifications and returns a function
	// that removes it.
	Subscribe(fn func(contracts.ContentChange)) (unsubscribe func())
}

// notifier fans change notifications out to subscribers.
type notifier struct {
	mu     sync.Mutex
	subs   map[int]func(contracts.ContentChange)
	nextID int
}

func (n *notifier) Subscribe(fn func(contracts.ContentChange)) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.subs == nil {
		n.subs = make(map[int]func(contracts.ContentChange))
	}
	id := n.nextID
	n.nextID++
	n.subs[id] = fn
	return func() {
		n.mu.Lock()
		delete(n.subs, id)
		n.mu.Unlock()
	}
}

func (n *notifier) notify(change contracts.ContentChange) {
	n.mu.Lock()
	fns := make([]func(contracts.ContentChange), 0, len(n.subs))
	for _, fn := range n.subs {
		fns = append(fns, fn)
	}
	n.mu.Unlock()

	for _, fn := range fns {
		fn(change)
	}
}
