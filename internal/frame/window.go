// Package frame models browsing contexts as injected transport handles so the
// synchronization logic never touches ambient global state.
package frame

import "github.com/pkg/errors"

// AnyOrigin disables origin checks when used as a target origin.
const AnyOrigin = "*"

// ErrCrossOrigin is returned by same-origin accessors when the other document
// belongs to a different origin.
var ErrCrossOrigin = errors.New("cross-origin frame access")

// Event is one message delivered to a window.
type Event struct {
	// Data is the serialized message as posted by the sender.
	Data []byte
	// Origin is the origin of the sending window.
	Origin string
	// Source is the sending window, nil if unknown.
	Source Window
}

// Window is the capability of one browsing context to receive messages.
type Window interface {
	// Origin returns the origin of the document currently loaded.
	Origin() string
	// PostMessage queues data for delivery to this window's listeners. The
	// message is discarded when targetOrigin is neither AnyOrigin nor equal to
	// Origin(). source identifies the sender.
	PostMessage(data []byte, targetOrigin string, source Window)
	// AddListener registers fn for every delivered message and returns a
	// function that removes it.
	AddListener(fn func(Event)) (remove func())
}

// Scheduler runs callbacks on the next animation frame.
type Scheduler interface {
	// RequestFrame schedules fn and returns a function that cancels it. Calling
	// cancel after fn ran is a no-op.
	RequestFrame(fn func()) (cancel func())
}
