// Package channel layers typed send and subscribe primitives over frame
// windows. Every inbound event passes the same gate: source window, origin,
// discriminant, then typed dispatch. Events failing any step are dropped.
package channel

import (
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"go-live-docs/internal/contracts"
	"go-live-docs/internal/frame"
)

// Options filter inbound events. The zero value accepts everything.
type Options struct {
	// Source, when set, only admits events sent by this window.
	Source frame.Window
	// TargetOrigin, when set and not "*", only admits events from this origin.
	TargetOrigin string
}

func (o Options) admits(ev frame.Event) bool {
	if o.Source != nil && ev.Source != o.Source {
		return false
	}
	if o.TargetOrigin != "" && o.TargetOrigin != frame.AnyOrigin && ev.Origin != o.TargetOrigin {
		return false
	}
	return true
}

// Channel sends from and listens on one window.
type Channel struct {
	self frame.Window
	log  logrus.FieldLogger
}

// New returns a channel bound to self.
func New(self frame.Window, log logrus.FieldLogger) *Channel {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Channel{self: self, log: log}
}

// Send posts msg to target. A nil target is not an error: the frame may not
// exist yet. targetOrigin defaults to "*".
func (c *Channel) Send(target frame.Window, msg contracts.Message, targetOrigin ...string) {
	if target == nil {
		return
	}
	origin := frame.AnyOrigin
	if len(targetOrigin) > 0 && targetOrigin[0] != "" {
		origin = targetOrigin[0]
	}

	data, err := contracts.Encode(msg)
	if err != nil {
		c.log.WithError(err).WithField("type", msg.Type()).Warn("dropping unencodable message")
		return
	}
	target.PostMessage(data, origin, c.self)
}

// decode runs the filter pipeline and returns the typed message, or false if
// the event must be dropped.
func (c *Channel) decode(ev frame.Event, opts Options) (contracts.Message, bool) {
	if !opts.admits(ev) {
		c.log.WithField("origin", ev.Origin).Debug("message filtered by source or origin")
		return nil, false
	}
	if !contracts.IsValidMessage(ev.Data) {
		return nil, false
	}
	msg, err := contracts.Decode(ev.Data)
	if err != nil {
		c.log.WithError(err).Debug("message payload rejected")
		return nil, false
	}
	return msg, true
}

// Handler handles one message type.
type Handler[M contracts.Message] func(msg M, ev frame.Event)

// Subscription is a registered listener for a single message type. The
// listener is installed once; the handler it calls lives in a separate cell
// that can be replaced at any time.
type Subscription[M contracts.Message] struct {
	handler atomic.Pointer[Handler[M]]
	remove  func()
}

// SetHandler replaces the handler invoked for future events.
func (s *Subscription[M]) SetHandler(h Handler[M]) {
	s.handler.Store(&h)
}

// Close removes the listener. It is safe to call more than once.
func (s *Subscription[M]) Close() {
	if s.remove != nil {
		s.remove()
		s.remove = nil
	}
}

// Subscribe registers h for every admitted message of type M.
func Subscribe[M contracts.Message](c *Channel, h Handler[M], opts Options) *Subscription[M] {
	var zero M
	want := zero.Type()

	sub := &Subscription[M]{}
	sub.SetHandler(h)
	sub.remove = c.self.AddListener(func(ev frame.Event) {
		msg, ok := c.decode(ev, opts)
		if !ok || msg.Type() != want {
			return
		}
		typed, ok := msg.(M)
		if !ok {
			return
		}
		if hp := sub.handler.Load(); hp != nil && *hp != nil {
			(*hp)(typed, ev)
		}
	})
	return sub
}
