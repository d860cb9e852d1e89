package channel

import (
	"sync/atomic"

	"go-live-docs/internal/contracts"
	"go-live-docs/internal/frame"
)

// Handlers maps each message type to an optional handler. Nil entries are
// ignored.
type Handlers struct {
	IframeReady               Handler[contracts.IframeReady]
	MarkdownContent           Handler[contracts.MarkdownContent]
	Resize                    Handler[contracts.Resize]
	HeadingVisible            Handler[contracts.HeadingVisible]
	ScrollToHeading           Handler[contracts.ScrollToHeading]
	ScrollToHeadingFromIframe Handler[contracts.ScrollToHeadingFromIframe]
}

func (h *Handlers) dispatch(msg contracts.Message, ev frame.Event) {
	switch m := msg.(type) {
	case contracts.IframeReady:
		if h.IframeReady != nil {
			h.IframeReady(m, ev)
		}
	case contracts.MarkdownContent:
		if h.MarkdownContent != nil {
			h.MarkdownContent(m, ev)
		}
	case contracts.Resize:
		if h.Resize != nil {
			h.Resize(m, ev)
		}
	case contracts.HeadingVisible:
		if h.HeadingVisible != nil {
			h.HeadingVisible(m, ev)
		}
	case contracts.ScrollToHeading:
		if h.ScrollToHeading != nil {
			h.ScrollToHeading(m, ev)
		}
	case contracts.ScrollToHeadingFromIframe:
		if h.ScrollToHeadingFromIframe != nil {
			h.ScrollToHeadingFromIframe(m, ev)
		}
	}
}

// MultiSubscription dispatches several message types through one listener.
type MultiSubscription struct {
	handlers atomic.Pointer[Handlers]
	remove   func()
}

// SetHandlers replaces the handler set used for future events.
func (s *MultiSubscription) SetHandlers(h Handlers) {
	s.handlers.Store(&h)
}

// Close removes the listener. It is safe to call more than once.
func (s *MultiSubscription) Close() {
	if s.remove != nil {
		s.remove()
		s.remove = nil
	}
}

// SubscribeMany installs a single listener that routes each admitted message
// to the matching entry of h.
func SubscribeMany(c *Channel, h Handlers, opts Options) *MultiSubscription {
	sub := &MultiSubscription{}
	sub.SetHandlers(h)
	sub.remove = c.self.AddListener(func(ev frame.Event) {
		msg, ok := c.decode(ev, opts)
		if !ok {
			return
		}
		sub.handlers.Load().dispatch(msg, ev)
	})
	return sub
}
