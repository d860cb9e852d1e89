package framesync

import (
	"time"

	"github.com/sirupsen/logrus"

	"go-live-docs/internal/channel"
	"go-live-docs/internal/contracts"
	"go-live-docs/internal/frame"
	"go-live-docs/internal/render"
	"go-live-docs/internal/tracker"
)

// DefaultSettleDelay is how long after a commit the first height report and
// heading evaluation run.
const DefaultSettleDelay = 100 * time.Millisecond

// ChildView is the embedded document's DOM as seen by the controller.
type ChildView interface {
	// Commit replaces the document body with html.
	Commit(html string)
	// ScrollIntoView smoothly scrolls the heading to the top of the view.
	ScrollIntoView(id string)
	// ScrollHeight returns the document body's scroll height.
	ScrollHeight() float64
	// Layout returns the geometry the active heading rule needs.
	Layout() tracker.Layout
}

// Renderer turns markdown into HTML.
type Renderer interface {
	Render(source []byte) (render.Document, error)
}

// Timers schedules callbacks on the session loop.
type Timers interface {
	frame.Scheduler
	AfterFunc(d time.Duration, fn func()) (cancel func())
}

// ChildConfig configures the child controller.
type ChildConfig struct {
	// ParentOrigin filters inbound messages and addresses outbound ones.
	ParentOrigin string
	SettleDelay  time.Duration
	Rule         tracker.Rule
}

// Child is the controller of the embedded document. All methods must be
// called from the session loop.
type Child struct {
	cfg      ChildConfig
	ch       *channel.Channel
	parent   frame.Window
	view     ChildView
	renderer Renderer
	timers   Timers
	log      logrus.FieldLogger

	tracker *tracker.Tracker
	subs    []interface{ Close() }
	mounted bool

	loading bool
	html    string
	settle  func()
}

// NewChild creates the controller of a document embedded in parent.
func NewChild(ch *channel.Channel, parent frame.Window, view ChildView, renderer Renderer, timers Timers, cfg ChildConfig, log logrus.FieldLogger) *Child {
	if cfg.ParentOrigin == "" {
		cfg.ParentOrigin = frame.AnyOrigin
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = DefaultSettleDelay
	}
	if cfg.Rule == (tracker.Rule{}) {
		cfg.Rule = tracker.DefaultRule()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	c := &Child{
		cfg:      cfg,
		ch:       ch,
		parent:   parent,
		view:     view,
		renderer: renderer,
		timers:   timers,
		log:      log,
		loading:  true,
	}
	c.tracker = tracker.New(cfg.Rule, timers, view.Layout, func(id string) {
		c.ch.Send(c.parent, contracts.HeadingVisible{ID: id}, c.cfg.ParentOrigin)
	})
	return c
}

// Mount starts listening and signals readiness to the parent. Only the first
// call has an effect.
func (c *Child) Mount() {
	if c.mounted {
		return
	}
	c.mounted = true

	opts := channel.Options{Source: c.parent, TargetOrigin: c.cfg.ParentOrigin}
	c.subs = append(c.subs,
		channel.Subscribe(c.ch, func(m contracts.MarkdownContent, _ frame.Event) {
			c.onContent(m.Text)
		}, opts),
		channel.Subscribe(c.ch, func(m contracts.ScrollToHeading, _ frame.Event) {
			c.view.ScrollIntoView(m.ID)
		}, opts),
	)
	c.ch.Send(c.parent, contracts.IframeReady{}, c.cfg.ParentOrigin)
}

// Loading reports whether no content has been committed yet.
func (c *Child) Loading() bool {
	return c.loading
}

// ActiveHeading returns the tracker's current heading id.
func (c *Child) ActiveHeading() string {
	return c.tracker.Active()
}

func (c *Child) onContent(text string) {
	doc, err := c.renderer.Render([]byte(text))
	if err != nil {
		c.log.WithError(err).Error("rendering markdown content")
		return
	}

	c.html = doc.HTML
	c.view.Commit(doc.HTML)
	c.loading = false
	c.tracker.Reset()

	if c.settle != nil {
		c.settle()
	}
	c.settle = c.timers.AfterFunc(c.cfg.SettleDelay, func() {
		c.settle = nil
		c.sendHeight()
		c.tracker.Update()
	})
}

// OnMutation is called for every observed change of the document body.
func (c *Child) OnMutation() {
	c.sendHeight()
}

// OnScroll is called for every scroll event of the scrolling ancestor.
func (c *Child) OnScroll() {
	if c.loading {
		return
	}
	c.tracker.OnScroll()
}

// HeadingClick asks the parent to scroll to a heading clicked in the frame.
func (c *Child) HeadingClick(id string) {
	if id == "" {
		return
	}
	c.ch.Send(c.parent, contracts.ScrollToHeadingFromIframe{ID: id}, c.cfg.ParentOrigin)
}

func (c *Child) sendHeight() {
	if c.loading || c.html == "" {
		return
	}
	c.ch.Send(c.parent, contracts.Resize{Height: c.view.ScrollHeight()}, c.cfg.ParentOrigin)
}

// Close stops timers and listeners.
func (c *Child) Close() {
	if c.settle != nil {
		c.settle()
		c.settle = nil
	}
	c.tracker.Close()
	for _, s := range c.subs {
		s.Close()
	}
	c.subs = nil
}
