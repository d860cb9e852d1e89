// Package framesync runs both ends of the parent/child synchronization
// protocol: the ready handshake, content delivery, height reporting, active
// heading relay and scroll routing.
package framesync

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"go-live-docs/internal/channel"
	"go-live-docs/internal/contracts"
	"go-live-docs/internal/frame"
	"go-live-docs/internal/loader"
)

// DefaultHeaderOffset keeps scrolled-to headings clear of a fixed header.
const DefaultHeaderOffset = 100

// ParentView is the parent page's DOM as seen by the controller.
type ParentView interface {
	SetOutline(outline []contracts.Heading)
	SetActive(id string)
	SetFrameHeight(height float64)
	// FrameOffsetTop returns the document-relative top of the frame element.
	FrameOffsetTop() float64
	ScrollWindowTo(top float64, smooth bool)
	ShowError(err error)
}

// FrameAccess reads the embedded document directly. It returns
// frame.ErrCrossOrigin when the documents do not share an origin.
type FrameAccess interface {
	ElementOffsetTop(id string) (top float64, found bool, err error)
}

// ParentConfig configures the parent controller.
type ParentConfig struct {
	// ChildOrigin filters inbound messages and addresses outbound ones.
	ChildOrigin  string
	HeaderOffset float64
}

// Parent is the controller of the page embedding the frame. All methods must
// be called from the session loop.
type Parent struct {
	cfg  ParentConfig
	ch   *channel.Channel
	view ParentView
	log  logrus.FieldLogger

	child  frame.Window
	access FrameAccess
	sub    *channel.MultiSubscription

	doc    loader.Document
	loaded bool

	// childReady is set once the attached frame has sent iframe-ready.
	childReady bool
	// pendingReady records a ready signal that arrived before content.
	pendingReady bool
}

// NewParent creates a parent controller sending and listening on ch.
func NewParent(ch *channel.Channel, view ParentView, cfg ParentConfig, log logrus.FieldLogger) *Parent {
	if cfg.ChildOrigin == "" {
		cfg.ChildOrigin = frame.AnyOrigin
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Parent{cfg: cfg, ch: ch, view: view, log: log}
}

// AttachFrame points the controller at a newly mounted frame. Messages are
// only accepted from that frame. access may be nil when the frame's document
// cannot be reached directly.
func (p *Parent) AttachFrame(child frame.Window, access FrameAccess) {
	p.DetachFrame()

	p.child = child
	p.access = access
	p.sub = channel.SubscribeMany(p.ch, p.handlers(), channel.Options{
		Source:       child,
		TargetOrigin: p.cfg.ChildOrigin,
	})
}

// DetachFrame forgets the current frame.
func (p *Parent) DetachFrame() {
	if p.sub != nil {
		p.sub.Close()
		p.sub = nil
	}
	p.child = nil
	p.access = nil
	p.childReady = false
	p.pendingReady = false
}

// Close releases the subscription.
func (p *Parent) Close() {
	p.DetachFrame()
}

func (p *Parent) handlers() channel.Handlers {
	return channel.Handlers{
		IframeReady: func(contracts.IframeReady, frame.Event) {
			p.onReady()
		},
		Resize: func(m contracts.Resize, _ frame.Event) {
			p.view.SetFrameHeight(m.Height)
		},
		HeadingVisible: func(m contracts.HeadingVisible, _ frame.Event) {
			p.view.SetActive(m.ID)
		},
		ScrollToHeadingFromIframe: func(m contracts.ScrollToHeadingFromIframe, _ frame.Event) {
			p.ScrollToHeading(m.ID)
		},
	}
}

func (p *Parent) onReady() {
	p.childReady = true
	if !p.loaded {
		p.pendingReady = true
		p.log.Debug("frame ready before content, deferring delivery")
		return
	}
	p.sendContent()
}

// Loaded reports whether content has been loaded.
func (p *Parent) Loaded() bool {
	return p.loaded
}

// ApplyLoad installs the result of a content load. Results older than the
// installed document are ignored. A failure keeps the previous document and
// shows the error.
func (p *Parent) ApplyLoad(doc loader.Document, err error) {
	if err != nil {
		p.log.WithError(err).Warn("markdown load failed")
		p.view.ShowError(err)
		return
	}
	if p.loaded && doc.Rev <= p.doc.Rev {
		return
	}

	p.doc = doc
	p.loaded = true
	p.view.SetOutline(doc.Outline)

	switch {
	case p.pendingReady:
		p.pendingReady = false
		p.sendContent()
	case p.childReady:
		p.sendContent()
	}
}

func (p *Parent) sendContent() {
	p.ch.Send(p.child, contracts.MarkdownContent{Text: p.doc.Text}, p.cfg.ChildOrigin)
}

// ScrollToHeading brings heading id into view. When the frame's document is
// reachable the outer page is scrolled directly; otherwise the frame is asked
// to scroll itself.
func (p *Parent) ScrollToHeading(id string) {
	if p.child == nil {
		return
	}

	top, found, err := p.elementOffset(id)
	if err != nil {
		p.log.WithError(err).WithField("id", id).Debug("direct frame access failed, asking frame to scroll")
		p.ch.Send(p.child, contracts.ScrollToHeading{ID: id}, p.cfg.ChildOrigin)
		return
	}
	if !found {
		return
	}

	target := p.view.FrameOffsetTop() + top - p.cfg.HeaderOffset
	if target < 0 {
		target = 0
	}
	p.view.ScrollWindowTo(target, true)
}

func (p *Parent) elementOffset(id string) (top float64, found bool, err error) {
	if p.access == nil {
		return 0, false, frame.ErrCrossOrigin
	}
	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrap(frame.ErrCrossOrigin, fmt.Sprint(r))
		}
	}()
	return p.access.ElementOffsetTop(id)
}
