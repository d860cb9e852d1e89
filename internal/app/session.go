package app

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"

	"go-live-docs/internal/channel"
	"go-live-docs/internal/contracts"
	"go-live-docs/internal/frame"
	"go-live-docs/internal/framesync"
	"go-live-docs/internal/loader"
	httptransport "go-live-docs/internal/transport/http"
)

// Session is one open viewer: a parent page and the frame it embeds. All of
// its state lives on its loop.
type Session struct {
	id   string
	opts Options
	log  logrus.FieldLogger

	loop   *frame.Loop
	cancel context.CancelFunc
	done   chan struct{}

	parentWin *frame.LocalWindow
	childWin  *frame.LocalWindow

	geo       geometry
	parentDOM *parentDOM
	childDOM  *childDOM
	parent    *framesync.Parent
	child     *framesync.Child
	renderer  framesync.Renderer

	// Touched from the transport goroutines.
	mu        sync.Mutex
	attached  int
	idleSince int64
}

func newSession(id string, opts Options, renderer framesync.Renderer, log logrus.FieldLogger) *Session {
	loop := frame.NewLoop(opts.Clock, opts.FrameInterval)
	s := &Session{
		id:        id,
		opts:      opts,
		log:       log.WithField("session", id),
		loop:      loop,
		done:      make(chan struct{}),
		parentWin: frame.NewLocalWindow(loop, ""),
		childWin:  frame.NewLocalWindow(loop, ""),
		renderer:  renderer,
		idleSince: opts.Clock.Now().UnixNano(),
	}
	s.parentDOM = &parentDOM{geo: &s.geo}
	s.parent = framesync.NewParent(channel.New(s.parentWin, s.log), s.parentDOM, framesync.ParentConfig{
		ChildOrigin:  opts.ChildOrigin,
		HeaderOffset: opts.HeaderOffset,
	}, s.log)
	return s
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

func (s *Session) start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go func() {
		defer close(s.done)
		s.loop.Run(ctx)
	}()
}

// Close stops the session loop after tearing down both controllers.
func (s *Session) Close() {
	s.loop.Post(func() {
		s.unmountChild()
		s.parent.Close()
		s.cancel()
	})
	<-s.done
}

// applyLoad installs a load result on the loop.
func (s *Session) applyLoad(doc loader.Document, err error) {
	s.loop.Post(func() {
		s.parent.ApplyLoad(doc, err)
	})
}

// idle reports since when no socket has been attached, or false while one is.
func (s *Session) idle() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idleSince, s.attached == 0
}

func (s *Session) trackAttach(delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attached += delta
	if s.attached == 0 {
		s.idleSince = s.opts.Clock.Now().UnixNano()
	}
}

// attach connects a browser frame to the session.
func (s *Session) attach(role httptransport.Role, peer httptransport.Peer, origin string) httptransport.FrameConn {
	s.trackAttach(1)
	conn := &frameConn{session: s, role: role, peer: peer}

	s.loop.Post(func() {
		switch role {
		case httptransport.RoleParent:
			s.parentWin.SetOrigin(origin)
			s.parentDOM.attach(peer)
		case httptransport.RoleChild:
			s.childWin.SetOrigin(origin)
			s.mountChild(peer)
		}
	})
	return conn
}

// mountChild plays the part of a freshly loaded frame document.
func (s *Session) mountChild(peer httptransport.Peer) {
	s.unmountChild()

	s.childDOM = &childDOM{geo: &s.geo, peer: peer}
	s.child = framesync.NewChild(channel.New(s.childWin, s.log), s.parentWin, s.childDOM, s.renderer, s.loop,
		framesync.ChildConfig{
			ParentOrigin: s.opts.ParentOrigin,
			SettleDelay:  s.opts.SettleDelay,
			Rule:         s.opts.Rule,
		}, s.log)

	s.parent.AttachFrame(s.childWin, &sameOriginAccess{parent: s.parentWin, child: s.childWin, geo: &s.geo})
	s.child.Mount()
}

func (s *Session) unmountChild() {
	if s.child == nil {
		return
	}
	s.child.Close()
	s.parent.DetachFrame()
	s.child = nil
	s.childDOM = nil
	s.geo.headings = nil
	s.geo.scrollHeight = 0
}

// frameConn routes one socket's bridge messages onto the session loop.
type frameConn struct {
	session *Session
	role    httptransport.Role
	peer    httptransport.Peer
	once    sync.Once
}

func (c *frameConn) Receive(raw []byte) {
	var envelope contracts.IncomingMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return
	}

	s := c.session
	switch c.role {
	case httptransport.RoleParent:
		switch envelope.Type {
		case contracts.BridgeTypeViewport:
			var msg contracts.ViewportMessage
			if err := json.Unmarshal(raw, &msg); err != nil {
				return
			}
			s.loop.Post(func() {
				s.geo.viewport = msg
				if s.child != nil {
					s.child.OnScroll()
				}
			})
		case contracts.BridgeTypeTocClick:
			var msg contracts.TocClickMessage
			if err := json.Unmarshal(raw, &msg); err != nil || msg.ID == "" {
				return
			}
			s.loop.Post(func() {
				s.parent.ScrollToHeading(msg.ID)
			})
		}

	case httptransport.RoleChild:
		switch envelope.Type {
		case contracts.BridgeTypeLayout:
			var msg contracts.LayoutMessage
			if err := json.Unmarshal(raw, &msg); err != nil {
				return
			}
			s.loop.Post(func() {
				if s.childDOM == nil || s.childDOM.peer != c.peer {
					return
				}
				s.geo.scrollHeight = msg.ScrollHeight
				s.geo.headings = msg.Headings
				s.child.OnMutation()
			})
		case contracts.BridgeTypeHeadingClick:
			var msg contracts.HeadingClickMessage
			if err := json.Unmarshal(raw, &msg); err != nil {
				return
			}
			s.loop.Post(func() {
				if s.childDOM == nil || s.childDOM.peer != c.peer {
					return
				}
				s.child.HeadingClick(msg.ID)
			})
		}
	}
}

func (c *frameConn) Detach() {
	c.once.Do(func() {
		s := c.session
		s.trackAttach(-1)
		s.loop.Post(func() {
			switch c.role {
			case httptransport.RoleParent:
				s.parentDOM.detach(c.peer)
			case httptransport.RoleChild:
				if s.childDOM != nil && s.childDOM.peer == c.peer {
					s.unmountChild()
				}
			}
		})
	})
}
