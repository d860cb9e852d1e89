// Package app wires viewer sessions: one event loop per open viewer running
// the frame sync controllers, fed by the content loader and driven by the
// browser frames over their sockets.
package app

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"go-live-docs/internal/config"
	"go-live-docs/internal/contracts"
	"go-live-docs/internal/framesync"
	"go-live-docs/internal/loader"
	"go-live-docs/internal/source"
	"go-live-docs/internal/tracker"
	httptransport "go-live-docs/internal/transport/http"
)

// DefaultIdleTimeout is how long a session without sockets is kept.
const DefaultIdleTimeout = time.Minute

// Options configure the sessions of a Manager.
type Options struct {
	ParentOrigin  string
	ChildOrigin   string
	HeaderOffset  float64
	SettleDelay   time.Duration
	FrameInterval time.Duration
	Rule          tracker.Rule
	IdleTimeout   time.Duration
	Clock         clockwork.Clock
}

// OptionsFromConfig maps the configuration onto session options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		ParentOrigin:  cfg.Frame.ParentOrigin,
		ChildOrigin:   cfg.Frame.ChildOrigin,
		HeaderOffset:  cfg.Scroll.HeaderOffset,
		SettleDelay:   cfg.Tracker.SettleDelay,
		FrameInterval: cfg.Tracker.FrameInterval,
		Rule: tracker.Rule{
			SweetSpot:       cfg.Tracker.SweetSpot,
			IdealTop:        cfg.Tracker.IdealTop,
			IdealBottom:     cfg.Tracker.IdealBottom,
			LowerBound:      cfg.Tracker.LowerBound,
			BottomTolerance: cfg.Tracker.BottomTolerance,
		},
	}
}

// Loader fetches the markdown source.
type Loader interface {
	Load(ctx context.Context) (loader.Document, error)
	Current() (loader.Document, bool)
}

// Manager owns the viewer sessions and fans content loads out to them.
type Manager struct {
	opts     Options
	src      source.Source
	loader   Loader
	renderer framesync.Renderer
	log      logrus.FieldLogger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	sessions map[string]*Session
	unsub    func()
	loading  bool
	again    bool
}

// NewManager creates a manager. Sessions render with renderer and load
// through l; src change notifications trigger reloads once Start is called.
func NewManager(opts Options, src source.Source, l Loader, renderer framesync.Renderer, log logrus.FieldLogger) *Manager {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.HeaderOffset == 0 {
		opts.HeaderOffset = framesync.DefaultHeaderOffset
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		opts:     opts,
		src:      src,
		loader:   l,
		renderer: renderer,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*Session),
	}
}

// Start subscribes to content changes and begins expiring idle sessions.
func (m *Manager) Start() {
	m.mu.Lock()
	if m.src != nil && m.unsub == nil {
		m.unsub = m.src.Subscribe(func(change contracts.ContentChange) {
			m.log.WithFields(logrus.Fields{"path": change.Path, "kind": change.Kind}).Debug("content changed")
			m.Reload()
		})
	}
	m.mu.Unlock()

	m.wg.Add(1)
	go m.reap()
}

// Close stops every session.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.unsub != nil {
		m.unsub()
		m.unsub = nil
	}
	m.mu.Unlock()

	m.cancel()
	m.wg.Wait()

	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}

// NewSession implements httptransport.SessionHub.
func (m *Manager) NewSession() string {
	id := uuid.NewString()
	s := newSession(id, m.opts, m.renderer, m.log)
	s.start(context.Background())

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	if doc, ok := m.loader.Current(); ok {
		s.applyLoad(doc, nil)
	} else {
		m.Reload()
	}
	return id
}

// Exists implements httptransport.SessionHub.
func (m *Manager) Exists(id string) bool {
	_, ok := m.Session(id)
	return ok
}

// Session returns the session with the given id.
func (m *Manager) Session(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Attach implements httptransport.SessionHub.
func (m *Manager) Attach(id string, role httptransport.Role, peer httptransport.Peer, origin string) (httptransport.FrameConn, error) {
	s, ok := m.Session(id)
	if !ok {
		return nil, httptransport.ErrUnknownSession
	}
	return s.attach(role, peer, origin), nil
}

// Reload fetches the content again and installs it in every session. Calls
// made while a load is running collapse into one follow-up load.
func (m *Manager) Reload() {
	m.mu.Lock()
	if m.loading {
		m.again = true
		m.mu.Unlock()
		return
	}
	m.loading = true
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for {
			doc, err := m.loader.Load(m.ctx)
			if m.ctx.Err() != nil {
				return
			}
			m.broadcast(doc, err)

			m.mu.Lock()
			if !m.again {
				m.loading = false
				m.mu.Unlock()
				return
			}
			m.again = false
			m.mu.Unlock()
		}
	}()
}

func (m *Manager) broadcast(doc loader.Document, err error) {
	for _, s := range m.snapshot() {
		s.applyLoad(doc, err)
	}
}

func (m *Manager) snapshot() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}

// reap closes sessions that have had no socket for the idle timeout.
func (m *Manager) reap() {
	defer m.wg.Done()

	ticker := m.opts.Clock.NewTicker(m.opts.IdleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.Chan():
			m.expire()
		}
	}
}

func (m *Manager) expire() {
	cutoff := m.opts.Clock.Now().Add(-m.opts.IdleTimeout).UnixNano()

	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		if since, idle := s.idle(); idle && since <= cutoff {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		m.log.WithField("session", s.ID()).Debug("closing idle session")
		s.Close()
	}
}

// ScrollToHeading scrolls every open viewer to heading id, as if its table
// of contents entry had been clicked.
func (m *Manager) ScrollToHeading(id string) {
	for _, s := range m.snapshot() {
		s.loop.Post(func() {
			s.parent.ScrollToHeading(id)
		})
	}
}
