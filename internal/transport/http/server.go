// Package httpserver serves the viewer pages, the markdown source and the
// frame sockets.
package httpserver

import (
	"context"
	"encoding/base64"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"go-live-docs/internal/render"
	"go-live-docs/internal/source"
)

// Role names the frame a socket belongs to.
type Role string

const (
	RoleParent Role = "parent"
	RoleChild  Role = "child"
)

// ErrUnknownSession is returned when a socket names a session that does not
// exist.
var ErrUnknownSession = errors.New("unknown session")

// Peer is the write side of a frame socket. Send never blocks.
type Peer interface {
	Send(v any)
}

// FrameConn is the session side of an attached frame socket.
type FrameConn interface {
	// Receive handles one raw bridge message from the browser.
	Receive(raw []byte)
	// Detach is called once when the socket closes.
	Detach()
}

// SessionHub owns the viewer sessions.
type SessionHub interface {
	NewSession() string
	Exists(id string) bool
	Attach(id string, role Role, peer Peer, origin string) (FrameConn, error)
}

// ContentSource provides the markdown served on the content route.
type ContentSource interface {
	Read() ([]byte, error)
}

// AssetAllowlist decides which local files the asset route may serve.
type AssetAllowlist interface {
	AssetAllowed(path string) bool
}

// Options configure a Server.
type Options struct {
	Addr string
	// ContentRoute serves the raw markdown.
	ContentRoute string
	// AllowedOrigins may fetch the markdown and open frame sockets. Empty
	// allows every origin.
	AllowedOrigins []string
	// ChildBaseURL prefixes the frame src, used to serve the embedded
	// document from another origin.
	ChildBaseURL    string
	ShutdownTimeout time.Duration
	// Assets limits the asset route to files the current document
	// references. Nil serves no local files.
	Assets AssetAllowlist
}

// Server coordinates HTTP serving and the frame sockets.
type Server struct {
	opts    Options
	hub     SessionHub
	content ContentSource
	codeCSS func(io.Writer) error
	log     logrus.FieldLogger

	router   chi.Router
	upgrader websocket.Upgrader

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// NewServer creates a server; codeCSS writes the syntax highlighting
// stylesheet.
func NewServer(opts Options, hub SessionHub, content ContentSource, codeCSS func(io.Writer) error, log logrus.FieldLogger) *Server {
	if opts.ContentRoute == "" {
		opts.ContentRoute = "/sample.md"
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 2 * time.Second
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	s := &Server{
		opts:    opts,
		hub:     hub,
		content: content,
		codeCSS: codeCSS,
		log:     log,
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleParentPage)
	r.Get("/view", s.handleChildPage)
	r.Get("/assets/code.css", s.handleCodeCSS)
	r.Handle("/assets/*", http.StripPrefix("/assets/", http.FileServer(http.FS(staticFS))))
	r.Get(render.AssetPrefix+"*", s.handleAsset)
	r.Get("/ws/parent", s.handleSocket(RoleParent))
	r.Get("/ws/child", s.handleSocket(RoleChild))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Group(func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.opts.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
			MaxAge:         300,
		}))
		r.Get(s.opts.ContentRoute, s.handleContent)
		r.Options(s.opts.ContentRoute, func(w http.ResponseWriter, r *http.Request) {})
	})

	return r
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured address and serves in the background.
// Calling Start on a running server does nothing.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		return nil
	}

	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return errors.Wrapf(err, "listening on %s", s.opts.Addr)
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	srv := s.server
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("http server stopped")
		}
	}()
	s.log.WithField("url", s.urlLocked()).Info("serving")
	return nil
}

// URL returns the browser URL of the viewer.
func (s *Server) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.urlLocked()
}

func (s *Server) urlLocked() string {
	if s.listener != nil {
		return "http://" + s.listener.Addr().String()
	}
	return "http://" + s.opts.Addr
}

// ContentURL returns the absolute URL of the markdown source.
func (s *Server) ContentURL() string {
	return s.URL() + s.opts.ContentRoute
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.mu.Lock()
	srv := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}

// handleContent serves the raw markdown. It must never be cached: the loader
// fetches it again on every change.
func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	data, err := s.content.Read()
	if errors.Is(err, source.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		s.log.WithError(err).Error("reading markdown source")
		http.Error(w, "failed to read markdown", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(data)
}

func (s *Server) handleCodeCSS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	if s.codeCSS == nil {
		return
	}
	if err := s.codeCSS(w); err != nil {
		s.log.WithError(err).Warn("writing code stylesheet")
	}
}

// handleAsset serves local markdown assets via encoded absolute paths. Only
// files on the asset allowlist are served.
func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, render.AssetPrefix)
	if id == "" {
		http.NotFound(w, r)
		return
	}

	decoded, err := base64.RawURLEncoding.DecodeString(id)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	assetPath := filepath.Clean(string(decoded))
	if assetPath == "." || !filepath.IsAbs(assetPath) {
		http.NotFound(w, r)
		return
	}
	if s.opts.Assets == nil || !s.opts.Assets.AssetAllowed(assetPath) {
		http.NotFound(w, r)
		return
	}

	info, err := os.Stat(assetPath)
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	http.ServeFile(w, r, assetPath)
}

// checkOrigin admits same-host sockets and the configured origins.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.opts.AllowedOrigins) == 0 {
		return true
	}
	if origin == "http://"+r.Host || origin == "https://"+r.Host {
		return true
	}
	for _, allowed := range s.opts.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// requestOrigin is the origin of the document that opened the request.
func requestOrigin(r *http.Request) string {
	if origin := r.Header.Get("Origin"); origin != "" {
		return origin
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
