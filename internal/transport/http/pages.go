package httpserver

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"strings"
)

//go:embed static
var staticEmbed embed.FS

//go:embed templates/*.html
var templateFS embed.FS

var staticFS, _ = fs.Sub(staticEmbed, "static")

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type parentPage struct {
	Session  string
	FrameSrc string
}

type childPage struct {
	Session string
}

// handleParentPage opens a new viewer session and serves the page embedding
// its frame.
func (s *Server) handleParentPage(w http.ResponseWriter, r *http.Request) {
	id := s.hub.NewSession()
	src := strings.TrimRight(s.opts.ChildBaseURL, "/") + "/view?session=" + url.QueryEscape(id)

	w.Header().Set("Cache-Control", "no-store")
	s.renderPage(w, "parent.html", parentPage{Session: id, FrameSrc: src})
}

// handleChildPage serves the document shown inside the frame.
func (s *Server) handleChildPage(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("session")
	if !s.hub.Exists(id) {
		http.Error(w, ErrUnknownSession.Error(), http.StatusNotFound)
		return
	}
	s.renderPage(w, "child.html", childPage{Session: id})
}

func (s *Server) renderPage(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pages.ExecuteTemplate(w, name, data); err != nil {
		s.log.WithError(err).WithField("page", name).Error("rendering page")
	}
}
