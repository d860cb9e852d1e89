package app

import (
	"context"
	"net"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"go-live-docs/internal/config"
	"go-live-docs/internal/loader"
	"go-live-docs/internal/render"
	"go-live-docs/internal/source"
	httptransport "go-live-docs/internal/transport/http"
)

// LiveDocs is a coordinator between the markdown source, the viewer sessions
// and HTTP delivery.
type LiveDocs struct {
	cfg *config.Config
	log logrus.FieldLogger

	renderer *render.Renderer
	src      source.Source
	buffer   *source.Buffer
	file     *source.File
	manager  *Manager
	server   *httptransport.Server

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	watchWG sync.WaitGroup
}

// NewLiveDocs assembles the viewer. With a content path the file is served
// and watched; without one the content comes from PublishSource.
func NewLiveDocs(cfg *config.Config, log logrus.FieldLogger) (*LiveDocs, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	clock := clockwork.NewRealClock()

	d := &LiveDocs{
		cfg: cfg,
		log: log,
		renderer: render.NewRenderer(render.Options{
			Sanitize:  cfg.Render.Sanitize,
			CodeStyle: cfg.Render.CodeStyle,
		}),
	}

	if cfg.Content.Path != "" {
		f, err := source.NewFile(cfg.Content.Path, cfg.Content.Debounce, clock, log.WithField("component", "source"))
		if err != nil {
			return nil, err
		}
		d.file = f
		d.src = f
	} else {
		d.buffer = source.NewBuffer(clock)
		d.src = d.buffer
	}

	l := loader.New(contentURL(cfg), d.renderer.Outline,
		loader.WithClock(clock),
		loader.WithMaxBytes(cfg.Content.MaxBytes),
		loader.WithLogger(log.WithField("component", "loader")),
	)

	opts := OptionsFromConfig(cfg)
	opts.Clock = clock
	d.manager = NewManager(opts, d.src, l, &sourceRenderer{r: d.renderer, src: d.src}, log)

	d.server = httptransport.NewServer(httptransport.Options{
		Addr:            cfg.Server.Addr,
		ContentRoute:    cfg.Content.Route,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		ChildBaseURL:    cfg.Frame.ChildBaseURL,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		Assets:          d.renderer,
	}, d.manager, d.src, d.renderer.WriteCodeCSS, log.WithField("component", "http"))

	return d, nil
}

// URL returns the browser URL of the viewer.
func (d *LiveDocs) URL() string {
	return d.server.URL()
}

// Start begins serving. It is a no-op on a started viewer.
func (d *LiveDocs) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return nil
	}

	if err := d.server.Start(); err != nil {
		return err
	}
	d.manager.Start()

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	if d.file != nil {
		d.watchWG.Add(1)
		go func() {
			defer d.watchWG.Done()
			if err := d.file.Watch(ctx); err != nil {
				d.log.WithError(err).Error("watching markdown file stopped")
			}
		}()
	}

	d.started = true
	return nil
}

// PublishSource starts the viewer on first call and installs new markdown
// from an editor buffer.
func (d *LiveDocs) PublishSource(text []byte, path string) error {
	if d.buffer == nil {
		return errors.New("content is served from a file")
	}
	if err := d.Start(); err != nil {
		return err
	}
	d.buffer.Publish(text, path)
	return nil
}

// HeadingAt returns the id of the section containing the 1-based source
// line, empty when the line precedes every heading.
func (d *LiveDocs) HeadingAt(line int) (string, error) {
	text, err := d.src.Read()
	if errors.Is(err, source.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	h, ok := d.renderer.HeadingAt(text, line)
	if !ok {
		return "", nil
	}
	return h.ID, nil
}

// ScrollToHeading scrolls every open viewer to heading id.
func (d *LiveDocs) ScrollToHeading(id string) {
	d.manager.ScrollToHeading(id)
}

// Stop shuts the server and every session down.
func (d *LiveDocs) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.started {
		return nil
	}
	d.started = false

	d.cancel()
	d.watchWG.Wait()
	err := d.server.Stop()
	d.manager.Close()
	return err
}

// sourceRenderer resolves relative asset paths against the current source.
type sourceRenderer struct {
	r   *render.Renderer
	src source.Source
}

func (s *sourceRenderer) Render(text []byte) (render.Document, error) {
	return s.r.RenderWithSourcePath(text, s.src.Path())
}

// contentURL is where the loader fetches the markdown: the configured URL or
// the server's own content route.
func contentURL(cfg *config.Config) string {
	if cfg.Content.URL != "" {
		return cfg.Content.URL
	}
	host, port, err := net.SplitHostPort(cfg.Server.Addr)
	if err != nil {
		return "http://" + cfg.Server.Addr + cfg.Content.Route
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port) + cfg.Content.Route
}
