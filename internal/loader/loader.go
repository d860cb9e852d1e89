// Package loader fetches markdown source over HTTP and turns it into the text
// and outline the parent frame works with.
package loader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"go-live-docs/internal/contracts"
)

// CacheBustParam is the query parameter that makes every request unique.
const CacheBustParam = "t"

// DefaultMaxBytes caps the size of a markdown source.
const DefaultMaxBytes = 8 << 20

// Document is one successfully loaded markdown source.
type Document struct {
	Text    string
	Outline []contracts.Heading
	// Rev increases with every load request; higher revisions are newer.
	Rev uint64
}

// OutlineFunc extracts the heading outline from markdown source.
type OutlineFunc func(source []byte) []contracts.Heading

// LoadError reports a failed fetch. The previously loaded document is kept.
type LoadError struct {
	URL    string
	Status int
	Err    error
}

func (e *LoadError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("loading %s: unexpected status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("loading %s: %v", e.URL, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Loader fetches markdown from a fixed URL. Load may be called any number of
// times and concurrently; the newest successful load wins.
type Loader struct {
	source   string
	client   *http.Client
	outline  OutlineFunc
	clock    clockwork.Clock
	maxBytes int64
	log      logrus.FieldLogger

	seq atomic.Uint64

	mu      sync.Mutex
	current Document
	loaded  bool
}

// Option configures a Loader.
type Option func(*Loader)

// WithClient sets the HTTP client.
func WithClient(c *http.Client) Option {
	return func(l *Loader) { l.client = c }
}

// WithClock sets the clock used for cache-busting keys.
func WithClock(c clockwork.Clock) Option {
	return func(l *Loader) { l.clock = c }
}

// WithMaxBytes caps the accepted body size.
func WithMaxBytes(n int64) Option {
	return func(l *Loader) { l.maxBytes = n }
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(l *Loader) { l.log = log }
}

// New creates a loader for source, using outline to extract headings.
func New(source string, outline OutlineFunc, opts ...Option) *Loader {
	l := &Loader{
		source:   source,
		client:   http.DefaultClient,
		outline:  outline,
		clock:    clockwork.NewRealClock(),
		maxBytes: DefaultMaxBytes,
		log:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Current returns the newest successfully loaded document.
func (l *Loader) Current() (Document, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current, l.loaded
}

// Load fetches the source, bypassing intermediate caches, and returns the
// parsed document. On failure it returns a *LoadError and leaves Current
// untouched. A load that finishes after a newer one still returns its own
// document but does not replace Current.
func (l *Loader) Load(ctx context.Context) (Document, error) {
	rev := l.seq.Add(1)

	target, err := l.requestURL(rev)
	if err != nil {
		return Document{}, &LoadError{URL: l.source, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Document{}, &LoadError{URL: l.source, Err: err}
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := l.client.Do(req)
	if err != nil {
		return Document{}, &LoadError{URL: l.source, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return Document{}, &LoadError{URL: l.source, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, l.maxBytes+1))
	if err != nil {
		return Document{}, &LoadError{URL: l.source, Err: errors.Wrap(err, "reading body")}
	}
	if int64(len(body)) > l.maxBytes {
		return Document{}, &LoadError{URL: l.source, Err: errors.Errorf("body exceeds %d bytes", l.maxBytes)}
	}

	doc := Document{Text: string(body), Rev: rev}
	if l.outline != nil {
		doc.Outline = l.outline(body)
	}

	l.mu.Lock()
	if !l.loaded || rev > l.current.Rev {
		l.current = doc
		l.loaded = true
	}
	l.mu.Unlock()

	l.log.WithFields(logrus.Fields{
		"url":      l.source,
		"rev":      rev,
		"bytes":    len(body),
		"headings": len(doc.Outline),
	}).Debug("markdown loaded")
	return doc, nil
}

func (l *Loader) requestURL(rev uint64) (string, error) {
	u, err := url.Parse(l.source)
	if err != nil {
		return "", errors.Wrap(err, "parsing source url")
	}
	q := u.Query()
	q.Set(CacheBustParam, strconv.FormatInt(l.clock.Now().UnixMilli(), 10)+"-"+strconv.FormatUint(rev, 10))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
