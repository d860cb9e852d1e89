package loader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-live-docs/internal/contracts"
	"go-live-docs/internal/render"
)

type markdownServer struct {
	mu     sync.Mutex
	body   string
	status int
	keys   []string
}

func (s *markdownServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, r.URL.Query().Get(CacheBustParam))
	if s.status != 0 {
		w.WriteHeader(s.status)
		return
	}
	_, _ = w.Write([]byte(s.body))
}

func (s *markdownServer) set(body string, status int) {
	s.mu.Lock()
	s.body, s.status = body, status
	s.mu.Unlock()
}

func newLoader(t *testing.T, md *markdownServer) *Loader {
	t.Helper()
	srv := httptest.NewServer(md)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/sample.md", render.NewRenderer(render.Options{}).Outline,
		WithClient(srv.Client()), WithClock(clockwork.NewFakeClock()))
}

func TestLoad_TextAndOutline(t *testing.T) {
	md := &markdownServer{body: "# Title\n\n## Sub\n\nbody"}
	l := newLoader(t, md)

	doc, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "# Title\n\n## Sub\n\nbody", doc.Text)
	assert.Equal(t, []contracts.Heading{
		{ID: "title", Text: "Title", Level: 1},
		{ID: "sub", Text: "Sub", Level: 2},
	}, doc.Outline)

	cur, ok := l.Current()
	require.True(t, ok)
	assert.Equal(t, doc, cur)
}

func TestLoad_CacheBustingKeysAreDistinct(t *testing.T) {
	md := &markdownServer{body: "# a"}
	l := newLoader(t, md)

	for i := 0; i < 5; i++ {
		_, err := l.Load(context.Background())
		require.NoError(t, err)
	}

	seen := map[string]bool{}
	for _, k := range md.keys {
		require.NotEmpty(t, k)
		assert.False(t, seen[k], "key %q reused", k)
		seen[k] = true
	}
}

func TestLoad_FailurePreservesPrevious(t *testing.T) {
	md := &markdownServer{body: "# First"}
	l := newLoader(t, md)

	first, err := l.Load(context.Background())
	require.NoError(t, err)

	md.set("", http.StatusNotFound)
	_, err = l.Load(context.Background())
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, http.StatusNotFound, loadErr.Status)

	cur, ok := l.Current()
	require.True(t, ok)
	assert.Equal(t, first, cur)
}

func TestLoad_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	l := New(url+"/sample.md", nil)
	_, err := l.Load(context.Background())

	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Zero(t, loadErr.Status)
	assert.NotNil(t, loadErr.Unwrap())

	_, ok := l.Current()
	assert.False(t, ok)
}

func TestLoad_BodyLimit(t *testing.T) {
	md := &markdownServer{body: "# far too long"}
	srv := httptest.NewServer(md)
	defer srv.Close()

	l := New(srv.URL, nil, WithMaxBytes(4))
	_, err := l.Load(context.Background())
	var loadErr *LoadError
	assert.ErrorAs(t, err, &loadErr)
}

func TestLoad_LastSuccessWins(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			<-release
			_, _ = w.Write([]byte("# Old"))
			return
		}
		_, _ = w.Write([]byte("# New"))
	}))
	defer srv.Close()

	l := New(srv.URL, render.NewRenderer(render.Options{}).Outline)

	oldDone := make(chan Document)
	go func() {
		doc, _ := l.Load(context.Background())
		oldDone <- doc
	}()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)

	newer, err := l.Load(context.Background())
	require.NoError(t, err)
	close(release)
	older := <-oldDone

	assert.Less(t, older.Rev, newer.Rev)
	cur, _ := l.Current()
	assert.Equal(t, "# New", cur.Text)
}
