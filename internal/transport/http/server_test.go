package httpserver

import (
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-live-docs/internal/contracts"
	"go-live-docs/internal/source"
)

type fakeConn struct {
	mu       sync.Mutex
	received [][]byte
	detached bool
}

func (c *fakeConn) Receive(raw []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.received = append(c.received, append([]byte(nil), raw...))
}

func (c *fakeConn) Detach() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.detached = true
}

func (c *fakeConn) snapshot() ([][]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.received...), c.detached
}

type attachment struct {
	role   Role
	origin string
	peer   Peer
	conn   *fakeConn
}

type fakeHub struct {
	mu       sync.Mutex
	sessions map[string]bool
	attached []*attachment
}

func newFakeHub() *fakeHub {
	return &fakeHub{sessions: map[string]bool{"s1": true}}
}

func (h *fakeHub) NewSession() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions["new"] = true
	return "new"
}

func (h *fakeHub) Exists(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sessions[id]
}

func (h *fakeHub) Attach(id string, role Role, peer Peer, origin string) (FrameConn, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.sessions[id] {
		return nil, ErrUnknownSession
	}
	a := &attachment{role: role, origin: origin, peer: peer, conn: &fakeConn{}}
	h.attached = append(h.attached, a)
	return a.conn, nil
}

func (h *fakeHub) last() *attachment {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.attached) == 0 {
		return nil
	}
	return h.attached[len(h.attached)-1]
}

func newTestServer(t *testing.T, opts Options, content ContentSource) (*fakeHub, *httptest.Server) {
	t.Helper()
	log, _ := test.NewNullLogger()
	hub := newFakeHub()
	css := func(w io.Writer) error {
		_, err := io.WriteString(w, ".chroma { color: red }")
		return err
	}
	s := NewServer(opts, hub, content, css, log)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return hub, ts
}

func bufferWith(text string) *source.Buffer {
	b := source.NewBuffer(nil)
	b.Publish([]byte(text), "/tmp/doc.md")
	return b
}

func TestParentPage_CreatesSessionAndEmbedsFrame(t *testing.T) {
	_, ts := newTestServer(t, Options{ChildBaseURL: "http://frames.local/"}, bufferWith("# Hi"))

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	require.NoError(t, err)
	session, _ := doc.Find("body").Attr("data-session")
	assert.Equal(t, "new", session)
	src, _ := doc.Find("iframe#doc-frame").Attr("src")
	assert.Equal(t, "http://frames.local/view?session=new", src)
	assert.Equal(t, 1, doc.Find(`script[src="/assets/bridge.js"]`).Length())
}

func TestChildPage(t *testing.T) {
	_, ts := newTestServer(t, Options{}, bufferWith("# Hi"))

	resp, err := http.Get(ts.URL + "/view?session=s1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	require.NoError(t, err)
	role, _ := doc.Find("body").Attr("data-role")
	assert.Equal(t, "child", role)
	assert.Equal(t, 1, doc.Find("article#content").Length())

	resp, err = http.Get(ts.URL + "/view?session=nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestContentRoute(t *testing.T) {
	_, ts := newTestServer(t, Options{}, bufferWith("# Title\n\n## Sub"))

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/sample.md", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://docs.example")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "# Title\n\n## Sub", string(body))
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestContentRoute_CustomRouteAndMissingContent(t *testing.T) {
	_, ts := newTestServer(t, Options{ContentRoute: "/docs/readme.md"}, source.NewBuffer(nil))

	resp, err := http.Get(ts.URL + "/docs/readme.md")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestContentRoute_RestrictedCORS(t *testing.T) {
	_, ts := newTestServer(t, Options{AllowedOrigins: []string{"http://docs.example"}}, bufferWith("x"))

	for origin, want := range map[string]string{
		"http://docs.example": "http://docs.example",
		"http://evil.example": "",
	} {
		req, err := http.NewRequest(http.MethodGet, ts.URL+"/sample.md", nil)
		require.NoError(t, err)
		req.Header.Set("Origin", origin)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, want, resp.Header.Get("Access-Control-Allow-Origin"), origin)
	}
}

func TestAssets(t *testing.T) {
	_, ts := newTestServer(t, Options{}, bufferWith("x"))

	for path, want := range map[string]string{
		"/assets/bridge.js":  "scroll-window",
		"/assets/viewer.css": "#doc-frame",
		"/assets/code.css":   ".chroma",
		"/healthz":           `"ok"`,
	} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Contains(t, string(body), want, path)
	}
}

type allowlist map[string]bool

func (a allowlist) AssetAllowed(path string) bool {
	return a[path]
}

func TestLocalAsset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diagram.png")
	require.NoError(t, os.WriteFile(path, []byte("png-bytes"), 0o644))
	_, ts := newTestServer(t, Options{Assets: allowlist{path: true}}, bufferWith("x"))

	resp, err := http.Get(ts.URL + "/@mdfs/" + base64.RawURLEncoding.EncodeToString([]byte(path)))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "png-bytes", string(body))

	for _, id := range []string{"!!!", base64.RawURLEncoding.EncodeToString([]byte("relative.png"))} {
		resp, err := http.Get(ts.URL + "/@mdfs/" + id)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, id)
	}
}

func TestLocalAsset_UnreferencedFileNotServed(t *testing.T) {
	dir := t.TempDir()
	listed := filepath.Join(dir, "diagram.png")
	secret := filepath.Join(dir, "secret.txt")
	require.NoError(t, os.WriteFile(listed, []byte("png-bytes"), 0o644))
	require.NoError(t, os.WriteFile(secret, []byte("secret"), 0o600))

	for name, opts := range map[string]Options{
		"allowlist": {Assets: allowlist{listed: true}},
		"none":      {},
	} {
		_, ts := newTestServer(t, opts, bufferWith("x"))
		resp, err := http.Get(ts.URL + "/@mdfs/" + base64.RawURLEncoding.EncodeToString([]byte(secret)))
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, name)
		assert.NotContains(t, string(body), "secret", name)
	}
}

func wsURL(ts *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + path
}

func TestSocket_RoundTrip(t *testing.T) {
	hub, ts := newTestServer(t, Options{}, bufferWith("x"))

	header := http.Header{"Origin": []string{"http://docs.local"}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "/ws/parent?session=s1"), header)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.last() != nil }, time.Second, time.Millisecond)
	a := hub.last()
	assert.Equal(t, RoleParent, a.role)
	assert.Equal(t, "http://docs.local", a.origin)

	a.peer.Send(contracts.ActiveMessage{Type: contracts.BridgeTypeActive, ID: "sub"})
	var got contracts.ActiveMessage
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, contracts.ActiveMessage{Type: contracts.BridgeTypeActive, ID: "sub"}, got)

	require.NoError(t, conn.WriteJSON(contracts.TocClickMessage{Type: contracts.BridgeTypeTocClick, ID: "sub"}))
	require.Eventually(t, func() bool {
		received, _ := a.conn.snapshot()
		return len(received) == 1
	}, time.Second, time.Millisecond)
	received, _ := a.conn.snapshot()
	assert.JSONEq(t, `{"type":"toc-click","id":"sub"}`, string(received[0]))

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		_, detached := a.conn.snapshot()
		return detached
	}, time.Second, time.Millisecond)
}

func TestSocket_ChildRole(t *testing.T) {
	hub, ts := newTestServer(t, Options{}, bufferWith("x"))

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "/ws/child?session=s1"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.last() != nil }, time.Second, time.Millisecond)
	assert.Equal(t, RoleChild, hub.last().role)
	// Without an Origin header the origin is the server's own.
	assert.Equal(t, ts.URL, hub.last().origin)
}

func TestSocket_UnknownSession(t *testing.T) {
	_, ts := newTestServer(t, Options{}, bufferWith("x"))

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, "/ws/parent?session=missing"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSocket_RejectsForeignOrigin(t *testing.T) {
	_, ts := newTestServer(t, Options{AllowedOrigins: []string{"http://docs.example"}}, bufferWith("x"))

	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, "/ws/parent?session=s1"), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestServer_StartStop(t *testing.T) {
	log, _ := test.NewNullLogger()
	s := NewServer(Options{Addr: "127.0.0.1:0"}, newFakeHub(), bufferWith("# Hi"), nil, log)
	require.NoError(t, s.Start())
	require.NoError(t, s.Start())

	resp, err := http.Get(s.ContentURL())
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())
}
