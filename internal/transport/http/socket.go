package httpserver

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"go-live-docs/internal/contracts"
)

const (
	peerQueue    = 64
	writeTimeout = 5 * time.Second
)

// handleSocket upgrades the connection and forwards browser messages to the
// session until the connection closes.
func (s *Server) handleSocket(role Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("session")
		if !s.hub.Exists(id) {
			http.Error(w, ErrUnknownSession.Error(), http.StatusNotFound)
			return
		}

		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		log := s.log.WithFields(logrus.Fields{"session": id, "role": role})
		peer := newSocketPeer(conn, log)

		fc, err := s.hub.Attach(id, role, peer, requestOrigin(r))
		if err != nil {
			_ = conn.WriteJSON(contracts.ErrorMessage{Type: contracts.BridgeTypeError, Message: err.Error()})
			_ = conn.Close()
			return
		}
		go peer.writeLoop()
		log.Debug("frame socket attached")

		defer func() {
			fc.Detach()
			peer.close()
			log.Debug("frame socket detached")
		}()

		// Block here until the connection closes / errors out
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			fc.Receive(msg)
		}
	}
}

// socketPeer serializes websocket writes on a single goroutine.
type socketPeer struct {
	conn *websocket.Conn
	log  logrus.FieldLogger

	out  chan any
	done chan struct{}
	once sync.Once
}

func newSocketPeer(conn *websocket.Conn, log logrus.FieldLogger) *socketPeer {
	return &socketPeer{
		conn: conn,
		log:  log,
		out:  make(chan any, peerQueue),
		done: make(chan struct{}),
	}
}

// Send queues v. A peer that cannot keep up is disconnected; the browser
// reconnects and the session replays its state.
func (p *socketPeer) Send(v any) {
	select {
	case <-p.done:
		return
	default:
	}

	select {
	case p.out <- v:
	case <-p.done:
	default:
		p.log.Warn("frame socket queue full, closing")
		p.close()
	}
}

func (p *socketPeer) writeLoop() {
	for {
		select {
		case v := <-p.out:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := p.conn.WriteJSON(v); err != nil {
				p.log.WithError(err).Debug("frame socket write failed")
				p.close()
				return
			}
		case <-p.done:
			_ = p.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = p.conn.Close()
			return
		}
	}
}

func (p *socketPeer) close() {
	p.once.Do(func() { close(p.done) })
}
