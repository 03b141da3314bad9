// Package wsapi is the per-session WebSocket transport: one connection per
// analytics session, streaming EnrichedSnapshot frames and accepting the
// playback control-surface messages described in spec §6.
package wsapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/lobanalytics/microstructure/internal/analytics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ControlMessage is a client->server playback control frame.
type ControlMessage struct {
	Type      string `json:"type"`
	Speed     int    `json:"speed,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Delta     int    `json:"delta_seconds,omitempty"`
}

const (
	controlSetSpeed   = "set_speed"
	controlPing       = "ping"
	controlPong       = "pong"
	controlSubscribe  = "subscribe"
	controlUnsub      = "unsubscribe"
	controlStart      = "start"
	controlPause      = "pause"
	controlResume     = "resume"
	controlStop       = "stop"
	controlGoBack     = "go_back"
)

// Factory builds a new session on demand for an incoming connection. The
// caller (cmd/analyticsd) supplies this so wsapi stays decoupled from how
// sessions are constructed.
type Factory func(client analytics.Client) *analytics.Session

// Server upgrades HTTP connections to WebSocket and bridges each one to a
// freshly created Session.
type Server struct {
	sessions *analytics.SessionManager
	newSess  Factory
}

// NewServer wires a session manager and session factory.
func NewServer(sessions *analytics.SessionManager, newSess Factory) *Server {
	return &Server{sessions: sessions, newSess: newSess}
}

// ServeHTTP upgrades the connection, creates a session bound to it, and
// pumps control messages until the socket closes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	wc := &wsClient{conn: conn}
	sess := s.newSess(wc)
	wc.session = sess

	defer func() {
		s.sessions.DeleteSession(sess.ID)
		_ = conn.Close()
	}()

	s.pumpControl(r.Context(), sess, conn)
}

func (s *Server) pumpControl(ctx context.Context, sess *analytics.Session, conn *websocket.Conn) {
	for {
		var msg ControlMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case controlSetSpeed:
			sess.SetSpeed(msg.Speed)
		case controlStart:
			sess.StartPlayback()
		case controlPause:
			sess.Pause()
		case controlResume:
			sess.Resume()
		case controlStop:
			sess.StopPlayback()
		case controlGoBack:
			if _, err := sess.GoBack(msg.Delta); err != nil {
				_ = conn.WriteJSON(map[string]string{"type": "error", "message": err.Error()})
			}
		case controlPing:
			_ = conn.WriteJSON(map[string]string{"type": controlPong})
		case controlSubscribe, controlUnsub:
			// No-op at the transport level: a session is already scoped to
			// one connection, so subscribe/unsubscribe only acknowledges.
			_ = conn.WriteJSON(map[string]string{"type": msg.Type, "status": "ok"})
		}
	}
}

// wsClient adapts a gorilla/websocket connection to the analytics.Client
// interface Session broadcasts through. Writes are serialized with a mutex
// since gorilla/websocket forbids concurrent writers on one connection.
type wsClient struct {
	conn    *websocket.Conn
	session *analytics.Session
	mu      sync.Mutex
}

func (c *wsClient) Send(e analytics.EnrichedSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(timeNowPlus(5 * time.Second))
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func timeNowPlus(d time.Duration) time.Time { return time.Now().Add(d) }
