package web

import (
	"errors"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/matuc/lti-exercise-composer/internal/attempt"
	"github.com/matuc/lti-exercise-composer/internal/auth"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
}

// checkOrigin allows same-host pages and the configured CORS origins.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	for _, o := range s.Config.CORSOrigins {
		if strings.EqualFold(strings.TrimSuffix(o, "/"), origin) {
			return true
		}
	}
	return false
}

// attemptStream pushes a JSON snapshot of the attempt on every tick and
// transition. The stream ends when the attempt is closed; a client hanging up
// does not abandon the attempt.
func (s *Server) attemptStream(w http.ResponseWriter, r *http.Request) {
	a, err := s.Attempts.Get(auth.SubjectFromContext(r.Context()), chi.URLParam(r, "attemptID"))
	if err != nil {
		status := http.StatusNotFound
		if errors.Is(err, attempt.ErrForbidden) {
			status = http.StatusForbidden
		}
		http.Error(w, actionMessage(err), status)
		return
	}
	if a.Set().ID != chi.URLParam(r, "id") {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	snaps, cancel := a.Subscribe()
	defer cancel()

	gone := make(chan struct{})
	go readPump(conn, gone)
	writePump(conn, snaps, gone)
}

// readPump discards client messages and reports when the client goes away.
func readPump(conn *websocket.Conn, gone chan<- struct{}) {
	defer close(gone)
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("websocket error: %v", err)
			}
			return
		}
	}
}

func writePump(conn *websocket.Conn, snaps <-chan attempt.Snapshot, gone <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()
	for {
		select {
		case snap, ok := <-snaps:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "attempt closed"))
				return
			}
			if err := conn.WriteJSON(snap); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-gone:
			return
		}
	}
}
