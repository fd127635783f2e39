// internal/gateway/ws.go

package gateway

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/j-davidv/Donezo/internal/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 45 * time.Second
)

// snapshotFeed hands frames to a single reader, keeping only the newest while
// the reader is slow. Drain-then-send holds a mutex so two concurrent pushes
// cannot leave an older frame pending over a newer one.
type snapshotFeed struct {
	mu sync.Mutex
	ch chan []*models.Todo
}

func newSnapshotFeed() *snapshotFeed {
	return &snapshotFeed{ch: make(chan []*models.Todo, 1)}
}

func (f *snapshotFeed) push(todos []*models.Todo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	select {
	case <-f.ch:
	default:
	}
	f.ch <- todos
}

// handleWS upgrades the connection and streams the caller's ordered todo view.
// Every frame is a complete snapshot that replaces the previous one; the
// client never merges. The open socket pins the session against idle eviction.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(userFrom(r), true)
	if err != nil {
		writeError(w, http.StatusBadGateway, "could not open session")
		return
	}
	defer s.release(sess)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	feed := newSnapshotFeed()
	unsubscribe := sess.controller.OnSnapshot(feed.push)
	defer unsubscribe()

	// The read side only keeps the connection honest: the client sends no
	// application frames, but reading is what notices a closed peer.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case todos := <-feed.ch:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(todos); err != nil {
				s.logger.Printf("websocket write failed: %v", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}
