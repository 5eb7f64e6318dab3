// Package notify pushes workflow view state to connected presentation clients.
package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/example/ride-share/internal/logging"
	"github.com/example/ride-share/internal/observability"
	"github.com/example/ride-share/internal/workflow"
)

const writeWait = 5 * time.Second

// Conn is the part of *websocket.Conn the hub uses.
type Conn interface {
	WriteJSON(v any) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Session is one connected presentation client. Views are queued in a
// single latest-view slot and written by the session's own goroutine, so a
// slow client only ever falls behind itself.
type Session struct {
	conn Conn

	mu   sync.Mutex
	next *workflow.View
	last uint64 // version of the newest view queued

	wake     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newSession(conn Conn) *Session {
	return &Session{conn: conn, wake: make(chan struct{}, 1), done: make(chan struct{})}
}

// Send queues v unless a newer view is already queued or written. It never blocks.
func (s *Session) Send(v workflow.View) {
	s.mu.Lock()
	if v.Version != 0 && v.Version <= s.last {
		s.mu.Unlock()
		return
	}
	s.last = v.Version
	s.next = &v
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// run writes queued views until the session stops or a write fails.
func (s *Session) run(onErr func(error)) {
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}
		s.mu.Lock()
		v := s.next
		s.next = nil
		s.mu.Unlock()
		if v == nil {
			continue
		}
		_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := s.conn.WriteJSON(*v); err != nil {
			select {
			case <-s.done:
			default:
				onErr(err)
			}
			return
		}
	}
}

func (s *Session) stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

// Hub holds presentation sessions and implements workflow.Observer.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	logger   *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{sessions: make(map[string]*Session), logger: logging.Component(logger, "notify")}
}

// Add registers conn under id, then queues current(). Registering first means
// a change racing with the connect is pushed either way.
func (h *Hub) Add(id string, conn Conn, current func() workflow.View) {
	s := newSession(conn)
	h.mu.Lock()
	if old, ok := h.sessions[id]; ok {
		old.stop()
	} else {
		observability.WSSessions.Inc()
	}
	h.sessions[id] = s
	h.mu.Unlock()

	go s.run(func(err error) {
		h.logger.Warn("ws send error", "session", id, "error", err)
		h.remove(id, s)
	})
	s.Send(current())
}

func (h *Hub) Remove(id string) {
	h.mu.Lock()
	s, ok := h.sessions[id]
	delete(h.sessions, id)
	h.mu.Unlock()
	if ok {
		observability.WSSessions.Dec()
		s.stop()
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// StateChanged queues the view on every session and returns immediately.
func (h *Hub) StateChanged(v workflow.View) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.sessions {
		s.Send(v)
	}
}

// Serve reads from a websocket until it closes, then drops the session.
// Clients only listen; anything they send is ignored.
func (h *Hub) Serve(id string, conn *websocket.Conn) {
	defer h.drop(id, conn)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// remove drops id only if it still maps to s; a reconnect may have replaced it.
func (h *Hub) remove(id string, s *Session) {
	h.mu.Lock()
	if cur, ok := h.sessions[id]; ok && cur == s {
		delete(h.sessions, id)
		observability.WSSessions.Dec()
	}
	h.mu.Unlock()
	s.stop()
}

func (h *Hub) drop(id string, conn Conn) {
	h.mu.RLock()
	s, ok := h.sessions[id]
	h.mu.RUnlock()
	if ok && s.conn == conn {
		h.remove(id, s)
		return
	}
	_ = conn.Close()
}
