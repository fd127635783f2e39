// internal/gateway/server.go

// Package gateway is the serving surface at the presentation boundary: a JSON
// HTTP API for mutations and a WebSocket feed that pushes each user's ordered
// todo view as it changes. Rendering lives entirely on the client; the gateway
// only exposes the sync engine's operations.
package gateway

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/j-davidv/Donezo/internal/service"
	"github.com/j-davidv/Donezo/internal/store"
	"github.com/j-davidv/Donezo/pkg/identity"
)

type contextKey string

const contextKeyUser contextKey = "user"

// Config carries the gateway knobs.
type Config struct {
	DeletePolicy service.DeletePolicy
	Logger       *log.Logger
	// SessionTTL bounds how long an idle session keeps its live
	// subscription. On the Postgres backend every session pins a dedicated
	// listener connection, so idle ones must not accumulate. Sessions with
	// an open websocket are never evicted. Defaults to 10 minutes.
	SessionTTL time.Duration
}

// Server routes requests to per-identity sessions. Each session owns one
// SyncController (and so one live subscription) for its user; sessions are
// created on first use and torn down once idle past the session TTL, unless
// pinned by an open websocket.
type Server struct {
	todos    store.TodoStore
	users    store.UserStore
	settings *service.SettingsService
	policy   service.DeletePolicy
	logger   *log.Logger
	router   *mux.Router
	upgrader websocket.Upgrader
	ttl      time.Duration
	done     chan struct{}

	mu       sync.Mutex
	sessions map[string]*session
	closed   bool
}

type session struct {
	controller *service.SyncController
	collab     *service.CollabManager

	// Guarded by Server.mu. refs counts open websockets; lastUsed is
	// refreshed on every acquisition and release.
	refs     int
	lastUsed time.Time
}

// New wires the gateway over the given collections.
func New(todos store.TodoStore, users store.UserStore, cfg Config) *Server {
	if cfg.DeletePolicy == "" {
		cfg.DeletePolicy = service.DeleteAnySharer
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 10 * time.Minute
	}
	s := &Server{
		todos:    todos,
		users:    users,
		settings: service.NewSettingsService(users),
		policy:   cfg.DeletePolicy,
		logger:   cfg.Logger,
		ttl:      cfg.SessionTTL,
		done:     make(chan struct{}),
		sessions: make(map[string]*session),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	s.router = s.routes()
	go s.reap()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/users", s.handleCreateUser).Methods(http.MethodPost)

	api := r.NewRoute().Subrouter()
	api.Use(s.withIdentity)
	api.HandleFunc("/todos", s.handleListTodos).Methods(http.MethodGet)
	api.HandleFunc("/todos", s.handleCreateTodo).Methods(http.MethodPost)
	api.HandleFunc("/todos/reorder", s.handleReorder).Methods(http.MethodPost)
	api.HandleFunc("/todos/{id}", s.handleUpdateTodo).Methods(http.MethodPatch)
	api.HandleFunc("/todos/{id}", s.handleDeleteTodo).Methods(http.MethodDelete)
	api.HandleFunc("/todos/{id}/toggle", s.handleToggle).Methods(http.MethodPost)
	api.HandleFunc("/todos/{id}/edit", s.handleEditTodo).Methods(http.MethodPost)
	api.HandleFunc("/todos/{id}/collaborators", s.handleAddCollaborator).Methods(http.MethodPost)
	api.HandleFunc("/todos/{id}/collaborators/{userID}", s.handleRemoveCollaborator).Methods(http.MethodDelete)
	api.HandleFunc("/todos/{id}/comments", s.handleAddComment).Methods(http.MethodPost)
	api.HandleFunc("/settings", s.handleGetSettings).Methods(http.MethodGet)
	api.HandleFunc("/settings/name", s.handleUpdateName).Methods(http.MethodPut)
	api.HandleFunc("/settings/theme", s.handleUpdateTheme).Methods(http.MethodPut)
	api.HandleFunc("/ws", s.handleWS).Methods(http.MethodGet)
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close tears down every session's live subscription.
func (s *Server) Close() {
	s.mu.Lock()
	if !s.closed {
		close(s.done)
	}
	s.closed = true
	sessions := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.sessions = make(map[string]*session)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.controller.Close()
	}
}

// withIdentity resolves the acting user from the X-User-ID header against the
// user directory. Credential verification happens at the external identity
// provider; by the time a request reaches the gateway the id is trusted.
func (s *Server) withIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-User-ID")
		if id == "" {
			writeError(w, http.StatusUnauthorized, "missing X-User-ID header")
			return
		}
		doc, err := s.users.Get(r.Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusUnauthorized, "unknown user")
				return
			}
			writeError(w, http.StatusBadGateway, "user lookup failed")
			return
		}
		u := &identity.User{ID: doc.ID, Email: doc.Email}
		ctx := context.WithValue(r.Context(), contextKeyUser, u)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userFrom(r *http.Request) *identity.User {
	u, _ := r.Context().Value(contextKeyUser).(*identity.User)
	return u
}

// session returns the per-identity session, creating it on first use. The
// controller's subscription is bound to the session lifetime, not the request,
// so it is primed with a background context. With retain the session is
// pinned against eviction until release is called.
func (s *Server) session(u *identity.User, retain bool) (*session, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, errors.New("server is shutting down")
	}
	if sess, ok := s.sessions[u.ID]; ok {
		sess.lastUsed = time.Now()
		if retain {
			sess.refs++
		}
		s.mu.Unlock()
		return sess, nil
	}
	s.mu.Unlock()

	controller := service.NewSyncController(s.todos, s.users, service.Config{
		DeletePolicy: s.policy,
		Logger:       s.logger,
	})
	if err := controller.SetUser(context.Background(), u); err != nil {
		controller.Close()
		return nil, err
	}
	sess := &session{
		controller: controller,
		collab:     service.NewCollabManager(s.todos, s.users, controller, s.settings),
		lastUsed:   time.Now(),
	}

	s.mu.Lock()
	if existing, ok := s.sessions[u.ID]; ok {
		// Lost a concurrent creation race.
		existing.lastUsed = time.Now()
		if retain {
			existing.refs++
		}
		s.mu.Unlock()
		controller.Close()
		return existing, nil
	}
	if s.closed {
		s.mu.Unlock()
		controller.Close()
		return nil, errors.New("server is shutting down")
	}
	if retain {
		sess.refs++
	}
	s.sessions[u.ID] = sess
	s.mu.Unlock()
	return sess, nil
}

// release drops a websocket's pin on the session.
func (s *Server) release(sess *session) {
	s.mu.Lock()
	sess.refs--
	sess.lastUsed = time.Now()
	s.mu.Unlock()
}

// reap periodically evicts idle sessions so abandoned identities do not pin
// store subscriptions forever.
func (s *Server) reap() {
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.evictIdle(time.Now())
		}
	}
}

// evictIdle closes and forgets every unpinned session idle at now.
func (s *Server) evictIdle(now time.Time) {
	s.mu.Lock()
	var idle []*session
	for id, sess := range s.sessions {
		if sess.refs == 0 && now.Sub(sess.lastUsed) >= s.ttl {
			delete(s.sessions, id)
			idle = append(idle, sess)
		}
	}
	s.mu.Unlock()

	for _, sess := range idle {
		sess.controller.Close()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// logRequests records method, path, status and duration for every request.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &recordingWriter{inner: w}
		next.ServeHTTP(rw, r)
		s.logger.Printf("%s %s %d in %v (user: %s)",
			r.Method, r.URL.Path, rw.status(), time.Since(start), r.Header.Get("X-User-ID"))
	})
}

type recordingWriter struct {
	inner      http.ResponseWriter
	statusCode int
}

func (r *recordingWriter) Header() http.Header { return r.inner.Header() }

func (r *recordingWriter) Write(b []byte) (int, error) {
	if r.statusCode == 0 {
		r.statusCode = http.StatusOK
	}
	return r.inner.Write(b)
}

func (r *recordingWriter) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.inner.WriteHeader(statusCode)
}

func (r *recordingWriter) status() int {
	if r.statusCode == 0 {
		return http.StatusOK
	}
	return r.statusCode
}

// Hijack lets the websocket upgrader take over a logged connection.
func (r *recordingWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.inner.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	if r.statusCode == 0 {
		r.statusCode = http.StatusSwitchingProtocols
	}
	return h.Hijack()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
