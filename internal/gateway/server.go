package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/aristath/tracker/internal/events"
	"github.com/aristath/tracker/internal/orchestrator"
	"github.com/aristath/tracker/internal/persistence"
	"github.com/aristath/tracker/internal/tracker"
)

// Server is the tracker gateway HTTP server. It decodes requests into
// commands for the orchestrator service and maps error kinds to status
// codes; no workflow rule lives here.
type Server struct {
	httpServer *http.Server
	service    *orchestrator.Service
	store      *persistence.SQLiteStore
	bus        *events.EventBus
}

// NewServer creates a new gateway server.
func NewServer(service *orchestrator.Service, store *persistence.SQLiteStore, bus *events.EventBus, host string, port int) *Server {
	s := &Server{
		service: service,
		store:   store,
		bus:     bus,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	// Routes
	r.Get("/api/health", s.handleHealth)
	r.Get("/api/events", s.handleEvents)

	// API: tasks
	r.Get("/api/tasks", s.withUser(s.handleListTasks))
	r.Post("/api/tasks", s.withUser(s.handleCreateTask))
	r.Get("/api/tasks/order", s.withUser(s.handleResolutionOrder))
	r.Get("/api/tasks/{taskID}", s.withUser(s.handleTaskDetail))
	r.Put("/api/tasks/{taskID}", s.withUser(s.handleEditTask))
	r.Delete("/api/tasks/{taskID}", s.withUser(s.handleDeleteTask))
	r.Post("/api/tasks/{taskID}/status/{statusID}", s.withUser(s.handleTransition))

	// API: users
	r.Get("/api/users", s.withUser(s.handleListUsers))
	r.Post("/api/users/{userID}/role/{roleID}", s.withUser(s.handleAssignRole))
	r.Post("/api/users/{userID}/username", s.withUser(s.handleRenameUser))

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", host, port),
		Handler: r,
	}

	return s
}

// Handler returns the HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening. It blocks until the server is stopped.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	slog.Info("tracker gateway listening", "addr", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type userKey struct{}

// withUser resolves the acting user from the X-Username header. Token
// verification happens upstream; by the time a request reaches the
// gateway the header names an authenticated account.
func (s *Server) withUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username := r.Header.Get("X-Username")
		if username == "" {
			http.Error(w, "missing X-Username header", http.StatusUnauthorized)
			return
		}

		user, err := s.store.GetUserByUsername(r.Context(), username)
		if err != nil {
			if tracker.IsNotFound(err) {
				http.Error(w, "unknown user", http.StatusUnauthorized)
				return
			}
			s.writeError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), userKey{}, user)
		next(w, r.WithContext(ctx))
	}
}

// currentUser returns the acting user placed in the context by withUser.
func currentUser(r *http.Request) tracker.User {
	user, _ := r.Context().Value(userKey{}).(tracker.User)
	return user
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.writeError(w, tracker.Validationf("invalid limit"))
			return
		}
		limit = n
	}

	writeJSON(w, http.StatusOK, s.bus.History(limit))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps an error kind to a transport status. The message text
// is display-only; the kind is the contract.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if kind, ok := tracker.KindOf(err); ok {
		switch kind {
		case tracker.KindValidation, tracker.KindPolicy:
			status = http.StatusBadRequest
		case tracker.KindNotFound:
			status = http.StatusNotFound
		case tracker.KindPermission:
			status = http.StatusForbidden
		case tracker.KindConflict:
			status = http.StatusConflict
		}
	}

	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}

	writeJSON(w, status, map[string]string{"error": err.Error()})
}
