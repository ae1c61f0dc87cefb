// Package server exposes the plan engine over HTTP. Mutating routes
// carry the caller's expected plan version in the If-Match header;
// stale writers get 409 with the current state so they can rebase
// without a second round trip.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/joss/actionplan/internal/config"
	"github.com/joss/actionplan/internal/engine"
	"github.com/joss/actionplan/internal/logging"
)

// Server provides the HTTP API for the plan engine.
type Server struct {
	engine *engine.Engine
	mux    *http.ServeMux
	addr   string
	srv    *http.Server
	log    *logging.Logger
}

// New creates a server over the given engine.
func New(eng *engine.Engine, addr string) *Server {
	s := &Server{
		engine: eng,
		mux:    http.NewServeMux(),
		addr:   addr,
		log:    logging.New("server"),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /plans", s.handleListPlans)
	s.mux.HandleFunc("POST /plans", s.handleCreatePlan)
	s.mux.HandleFunc("GET /plans/{id}", s.handleGetPlan)
	s.mux.HandleFunc("POST /plans/{id}/archive", s.handleArchive)
	s.mux.HandleFunc("POST /plans/{id}/unarchive", s.handleUnarchive)

	s.mux.HandleFunc("POST /plans/{id}/tasks", s.handleAddTask)
	s.mux.HandleFunc("PATCH /plans/{id}/tasks/{taskID}", s.handlePatchTask)
	s.mux.HandleFunc("DELETE /plans/{id}/tasks/{taskID}", s.handleDeleteTask)
	s.mux.HandleFunc("POST /plans/{id}/tasks/{taskID}/reorder", s.handleReorderTask)

	s.mux.HandleFunc("POST /plans/{id}/dependencies", s.handleAddDependency)
	s.mux.HandleFunc("DELETE /plans/{id}/dependencies/{edgeID}", s.handleRemoveDependency)

	s.mux.HandleFunc("GET /plans/{id}/progress", s.handleProgress)
	s.mux.HandleFunc("GET /plans/{id}/progress/history", s.handleProgressHistory)
	s.mux.HandleFunc("GET /plans/{id}/history", s.handleHistory)
	s.mux.HandleFunc("POST /plans/{id}/undo", s.handleUndo)
	s.mux.HandleFunc("POST /plans/{id}/export", s.handleExport)

	s.mux.HandleFunc("GET /plans/{id}/events", s.handleEvents)
}

// traced assigns each request an ID, echoes it in the X-Request-ID
// response header and logs the request with it. Callers may supply
// their own ID in X-Request-ID to correlate across services.
func (s *Server) traced(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.WithRequestID(r.Context(), r.Header.Get("X-Request-ID"))
		id := logging.GetRequestID(ctx)
		w.Header().Set("X-Request-ID", id)
		s.log.Debug("request", map[string]any{
			"request_id": id, "method": r.Method, "path": r.URL.Path,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Handler returns the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.traced(s.mux)
}

// Start blocks serving HTTP until the server is shut down.
func (s *Server) Start() error {
	s.srv = &http.Server{
		Addr:        s.addr,
		Handler:     s.traced(s.mux),
		ReadTimeout: 10 * time.Second,
		// No WriteTimeout: the events route holds its response open.
	}
	s.log.Info("listening", map[string]any{"addr": s.addr})
	return s.srv.ListenAndServe()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// actor resolves the acting user for a request.
func actor(r *http.Request) string {
	if a := r.Header.Get("X-Actor-ID"); a != "" {
		return a
	}
	return config.Env().ActorID
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
