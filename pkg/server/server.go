// Package server exposes browsing sessions over HTTP and WebSocket. REST
// endpoints create and control sessions; the WebSocket stream carries the
// orchestrator's events to every connected UI.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/entrhq/wander/pkg/browse"
	"github.com/entrhq/wander/pkg/logging"
)

// Server wires the orchestrator to HTTP.
type Server struct {
	orchestrator *browse.Orchestrator
	hub          *Hub
	logger       *logging.Logger
	httpServer   *http.Server

	// defaults seed the options of every started session; per-request
	// fields override them.
	defaults browse.Options
}

// New creates a server listening on addr. The orchestrator is attached
// separately so its event emitter can point at this server's hub.
func New(addr string, logger *logging.Logger) *Server {
	s := &Server{
		logger:   logger,
		defaults: browse.Options{CaptureVisual: true},
	}
	s.hub = NewHub(logger, s.handleCommand)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// SetOrchestrator attaches the orchestrator. Must be called before
// ListenAndServe.
func (s *Server) SetOrchestrator(o *browse.Orchestrator) {
	s.orchestrator = o
}

// SetDefaultOptions replaces the configured per-session defaults.
func (s *Server) SetDefaultOptions(opts browse.Options) {
	s.defaults = opts
}

// Broadcast returns the emit function to hand the orchestrator; it fans
// events out to connected clients.
func (s *Server) Broadcast() browse.EventEmitter {
	return s.hub.Broadcast
}

// ListenAndServe blocks serving HTTP until the context is cancelled or the
// listener fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.hub.Close()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/ws", s.hub.HandleWebSocket)

	r.Route("/api/browse", func(r chi.Router) {
		r.Post("/", s.handleStart)
		r.Get("/", s.handleList)
		r.Get("/{sessionID}", s.handleStatus)
		r.Post("/{sessionID}/approve", s.handleApprove)
		r.Post("/{sessionID}/cancel", s.handleCancel)
	})

	return r
}

type startRequest struct {
	Goal            string `json:"goal"`
	MaxPages        int    `json:"maxPages,omitempty"`
	MaxDurationSecs int    `json:"maxDurationSeconds,omitempty"`
	CaptureVisual   *bool  `json:"captureVisual,omitempty"`
	OriginMessageID string `json:"originMessageId,omitempty"`
}

type startResponse struct {
	SessionID string `json:"sessionId"`
}

type approveRequest struct {
	Approved bool `json:"approved"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.Goal == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "goal is required"})
		return
	}

	opts := s.defaults
	opts.Goal = req.Goal
	opts.OriginMessageID = req.OriginMessageID
	if req.MaxPages > 0 {
		opts.MaxPages = req.MaxPages
	}
	if req.MaxDurationSecs > 0 {
		opts.MaxDuration = time.Duration(req.MaxDurationSecs) * time.Second
	}
	if req.CaptureVisual != nil {
		opts.CaptureVisual = *req.CaptureVisual
	}

	id, err := s.orchestrator.Start(opts)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	s.logger.Infof("started browsing session %s for goal %q", id, req.Goal)
	writeJSON(w, http.StatusAccepted, startResponse{SessionID: id})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.orchestrator.Sessions())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	snap, err := s.orchestrator.Snapshot(id)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	req := approveRequest{Approved: true}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}
	}

	if err := s.orchestrator.Approve(id, req.Approved); err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"approved": req.Approved})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if err := s.orchestrator.Cancel(id); err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})
}

// handleCommand routes WebSocket control frames to the orchestrator.
func (s *Server) handleCommand(cmd command) error {
	switch cmd.Action {
	case "start":
		if cmd.Goal == "" {
			return errors.New("goal is required")
		}
		opts := s.defaults
		opts.Goal = cmd.Goal
		if cmd.MaxPages > 0 {
			opts.MaxPages = cmd.MaxPages
		}
		if cmd.MaxDurationMs > 0 {
			opts.MaxDuration = time.Duration(cmd.MaxDurationMs) * time.Millisecond
		}
		id, err := s.orchestrator.Start(opts)
		if err != nil {
			return err
		}
		s.logger.Infof("started browsing session %s over websocket for goal %q", id, cmd.Goal)
		return nil
	case "approve":
		return s.orchestrator.Approve(cmd.SessionID, true)
	case "decline":
		return s.orchestrator.Approve(cmd.SessionID, false)
	case "cancel":
		return s.orchestrator.Cancel(cmd.SessionID)
	default:
		return fmt.Errorf("unknown action %q", cmd.Action)
	}
}

func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, browse.ErrSessionNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, browse.ErrNotAwaitingApproval), errors.Is(err, browse.ErrSessionTerminal):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
