// Package server hosts tuner sessions behind an HTTP and JSON-RPC 2.0 API.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/copyleftdev/hptune/internal/config"
	"github.com/copyleftdev/hptune/internal/metrics"
	"github.com/copyleftdev/hptune/internal/optimization"
)

// Server implements the HTTP and JSON-RPC server for the tuning service.
// Sessions live in memory until closed or the server shuts down.
type Server struct {
	cfg       *config.Config
	logger    *zap.Logger
	collector metrics.Collector

	sessions   map[string]*Session
	sessionsMu sync.RWMutex // Protects the sessions map
	slots      *semaphore.Weighted
	nextID     atomic.Uint64
}

// NewServer creates a new server instance. A nil collector discards metrics.
func NewServer(cfg *config.Config, logger *zap.Logger, collector metrics.Collector) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if collector == nil {
		collector = metrics.Noop{}
	}
	maxSessions := int64(cfg.Tuner.MaxSessions)
	if maxSessions <= 0 {
		maxSessions = 1
	}
	return &Server{
		cfg:       cfg,
		logger:    logger.Named("server"),
		collector: collector,
		sessions:  make(map[string]*Session),
		slots:     semaphore.NewWeighted(maxSessions),
	}
}

func (s *Server) RegisterRoutes(r chi.Router) {
	// API v1 routes
	r.Route("/api/v1/tuners", func(r chi.Router) {
		r.Post("/", s.handleCreate)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleStatus)
			r.Delete("/", s.handleClose)
			r.Post("/trials/{trial}", s.handleGenerate)
			r.Put("/trials/{trial}", s.handleReport)
		})
	})

	// JSON-RPC 2.0 endpoint
	r.Post("/rpc", s.handleJSONRPC)
}

// Close drops every session.
func (s *Server) Close() error {
	s.sessionsMu.Lock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.sessionsMu.Unlock()

	for _, id := range ids {
		if err := s.closeSession(id); err != nil && !errors.Is(err, ErrSessionNotFound) {
			return err
		}
	}
	return nil
}

// httpStatus maps an error to the response status code.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, optimization.ErrNoSuchTrial):
		return http.StatusNotFound
	case errors.Is(err, optimization.ErrTrialExists):
		return http.StatusConflict
	case errors.Is(err, ErrTooManySessions):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, optimization.ErrInvalidSearchSpace),
		errors.Is(err, optimization.ErrUnknownStrategy):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := httpStatus(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	body := map[string]interface{}{
		"error": err.Error(),
	}
	if oe, ok := optimization.IsOptimizationError(err); ok {
		if oe.Component != "" {
			body["component"] = oe.Component
		}
		if oe.Op != "" {
			body["operation"] = oe.Op
		}
	}
	s.respondJSON(w, status, body)
}

func trialParam(r *http.Request) (int, error) {
	trialID, err := strconv.Atoi(chi.URLParam(r, "trial"))
	if err != nil {
		return 0, fmt.Errorf("%w: trial id must be an integer", ErrInvalidRequest)
	}
	return trialID, nil
}

// handleCreate handles POST /api/v1/tuners.
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, fmt.Errorf("%w: %v", ErrInvalidRequest, err))
		return
	}
	session, err := s.createSession(req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"tuner_id": session.ID,
		"strategy": session.Strategy,
	})
}

// handleGenerate handles POST /api/v1/tuners/{id}/trials/{trial}.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	trialID, err := trialParam(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	params, err := s.generate(chi.URLParam(r, "id"), trialID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"trial_id":   trialID,
		"parameters": params,
	})
}

// handleReport handles PUT /api/v1/tuners/{id}/trials/{trial}.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	trialID, err := trialParam(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	var req ReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, fmt.Errorf("%w: %v", ErrInvalidRequest, err))
		return
	}
	if err := s.report(chi.URLParam(r, "id"), trialID, req); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleStatus handles GET /api/v1/tuners/{id}.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.status(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, status)
}

// handleClose handles DELETE /api/v1/tuners/{id}.
func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	if err := s.closeSession(chi.URLParam(r, "id")); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
