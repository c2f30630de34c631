// Package http exposes synchronous ingestion alongside health and metrics
// endpoints.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/domain"
	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/metrics"
	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/pipeline"
)

const maxBodyBytes = 64 << 10

type Ingester interface {
	HandleGPS(ctx context.Context, payload string) pipeline.Result
	HandleFault(ctx context.Context, payload string) pipeline.Result
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// NameCache drops a cached device name so the next lookup refetches it.
type NameCache interface {
	InvalidateDevice(ctx context.Context, deviceID string) error
}

type Server struct {
	ingest Ingester
	auth   *AuthMiddleware
	checks map[string]Pinger
	logger *slog.Logger
	router *mux.Router
}

// NewServer wires the routes. checks are pinged by /health, keyed by the
// name reported for each.
func NewServer(ingest Ingester, auth Validator, checks map[string]Pinger, logger *slog.Logger) *Server {
	s := &Server{
		ingest: ingest,
		auth:   NewAuthMiddleware(auth),
		checks: checks,
		logger: logger,
		router: mux.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", metrics.HandleMetrics).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api/v1/ingest").Subrouter()
	api.Use(s.auth.Wrap)
	api.HandleFunc("/gps", s.handleIngest(s.ingest.HandleGPS)).Methods(http.MethodPost)
	api.HandleFunc("/fault", s.handleIngest(s.ingest.HandleFault)).Methods(http.MethodPost)

	s.router.Use(loggingMiddleware(s.logger))
}

// WithNameCache exposes DELETE /api/v1/devices/{id}/name for renamed devices.
func (s *Server) WithNameCache(c NameCache) *Server {
	devices := s.router.PathPrefix("/api/v1/devices").Subrouter()
	devices.Use(s.auth.Wrap)
	devices.HandleFunc("/{id}/name", func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		if err := c.InvalidateDevice(r.Context(), id); err != nil {
			respondJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodDelete)
	return s
}

func (s *Server) Router() *mux.Router {
	return s.router
}

type ingestRequest struct {
	Payload string `json:"payload"`
}

type ingestResponse struct {
	Status   pipeline.Status `json:"status"`
	DeviceID string          `json:"device_id,omitempty"`
	Received int             `json:"received,omitempty"`
	Total    int             `json:"total,omitempty"`
	Error    string          `json:"error,omitempty"`
}

func (s *Server) handleIngest(handle func(context.Context, string) pipeline.Result) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ingestRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
			respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
			return
		}
		if req.Payload == "" {
			respondJSON(w, http.StatusBadRequest, map[string]string{"error": "payload is required"})
			return
		}

		res := handle(r.Context(), req.Payload)
		resp := ingestResponse{
			Status:   res.Status,
			DeviceID: res.DeviceID,
			Received: res.Received,
			Total:    res.Total,
		}
		if res.Err != nil {
			resp.Error = res.Err.Error()
		}
		respondJSON(w, statusFor(res), resp)
	}
}

func statusFor(res pipeline.Result) int {
	switch res.Status {
	case pipeline.StatusPending:
		return http.StatusAccepted
	case pipeline.StatusFailed:
		var de *domain.DecodeError
		if errors.As(res.Err, &de) {
			return http.StatusBadRequest
		}
		return http.StatusInternalServerError
	default:
		return http.StatusOK
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	code := http.StatusOK
	results := make(map[string]string, len(s.checks))
	for name, p := range s.checks {
		if err := p.Ping(ctx); err != nil {
			results[name] = err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}
	respondJSON(w, code, map[string]any{"status": status, "checks": results})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
