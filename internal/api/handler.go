// Package api provides the HTTP API handlers and routing for the console service.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"opsconsole/internal/apperrors"
	"opsconsole/internal/health"
	"opsconsole/internal/probe"
	"opsconsole/internal/process"
)

// maxRequestBodySize limits request body to 1MB to prevent memory exhaustion
const maxRequestBodySize = 1 << 20 // 1 MB

// maxProxiesBodySize allows large relay lists on the proxy test endpoint.
const maxProxiesBodySize = 16 << 20 // 16 MB

// Handler contains HTTP handlers for the console API
type Handler struct {
	supervisor  *process.Supervisor
	sweeper     *probe.Sweeper
	health      *health.Checker
	exportDir   string
	syncCommand string
	now         func() time.Time
}

// NewHandler creates a new API handler
func NewHandler(cfg RouterConfig) *Handler {
	return &Handler{
		supervisor:  cfg.Supervisor,
		sweeper:     cfg.Sweeper,
		health:      cfg.HealthChecker,
		exportDir:   cfg.ExportDir,
		syncCommand: cfg.SyncCommand,
		now:         time.Now,
	}
}

// Livez handles GET /livez - liveness probe.
// Returns 200 if the process is alive. Does not check dependencies.
func (h *Handler) Livez(w http.ResponseWriter, r *http.Request) {
	response := h.health.Liveness(r.Context())
	h.writeJSON(w, http.StatusOK, response)
}

// Readyz handles GET /readyz - readiness probe.
// Returns 200 if the service is ready to accept traffic, degraded included.
// Returns 503 if a required dependency is unavailable.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	response := h.health.Readiness(r.Context())

	status := http.StatusOK
	if !response.IsReady() {
		status = http.StatusServiceUnavailable
	}

	h.writeJSON(w, status, response)
}

// decodeJSON reads a JSON body of at most limit bytes into dst.
// An empty body leaves dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// errorResponse is the JSON body of every error reply.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	Field string `json:"field,omitempty"`
}

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, errorResponse{Error: message})
}

// handleError handles errors from service layer with appropriate HTTP status codes.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= 500 {
		slog.ErrorContext(r.Context(), "Internal error", "error", err, "path", r.URL.Path)
	} else {
		slog.WarnContext(r.Context(), "Client error", "error", err, "path", r.URL.Path, "status", status)
	}

	resp := errorResponse{Error: err.Error(), Code: apperrors.Code(err)}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		resp.Field = appErr.Field
	}
	h.writeJSON(w, status, resp)
}
