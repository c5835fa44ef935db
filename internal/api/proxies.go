package api

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"opsconsole/internal/apperrors"
	"opsconsole/internal/probe"
	"opsconsole/internal/process"
)

// syncFilePlaceholder is replaced by the quoted export path in the sync command.
const syncFilePlaceholder = "{file}"

// ProxyTestResponse is returned when a sweep was started.
type ProxyTestResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Total   int    `json:"total"`
}

// WorkingResponse lists reachable relays in original notation.
type WorkingResponse struct {
	Working []string `json:"working"`
}

// UniqueResponse lists one relay per distinct outbound identity.
type UniqueResponse struct {
	Unique []string `json:"unique"`
}

// ExportResponse describes the written export file.
type ExportResponse struct {
	Success bool `json:"success"`
	*probe.ExportResult
}

// TestProxies handles POST /api/proxies/test
func (h *Handler) TestProxies(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Proxies string `json:"proxies"`
	}
	if err := decodeJSON(w, r, maxProxiesBodySize, &body); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	targets := probe.ParseTargets(body.Proxies)
	if err := h.sweeper.Start(r.Context(), targets); err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, ProxyTestResponse{
		Success: true,
		Message: fmt.Sprintf("Started testing %d proxies", len(targets)),
		Total:   len(targets),
	})
}

// StopProxies handles POST /api/proxies/stop
func (h *Handler) StopProxies(w http.ResponseWriter, r *http.Request) {
	h.sweeper.Cancel()
	h.writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// ProxiesProgress handles GET /api/proxies/progress
func (h *Handler) ProxiesProgress(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.sweeper.Progress())
}

// WorkingProxies handles GET /api/proxies/working
func (h *Handler) WorkingProxies(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, WorkingResponse{Working: h.sweeper.Working()})
}

// UniqueProxies handles GET /api/proxies/unique
func (h *Handler) UniqueProxies(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, UniqueResponse{Unique: h.sweeper.Unique()})
}

// ExportProxies handles POST /api/proxies/export
func (h *Handler) ExportProxies(w http.ResponseWriter, r *http.Request) {
	res, err := h.sweeper.Export(h.exportDir, h.now())
	if err != nil {
		h.handleError(w, r, apperrors.Internal("proxies.export", err))
		return
	}
	h.writeJSON(w, http.StatusOK, ExportResponse{Success: true, ExportResult: res})
}

// SyncProxies handles POST /api/proxies/sync. It runs the configured sync
// command as a supervised process against a previously exported file.
func (h *Handler) SyncProxies(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Filename string `json:"filename"`
	}
	if err := decodeJSON(w, r, maxRequestBodySize, &body); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if h.syncCommand == "" {
		h.handleError(w, r, apperrors.Validation("filename", "proxy sync is not configured"))
		return
	}
	if err := validateExportName(body.Filename); err != nil {
		h.handleError(w, r, err)
		return
	}

	path := filepath.Join(h.exportDir, body.Filename)
	if _, err := os.Stat(path); err != nil {
		h.handleError(w, r, apperrors.NotFound("export", body.Filename))
		return
	}

	h.spawn(w, r, process.Request{
		ID:      "proxy_sync_" + uuid.NewString(),
		Command: strings.ReplaceAll(h.syncCommand, syncFilePlaceholder, shellQuote(path)),
	})
}

// validateExportName accepts a plain file name inside the export directory.
func validateExportName(name string) error {
	if name == "" {
		return apperrors.Validation("filename", "filename is required")
	}
	if name != filepath.Base(name) || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return apperrors.Validation("filename", "filename must not contain path separators")
	}
	return nil
}

// shellQuote quotes s for POSIX sh.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
