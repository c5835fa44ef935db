package api

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"opsconsole/internal/apperrors"
	"opsconsole/internal/logstore"
	"opsconsole/internal/process"
)

// defaultLogLimit is the number of log lines returned by process details.
const defaultLogLimit = 400

// defaultTestCommand runs when /api/test_command gets no command.
const defaultTestCommand = `echo "Hello World"`

// SpawnResponse is returned when a process was started.
type SpawnResponse struct {
	Success   bool   `json:"success"`
	CommandID string `json:"command_id"`
	Command   string `json:"command"`
	PID       int    `json:"pid"`
}

// ProcessListResponse lists tracked processes.
type ProcessListResponse struct {
	Processes []process.Summary `json:"processes"`
}

// StatusResponse is the polling view of one process.
type StatusResponse struct {
	Status process.Status   `json:"status"`
	Logs   []logstore.Entry `json:"logs"`
}

// SuccessResponse reports the outcome of a fire-and-forget action.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// CreateProcess handles POST /api/processes
func (h *Handler) CreateProcess(w http.ResponseWriter, r *http.Request) {
	var req process.Request
	if err := decodeJSON(w, r, maxRequestBodySize, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	h.spawn(w, r, req)
}

// TestCommand handles POST /api/test_command. It runs an ad-hoc command
// in the default working directory.
func (h *Handler) TestCommand(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Command string `json:"command"`
	}
	if err := decodeJSON(w, r, maxRequestBodySize, &body); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if body.Command == "" {
		body.Command = defaultTestCommand
	}
	h.spawn(w, r, process.Request{
		ID:      "test_" + uuid.NewString(),
		Command: body.Command,
	})
}

func (h *Handler) spawn(w http.ResponseWriter, r *http.Request, req process.Request) {
	job, err := h.supervisor.Spawn(r.Context(), req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, SpawnResponse{
		Success:   true,
		CommandID: job.ID,
		Command:   job.Command,
		PID:       job.PID,
	})
}

// ListProcesses handles GET /api/processes
func (h *Handler) ListProcesses(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, ProcessListResponse{Processes: h.supervisor.List()})
}

// GetProcess handles GET /api/processes/{id}?limit=N
func (h *Handler) GetProcess(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "Process ID is required")
		return
	}

	limit := defaultLogLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.handleError(w, r, apperrors.Validation("limit", "limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	details, err := h.supervisor.Details(id, limit)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, details)
}

// DeleteProcess handles DELETE /api/processes/{id}
func (h *Handler) DeleteProcess(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "Process ID is required")
		return
	}

	if !h.supervisor.Delete(id) {
		h.handleError(w, r, apperrors.NotFound("process", id))
		return
	}
	h.writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// StopProcess handles POST /api/stop/{id}. Unknown and finished processes
// report success false.
func (h *Handler) StopProcess(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "Process ID is required")
		return
	}
	h.writeJSON(w, http.StatusOK, SuccessResponse{Success: h.supervisor.Stop(id)})
}

// ProcessStatus handles GET /api/status/{id}. Unknown ids answer 200 with
// status "not_found" so pollers need no special casing.
func (h *Handler) ProcessStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "Process ID is required")
		return
	}

	status, err := h.supervisor.Status(id)
	if err != nil {
		h.writeJSON(w, http.StatusOK, StatusResponse{Status: process.StatusNotFound, Logs: []logstore.Entry{}})
		return
	}
	logs, err := h.supervisor.Logs(id, 0)
	if err != nil {
		logs = []logstore.Entry{}
	}
	h.writeJSON(w, http.StatusOK, StatusResponse{Status: status, Logs: logs})
}
