package api

import (
	"net/http"

	"opsconsole/internal/health"
	"opsconsole/internal/observability"
	"opsconsole/internal/probe"
	"opsconsole/internal/process"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	Supervisor    *process.Supervisor
	Sweeper       *probe.Sweeper
	Metrics       *observability.Metrics
	HealthChecker *health.Checker
	APIKey        string
	ExportDir     string
	SyncCommand   string
}

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(cfg RouterConfig) http.Handler {
	handler := NewHandler(cfg)

	mux := http.NewServeMux()

	// Health check endpoints (liveness/readiness probes) - no auth required
	mux.HandleFunc("GET /livez", handler.Livez)
	mux.HandleFunc("GET /readyz", handler.Readyz)

	// API endpoints - auth required
	auth := AuthMiddleware(cfg.APIKey)
	route := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, auth(fn))
	}

	// Processes
	route("POST /api/processes", handler.CreateProcess)
	route("GET /api/processes", handler.ListProcesses)
	route("GET /api/processes/{id}", handler.GetProcess)
	route("DELETE /api/processes/{id}", handler.DeleteProcess)
	route("POST /api/test_command", handler.TestCommand)
	route("POST /api/stop/{id}", handler.StopProcess)
	route("GET /api/status/{id}", handler.ProcessStatus)

	// Proxy sweeps
	route("POST /api/proxies/test", handler.TestProxies)
	route("POST /api/proxies/stop", handler.StopProxies)
	route("GET /api/proxies/progress", handler.ProxiesProgress)
	route("GET /api/proxies/working", handler.WorkingProxies)
	route("GET /api/proxies/unique", handler.UniqueProxies)
	route("POST /api/proxies/export", handler.ExportProxies)
	route("POST /api/proxies/sync", handler.SyncProxies)

	// Apply middleware chain (order matters: outermost first)
	var h http.Handler = mux
	h = ContentTypeMiddleware()(h)
	h = CORSMiddleware()(h)
	if cfg.Metrics != nil {
		h = MetricsMiddleware(cfg.Metrics)(h)
	}
	h = LoggingMiddleware()(h)
	h = RequestIDMiddleware()(h)
	h = RecoveryMiddleware()(h)

	return h
}
