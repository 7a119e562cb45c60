package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/samims/notify/internal/service"
)

type HealthHandler struct {
	service service.HealthService
	logger  *slog.Logger
}

func NewHealthHandler(svc service.HealthService, l *slog.Logger) *HealthHandler {
	return &HealthHandler{service: svc, logger: l.With("layer", "handler", "component", "health_handler")}
}

// Liveness only reports that the process is serving
func (h *HealthHandler) Liveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Readiness pings every dependency and fails if any is unreachable
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	status := h.service.Check(r.Context())
	code := http.StatusOK
	for name, s := range status {
		if strings.HasPrefix(s, "error") {
			h.logger.WarnContext(r.Context(), "Dependency not ready", slog.String("dependency", name), slog.String("status", s))
			code = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, status)
}
