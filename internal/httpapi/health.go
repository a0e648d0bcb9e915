package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/think-in-universe/nearai-cloud-server/internal/utils"
)

const healthTimeout = 2 * time.Second

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`

	// Replicas lists tripped breakers. They do not affect the status since
	// other replicas of the same model may still serve.
	Replicas map[string]string `json:"replicas,omitempty"`
}

// handleHealth probes every backing service. Any failure turns the whole
// response into a 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(s.health))}
	status := http.StatusOK
	for name, check := range s.health {
		if err := check.Health(ctx); err != nil {
			s.logger.Warn("health check failed", "check", name, "error", err)
			resp.Checks[name] = "unavailable"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	if s.breakers != nil {
		resp.Replicas = s.breakers.Unavailable()
	}

	_ = utils.RespondWithJSON(w, status, resp)
}
