package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"sitaraServer/db"
)

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := map[string]interface{}{
		"postgres":  "ok",
		"redis":     "ok",
		"wsClients": s.hub.ClientCount(),
		"time":      s.registry.Now().Format(time.RFC3339),
	}
	healthy := true

	if err := db.HealthCheckPostgres(ctx); err != nil {
		status["postgres"] = err.Error()
		healthy = false
	}
	// redis is optional
	if err := db.HealthCheckRedis(ctx); err != nil {
		status["redis"] = err.Error()
	}

	if !healthy {
		status["error"] = "postgres unavailable"
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		status["success"] = false
		json.NewEncoder(w).Encode(status)
		return
	}
	sendJSON(w, http.StatusOK, status)
}
