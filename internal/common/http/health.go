package http

import (
	"context"
	"net/http"
	"time"

	"github.com/AlibekovAA/fincore/internal/common/logger"
)

// Pinger is a dependency the health check reports on.
type Pinger func(ctx context.Context) error

func HealthHandler(log *logger.Logger, checks map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			WriteErrorEnvelope(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "method not allowed", nil, "")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]string{"status": "ok"}
		for name, ping := range checks {
			if err := ping(ctx); err != nil {
				log.WithFields(ctx, logger.Fields{
					"dependency": name,
					"action":     "health_check_failed",
				}).Warnf("health check failed: %v", err)
				body[name] = "down"
				body["status"] = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			body[name] = "up"
		}

		WriteJSON(w, status, body)
	}
}
