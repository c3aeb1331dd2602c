package handlers

import (
	"context"
	"net/http"
	"time"

	pkghttp "github.com/BradenHooton/taskdesk/pkg/http"
)

// HealthChecker pings a dependency
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthResponse is the body of /health
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// Health reports 200 when the database answers within two seconds and 503
// otherwise.
func Health(db HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			pkghttp.WriteJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unhealthy", Database: "down"})
			return
		}
		pkghttp.WriteJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Database: "up"})
	}
}
