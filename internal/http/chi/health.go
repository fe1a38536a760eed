package chi

import (
	"net/http"

	"github.com/marcelsud/storesync/commerce"
	"github.com/marcelsud/storesync/metrics"
)

type healthResponse struct {
	Status   string                 `json:"status"`
	Commerce *commerce.HealthStatus `json:"commerce,omitempty"`
}

// getHealth handles GET /health. Unhealthy answers 503.
func getHealth(rep Reporter, checker HealthChecker) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		health := rep.Report().Health
		resp := healthResponse{Status: health.String()}
		if checker != nil {
			h := checker.HealthCheck(r.Context())
			resp.Commerce = &h
			if !h.APIConnection {
				health = metrics.Unhealthy
				resp.Status = health.String()
			}
		}

		status := http.StatusOK
		if health == metrics.Unhealthy {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, resp)
	})
}

// getMetricsReport handles GET /v1/metrics/report
func getMetricsReport(rep Reporter) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, rep.Report())
	})
}
