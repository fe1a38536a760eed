package chi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"
	"github.com/marcelsud/storesync/commerce"
	"github.com/marcelsud/storesync/metrics"
	"github.com/marcelsud/storesync/syncqueue"
	"github.com/marcelsud/storesync/webhook"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

// SyncQueue is the part of the queue exposed over HTTP
type SyncQueue interface {
	Status(ctx context.Context) (syncqueue.Counts, error)
	RetryFailed(ctx context.Context) ([]syncqueue.SyncResult, error)
	Cleanup(ctx context.Context, olderThan time.Duration) (int, error)
	HandleBatch(ctx context.Context, events []syncqueue.Event) []syncqueue.SyncResult
}

// Reporter produces the metrics report
type Reporter interface {
	Report() metrics.Report
}

// HealthChecker probes the commerce platform
type HealthChecker interface {
	HealthCheck(ctx context.Context) commerce.HealthStatus
}

/* Dependencies groups everything the HTTP layer talks to
 * Routers is keyed by the {provider} path segment. Commerce and Metrics may be nil.
 */
type Dependencies struct {
	Routers          map[string]*webhook.Router
	Queue            SyncQueue
	Reporter         Reporter
	Commerce         HealthChecker
	Metrics          http.Handler
	CleanupOlderThan time.Duration
	Logger           zerolog.Logger
}

// Handlers sets up the HTTP routes
func Handlers(ctx context.Context, deps Dependencies) *chi.Mux {
	r := chi.NewRouter()
	r.Use(httplog.RequestLogger(deps.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", getHealth(deps.Reporter, deps.Commerce).ServeHTTP)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Post("/webhooks/{provider}", postWebhook(deps.Routers).ServeHTTP)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/sync/status", getSyncStatus(deps.Queue).ServeHTTP)
		r.Post("/sync/retry", postSyncRetry(deps.Queue).ServeHTTP)
		r.Post("/sync/cleanup", postSyncCleanup(deps.Queue, deps.CleanupOlderThan).ServeHTTP)
		r.Post("/sync/batch", postSyncBatch(deps.Queue).ServeHTTP)
		r.Get("/metrics/report", getMetricsReport(deps.Reporter).ServeHTTP)
	})

	return r
}

// NewLogger builds the JSON request logger shared by the service
func NewLogger(level string) zerolog.Logger {
	return httplog.NewLogger("storesync", httplog.Options{
		JSON:     true,
		LogLevel: level,
	})
}
