package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marcelsud/storesync/commerce"
	"github.com/marcelsud/storesync/config"
	"github.com/marcelsud/storesync/ingest"
	ingestredis "github.com/marcelsud/storesync/ingest/redis"
	"github.com/marcelsud/storesync/internal/http/chi"
	"github.com/marcelsud/storesync/metrics"
	"github.com/marcelsud/storesync/providers"
	"github.com/marcelsud/storesync/syncqueue"
	syncqueueredis "github.com/marcelsud/storesync/syncqueue/redis"
	"github.com/marcelsud/storesync/webhook"
	webhookredis "github.com/marcelsud/storesync/webhook/redis"
	"github.com/rs/zerolog"
)

const (
	TIMEOUT             = 30 * time.Second
	maintenanceInterval = 10 * time.Minute
)

// stores are the storage backends picked by configuration
type stores struct {
	ledger   webhook.Ledger
	outcomes metrics.OutcomeCounter
	queue    syncqueue.Store
	mirror   ingest.Mirror
	evict    func(ctx context.Context) int
	close    func() error
}

func main() {
	cfg, err := config.GetConfig()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	logger := chi.NewLogger(cfg.LogLevel)

	if err := run(cfg, logger); err != nil {
		logger.Error().Err(err).Msg("storesync stopped")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT,
	)
	defer stop()

	st, err := newStores(cfg)
	if err != nil {
		return err
	}
	defer st.close()

	collector := metrics.NewCollector()
	client := commerce.NewHTTPClient(
		commerce.AdminURL(cfg.CommerceShopDomain, cfg.CommerceAPIVersion),
		cfg.CommerceAccessToken,
		logger,
		commerce.WithRateLimit(cfg.CommerceRateLimit, 2*int(cfg.CommerceRateLimit)),
		commerce.WithRecorder(collector),
	)
	service := commerce.NewService(client, collector, logger)

	queue := syncqueue.New(st.queue, service.SyncEvent, logger,
		syncqueue.WithMaxRetries(cfg.QueueMaxRetries),
		syncqueue.WithBatchSize(cfg.QueueBatchSize),
		syncqueue.WithBatchDelay(cfg.QueueBatchDelay()),
		syncqueue.WithSyncOnPaymentSuccess(cfg.SyncOnPaymentSuccess),
		syncqueue.WithSyncOnOrderCreation(cfg.SyncOnOrderCreation),
		syncqueue.WithTransitionHook(orderSyncRecorder(collector)),
	)

	provs, err := loadProviders(cfg)
	if err != nil {
		return err
	}
	routers := make(map[string]*webhook.Router, len(provs))
	for _, p := range provs {
		r := webhook.NewRouter(p, st.ledger, logger)
		switch p.Scheme {
		case webhook.StandardWebhooks:
			ingest.RegisterPayments(r, queue, logger)
		default:
			ingest.RegisterCommerce(r, st.mirror, logger)
		}
		routers[p.Name] = r
		logger.Info().Str("provider", p.Name).Str("scheme", p.Scheme.String()).Strs("topics", r.Topics()).Msg("webhook provider ready")
	}

	exporter, err := metrics.NewOTelExporter(collector, queue, st.outcomes)
	if err != nil {
		return fmt.Errorf("creating metrics exporter: %w", err)
	}
	defer exporter.Shutdown(context.Background())

	r := chi.Handlers(ctx, chi.Dependencies{
		Routers:          routers,
		Queue:            queue,
		Reporter:         collector,
		Commerce:         service,
		Metrics:          exporter.ServeHTTP(),
		CleanupOlderThan: cfg.QueueRetention(),
		Logger:           logger,
	})
	srv := &http.Server{
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		Addr:         ":" + cfg.Port,
		Handler:      r,
	}

	go maintain(ctx, queue, st.evict, cfg.QueueRetention(), logger)

	errShutdown := make(chan error, 1)
	go shutdown(srv, ctx, errShutdown)
	logger.Info().Str("port", cfg.Port).Bool("redis", cfg.UseRedis()).Msg("listening")
	err = srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return <-errShutdown
}

func newStores(cfg *config.Config) (stores, error) {
	if !cfg.UseRedis() {
		ledger := webhook.NewMemoryLedger(0, cfg.LedgerRetention())
		return stores{
			ledger:   ledger,
			outcomes: ledger,
			queue:    syncqueue.NewMemoryStore(),
			mirror:   ingest.NewMemoryMirror(),
			evict:    ledger.Evict,
			close:    func() error { return nil },
		}, nil
	}

	client, err := webhookredis.Connect(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return stores{}, err
	}
	return stores{
		ledger:   webhookredis.NewLedger(client, 0, cfg.LedgerRetention()),
		outcomes: metrics.NewRedisLedgerCollector(client),
		queue:    syncqueueredis.NewStore(client),
		mirror:   ingestredis.NewMirror(client),
		// keys expire on their own
		evict: func(context.Context) int { return 0 },
		close: client.Close,
	}, nil
}

func loadProviders(cfg *config.Config) ([]webhook.Provider, error) {
	if cfg.ProvidersFile == "" {
		provs := providers.Defaults(cfg.CommerceWebhookSecret, cfg.PaymentsWebhookSecret, cfg.RequireSignature)
		for _, p := range provs {
			if err := p.Validate(); err != nil {
				return nil, fmt.Errorf("validating provider: %w", err)
			}
		}
		return provs, nil
	}

	loader := providers.NewLoader(providers.WithRequireSignature(cfg.RequireSignature))
	if err := loader.Load(cfg.ProvidersFile); err != nil {
		return nil, err
	}
	return loader.List(), nil
}

// orderSyncRecorder feeds queue outcomes into the collector
func orderSyncRecorder(c *metrics.Collector) func(syncqueue.Transition) {
	return func(tr syncqueue.Transition) {
		switch tr.To {
		case syncqueue.Completed:
			c.RecordOrderSync(true)
		case syncqueue.Failed, syncqueue.Abandoned:
			c.RecordOrderSync(false)
		}
	}
}

// maintain retries due queue items and evicts old records until ctx ends
func maintain(ctx context.Context, q *syncqueue.Queue, evict func(context.Context) int, retention time.Duration, logger zerolog.Logger) {
	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if results, err := q.RetryFailed(ctx); err != nil {
			logger.Error().Err(err).Msg("retrying failed syncs")
		} else if len(results) > 0 {
			logger.Info().Int("retried", len(results)).Msg("retried failed syncs")
		}
		if _, err := q.Cleanup(ctx, retention); err != nil {
			logger.Error().Err(err).Msg("cleaning up sync queue")
		}
		if n := evict(ctx); n > 0 {
			logger.Info().Int("evicted", n).Msg("ledger records evicted")
		}
	}
}

func shutdown(server *http.Server, ctxShutdown context.Context, errShutdown chan error) {
	<-ctxShutdown.Done()

	ctxTimeout, stop := context.WithTimeout(context.Background(), TIMEOUT)
	defer stop()

	err := server.Shutdown(ctxTimeout)
	switch err {
	case nil:
		fmt.Printf("\nShutting down server...\n")
		errShutdown <- nil
	case context.DeadlineExceeded:
		errShutdown <- fmt.Errorf("Forcing closing the server")
	default:
		errShutdown <- fmt.Errorf("Forcing closing the server")
	}
}
