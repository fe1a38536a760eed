package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/marcelsud/storesync/commerce"
	"github.com/marcelsud/storesync/config"
	"github.com/marcelsud/storesync/internal/http/chi"
	"github.com/marcelsud/storesync/syncqueue"
	syncqueueredis "github.com/marcelsud/storesync/syncqueue/redis"
	webhookredis "github.com/marcelsud/storesync/webhook/redis"
	"github.com/marcelsud/storesync/webhook/signature"
)

/* cli - one-off sync operations against the configured platform
 * Usage:
 *   cli products <products.json>   sync a JSON array of products
 *   cli batch <events.json>        sync a JSON array of queue events
 *   cli retry                      retry the failed items of the Redis queue
 *   cli health                     check the platform connection
 *   cli sign <event.json>          print Standard Webhooks headers for a payments delivery
 */

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: cli products|batch|retry|health|sign [file]")
		os.Exit(2)
	}
	cfg, err := config.GetConfig()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := run(context.Background(), cfg, os.Args[1], os.Args[2:]); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, cmd string, args []string) error {
	if cmd == "sign" {
		return signDelivery(cfg.PaymentsWebhookSecret, args, time.Now())
	}

	logger := chi.NewLogger(cfg.LogLevel)
	client := commerce.NewHTTPClient(
		commerce.AdminURL(cfg.CommerceShopDomain, cfg.CommerceAPIVersion),
		cfg.CommerceAccessToken,
		logger,
		commerce.WithRateLimit(cfg.CommerceRateLimit, 1),
	)
	service := commerce.NewService(client, nil, logger)

	switch cmd {
	case "health":
		return printJSON(service.HealthCheck(ctx))

	case "products":
		var products []commerce.Product
		if err := readJSON(args, &products); err != nil {
			return err
		}
		synced, err := service.SyncProducts(ctx, products)
		fmt.Printf("synced %d of %d products\n", synced, len(products))
		return err

	case "batch", "retry":
		store := syncqueue.Store(syncqueue.NewMemoryStore())
		if cfg.UseRedis() {
			rc, err := webhookredis.Connect(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
			if err != nil {
				return err
			}
			defer rc.Close()
			store = syncqueueredis.NewStore(rc)
		}
		q := syncqueue.New(store, service.SyncEvent, logger,
			syncqueue.WithMaxRetries(cfg.QueueMaxRetries),
			syncqueue.WithBatchSize(cfg.QueueBatchSize),
			syncqueue.WithBatchDelay(cfg.QueueBatchDelay()),
			syncqueue.WithSyncOnPaymentSuccess(cfg.SyncOnPaymentSuccess),
			syncqueue.WithSyncOnOrderCreation(cfg.SyncOnOrderCreation),
		)

		if cmd == "retry" {
			results, err := q.RetryFailed(ctx)
			if err != nil {
				return err
			}
			return printJSON(results)
		}

		var events []syncqueue.Event
		if err := readJSON(args, &events); err != nil {
			return err
		}
		return printJSON(q.HandleBatch(ctx, events))

	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

// signDelivery prints headers that let the file be posted to /webhooks/payments
func signDelivery(encodedSecret string, args []string, now time.Time) error {
	if len(args) == 0 {
		return fmt.Errorf("missing input file")
	}
	body, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}
	secret, err := signature.ParseSecret(encodedSecret)
	if err != nil {
		return fmt.Errorf("PAYMENTS_WEBHOOK_SECRET: %w", err)
	}

	msgID := "msg_" + uuid.NewString()
	header, err := signature.Sign(secret, msgID, now, body)
	if err != nil {
		return err
	}
	fmt.Printf("webhook-id: %s\n", msgID)
	fmt.Printf("webhook-timestamp: %d\n", now.Unix())
	fmt.Printf("webhook-signature: %s\n", header)
	return nil
}

func readJSON(args []string, v any) error {
	if len(args) == 0 {
		return fmt.Errorf("missing input file")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", args[0], err)
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
