package ingest

import (
	"context"
	"fmt"

	"github.com/marcelsud/storesync/syncqueue"
	"github.com/marcelsud/storesync/webhook"
	"github.com/marcelsud/storesync/webhook/payload"
	"github.com/rs/zerolog"
)

// Enqueuer is the part of the sync queue the payment handlers use
type Enqueuer interface {
	ShouldSync(t syncqueue.EventType) bool
	EnqueueAndSync(ctx context.Context, ev syncqueue.Event) syncqueue.SyncResult
}

// PaymentTopics lists the payment provider event types handled
var PaymentTopics = []syncqueue.EventType{
	syncqueue.OrderCreated,
	syncqueue.PaymentSucceeded,
	syncqueue.PaymentPending,
	syncqueue.OrderFulfilled,
	syncqueue.PaymentFailed,
}

// RegisterPayments binds the payment provider event types to q
func RegisterPayments(r *webhook.Router, q Enqueuer, logger zerolog.Logger) {
	h := paymentHandler(q, logger)
	for _, t := range PaymentTopics {
		r.Register(string(t), h)
	}
}

// EventFromEnvelope converts a payment provider envelope into a queue event.
// Only the order id is read; the sync decodes the rest of data.
func EventFromEnvelope(env payload.Envelope) (syncqueue.Event, error) {
	orderID, err := env.OrderID()
	if err != nil {
		return syncqueue.Event{}, err
	}
	return syncqueue.Event{
		ID:         env.ID,
		Type:       syncqueue.EventType(env.Type),
		OrderID:    orderID,
		Data:       env.Data,
		ReceivedAt: env.Timestamp,
	}, nil
}

/* paymentHandler hands the event to the queue
 * A failed attempt is an error so the provider redelivers; an abandoned item
 * is acknowledged and left for operators in the queue status
 */
func paymentHandler(q Enqueuer, logger zerolog.Logger) webhook.Handler {
	return webhook.HandlerFunc(func(ctx context.Context, d webhook.Delivery) error {
		env, err := payload.Parse(d.RawBody)
		if err != nil {
			return fmt.Errorf("parsing payment event: %w", err)
		}
		if !q.ShouldSync(syncqueue.EventType(env.Type)) {
			logger.Info().Str("event_id", env.ID).Str("type", env.Type).Msg("payment event acknowledged without sync")
			return nil
		}
		ev, err := EventFromEnvelope(env)
		if err != nil {
			return err
		}
		if ev.ReceivedAt.IsZero() {
			ev.ReceivedAt = d.ReceivedAt
		}

		res := q.EnqueueAndSync(ctx, ev)
		log := logger.With().Str("event_id", ev.ID).Str("type", string(ev.Type)).Int("attempts", res.Attempts).Logger()
		switch {
		case res.Skipped:
			log.Info().Msg("payment event acknowledged without sync")
			return nil
		case res.Success:
			return nil
		case res.InFlight:
			return fmt.Errorf("sync of %s already in flight", ev.ID)
		case res.Status == syncqueue.Abandoned:
			log.Error().Str("error", res.Error).Msg("sync abandoned")
			return nil
		default:
			return fmt.Errorf("syncing %s: %s", ev.ID, res.Error)
		}
	})
}
