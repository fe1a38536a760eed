package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/marcelsud/storesync/webhook/signature"
	"github.com/rs/zerolog"
)

// Handler processes one verified, parsed delivery for a topic
type Handler interface {
	Handle(ctx context.Context, d Delivery) error
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx context.Context, d Delivery) error

// Handle implements Handler
func (f HandlerFunc) Handle(ctx context.Context, d Delivery) error {
	return f(ctx, d)
}

/* Router is the synchronous entry point for one provider
 * It is a strict linear gate pipeline: every stage failure short-circuits
 * with its own status code
 */
type Router struct {
	provider Provider
	ledger   Ledger
	logger   zerolog.Logger
	now      func() time.Time

	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRouter creates a Router. A nil ledger disables redelivery detection.
func NewRouter(provider Provider, ledger Ledger, logger zerolog.Logger) *Router {
	return &Router{
		provider: provider,
		ledger:   ledger,
		logger:   logger.With().Str("provider", provider.Name).Logger(),
		now:      time.Now,
		handlers: make(map[string]Handler),
	}
}

// Provider returns the provider definition
func (r *Router) Provider() Provider {
	return r.provider
}

// Register binds a handler to a topic, replacing any previous one
func (r *Router) Register(topic string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[topic] = h
}

// Topics lists the registered topics in order
func (r *Router) Topics() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	topics := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	return topics
}

// Handle runs req through the gate pipeline
func (r *Router) Handle(ctx context.Context, req Request) Response {
	p := r.provider

	// 1. headers
	topic := req.Header(p.TopicHeader)
	if p.TopicHeader != "" && topic == "" {
		return reject(http.StatusBadRequest, MsgMissingHeaders)
	}

	// 2. signature
	if res, ok := r.checkSignature(req, topic); !ok {
		return res
	}

	// 3. body
	var fields map[string]any
	if err := json.Unmarshal(req.RawBody, &fields); err != nil {
		r.logger.Warn().Err(err).Str("topic", topic).Msg("webhook body is not valid JSON")
		return reject(http.StatusBadRequest, MsgInvalidJSON)
	}
	if topic == "" {
		topic, _ = fields[p.TopicField].(string)
		if topic == "" {
			return reject(http.StatusBadRequest, MsgMissingEventType)
		}
	}

	deliveryID := req.Header(p.DeliveryIDHeader)
	if deliveryID == "" && p.DeliveryIDField != "" {
		deliveryID, _ = fields[p.DeliveryIDField].(string)
	}
	log := r.logger.With().Str("topic", topic).Str("delivery_id", deliveryID).Logger()

	// 4. redelivery
	if deliveryID != "" && r.ledger != nil {
		rec, err := r.ledger.Get(ctx, p.Name, deliveryID)
		switch {
		case err == nil && rec.Outcome == Processed:
			log.Info().Msg("webhook already processed, skipping")
			return Response{Success: true, Status: http.StatusOK, Message: MsgAlreadyProcessed}
		case err != nil && !errors.Is(err, ErrNotFound):
			log.Warn().Err(err).Msg("idempotency ledger lookup failed")
		}
	}

	// 5. topic
	r.mu.RLock()
	h, ok := r.handlers[topic]
	r.mu.RUnlock()
	if !ok {
		log.Warn().Msg("unsupported webhook topic")
		return reject(http.StatusBadRequest, MsgUnsupportedTopic)
	}

	// 6. handler
	if deliveryID != "" && r.ledger != nil {
		existing, claimed, err := r.ledger.Claim(ctx, DeliveryRecord{
			Provider:   p.Name,
			DeliveryID: deliveryID,
			Topic:      topic,
			ReceivedAt: r.now(),
		})
		if err != nil {
			log.Error().Err(err).Msg("claiming webhook delivery")
			return reject(http.StatusInternalServerError, MsgProcessingFailed)
		}
		if !claimed {
			if existing.Outcome == Processed {
				return Response{Success: true, Status: http.StatusOK, Message: MsgAlreadyProcessed}
			}
			log.Info().Msg("webhook delivery already in flight")
			return reject(http.StatusInternalServerError, MsgInProgress)
		}
	}

	d := Delivery{
		Provider:   p.Name,
		ID:         deliveryID,
		Topic:      topic,
		Headers:    req.Headers,
		RawBody:    req.RawBody,
		Payload:    json.RawMessage(req.RawBody),
		Fields:     fields,
		ReceivedAt: r.now(),
	}

	if err := r.invoke(ctx, h, d); err != nil {
		log.Error().Err(err).Msg("webhook handler failed")
		r.complete(ctx, log, deliveryID, Failed)
		return reject(http.StatusInternalServerError, MsgProcessingFailed)
	}

	r.complete(ctx, log, deliveryID, Processed)
	log.Info().Msg("webhook processed")
	return Response{Success: true, Status: http.StatusOK, Message: MsgProcessedSuccessful}
}

func (r *Router) checkSignature(req Request, topic string) (Response, bool) {
	p := r.provider
	header := req.Header(p.SignatureHeader)
	if header == "" {
		if p.RequireSignature {
			r.logger.Warn().Str("topic", topic).Msg("unsigned webhook rejected")
			return reject(http.StatusUnauthorized, MsgMissingSignature), false
		}
		return Response{}, true
	}

	valid, err := p.verify(req, header, r.now())
	if errors.Is(err, signature.ErrMissingSecret) {
		r.logger.Error().Err(err).Str("topic", topic).Msg("cannot verify webhook signature, secret missing")
		return reject(http.StatusInternalServerError, MsgSignatureMisconfig), false
	}
	if err != nil || !valid {
		r.logger.Warn().Err(err).Str("topic", topic).Msg("invalid webhook signature")
		return reject(http.StatusUnauthorized, MsgInvalidSignature), false
	}
	return Response{}, true
}

// invoke converts handler panics into errors
func (r *Router) invoke(ctx context.Context, h Handler, d Delivery) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("webhook handler panic: %v", rec)
		}
	}()
	return h.Handle(ctx, d)
}

func (r *Router) complete(ctx context.Context, log zerolog.Logger, deliveryID string, outcome Outcome) {
	if deliveryID == "" || r.ledger == nil {
		return
	}
	if err := r.ledger.Complete(ctx, r.provider.Name, deliveryID, outcome); err != nil {
		log.Error().Err(err).Str("outcome", outcome.String()).Msg("recording webhook outcome")
	}
}

func reject(status int, msg string) Response {
	return Response{Success: false, Status: status, Error: msg}
}
