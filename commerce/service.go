package commerce

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/marcelsud/storesync/syncqueue"
	"github.com/rs/zerolog"
)

// ProductRecorder receives the number of products synced per call
type ProductRecorder interface {
	RecordProductSync(count int)
}

type nopProductRecorder struct{}

func (nopProductRecorder) RecordProductSync(int) {}

// HealthStatus is the result of a connectivity check
type HealthStatus struct {
	Status        string   `json:"status"`
	APIConnection bool     `json:"apiConnection"`
	Errors        []string `json:"errors"`
}

// Stats are the service counters since start
type Stats struct {
	APICalls       int64     `json:"apiCalls"`
	SyncedProducts int64     `json:"syncedProducts"`
	SyncedOrders   int64     `json:"syncedOrders"`
	Errors         int64     `json:"errors"`
	LastSync       time.Time `json:"lastSync,omitzero"`
}

// Service syncs local orders, products and inventory to the platform
type Service struct {
	client   Client
	products ProductRecorder
	logger   zerolog.Logger
	now      func() time.Time

	mu    sync.Mutex
	stats Stats
}

// NewService creates a Service. products may be nil.
func NewService(client Client, products ProductRecorder, logger zerolog.Logger) *Service {
	if products == nil {
		products = nopProductRecorder{}
	}
	return &Service{
		client:   client,
		products: products,
		logger:   logger.With().Str("component", "commerce").Logger(),
		now:      time.Now,
	}
}

// SyncOrder creates o on the platform and returns the created order JSON
func (s *Service) SyncOrder(ctx context.Context, o Order) (json.RawMessage, error) {
	res, err := s.call(ctx, http.MethodPost, "/orders.json", map[string]any{"order": MapOrder(o)})
	if err != nil {
		return nil, fmt.Errorf("syncing order %s: %w", o.ID, err)
	}

	s.mu.Lock()
	s.stats.SyncedOrders++
	s.stats.LastSync = s.now()
	s.mu.Unlock()

	s.logger.Info().Str("order_id", o.ID).Msg("order synced")
	return json.RawMessage(res.Body), nil
}

// SyncEvent implements syncqueue.SyncFunc
func (s *Service) SyncEvent(ctx context.Context, ev syncqueue.Event) (json.RawMessage, error) {
	o, err := OrderFromEvent(ev)
	if err != nil {
		return nil, err
	}
	return s.SyncOrder(ctx, o)
}

// SyncProducts creates every product and returns how many succeeded.
// Failures do not stop the remaining products.
func (s *Service) SyncProducts(ctx context.Context, products []Product) (int, error) {
	var errs []error
	synced := 0
	for _, p := range products {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if _, err := s.call(ctx, http.MethodPost, "/products.json", map[string]any{"product": MapProduct(p)}); err != nil {
			errs = append(errs, fmt.Errorf("syncing product %s: %w", p.ID, err))
			continue
		}
		synced++
	}

	if synced > 0 {
		s.mu.Lock()
		s.stats.SyncedProducts += int64(synced)
		s.stats.LastSync = s.now()
		s.mu.Unlock()
		s.products.RecordProductSync(synced)
	}
	s.logger.Info().Int("synced", synced).Int("failed", len(errs)).Msg("products synced")
	return synced, errors.Join(errs...)
}

// UpdateInventory sets the available quantity of an inventory item at a location
func (s *Service) UpdateInventory(ctx context.Context, inventoryItemID, locationID string, available int) error {
	body := map[string]any{
		"inventory_item_id": inventoryItemID,
		"location_id":       locationID,
		"available":         available,
	}
	if _, err := s.call(ctx, http.MethodPost, "/inventory_levels/set.json", body); err != nil {
		return fmt.Errorf("updating inventory %s: %w", inventoryItemID, err)
	}
	return nil
}

// HealthCheck probes the platform with a read-only call
func (s *Service) HealthCheck(ctx context.Context) HealthStatus {
	h := HealthStatus{Status: "healthy", APIConnection: true, Errors: []string{}}
	if _, err := s.call(ctx, http.MethodGet, "/shop.json", nil); err != nil {
		h.Status = "unhealthy"
		h.APIConnection = false
		h.Errors = append(h.Errors, err.Error())
	}
	return h
}

// Stats returns a snapshot of the counters
func (s *Service) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Service) call(ctx context.Context, method, path string, body any) (*Response, error) {
	res, err := s.client.Request(ctx, method, path, body)

	s.mu.Lock()
	s.stats.APICalls++
	if err != nil {
		s.stats.Errors++
	}
	s.mu.Unlock()

	return res, err
}
