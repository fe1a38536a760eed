package syncqueue

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// EventType is the kind of payment lifecycle event that may be synced
type EventType string

const (
	OrderCreated     EventType = "order.created"
	PaymentSucceeded EventType = "payment.succeeded"
	PaymentPending   EventType = "payment.pending"
	OrderFulfilled   EventType = "order.fulfilled"
	PaymentFailed    EventType = "payment.failed"
)

var priorities = map[EventType]int{
	OrderCreated:     1,
	PaymentSucceeded: 2,
	PaymentPending:   3,
	OrderFulfilled:   4,
	PaymentFailed:    5,
}

// Priority orders events inside a batch; lower runs first and unknown types run last
func (t EventType) Priority() int {
	if p, ok := priorities[t]; ok {
		return p
	}
	return len(priorities) + 1
}

/* Event is one inbound payment event handed to the queue
 * ID is the provider's event id and becomes the idempotency key
 */
type Event struct {
	ID         string          `json:"id"`
	Type       EventType       `json:"type"`
	OrderID    string          `json:"order_id,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	ReceivedAt time.Time       `json:"received_at"`
}

// Key returns the idempotency key for the event
func (e Event) Key() string {
	return "evt:" + e.ID
}

// Validate checks if the event can be queued
func (e Event) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("event id cannot be empty")
	}
	if e.Type == "" {
		return fmt.Errorf("event type cannot be empty")
	}
	return nil
}

// SortByPriority returns a copy of events in priority order, keeping arrival order on ties
func SortByPriority(events []Event) []Event {
	sorted := make([]Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Type.Priority() < sorted[j].Type.Priority()
	})
	return sorted
}
