package payload

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// eventTypePattern validates event types: hierarchical, full-stop delimited, [a-zA-Z0-9_.]
var eventTypePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+(\.[a-zA-Z0-9_]+)*$`)

// Envelope is the payment provider's event wrapper
type Envelope struct {
	// ID is the provider event id, used as the idempotency key downstream
	ID string `json:"id"`

	// Type is full-stop delimited, e.g. "payment.succeeded", "order.created"
	Type string `json:"type"`

	// Timestamp is when the provider emitted the event; optional
	Timestamp time.Time `json:"timestamp"`

	Data json.RawMessage `json:"data"`
}

// Validate checks the envelope structure
func (e Envelope) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("id is required")
	}
	if e.Type == "" {
		return fmt.Errorf("type is required")
	}
	if !eventTypePattern.MatchString(e.Type) {
		return fmt.Errorf("type must be hierarchical and contain only [a-zA-Z0-9_.]: %s", e.Type)
	}
	if len(e.Data) == 0 {
		return fmt.Errorf("data is required")
	}
	if !json.Valid(e.Data) {
		return fmt.Errorf("data must be valid JSON")
	}
	return nil
}

// MarshalJSON writes the timestamp as RFC3339Nano and omits it when zero
func (e Envelope) MarshalJSON() ([]byte, error) {
	type alias Envelope
	aux := struct {
		Timestamp string `json:"timestamp,omitempty"`
		*alias
	}{alias: (*alias)(&e)}
	if !e.Timestamp.IsZero() {
		aux.Timestamp = e.Timestamp.Format(time.RFC3339Nano)
	}
	return json.Marshal(aux)
}

// UnmarshalJSON accepts RFC3339 timestamps with or without fractional seconds
func (e *Envelope) UnmarshalJSON(data []byte) error {
	type alias Envelope
	aux := &struct {
		Timestamp string `json:"timestamp"`
		*alias
	}{alias: (*alias)(e)}

	if err := json.Unmarshal(data, aux); err != nil {
		return fmt.Errorf("unmarshaling payload: %w", err)
	}

	e.Timestamp = time.Time{}
	if aux.Timestamp == "" {
		return nil
	}
	ts, err := time.Parse(time.RFC3339Nano, aux.Timestamp)
	if err != nil {
		return fmt.Errorf("parsing timestamp: %w", err)
	}
	e.Timestamp = ts
	return nil
}

// New builds a validated envelope around data
func New(id, eventType string, data any) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshaling data: %w", err)
	}

	e := Envelope{ID: id, Type: eventType, Timestamp: time.Now().UTC(), Data: raw}
	if err := e.Validate(); err != nil {
		return Envelope{}, fmt.Errorf("validating payload: %w", err)
	}
	return e, nil
}

// Parse decodes and validates a raw request body
func Parse(body []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(body, &e); err != nil {
		return Envelope{}, err
	}
	if err := e.Validate(); err != nil {
		return Envelope{}, fmt.Errorf("validating payload: %w", err)
	}
	return e, nil
}

// Bytes returns the minified JSON encoding
func (e Envelope) Bytes() ([]byte, error) {
	return json.Marshal(e)
}

// MatchesEventType reports whether the type matches any pattern; "payment.*"
// matches "payment.succeeded". An empty list matches everything.
func MatchesEventType(eventType string, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}

	for _, p := range patterns {
		if eventType == p {
			return true
		}
		if prefix, ok := strings.CutSuffix(p, ".*"); ok && prefix != "" && strings.HasPrefix(eventType, prefix+".") {
			return true
		}
	}
	return false
}

// ValidateEventType validates an event type or a trailing-wildcard pattern
func ValidateEventType(eventType string) error {
	if eventType == "" {
		return fmt.Errorf("event type cannot be empty")
	}

	eventType = strings.TrimSuffix(eventType, ".*")
	if !eventTypePattern.MatchString(eventType) {
		return fmt.Errorf("event type must be hierarchical and contain only [a-zA-Z0-9_.]: %s", eventType)
	}
	return nil
}
