package webhook

import (
	"encoding/json"
	"strings"
	"time"
)

/* Request is the normalized inbound request handed over by the HTTP adapter
 * RawBody holds the exact bytes received; signatures are computed over it
 */
type Request struct {
	Headers map[string]string
	RawBody []byte
}

// Header looks a header up case-insensitively
func (r Request) Header(name string) string {
	if name == "" {
		return ""
	}
	if v, ok := r.Headers[name]; ok {
		return strings.TrimSpace(v)
	}
	for k, v := range r.Headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// Response is the normalized result of handling one request
type Response struct {
	Success bool   `json:"success"`
	Status  int    `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

/* Delivery is what topic handlers receive
 * Uses value semantics as it represents data, not behavior
 */
type Delivery struct {
	Provider   string
	ID         string
	Topic      string
	Headers    map[string]string
	RawBody    []byte
	Payload    json.RawMessage
	Fields     map[string]any
	ReceivedAt time.Time
}

// Decode unmarshals the payload into v
func (d Delivery) Decode(v any) error {
	return json.Unmarshal(d.Payload, v)
}

const (
	MsgMissingHeaders      = "Missing required headers"
	MsgMissingEventType    = "Missing event type"
	MsgMissingSignature    = "Missing webhook signature"
	MsgInvalidSignature    = "Invalid webhook signature"
	MsgSignatureMisconfig  = "Webhook signature verification misconfigured"
	MsgInvalidJSON         = "Invalid JSON payload"
	MsgAlreadyProcessed    = "Webhook already processed"
	MsgInProgress          = "Webhook processing in progress"
	MsgUnsupportedTopic    = "Unsupported webhook topic"
	MsgProcessingFailed    = "Webhook processing failed"
	MsgProcessedSuccessful = "Webhook processed successfully"
)
