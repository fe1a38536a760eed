package commerce

import (
	"context"
	"encoding/json"
	"fmt"
)

// Client is the outbound commerce API contract
type Client interface {
	// Request sends body (JSON encoded unless nil) and returns the response.
	// Non-2xx responses are returned as *failure.StatusError.
	Request(ctx context.Context, method, path string, body any) (*Response, error)
}

// Response is a completed API response
type Response struct {
	Status int
	Body   []byte
}

// OK reports a 2xx status
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// JSON decodes the body into v
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decoding response body: %w", err)
	}
	return nil
}
