package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/marcelsud/storesync/failure"
	"github.com/marcelsud/storesync/retry"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// APIRecorder receives one sample per HTTP round trip
type APIRecorder interface {
	RecordAPICall(success bool, latency time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordAPICall(bool, time.Duration) {}

const (
	accessTokenHeader = "X-Shopify-Access-Token"
	maxResponseBytes  = 4 << 20
)

/* HTTPClient calls the commerce platform admin API
 * Each call waits on a token bucket, then runs through the retry engine;
 * every round trip is reported to the APIRecorder
 */
type HTTPClient struct {
	baseURL  string
	token    string
	http     *http.Client
	limiter  *rate.Limiter
	engine   *retry.Engine
	policy   retry.Policy
	recorder APIRecorder
	logger   zerolog.Logger
}

// ClientOption configures the HTTPClient
type ClientOption func(*HTTPClient)

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(c *http.Client) ClientOption {
	return func(h *HTTPClient) { h.http = c }
}

// WithRateLimit sets requests per second and burst
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(h *HTTPClient) {
		if burst < 1 {
			burst = 1
		}
		h.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithRetryPolicy sets the per-call retry policy
func WithRetryPolicy(p retry.Policy) ClientOption {
	return func(h *HTTPClient) { h.policy = p }
}

// WithEngine sets the retry engine
func WithEngine(e *retry.Engine) ClientOption {
	return func(h *HTTPClient) { h.engine = e }
}

// WithRecorder sets the APIRecorder
func WithRecorder(r APIRecorder) ClientOption {
	return func(h *HTTPClient) { h.recorder = r }
}

// NewHTTPClient creates a client for baseURL, e.g. https://shop.example.com/admin/api/2024-01
func NewHTTPClient(baseURL, token string, logger zerolog.Logger, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		token:    token,
		http:     &http.Client{Timeout: 30 * time.Second},
		limiter:  rate.NewLimiter(rate.Limit(2), 4),
		policy:   retry.DefaultPolicy(),
		recorder: nopRecorder{},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.engine == nil {
		c.engine = retry.NewEngine(logger)
	}
	return c
}

// AdminURL builds the admin API base URL for a shop domain and API version
func AdminURL(shopDomain, apiVersion string) string {
	shopDomain = strings.TrimPrefix(strings.TrimPrefix(shopDomain, "https://"), "http://")
	return fmt.Sprintf("https://%s/admin/api/%s", strings.TrimRight(shopDomain, "/"), apiVersion)
}

// Request implements Client
func (c *HTTPClient) Request(ctx context.Context, method, path string, body any) (*Response, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
	}

	rc := retry.NewContext("commerce "+method+" "+path, map[string]any{"method": method, "path": path})
	return retry.Do(ctx, c.engine, rc, c.policy, func(ctx context.Context) (*Response, error) {
		return c.roundTrip(ctx, method, path, payload)
	})
}

func (c *HTTPClient) roundTrip(ctx context.Context, method, path string, payload []byte) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set(accessTokenHeader, c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.recorder.RecordAPICall(false, time.Since(start))
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	latency := time.Since(start)
	if err != nil {
		c.recorder.RecordAPICall(false, latency)
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	res := &Response{Status: resp.StatusCode, Body: data}
	c.recorder.RecordAPICall(res.OK(), latency)
	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", res.Status).
		Dur("latency", latency).
		Msg("commerce api call")

	if !res.OK() {
		return nil, failure.NewStatusError(res.Status, method, path, data)
	}
	return res, nil
}
