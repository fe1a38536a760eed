package metrics

import (
	"context"
	"time"
)

// Report is the detailed metrics snapshot
type Report struct {
	// APICalls is the total number of outbound API calls
	APICalls int64 `json:"api_calls"`

	// APIErrors is the number of outbound API calls that failed
	APIErrors int64 `json:"api_errors"`

	// ErrorRate and AverageLatencyMs cover the most recent Samples calls
	ErrorRate        float64 `json:"error_rate"`
	AverageLatencyMs float64 `json:"average_latency_ms"`
	Samples          int     `json:"samples"`

	OrdersSynced   int64 `json:"orders_synced"`
	OrdersFailed   int64 `json:"orders_failed"`
	ProductsSynced int64 `json:"products_synced"`

	// LastSync is when the last successful order or product sync finished
	LastSync time.Time `json:"last_sync,omitzero"`

	Health    Health    `json:"health"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusCounter reports how many queue items sit in each status
type StatusCounter interface {
	StatusCounts(ctx context.Context) (map[string]int64, error)
}

// OutcomeCounter reports how many ledger records hold each outcome
type OutcomeCounter interface {
	OutcomeCounts(ctx context.Context) (map[string]int64, error)
}
