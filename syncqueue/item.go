package syncqueue

import (
	"encoding/json"
	"time"
)

// Item is one outbound synchronization unit, exclusively owned by the Queue
type Item struct {
	Key           string          `json:"key"`
	Event         Event           `json:"event"`
	Attempts      int             `json:"attempts"`
	Status        Status          `json:"status"`
	LastAttemptAt time.Time       `json:"last_attempt_at,omitzero"`
	NextRetryAt   time.Time       `json:"next_retry_at,omitzero"`
	LastError     string          `json:"last_error,omitempty"`
	Result        json.RawMessage `json:"result,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// ClaimExpired reports whether a Processing claim is older than ttl,
// meaning its owner stopped before saving. ttl <= 0 never expires.
func (it Item) ClaimExpired(now time.Time, ttl time.Duration) bool {
	return it.Status == Processing && ttl > 0 && !it.LastAttemptAt.Add(ttl).After(now)
}

// SyncResult reports what one enqueue or retry did
type SyncResult struct {
	Key      string          `json:"key"`
	EventID  string          `json:"event_id"`
	Type     EventType       `json:"type"`
	Success  bool            `json:"success"`
	Status   Status          `json:"status,omitempty"`
	Attempts int             `json:"attempts"`
	Skipped  bool            `json:"skipped,omitempty"`
	Cached   bool            `json:"cached,omitempty"`
	InFlight bool            `json:"in_flight,omitempty"`
	Result   json.RawMessage `json:"result,omitempty"`
	Error    string          `json:"error,omitempty"`
}

func resultFromItem(it Item) SyncResult {
	return SyncResult{
		Key:      it.Key,
		EventID:  it.Event.ID,
		Type:     it.Event.Type,
		Success:  it.Status == Completed,
		Status:   it.Status,
		Attempts: it.Attempts,
		Result:   it.Result,
		Error:    it.LastError,
	}
}

// Counts is the queue status snapshot
type Counts struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Abandoned  int `json:"abandoned"`
}

func (c *Counts) add(s Status) {
	c.Total++
	switch s {
	case Pending:
		c.Pending++
	case Processing:
		c.Processing++
	case Completed:
		c.Completed++
	case Failed:
		c.Failed++
	case Abandoned:
		c.Abandoned++
	}
}

// Transition describes one status change, delivered to the transition hook
type Transition struct {
	Key      string
	Event    Event
	From     Status
	To       Status
	Attempts int
	Err      error
}
