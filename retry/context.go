package retry

import (
	"maps"
	"time"

	"github.com/google/uuid"
)

/* Context describes one logical operation invocation
 * It is created once and threaded through every attempt's log records
 */
type Context struct {
	OperationName string
	StartedAt     time.Time
	CorrelationID string
	Metadata      map[string]any
}

// NewContext creates a Context with a fresh correlation id
func NewContext(operation string, metadata map[string]any) Context {
	return Context{
		OperationName: operation,
		StartedAt:     time.Now(),
		CorrelationID: uuid.NewString(),
		Metadata:      maps.Clone(metadata),
	}
}
