package syncqueue

import "fmt"

/* Status represents the state of a queue item
 * Follows the lifecycle: Pending -> Processing -> Completed/Failed/Abandoned
 * Failed items return to Processing on the next attempt
 */
type Status int

const (
	Pending Status = iota + 1
	Processing
	Completed
	Failed
	Abandoned
)

// String returns the string representation of the status
func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Processing:
		return "processing"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Abandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// NewStatus creates a Status from a string
func NewStatus(s string) Status {
	switch s {
	case "processing":
		return Processing
	case "completed":
		return Completed
	case "failed":
		return Failed
	case "abandoned":
		return Abandoned
	default:
		return Pending
	}
}

// MarshalText implements encoding.TextMarshaler
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Validate checks if the status is valid
func (s Status) Validate() error {
	if s < Pending || s > Abandoned {
		return fmt.Errorf("invalid status: %d", s)
	}
	return nil
}

// IsFinal returns true if no further transition can happen
func (s Status) IsFinal() bool {
	return s == Completed || s == Abandoned
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *Status) UnmarshalText(b []byte) error {
	*s = NewStatus(string(b))
	return nil
}
