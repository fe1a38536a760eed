package webhook

import "fmt"

/* Outcome is the state of a delivery in the idempotency ledger
 * Follows the lifecycle: Processing -> Processed/Failed
 * Only Processed short-circuits a redelivery; Failed may be claimed again
 */
type Outcome int

const (
	Processing Outcome = iota + 1
	Processed
	Failed
)

// String returns the string representation of the outcome
func (o Outcome) String() string {
	switch o {
	case Processing:
		return "processing"
	case Processed:
		return "processed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// NewOutcome creates an Outcome from a string
func NewOutcome(s string) Outcome {
	switch s {
	case "processed":
		return Processed
	case "failed":
		return Failed
	default:
		return Processing
	}
}

// Validate checks if the outcome is valid
func (o Outcome) Validate() error {
	if o < Processing || o > Failed {
		return fmt.Errorf("invalid outcome: %d", o)
	}
	return nil
}

// IsFinal returns true if the outcome is terminal
func (o Outcome) IsFinal() bool {
	return o == Processed || o == Failed
}
