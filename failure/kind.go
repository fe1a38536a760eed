package failure

/* Kind is the taxonomy of outbound failures
 * It is the single source of truth consulted by the retry engine and by logs
 */
type Kind int

const (
	Unknown Kind = iota
	Network
	Authentication
	Authorization
	Validation
	RateLimit
	ServerError
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case Network:
		return "NETWORK"
	case Authentication:
		return "AUTHENTICATION"
	case Authorization:
		return "AUTHORIZATION"
	case Validation:
		return "VALIDATION"
	case RateLimit:
		return "RATE_LIMIT"
	case ServerError:
		return "SERVER_ERROR"
	default:
		return "UNKNOWN"
	}
}

// Severity ranks how loudly a failure should be reported
type Severity int

const (
	Low Severity = iota + 1
	Medium
	High
	Critical
)

// String returns the string representation of the severity
func (s Severity) String() string {
	switch s {
	case Low:
		return "LOW"
	case Medium:
		return "MEDIUM"
	case High:
		return "HIGH"
	case Critical:
		return "CRITICAL"
	default:
		return "MEDIUM"
	}
}

// Classification is derived fresh from each error and never persisted
type Classification struct {
	Kind       Kind
	Severity   Severity
	Retryable  bool
	StatusCode int // zero when the error carried no status
}
