package failure

import (
	"context"
	"errors"
	"net"
	"os"
	"syscall"
)

// statusCoder is implemented by errors that carry an HTTP status code
type statusCoder interface {
	StatusCode() int
}

// coder is implemented by errors that carry a low-level error code such as ECONNREFUSED
type coder interface {
	Code() string
}

var networkCodes = map[string]bool{
	"ECONNREFUSED": true,
	"ENOTFOUND":    true,
	"ETIMEDOUT":    true,
	"ECONNRESET":   true,
}

// Classify maps an error to its Classification. It never panics and
// defaults to a non-retryable UNKNOWN for anything it cannot understand.
func Classify(err error) (c Classification) {
	defer func() {
		if rec := recover(); rec != nil {
			c = unknown()
		}
	}()

	if err == nil {
		return unknown()
	}

	var sc statusCoder
	if errors.As(err, &sc) && sc.StatusCode() > 0 {
		return FromStatus(sc.StatusCode())
	}

	if isNetwork(err) {
		return Classification{Kind: Network, Severity: High, Retryable: true}
	}

	return unknown()
}

// FromStatus classifies an explicit HTTP status code
func FromStatus(status int) Classification {
	c := Classification{StatusCode: status}
	switch status {
	case 401:
		c.Kind, c.Severity, c.Retryable = Authentication, High, false
	case 403:
		c.Kind, c.Severity, c.Retryable = Authorization, High, false
	case 422:
		c.Kind, c.Severity, c.Retryable = Validation, Medium, false
	case 429:
		c.Kind, c.Severity, c.Retryable = RateLimit, Medium, true
	case 500, 502, 503, 504:
		c.Kind, c.Severity, c.Retryable = ServerError, High, true
	default:
		c.Kind, c.Severity, c.Retryable = Unknown, Medium, status >= 500
	}
	return c
}

func isNetwork(err error) bool {
	var c coder
	if errors.As(err, &c) && networkCodes[c.Code()] {
		return true
	}

	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

func unknown() Classification {
	return Classification{Kind: Unknown, Severity: Medium, Retryable: false}
}
