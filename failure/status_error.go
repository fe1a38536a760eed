package failure

import (
	"fmt"
	"net/http"
)

// StatusError is returned for non-2xx responses from the commerce API
type StatusError struct {
	Status int
	Method string
	Path   string
	Body   string
}

// NewStatusError builds a StatusError, keeping at most 512 bytes of the body
func NewStatusError(status int, method, path string, body []byte) *StatusError {
	if len(body) > 512 {
		body = body[:512]
	}
	return &StatusError{
		Status: status,
		Method: method,
		Path:   path,
		Body:   string(body),
	}
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, http.StatusText(e.Status))
}

// StatusCode implements the interface the classifier looks for
func (e *StatusError) StatusCode() int {
	return e.Status
}
