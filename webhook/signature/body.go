package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"strings"
)

// ErrMissingSecret means verification cannot proceed; it is a configuration
// error, not a signature mismatch.
var ErrMissingSecret = errors.New("webhook signing secret is not configured")

/* Commerce platform scheme
 * The header carries base64(HMAC-SHA256(secret, rawBody)).
 * rawBody must be the exact bytes received, never a re-serialized document.
 */

// SignBody returns the base64 HMAC-SHA256 of body keyed by secret
func SignBody(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifyBody reports whether header is the signature of body under secret
func VerifyBody(body []byte, header, secret string) (bool, error) {
	if secret == "" {
		return false, ErrMissingSecret
	}

	expected := SignBody(body, secret)
	provided := strings.TrimSpace(header)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(provided)) == 1, nil
}
