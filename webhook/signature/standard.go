package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

/* Payment provider scheme (Standard Webhooks)
 * webhook-signature holds space separated "v1,<base64>" entries, each an
 * HMAC-SHA256 of "{webhook-id}.{webhook-timestamp}.{rawBody}".
 * The timestamp must sit within the tolerance window around now.
 */

// DefaultTolerance is the accepted clock distance between sender and receiver
const DefaultTolerance = 5 * time.Minute

const signatureVersion = "v1"

var (
	ErrInvalidTimestamp    = errors.New("webhook timestamp is not unix seconds")
	ErrTimestampOutOfRange = errors.New("webhook timestamp outside the tolerance window")
	ErrSignatureMismatch   = errors.New("no webhook signature matches")
)

// Verifier checks Standard Webhooks deliveries. More than one secret may be
// configured while a secret is rotated.
type Verifier struct {
	secrets   []Secret
	tolerance time.Duration
}

// NewVerifier creates a Verifier. tolerance <= 0 uses DefaultTolerance.
func NewVerifier(tolerance time.Duration, secrets ...Secret) (*Verifier, error) {
	if len(secrets) == 0 {
		return nil, ErrMissingSecret
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Verifier{secrets: secrets, tolerance: tolerance}, nil
}

// Verify checks the timestamp window and then the signature header against payload
func (v *Verifier) Verify(msgID, timestamp, header string, payload []byte, now time.Time) error {
	secs, err := strconv.ParseInt(strings.TrimSpace(timestamp), 10, 64)
	if err != nil {
		return ErrInvalidTimestamp
	}
	ts := time.Unix(secs, 0)
	if ts.Before(now.Add(-v.tolerance)) || ts.After(now.Add(v.tolerance)) {
		return fmt.Errorf("%w: %s", ErrTimestampOutOfRange, ts.UTC().Format(time.RFC3339))
	}

	expected := make([][]byte, len(v.secrets))
	for i, s := range v.secrets {
		expected[i] = digest(s, msgID, secs, payload)
	}

	for _, entry := range strings.Fields(header) {
		version, value, ok := strings.Cut(entry, ",")
		if !ok || version != signatureVersion {
			continue
		}
		got, err := base64.StdEncoding.DecodeString(value)
		if err != nil {
			continue
		}
		for _, want := range expected {
			if hmac.Equal(got, want) {
				return nil
			}
		}
	}
	return ErrSignatureMismatch
}

// Sign returns the "v1,<base64>" header entry a sender would produce
func Sign(secret Secret, msgID string, timestamp time.Time, payload []byte) (string, error) {
	if strings.Contains(msgID, ".") {
		return "", fmt.Errorf("message ID must not contain '.'")
	}
	sum := digest(secret, msgID, timestamp.Unix(), payload)
	return signatureVersion + "," + base64.StdEncoding.EncodeToString(sum), nil
}

func digest(secret Secret, msgID string, unix int64, payload []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(msgID))
	mac.Write([]byte{'.'})
	mac.Write(strconv.AppendInt(nil, unix, 10))
	mac.Write([]byte{'.'})
	mac.Write(payload)
	return mac.Sum(nil)
}
