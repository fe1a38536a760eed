package webhook

import (
	"fmt"
	"time"

	"github.com/marcelsud/storesync/webhook/signature"
)

// Scheme selects how a provider signs its deliveries
type Scheme int

const (
	// BodyHMAC is base64(HMAC-SHA256(secret, rawBody)) in a single header
	BodyHMAC Scheme = iota + 1
	// StandardWebhooks signs "{id}.{timestamp}.{body}" with a whsec_ secret
	StandardWebhooks
)

// String returns the string representation of the scheme
func (s Scheme) String() string {
	switch s {
	case BodyHMAC:
		return "body-hmac"
	case StandardWebhooks:
		return "standard-webhooks"
	default:
		return "unknown"
	}
}

// NewScheme creates a Scheme from a string
func NewScheme(s string) Scheme {
	switch s {
	case "standard-webhooks":
		return StandardWebhooks
	default:
		return BodyHMAC
	}
}

/* Provider describes where one webhook source puts its metadata
 * TopicHeader and TopicField are alternatives: the topic comes from a header
 * or from a top-level field of the JSON body
 */
type Provider struct {
	Name             string
	TopicHeader      string
	TopicField       string
	SignatureHeader  string
	TimestampHeader  string
	DeliveryIDHeader string
	DeliveryIDField  string
	Scheme           Scheme
	Secret           string
	RequireSignature bool
	// Tolerance bounds the webhook timestamp age for StandardWebhooks; zero is 5 minutes
	Tolerance time.Duration
}

// Validate checks if the provider definition is usable
func (p Provider) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("provider name cannot be empty")
	}
	if p.TopicHeader == "" && p.TopicField == "" {
		return fmt.Errorf("provider %s needs a topic_header or a topic_field", p.Name)
	}
	if p.SignatureHeader == "" {
		return fmt.Errorf("provider %s needs a signature_header", p.Name)
	}
	if p.Tolerance < 0 {
		return fmt.Errorf("tolerance cannot be negative for provider %s", p.Name)
	}
	switch p.Scheme {
	case BodyHMAC:
	case StandardWebhooks:
		if p.TimestampHeader == "" || p.DeliveryIDHeader == "" {
			return fmt.Errorf("provider %s uses %s and needs timestamp_header and delivery_id_header", p.Name, p.Scheme)
		}
		if p.Secret != "" {
			if _, err := signature.ParseSecret(p.Secret); err != nil {
				return fmt.Errorf("invalid secret for provider %s: %w", p.Name, err)
			}
		}
	default:
		return fmt.Errorf("invalid signature scheme for provider %s: %d", p.Name, p.Scheme)
	}
	if p.RequireSignature && p.Secret == "" {
		return fmt.Errorf("provider %s requires signatures but has no secret", p.Name)
	}
	return nil
}

// CommerceProvider returns the commerce platform defaults
func CommerceProvider(secret string, requireSignature bool) Provider {
	return Provider{
		Name:             "commerce",
		TopicHeader:      "X-Shopify-Topic",
		SignatureHeader:  "X-Shopify-Hmac-Sha256",
		DeliveryIDHeader: "X-Shopify-Webhook-Id",
		Scheme:           BodyHMAC,
		Secret:           secret,
		RequireSignature: requireSignature,
	}
}

// PaymentProvider returns the payment processor defaults
func PaymentProvider(secret string, requireSignature bool) Provider {
	return Provider{
		Name:             "payments",
		TopicField:       "type",
		SignatureHeader:  "webhook-signature",
		TimestampHeader:  "webhook-timestamp",
		DeliveryIDHeader: "webhook-id",
		DeliveryIDField:  "id",
		Scheme:           StandardWebhooks,
		Secret:           secret,
		RequireSignature: requireSignature,
		Tolerance:        signature.DefaultTolerance,
	}
}

// verify checks req against the provider's scheme at time now. A missing
// secret returns signature.ErrMissingSecret.
func (p Provider) verify(req Request, header string, now time.Time) (bool, error) {
	switch p.Scheme {
	case StandardWebhooks:
		secret, err := signature.ParseSecret(p.Secret)
		if err != nil {
			return false, err
		}
		v, err := signature.NewVerifier(p.Tolerance, secret)
		if err != nil {
			return false, err
		}
		if err := v.Verify(req.Header(p.DeliveryIDHeader), req.Header(p.TimestampHeader), header, req.RawBody, now); err != nil {
			return false, err
		}
		return true, nil
	default:
		return signature.VerifyBody(req.RawBody, header, p.Secret)
	}
}
