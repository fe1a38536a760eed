package providers

import (
	"errors"
	"fmt"
	"time"

	"github.com/marcelsud/storesync/webhook"
)

// ErrUnknownProvider is returned when a provider name is not configured
var ErrUnknownProvider = errors.New("unknown webhook provider")

const (
	PresetCommerce = "commerce"
	PresetPayments = "payments"
)

/* ProviderConfig is a single provider entry in providers.yaml
 * A preset supplies header names and the signature scheme; any field set
 * explicitly overrides the preset
 */
type ProviderConfig struct {
	Name             string `yaml:"name"`
	Preset           string `yaml:"preset"`
	TopicHeader      string `yaml:"topic_header"`
	TopicField       string `yaml:"topic_field"`
	SignatureHeader  string `yaml:"signature_header"`
	TimestampHeader  string `yaml:"timestamp_header"`
	DeliveryIDHeader string `yaml:"delivery_id_header"`
	DeliveryIDField  string `yaml:"delivery_id_field"`
	Scheme           string `yaml:"scheme"`
	SecretEnv        string `yaml:"secret_env"`
	Tolerance        string `yaml:"tolerance"`         // Optional: timestamp window such as "5m"
	RequireSignature *bool  `yaml:"require_signature"` // Optional: override the global default
}

// provider resolves the entry into a webhook.Provider
func (pc ProviderConfig) provider(getenv func(string) string, requireSignature bool) (webhook.Provider, error) {
	var p webhook.Provider
	switch pc.Preset {
	case "":
	case PresetCommerce:
		p = webhook.CommerceProvider("", requireSignature)
	case PresetPayments:
		p = webhook.PaymentProvider("", requireSignature)
	default:
		return webhook.Provider{}, fmt.Errorf("unknown preset %q for provider %s", pc.Preset, pc.Name)
	}

	if pc.Name != "" {
		p.Name = pc.Name
	}
	override(&p.TopicHeader, pc.TopicHeader)
	override(&p.TopicField, pc.TopicField)
	override(&p.SignatureHeader, pc.SignatureHeader)
	override(&p.TimestampHeader, pc.TimestampHeader)
	override(&p.DeliveryIDHeader, pc.DeliveryIDHeader)
	override(&p.DeliveryIDField, pc.DeliveryIDField)
	if pc.Scheme != "" {
		p.Scheme = webhook.NewScheme(pc.Scheme)
	} else if p.Scheme == 0 {
		p.Scheme = webhook.BodyHMAC
	}

	p.RequireSignature = requireSignature
	if pc.RequireSignature != nil {
		p.RequireSignature = *pc.RequireSignature
	}
	if pc.SecretEnv != "" {
		p.Secret = getenv(pc.SecretEnv)
	}
	if pc.Tolerance != "" {
		d, err := time.ParseDuration(pc.Tolerance)
		if err != nil {
			return webhook.Provider{}, fmt.Errorf("invalid tolerance for provider %s: %w", pc.Name, err)
		}
		p.Tolerance = d
	}

	if err := p.Validate(); err != nil {
		return webhook.Provider{}, err
	}
	return p, nil
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
