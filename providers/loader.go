package providers

import (
	"fmt"
	"os"
	"sort"

	"github.com/marcelsud/storesync/webhook"
	"gopkg.in/yaml.v3"
)

/* Loader manages provider definitions from providers.yaml
 * Secrets are never stored in the file; each provider names the
 * environment variable holding its secret
 */

// Config represents the structure of providers.yaml
type Config struct {
	Providers []ProviderConfig `yaml:"providers"`
}

// Loader holds the loaded providers
type Loader struct {
	providers        map[string]webhook.Provider
	getenv           func(string) string
	requireSignature bool
}

// Option configures a Loader
type Option func(*Loader)

// WithGetenv replaces os.Getenv for secret lookup
func WithGetenv(fn func(string) string) Option {
	return func(l *Loader) { l.getenv = fn }
}

// WithRequireSignature sets the default for providers that do not say
func WithRequireSignature(required bool) Option {
	return func(l *Loader) { l.requireSignature = required }
}

// NewLoader creates a new provider loader
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		providers: make(map[string]webhook.Provider),
		getenv:    os.Getenv,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads and parses the providers file
func (l *Loader) Load(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("reading providers file: %w", err)
	}
	return l.Parse(data)
}

// Parse loads provider definitions from YAML
func (l *Loader) Parse(data []byte) error {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("parsing providers YAML: %w", err)
	}
	if len(config.Providers) == 0 {
		return fmt.Errorf("providers file defines no providers")
	}

	loaded := make(map[string]webhook.Provider, len(config.Providers))
	for _, pc := range config.Providers {
		p, err := pc.provider(l.getenv, l.requireSignature)
		if err != nil {
			return fmt.Errorf("validating provider: %w", err)
		}
		if _, dup := loaded[p.Name]; dup {
			return fmt.Errorf("duplicate provider: %s", p.Name)
		}
		loaded[p.Name] = p
	}

	l.providers = loaded
	return nil
}

// Get retrieves a provider by name
func (l *Loader) Get(name string) (webhook.Provider, error) {
	p, exists := l.providers[name]
	if !exists {
		return webhook.Provider{}, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return p, nil
}

// List returns all loaded providers ordered by name
func (l *Loader) List() []webhook.Provider {
	out := make([]webhook.Provider, 0, len(l.providers))
	for _, p := range l.providers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Exists checks if a provider name is configured
func (l *Loader) Exists(name string) bool {
	_, exists := l.providers[name]
	return exists
}

// Defaults returns the built-in commerce and payments providers, used when
// no providers file is configured
func Defaults(commerceSecret, paymentsSecret string, requireSignature bool) []webhook.Provider {
	return []webhook.Provider{
		webhook.CommerceProvider(commerceSecret, requireSignature),
		webhook.PaymentProvider(paymentsSecret, requireSignature),
	}
}
