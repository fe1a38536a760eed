package providers_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/marcelsud/storesync/providers"
	"github.com/marcelsud/storesync/webhook"
	"github.com/marcelsud/storesync/webhook/signature"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "providers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func envOf(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestLoader_Load(t *testing.T) {
	paySecret, err := signature.GenerateSecret(24)
	require.NoError(t, err)
	env := envOf(map[string]string{
		"COMMERCE_WEBHOOK_SECRET": "shpss_test",
		"PAYMENTS_WEBHOOK_SECRET": paySecret.String(),
	})

	t.Run("success - presets with secrets from env", func(t *testing.T) {
		path := writeFile(t, `
providers:
  - name: "commerce"
    preset: "commerce"
    secret_env: "COMMERCE_WEBHOOK_SECRET"
  - name: "payments"
    preset: "payments"
    secret_env: "PAYMENTS_WEBHOOK_SECRET"
    require_signature: false
`)
		loader := providers.NewLoader(providers.WithGetenv(env), providers.WithRequireSignature(true))
		require.NoError(t, loader.Load(path))

		all := loader.List()
		require.Len(t, all, 2)
		assert.Equal(t, "commerce", all[0].Name)
		assert.Equal(t, "payments", all[1].Name)

		p, err := loader.Get("commerce")
		require.NoError(t, err)
		assert.Equal(t, "X-Shopify-Topic", p.TopicHeader)
		assert.Equal(t, webhook.BodyHMAC, p.Scheme)
		assert.Equal(t, "shpss_test", p.Secret)
		assert.True(t, p.RequireSignature)

		p, err = loader.Get("payments")
		require.NoError(t, err)
		assert.Equal(t, webhook.StandardWebhooks, p.Scheme)
		assert.Equal(t, "type", p.TopicField)
		assert.False(t, p.RequireSignature)
	})

	t.Run("success - custom provider without preset", func(t *testing.T) {
		path := writeFile(t, `
providers:
  - name: "marketplace"
    topic_header: "X-Market-Event"
    signature_header: "X-Market-Signature"
    delivery_id_header: "X-Market-Delivery"
    secret_env: "COMMERCE_WEBHOOK_SECRET"
`)
		loader := providers.NewLoader(providers.WithGetenv(env))
		require.NoError(t, loader.Load(path))

		p, err := loader.Get("marketplace")
		require.NoError(t, err)
		assert.Equal(t, webhook.BodyHMAC, p.Scheme)
		assert.Equal(t, "X-Market-Delivery", p.DeliveryIDHeader)
		assert.True(t, loader.Exists("marketplace"))
	})

	t.Run("error - file not found", func(t *testing.T) {
		err := providers.NewLoader().Load("nonexistent.yaml")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "reading providers file")
	})

	t.Run("error - invalid YAML", func(t *testing.T) {
		err := providers.NewLoader().Load(writeFile(t, `invalid yaml content: [[[`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parsing providers YAML")
	})

	t.Run("error - empty file", func(t *testing.T) {
		err := providers.NewLoader().Parse([]byte(`providers: []`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no providers")
	})

	t.Run("error - required signature without secret", func(t *testing.T) {
		loader := providers.NewLoader(providers.WithGetenv(envOf(nil)), providers.WithRequireSignature(true))
		err := loader.Parse([]byte(`
providers:
  - preset: "commerce"
    secret_env: "MISSING_SECRET"
`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "requires signatures but has no secret")
	})

	t.Run("error - standard webhooks secret without prefix", func(t *testing.T) {
		loader := providers.NewLoader(providers.WithGetenv(env))
		err := loader.Parse([]byte(`
providers:
  - preset: "payments"
    secret_env: "COMMERCE_WEBHOOK_SECRET"
`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid secret for provider payments")
	})

	t.Run("error - missing topic source", func(t *testing.T) {
		err := providers.NewLoader().Parse([]byte(`
providers:
  - name: "broken"
    signature_header: "X-Sig"
`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "needs a topic_header or a topic_field")
	})

	t.Run("error - unknown preset", func(t *testing.T) {
		err := providers.NewLoader().Parse([]byte(`
providers:
  - name: "x"
    preset: "paypal"
`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unknown preset "paypal"`)
	})

	t.Run("error - duplicate provider", func(t *testing.T) {
		err := providers.NewLoader().Parse([]byte(`
providers:
  - preset: "commerce"
  - preset: "commerce"
`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate provider: commerce")
	})
}

func TestLoader_Tolerance(t *testing.T) {
	t.Run("success - preset default", func(t *testing.T) {
		ps := providers.Defaults("", "", false)
		assert.Equal(t, 5*time.Minute, ps[1].Tolerance)
	})

	t.Run("success - override per provider", func(t *testing.T) {
		loader := providers.NewLoader()
		require.NoError(t, loader.Parse([]byte(`
providers:
  - preset: "payments"
    tolerance: "90s"
`)))
		p, err := loader.Get("payments")
		require.NoError(t, err)
		assert.Equal(t, 90*time.Second, p.Tolerance)
	})

	t.Run("invalid duration", func(t *testing.T) {
		err := providers.NewLoader().Parse([]byte(`
providers:
  - preset: "payments"
    tolerance: "soon"
`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid tolerance for provider")
	})

	t.Run("negative duration", func(t *testing.T) {
		err := providers.NewLoader().Parse([]byte(`
providers:
  - preset: "payments"
    tolerance: "-1m"
`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "tolerance cannot be negative")
	})
}

func TestLoader_Get(t *testing.T) {
	t.Run("provider not found", func(t *testing.T) {
		loader := providers.NewLoader()

		_, err := loader.Get("nonexistent")
		require.ErrorIs(t, err, providers.ErrUnknownProvider)
		assert.False(t, loader.Exists("nonexistent"))
	})
}

func TestDefaults(t *testing.T) {
	ps := providers.Defaults("a", "", false)
	require.Len(t, ps, 2)
	assert.Equal(t, "commerce", ps[0].Name)
	assert.Equal(t, "payments", ps[1].Name)
	for _, p := range ps {
		assert.NoError(t, p.Validate())
	}
}
