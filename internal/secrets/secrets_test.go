package secrets

import (
	"context"
	"errors"
	"testing"

	"pitchside/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapAccessor map[string]string

func (m mapAccessor) Access(_ context.Context, name string) (string, error) {
	v, ok := m[name]
	if !ok {
		return "", errors.New("not found")
	}
	return v, nil
}

func TestResolveStripeSecrets(t *testing.T) {
	cfg := &config.Config{
		StripeSecretKey:         "",
		StripeSecretKeyName:     "stripe-secret-key",
		StripeWebhookSecret:     "whsec_from_env",
		StripeWebhookSecretName: "stripe-webhook-secret",
	}
	require.True(t, NeedsSecretManager(cfg))

	acc := mapAccessor{"stripe-secret-key": "sk_test_123", "stripe-webhook-secret": "whsec_from_sm"}
	require.NoError(t, ResolveStripeSecrets(context.Background(), cfg, acc, zerolog.Nop()))

	assert.Equal(t, "sk_test_123", cfg.StripeSecretKey)
	assert.Equal(t, "whsec_from_env", cfg.StripeWebhookSecret)
	assert.False(t, NeedsSecretManager(cfg))
}

func TestResolveStripeSecretsMissing(t *testing.T) {
	cfg := &config.Config{StripeSecretKeyName: "absent"}
	err := ResolveStripeSecrets(context.Background(), cfg, mapAccessor{}, zerolog.Nop())
	assert.Error(t, err)
	assert.Empty(t, cfg.StripeSecretKey)
}
