package secrets

import (
	"context"
	"fmt"
	"strings"

	"pitchside/internal/config"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/rs/zerolog"
)

// Accessor reads the latest version of a named secret.
type Accessor interface {
	Access(ctx context.Context, name string) (string, error)
}

type secretManagerAccessor struct {
	client    *secretmanager.Client
	projectID string
}

// NewSecretManagerAccessor creates an Accessor backed by GCP Secret Manager.
func NewSecretManagerAccessor(ctx context.Context, projectID string) (Accessor, func() error, error) {
	if projectID == "" {
		return nil, nil, fmt.Errorf("GCP Project ID is not set for the current environment")
	}
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create Secret Manager client: %w", err)
	}
	return &secretManagerAccessor{client: client, projectID: projectID}, client.Close, nil
}

func (s *secretManagerAccessor) Access(ctx context.Context, name string) (string, error) {
	resourceName := name
	if !strings.HasPrefix(name, "projects/") {
		resourceName = fmt.Sprintf("projects/%s/secrets/%s/versions/latest", s.projectID, name)
	}
	result, err := s.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: resourceName})
	if err != nil {
		return "", fmt.Errorf("failed to access secret version %s: %w", name, err)
	}
	return strings.TrimSpace(string(result.Payload.Data)), nil
}

// ResolveStripeSecrets fills the Stripe key and webhook secret from Secret
// Manager when their *_SECRET_NAME variables are set. Values already present
// in the environment win.
func ResolveStripeSecrets(ctx context.Context, cfg *config.Config, acc Accessor, logger zerolog.Logger) error {
	targets := []struct {
		name  string
		value *string
	}{
		{name: cfg.StripeSecretKeyName, value: &cfg.StripeSecretKey},
		{name: cfg.StripeWebhookSecretName, value: &cfg.StripeWebhookSecret},
	}
	for _, t := range targets {
		if *t.value != "" || t.name == "" {
			continue
		}
		v, err := acc.Access(ctx, t.name)
		if err != nil {
			return err
		}
		*t.value = v
		logger.Info().Str("secret", t.name).Msg("Resolved secret from Secret Manager")
	}
	return nil
}

// NeedsSecretManager reports whether any configured secret must be fetched.
func NeedsSecretManager(cfg *config.Config) bool {
	return (cfg.StripeSecretKey == "" && cfg.StripeSecretKeyName != "") ||
		(cfg.StripeWebhookSecret == "" && cfg.StripeWebhookSecretName != "")
}
