package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Local & Github Secrets (Fill up for local development)
	DBConnectionString string `envconfig:"DB_CONNECTION_STRING" required:"true"`
	JWTSecret          string `envconfig:"SUPABASE_JWT_SECRET" required:"true"`
	Environment        string `envconfig:"ENV" default:"development"`
	LogLevel           string `envconfig:"LOG_LEVEL" default:"debug"`
	Port               string `envconfig:"PORT" default:"8080"`

	// Session cookie set by the Supabase auth helpers on the web client
	AuthCookieName string `envconfig:"AUTH_COOKIE_NAME" default:"sb-access-token"`
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"*"`

	// Stripe
	StripeSecretKey         string        `envconfig:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret     string        `envconfig:"STRIPE_WEBHOOK_SECRET"`
	StripeSecretKeyName     string        `envconfig:"STRIPE_SECRET_KEY_SECRET_NAME"`
	StripeWebhookSecretName string        `envconfig:"STRIPE_WEBHOOK_SECRET_SECRET_NAME"`
	StripeTimeout           time.Duration `envconfig:"STRIPE_TIMEOUT" default:"10s"`
	CheckoutSuccessURL      string        `envconfig:"CHECKOUT_SUCCESS_URL" default:"http://localhost:3000/billing/success"`
	CheckoutCancelURL       string        `envconfig:"CHECKOUT_CANCEL_URL" default:"http://localhost:3000/billing"`
	StripePortalReturnURL   string        `envconfig:"STRIPE_PORTAL_RETURN_URL" default:"http://localhost:3000/account"`

	// Access
	AccessExpiringWindow time.Duration `envconfig:"ACCESS_EXPIRING_WINDOW" default:"168h"`

	// Redis (plan cache, cron lock)
	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	PlanCacheTTL  time.Duration `envconfig:"PLAN_CACHE_TTL" default:"5m"`

	// Media storage (Supabase S3 compatible endpoint)
	S3URL           string        `envconfig:"SUPABASE_S3_URL" required:"true"`
	S3Bucket        string        `envconfig:"SUPABASE_S3_BUCKET" required:"true"`
	S3Region        string        `envconfig:"SUPABASE_S3_REGION" required:"true"`
	S3AccessKey     string        `envconfig:"SUPABASE_S3_ACCESS_KEY" required:"true"`
	S3SecretKey     string        `envconfig:"SUPABASE_S3_SECRET_KEY" required:"true"`
	MediaURLExpires time.Duration `envconfig:"MEDIA_URL_EXPIRES" default:"15m"`

	// Pub/Sub notifications
	PubSubEmulatorHost            string `envconfig:"PUBSUB_EMULATOR_HOST"`
	GCPProjectID                  string `envconfig:"GCP_PROJECT_ID"`
	NotificationTopic             string `envconfig:"NOTIFICATION_TOPIC" default:"entitlement-notifications"`
	DLQEndpointURL                string `envconfig:"DLQ_ENDPOINT_URL"`
	PubSubPushServiceAccountEmail string `envconfig:"PUBSUB_PUSH_SERVICE_ACCOUNT_EMAIL"`

	// Cron worker
	ReminderSchedule          string        `envconfig:"REMINDER_SCHEDULE" default:"0 0 10 * * *"`
	RetentionSchedule         string        `envconfig:"RETENTION_SCHEDULE" default:"0 30 3 * * *"`
	WebhookEventRetentionDays int           `envconfig:"WEBHOOK_EVENT_RETENTION_DAYS" default:"90"`
	CronLockExpiry            time.Duration `envconfig:"CRON_LOCK_EXPIRY" default:"10m"`
	CronJobTimeout            time.Duration `envconfig:"CRON_JOB_TIMEOUT" default:"5m"`
	WorkerMetricsAddr         string        `envconfig:"WORKER_METRICS_ADDR" default:":9091"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsDevelopment reports whether the service runs against local infrastructure.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsLocalPubSub reports whether Pub/Sub traffic goes to the emulator, in which
// case push requests carry no OIDC token.
func (c *Config) IsLocalPubSub() bool {
	return c.PubSubEmulatorHost != ""
}
