package router

import (
	"context"
	"net/http"
	"time"

	"pitchside/internal/api/v1/handler"
	"pitchside/internal/billing"
	"pitchside/internal/cache"
	"pitchside/internal/config"
	"pitchside/internal/database"
	"pitchside/internal/metrics"
	"pitchside/internal/middleware"
	"pitchside/internal/pubsub"
	"pitchside/internal/repository"
	"pitchside/internal/service"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awsmiddleware "github.com/aws/smithy-go/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

// New wires the API server. The returned cleanup closes every client it opened.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (http.Handler, func(), error) {
	logger.Info().Str("environment", cfg.Environment).Msg("App environment loaded")

	// 1. Database
	pool, err := database.NewPool(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	// 2. Redis (plan cache)
	rdb := cache.NewRedisClient(ctx, cfg, logger)

	// 3. S3 presigner for match media
	s3Client, err := NewS3Client(ctx, cfg)
	if err != nil {
		pool.Close()
		_ = rdb.Close()
		return nil, nil, err
	}
	presigner := s3.NewPresignClient(s3Client)

	// 4. Pub/Sub notifications are optional
	var notifications pubsub.Publisher
	var pubCloser func() error
	if cfg.GCPProjectID != "" {
		pub, err := pubsub.NewPublisher(ctx, cfg)
		if err != nil {
			logger.Warn().Err(err).Msg("Pub/Sub publisher unavailable; notifications disabled")
		} else {
			notifications = pub
			pubCloser = pub.Close
		}
	} else {
		logger.Warn().Msg("GCP_PROJECT_ID not set; notifications disabled")
	}

	cleanup := func() {
		if pubCloser != nil {
			if err := pubCloser(); err != nil {
				logger.Warn().Err(err).Msg("Failed to close Pub/Sub publisher")
			}
		}
		_ = rdb.Close()
		pool.Close()
	}

	// 5. Billing provider
	gateway := billing.NewStripeGateway(billing.NewStripeClient(cfg.StripeSecretKey, cfg.StripeTimeout), cfg.StripeWebhookSecret, logger)

	validate := validator.New(validator.WithRequiredStructEnabled())
	collector := metrics.New()
	now := time.Now

	// 6. Repositories, services, handlers
	userRepo := repository.NewUserRepo(pool)
	subRepo := repository.NewSubscriptionRepo(pool)
	planRepo := repository.NewPlanRepo(pool)
	paymentRepo := repository.NewPaymentRepo(pool)
	entitlementRepo := repository.NewEntitlementRepo(pool)
	eventRepo := repository.NewWebhookEventRepo(pool)
	accessRepo := repository.NewAccessRepo(pool)
	playerRepo := repository.NewPlayerRepo(pool)
	matchRepo := repository.NewMatchRepo(pool)
	codeRepo := repository.NewAccessCodeRepo(pool)
	dlqRepo := repository.NewDLQRepository(pool)

	checkoutSvc := service.NewCheckoutService(gateway, userRepo, planRepo, paymentRepo, entitlementRepo, subRepo, notifications, collector,
		service.CheckoutConfig{
			SuccessURL:        cfg.CheckoutSuccessURL,
			CancelURL:         cfg.CheckoutCancelURL,
			PortalReturnURL:   cfg.StripePortalReturnURL,
			NotificationTopic: cfg.NotificationTopic,
		}, now, logger)
	webhookSvc := service.NewWebhookService(gateway, checkoutSvc, eventRepo, userRepo, subRepo, planRepo, entitlementRepo,
		notifications, cfg.NotificationTopic, collector, now, logger)
	accessSvc := service.NewAccessService(accessRepo, playerRepo, codeRepo, entitlementRepo, collector, cfg.AccessExpiringWindow, now, logger)
	planSvc := service.NewPlanService(planRepo, rdb, cfg.PlanCacheTTL, logger)
	userSvc := service.NewUserService(userRepo)
	playerSvc := service.NewPlayerService(playerRepo, userRepo, logger)
	matchSvc := service.NewMatchService(matchRepo, accessSvc, logger)
	mediaSvc := service.NewMediaService(presigner, cfg.S3Bucket, cfg.MediaURLExpires, accessSvc, now, logger)
	dlqSvc := service.NewDLQService(dlqRepo)

	billingHandler := handler.NewBillingHandler(checkoutSvc, validate, logger)
	webhookHandler := handler.NewWebhookHandler(webhookSvc, logger)
	accessHandler := handler.NewAccessHandler(accessSvc, validate, logger)
	planHandler := handler.NewPlanHandler(planSvc, logger)
	userHandler := handler.NewUserHandler(userSvc, validate, logger)
	playerHandler := handler.NewPlayerHandler(playerSvc, matchSvc, mediaSvc, validate, logger)
	dlqHandler := handler.NewDLQHandler(dlqSvc, logger)

	// 7. Middleware
	authMiddleware := middleware.AuthMiddleware(cfg.JWTSecret, cfg.AuthCookieName, logger)
	pubsubAuthMiddleware := middleware.PubSubAuthMiddleware(cfg.IsLocalPubSub(), cfg.DLQEndpointURL, cfg.PubSubPushServiceAccountEmail, logger)

	// 8. Routes
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.LoggerMiddleware(logger))
	r.Use(observe(collector))

	r.Get("/healthz", healthz(pool))
	r.Method(http.MethodGet, "/metrics", collector.Handler())

	r.Route("/v1", func(r chi.Router) {
		webhookHandler.RegisterRoutes(r)
		planHandler.RegisterRoutes(r)
		billingHandler.RegisterRoutes(r, authMiddleware)
		accessHandler.RegisterRoutes(r, authMiddleware)
		userHandler.RegisterRoutes(r, authMiddleware)
		playerHandler.RegisterRoutes(r, authMiddleware)
		dlqHandler.RegisterRoutes(r, pubsubAuthMiddleware)
	})

	// 9. CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	logger.Info().Msg("Router initialized")
	return c.Handler(r), cleanup, nil
}

// NewS3Client builds a path-style client for the Supabase S3 endpoint.
func NewS3Client(ctx context.Context, cfg *config.Config) (*s3.Client, error) {
	s3Config, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")),
		awsconfig.WithAPIOptions([]func(*awsmiddleware.Stack) error{removeDisableGzip()}),
	)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(s3Config, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3URL)
		o.UsePathStyle = true
	}), nil
}

// observe records request metrics under the matched route pattern so ids in
// paths do not explode label cardinality.
func observe(m *metrics.Collector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.ObserveRequest(r.Method, route, status, time.Since(start))
		})
	}
}

func healthz(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

// removeDisableGzip is a workaround for S3 signature errors with some S3-compatible services.
// See: https://github.com/supabase/storage/issues/577
func removeDisableGzip() func(*awsmiddleware.Stack) error {
	return func(stack *awsmiddleware.Stack) error {
		if _, ok := stack.Finalize.Get("DisableAcceptEncodingGzip"); ok {
			_, err := stack.Finalize.Remove("DisableAcceptEncodingGzip")
			return err
		}
		return nil
	}
}
