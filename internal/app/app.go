package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/unisouk/storefront-checkout/internal/commerce"
	"github.com/unisouk/storefront-checkout/internal/domain/checkout"
	"github.com/unisouk/storefront-checkout/internal/handler"
	"github.com/unisouk/storefront-checkout/internal/payment/razorpay"
	"github.com/unisouk/storefront-checkout/internal/storage/redisstore"
	"github.com/unisouk/storefront-checkout/pkg/health"
	"github.com/unisouk/storefront-checkout/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// Redis-backed session store.
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() {
		if err := rdb.Close(); err != nil {
			lg.Error("Close redis client", zap.Error(err))
		}
	}()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err := rdb.Ping(pingCtx).Err()
	cancel()
	if err != nil {
		return errors.Wrap(err, "ping redis")
	}
	sessions := redisstore.New(rdb, cfg.Checkout.SessionTTL)

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("redis", 5*time.Second, func(ctx context.Context) error {
		return sessions.Ping(ctx)
	})
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc-pause", time.Second, health.GCMaxPauseCheck(time.Second))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Commerce API client.
	commerceClient := commerce.NewClient(commerce.Config{
		BaseURL: cfg.Commerce.BaseURL,
		Token:   cfg.Commerce.Token,
		StoreID: cfg.Commerce.StoreID,
		Timeout: cfg.Commerce.Timeout,
	})

	// Payment gateway adapter.
	gateway := razorpay.New(razorpay.Config{
		KeyID:        cfg.Razorpay.KeyID,
		MerchantName: cfg.Razorpay.MerchantName,
		ThemeColor:   cfg.Razorpay.ThemeColor,
		WaitTimeout:  cfg.Razorpay.WaitTimeout,
	}, lg.Named("razorpay"))

	// Wizard registry with background eviction of abandoned checkouts.
	registry := checkout.NewRegistry(cfg.Checkout.WizardTTL)
	registry.StartCleanup(ctx, cfg.Checkout.CleanupInterval)

	// HTTP handlers.
	h, err := handler.NewHandler(
		handler.Config{ChannelType: cfg.Checkout.ChannelType},
		registry,
		commerceClient,
		commerceClient,
		gateway,
		sessions,
		m.MeterProvider().Meter("checkout-server"),
	)
	if err != nil {
		return errors.Wrap(err, "create handler")
	}

	// Mux: health endpoints + wizard API routes on one server.
	router := chi.NewRouter()
	router.Use(httpmiddleware.LogRequests())
	router.Get("/livez", healthSvc.LiveEndpoint)
	router.Get("/readyz", healthSvc.ReadyEndpoint)
	router.Mount("/api/v1", h.Routes())

	instrumented := otelhttp.NewHandler(router, "checkout-server",
		otelhttp.WithTracerProvider(m.TracerProvider()),
		otelhttp.WithMeterProvider(m.MeterProvider()),
	)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		// The card gateway branch holds the submit request open until the
		// hosted widget reports back, so the write timeout must exceed the
		// payment wait window.
		WriteTimeout:   cfg.Razorpay.WaitTimeout + time.Minute,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
		Addr:           cfg.Addr,
		Handler: httpmiddleware.Wrap(instrumented,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", handler.HeaderSessionToken},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
