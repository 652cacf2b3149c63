package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/chronoshop/orders-api/internal/domain/auth"
	"github.com/chronoshop/orders-api/internal/domain/order"
	"github.com/chronoshop/orders-api/internal/handler"
	"github.com/chronoshop/orders-api/internal/payment/stripe"
	"github.com/chronoshop/orders-api/internal/repository"
	"github.com/chronoshop/orders-api/internal/repository/memory"
	"github.com/chronoshop/orders-api/pkg/health"
	"github.com/chronoshop/orders-api/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	healthSvc := health.New()

	// Stores: PostgreSQL when a database URL is configured, otherwise the
	// in-memory store with seeded development keys.
	var (
		orderRepo  order.Repository
		apikeyRepo auth.Repository
		memKeys    *memory.APIKeyRepository
	)
	if cfg.DatabaseURL != "" {
		pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return errors.Wrap(err, "create db pool")
		}
		defer pool.Close()

		if err := repository.RunMigrations(ctx, pool); err != nil {
			return errors.Wrap(err, "run migrations")
		}

		healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
			return pool.Ping(ctx)
		})

		orderRepo = repository.NewOrderRepository(pool)
		apikeyRepo = repository.NewAPIKeyRepository(pool)
	} else {
		lg.Warn("No database URL configured, using in-memory store")
		memKeys = memory.NewAPIKeyRepository()
		orderRepo = memory.NewOrderRepository()
		apikeyRepo = memKeys
	}

	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Payment gateway.
	gateway := stripe.NewClient(stripe.Config{
		SecretKey: cfg.Stripe.SecretKey,
		BaseURL:   cfg.Stripe.BaseURL,
	})

	// Domain services.
	orderService := order.NewService(orderRepo, gateway, order.ServiceConfig{
		Currency:   cfg.Stripe.Currency,
		SuccessURL: cfg.FrontendURL + "/orders/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  cfg.FrontendURL + "/orders/cancel",
	})

	// HTTP handlers.
	h := handler.NewHandler(orderService)
	sec := handler.NewSecurity(apikeyRepo, []byte(cfg.APIKeyPepper))
	if memKeys != nil {
		memKeys.Add(auth.APIKeyInfo{
			ID:      "dev-user",
			KeyHash: sec.HashKey(cfg.DevKeys.UserKey),
			Name:    "dev user",
			UserID:  "dev-user",
			Scopes:  []string{"orders"},
		})
		memKeys.Add(auth.APIKeyInfo{
			ID:      "dev-admin",
			KeyHash: sec.HashKey(cfg.DevKeys.AdminKey),
			Name:    "dev admin",
			UserID:  "dev-admin",
			Scopes:  []string{"orders", auth.ScopeAdmin},
		})
		lg.Info("Seeded development API keys", zap.Int("count", 2))
	}

	api := chi.NewRouter()
	h.Routes(api, sec)

	// Mux: health endpoints + API routes on one server.
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/api/", http.StripPrefix("/api", api))

	instrumented := otelhttp.NewHandler(mux, "chrono-api",
		otelhttp.WithTracerProvider(m.TracerProvider()),
		otelhttp.WithMeterProvider(m.MeterProvider()),
	)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(instrumented,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", "api_key"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.LogRequests(),
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
