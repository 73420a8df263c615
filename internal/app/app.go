// Package app wires configuration, storage, domain services, and the HTTP
// surface into a running API server.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/rrstones/storefront/internal/domain/cart"
	"github.com/rrstones/storefront/internal/domain/checkout"
	"github.com/rrstones/storefront/internal/domain/identity"
	"github.com/rrstones/storefront/internal/domain/invoice"
	"github.com/rrstones/storefront/internal/domain/notify"
	"github.com/rrstones/storefront/internal/domain/shipping"
	"github.com/rrstones/storefront/internal/domain/tier"
	"github.com/rrstones/storefront/internal/handler"
	"github.com/rrstones/storefront/internal/inventory"
	"github.com/rrstones/storefront/internal/storage/postgres"
	"github.com/rrstones/storefront/pkg/health"
	"github.com/rrstones/storefront/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	rates, err := cfg.Business.Rates()
	if err != nil {
		return err
	}

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	variantRepo := postgres.NewVariantRepository(pool)
	cartStore := postgres.NewCartStore(pool)
	invoiceRepo := postgres.NewInvoiceRepository(pool)
	userRepo := postgres.NewUserRepository(pool)

	// Inventory holds live in memory, seeded from the catalog stock counts.
	stock := inventory.NewMemoryStore()
	variants, err := variantRepo.List(ctx)
	if err != nil {
		return errors.Wrap(err, "load variant stock")
	}
	for _, v := range variants {
		stock.SetStock(v.ID, v.StockPieces)
	}
	stock.StartCleanup(ctx, time.Minute)

	// Domain services.
	calc := cart.NewCalculator(
		variantRepo,
		tier.NewResolver(tier.DefaultRates()),
		shipping.NewValidator(rates.MaxWeight, rates.ShippingFee),
		rates.FillerRate,
	)
	shipValidator := shipping.NewValidator(rates.MaxWeight, rates.ShippingFee)
	locks := cart.NewKeyedMutex()
	sink := notify.LogSink{}
	provider := identity.ContextProvider{}

	cartSvc := cart.NewService(provider, cartStore, calc, sink, locks)

	materializer := invoice.NewMaterializer(invoice.Party{
		Name:   cfg.Seller.Name,
		Street: cfg.Seller.Street,
		City:   cfg.Seller.City,
		Phone:  cfg.Seller.Phone,
		Email:  cfg.Seller.Email,
		TaxID:  cfg.Seller.TaxID,
	}, cfg.Business.InvoiceDueTerm)

	checkoutSvc := checkout.NewService(
		provider, cartStore, calc, stock, invoiceRepo, materializer,
		sink, locks, cfg.Business.ReservationTimeout,
	)

	// HTTP surface.
	h := handler.NewHandler(variantRepo, cartSvc, checkoutSvc, invoiceRepo, calc, shipValidator)
	authn := handler.APIKeyAuth(userRepo, []byte(cfg.APIKeyPepper))

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	h.Register(mux, authn)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", handler.APIKeyHeader},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("storefront-api", m),
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
