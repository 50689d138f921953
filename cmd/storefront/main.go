package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jcmexdev/storefront-checkout/internal/backend"
	"github.com/jcmexdev/storefront-checkout/internal/cart"
	"github.com/jcmexdev/storefront-checkout/internal/checkout"
	"github.com/jcmexdev/storefront-checkout/internal/checkout/journal"
	journalsqlite "github.com/jcmexdev/storefront-checkout/internal/checkout/journal/sqlite"
	"github.com/jcmexdev/storefront-checkout/internal/config"
	"github.com/jcmexdev/storefront-checkout/internal/coupon"
	"github.com/jcmexdev/storefront-checkout/internal/httpx"
	"github.com/jcmexdev/storefront-checkout/internal/order"
	"github.com/jcmexdev/storefront-checkout/internal/pkg/cache"
	"github.com/jcmexdev/storefront-checkout/internal/pkg/telemetry"
)

const serviceName = "storefront-checkout"

func main() {
	telemetry.InitLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		// Missing tax/shipping policy is fatal: a storefront that cannot
		// price carts must not come up.
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.SetupTracer(ctx, serviceName)
	if err != nil {
		slog.Warn("tracing disabled", "error", err)
	} else {
		defer func() {
			if err := shutdownTracer(context.Background()); err != nil {
				slog.Error("tracer shutdown failed", "error", err)
			}
		}()
	}

	var cacheBackend cache.Cache
	if cfg.RedisAddr != "" {
		cacheBackend = cache.NewRedisCache(cfg.RedisAddr, serviceName)
	}

	var jr journal.Repository
	if cfg.JournalPath != "" {
		repo, err := journalsqlite.Open(cfg.JournalPath)
		if err != nil {
			slog.Error("failed to open checkout journal", "path", cfg.JournalPath, "error", err)
			os.Exit(1)
		}
		defer repo.Close()
		jr = repo
	}

	var (
		cartClient cart.SyncClient
		registry   coupon.Registry
		gateway    order.Gateway
	)
	if cfg.BackendURL != "" {
		base, err := backend.NewClient(cfg.BackendURL, &http.Client{Timeout: cfg.UpstreamTimeout})
		if err != nil {
			slog.Error("configuration error", "error", err)
			os.Exit(1)
		}
		cartClient = backend.NewCartClient(base)
		registry = backend.NewCouponClient(base)
		gateway = backend.NewOrderClient(base)
	} else {
		slog.Warn("BACKEND_URL not set, running with the in-memory dev backend")
		mem := backend.NewMemory()
		cartClient = mem
		gateway = mem
		registry = seedDevCoupons()
	}

	if cacheBackend != nil {
		registry = coupon.NewCachedRegistry(registry, cacheBackend, cfg.CacheTTL)
	}

	resolver := coupon.NewResolver(registry)
	checkouts := checkout.NewManager(resolver, gateway, jr)
	carts := httpx.NewCartHub(cfg.Shipping, cfg.TaxRate, cartClient, cacheBackend, cfg.CacheTTL)
	handler := httpx.NewHandler(carts, checkouts, cfg.Currency)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpx.NewRouter(handler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("storefront checkout listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown failed", "error", err)
	}
}

// seedDevCoupons fills the in-memory registry with a few usable codes so the
// dev backend can exercise every discount type.
func seedDevCoupons() *coupon.MemoryRegistry {
	registry := coupon.NewMemoryRegistry()

	minSave := decimal.NewFromInt(200)
	limit := 100

	registry.Put(coupon.Descriptor{
		Code:         "WELCOME10",
		DiscountType: coupon.DiscountPercentage,
		Magnitude:    decimal.NewFromInt(10),
		Active:       true,
	})
	registry.Put(coupon.Descriptor{
		Code:            "SAVE50",
		DiscountType:    coupon.DiscountFixedAmount,
		Magnitude:       decimal.NewFromInt(50),
		MinimumSubtotal: &minSave,
		UsageLimit:      &limit,
		Active:          true,
	})
	registry.Put(coupon.Descriptor{
		Code:         "FREESHIP",
		DiscountType: coupon.DiscountFreeShipping,
		Active:       true,
	})

	return registry
}
