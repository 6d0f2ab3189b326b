package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	merchanthandler "storegate/internal/merchant/handler"
	merchantmetrics "storegate/internal/merchant/metrics"
	merchantservice "storegate/internal/merchant/service"
	merchantstore "storegate/internal/merchant/store"
	"storegate/internal/platform/config"
	"storegate/internal/platform/health"
	"storegate/internal/platform/logger"
	"storegate/internal/platform/redis"
	"storegate/internal/platform/tracer"
	"storegate/internal/proxy"
	"storegate/internal/search/index"
	"storegate/internal/search/query"
	storehandler "storegate/internal/stores/handler"
	storeservice "storegate/internal/stores/service"
	httptransport "storegate/internal/transport/http"
	"storegate/pkg/platform/circuit"
	"storegate/pkg/platform/middleware/admin"
	request "storegate/pkg/platform/middleware/request"
)

const readHeaderTimeout = 10 * time.Second

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "storegate:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Server.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("initializing storegate",
		"addr", cfg.Server.Addr,
		"environment", cfg.Server.Environment,
	)

	shutdownTracing, err := tracer.Setup(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	var tr tracer.Tracer = tracer.NewNoop()
	if tracer.Enabled(cfg.Tracing) {
		tr = tracer.NewOTel()
	}

	searchCfg, err := query.Load(cfg.Search.ConfigPath)
	if err != nil {
		return err
	}

	cache := redis.New(cfg.Redis, redis.WithLogger(log))
	if err := cache.Connect(ctx); err != nil {
		return fmt.Errorf("connect cache: %w", err)
	}

	searchIndex, err := index.NewFromConfig(cfg.Search, index.WithLogger(log), index.WithTracer(tr))
	if err != nil {
		return err
	}

	table, err := merchantstore.NewTableStore(ctx, cfg.Table, log)
	if err != nil {
		return err
	}
	merchants := merchantservice.New(cache, table,
		merchantservice.WithLogger(log),
		merchantservice.WithMetrics(merchantmetrics.New(nil)),
	)

	backends := proxy.NewRouter(cfg.Backends)
	proxyClient := proxy.NewClient(backends, cfg.Backends.RejectInvalidCert, cfg.Backends.ProxyTimeout,
		proxy.WithLogger(log),
		proxy.WithMetrics(proxy.NewMetrics(nil)),
		proxy.WithTracer(tr),
	)

	stores := storeservice.New(searchCfg, searchIndex, merchants, cache, proxyClient,
		storeservice.WithLogger(log),
		storeservice.WithTracer(tr),
		storeservice.WithClickAndCollectAuthorization(cfg.Backends.ClickAndCollectAuthz),
		storeservice.WithClosestTimeout(cfg.Backends.ProxyTimeout),
		storeservice.WithBreaker(circuit.New("click & collect",
			circuit.WithFailureThreshold(cfg.Backends.BreakerFailures),
			circuit.WithCooldown(cfg.Backends.BreakerCooldown),
		)),
	)

	healthHandler := health.New(cfg.Server.Environment)
	healthHandler.RegisterCheck("cache", cache.Health)
	healthHandler.RegisterCheck("search", searchIndex.Health)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Logger:         log,
		RequestTimeout: cfg.Server.RequestTimeout,
		Metrics:        request.NewMetrics(nil),
	},
		proxy.NewHandler(proxyClient, backends, log),
		healthHandler,
		storehandler.New(stores, log),
		merchanthandler.New(merchants, log,
			merchanthandler.WithInvalidateMiddleware(admin.RequireAdminToken(cfg.Server.AdminToken, log)),
		),
	)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting http server", "addr", cfg.Server.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	if err := cache.Close(); err != nil {
		log.Error("close cache failed", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("flush traces failed", "error", err)
	}

	log.Info("server stopped")
	return nil
}
