package main

import (
	"crypto/rand"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/a-szyszlo/event-manager/internal/auth"
	"github.com/a-szyszlo/event-manager/internal/cache"
	"github.com/a-szyszlo/event-manager/internal/config"
	httpx "github.com/a-szyszlo/event-manager/internal/http"
	"github.com/a-szyszlo/event-manager/internal/observability"
	"github.com/a-szyszlo/event-manager/internal/registration"
	"github.com/a-szyszlo/event-manager/internal/repo"
	"github.com/a-szyszlo/event-manager/internal/search"
	"github.com/a-szyszlo/event-manager/internal/web"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	cfg := config.Load()
	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server failed", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, cancel := config.WithTimeout(15 * time.Second)
	defer cancel()

	shutdownTracer, err := observability.InitTracer(ctx, "event-manager", cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		sctx, scancel := config.WithTimeout(5 * time.Second)
		defer scancel()
		_ = shutdownTracer(sctx)
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	store, closeStore, err := repo.Open(ctx, cfg, prom, log)
	if err != nil {
		return err
	}
	defer closeStore()

	searchCache, closeCache := openCache(cfg, log)
	defer closeCache()

	secret := cfg.NonceSecret
	if secret == "" {
		secret = rand.Text()
		log.Warn("NONCE_SECRET is not set, using a random secret; issued nonces will not survive a restart")
	}
	nonces := auth.NewManager(secret, cfg.NonceTTL)

	loc := cfg.Location()

	admission := registration.NewService(store, nonces, log, prom, registration.Config{
		Location:    loc,
		MaxAttempts: cfg.AdmissionMaxAttempts,
	})
	searcher := search.NewService(store, searchCache, search.NewRenderer(cfg.ExcerptLength, loc), log, prom)

	tmpl, err := web.Templates()
	if err != nil {
		return fmt.Errorf("parse templates: %w", err)
	}

	var draining atomic.Bool

	router := httpx.NewRouter(httpx.Deps{
		Log:                log,
		Prom:               prom,
		Env:                cfg.Env,
		Ping:               store.Ping,
		Draining:           draining.Load,
		Pages:              store,
		Registrations:      admission,
		Search:             searcher,
		Nonces:             nonces,
		Templates:          tmpl,
		Static:             web.Static(),
		Location:           loc,
		Gatherer:           reg,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		MaxBodyBytes:       cfg.MaxBodyBytes,
		TrustProxyHeaders:  cfg.TrustProxyHeaders,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-stop:
	}
	log.Info("server shutting down")
	draining.Store(true)

	sctx, scancel := config.WithTimeout(10 * time.Second)
	defer scancel()

	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	log.Info("shutdown complete")
	return nil
}

// openCache prefers redis when configured and reachable, otherwise results
// are cached in process.
func openCache(cfg config.Config, log *slog.Logger) (cache.Store, func()) {
	if cfg.RedisAddr == "" {
		return cache.NewMemory(cfg.SearchCacheTTL), func() {}
	}

	rc := cache.NewRedis(cache.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		TTL:      cfg.SearchCacheTTL,
	})

	ctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	if err := rc.Ping(ctx); err != nil {
		log.Warn("redis unavailable, caching search results in memory", "addr", cfg.RedisAddr, "err", err)
		_ = rc.Close()
		return cache.NewMemory(cfg.SearchCacheTTL), func() {}
	}

	log.Info("redis search cache ready", "addr", cfg.RedisAddr)
	return rc, func() { _ = rc.Close() }
}
