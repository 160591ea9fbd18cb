package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"attn/backend/internal/cache"
	"attn/backend/internal/config"
	"attn/backend/internal/forecast"
	"attn/backend/internal/httpapi"
	"attn/backend/internal/metrics"
	"attn/backend/internal/poller"
	"attn/backend/internal/service"
	"attn/backend/internal/store"
	"attn/backend/internal/store/memory"
	pgstore "attn/backend/internal/store/postgres"
	"attn/backend/internal/store/upstream"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Printf("WARN: %v", err)
	}
	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}
	if err := validateUpstreamURL(cfg.UpstreamAPIURL); err != nil {
		log.Fatalf("invalid UPSTREAM_API_URL: %v", err)
	}
	location := cfg.Location()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var (
		source store.SnapshotSource
		users  store.UserStore
	)
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Fatalf("postgres schema: %v", err)
		}
		source, users = pg, pg
		closers = append(closers, pg.Close)
		log.Println("repository: postgres")
	} else {
		mem := memory.NewSeeded()
		source, users = mem, mem
		log.Println("repository: in-memory")
	}

	if cfg.UpstreamAPIURL != "" {
		source = upstream.New(cfg.UpstreamAPIURL, time.Duration(cfg.UpstreamTimeoutSeconds)*time.Second, location)
		log.Printf("snapshot source: upstream %s", cfg.UpstreamAPIURL)
	}

	cacheStore := cache.ReportCache(cache.NoopReportCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisReportCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), using noop cache", err)
		} else {
			cacheStore = redisCache
			closers = append(closers, redisCache.Close)
			log.Println("cache: redis")
		}
	} else {
		log.Println("cache: noop")
	}

	reg := metrics.NewRegistry()
	engine := forecast.NewEngine(
		cacheStore,
		time.Duration(cfg.ReportCacheTTLSeconds)*time.Second,
		forecast.RestockOptions{
			SafetyBufferRate: cfg.SafetyBufferRate,
			LowStockDays:     cfg.LowStockDays,
			UrgentDays:       cfg.UrgentDays,
		},
		cfg.ChartLimit,
		reg,
	)
	svc := service.New(source, engine, location, reg)
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, users)
	api := httpapi.New(svc, auth, reg.Handler(), cfg.AllowedOrigin)

	refresher := poller.New(svc, time.Duration(cfg.PollIntervalSeconds)*time.Second)
	api.SetPoller(refresher)

	pollCtx, stopPolling := context.WithCancel(context.Background())
	pollDone := make(chan struct{})
	go func() {
		defer close(pollDone)
		refresher.Run(pollCtx)
	}()

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("forecast backend listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	stopPolling()
	<-pollDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	return nil
}

func validateUpstreamURL(raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("expected an absolute http(s) URL, got %q", raw)
	}
	return nil
}
