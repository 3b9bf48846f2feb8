// Package main runs the FirstFix starter-kit backend: issue search, repo
// pack building, vector retrieval, and mentor hints behind one HTTP API.
package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	app "github.com/firstfix/starterkit/internal/app"
	"github.com/firstfix/starterkit/internal/app/httpapi"
	"github.com/firstfix/starterkit/internal/app/metrics"
	"github.com/firstfix/starterkit/internal/app/storage/postgres"
	redisstore "github.com/firstfix/starterkit/internal/app/storage/redis"
	"github.com/firstfix/starterkit/internal/config"
	"github.com/firstfix/starterkit/internal/middleware"
	"github.com/firstfix/starterkit/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.FromEnv()
	if err != nil {
		logger.NewDefault("server").WithError(err).Error("invalid configuration")
		os.Exit(1)
	}
	log := logger.New("server", cfg.LogLevel)

	stores := app.Stores{}

	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.WithError(err).Error("open postgres")
			os.Exit(1)
		}
		defer db.Close()
		pg := postgres.New(db)
		if err := pg.EnsureSchema(context.Background()); err != nil {
			log.WithError(err).Error("ensure postgres schema")
			os.Exit(1)
		}
		stores.Packs = pg
		stores.Hints = pg
		log.Info("postgres store enabled")
	}

	if cfg.RedisAddr != "" {
		rs := redisstore.NewHintStore(cfg.RedisAddr)
		if err := rs.Ping(context.Background()); err != nil {
			log.WithError(err).Error("redis unreachable")
			os.Exit(1)
		}
		defer rs.Close()
		stores.Hints = rs
		log.WithField("addr", cfg.RedisAddr).Info("redis hint cache enabled")
	}

	application, err := app.New(cfg, stores, log)
	if err != nil {
		log.WithError(err).Error("build application")
		os.Exit(1)
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerSec, cfg.RateLimitBurst, log)
	if err := application.Attach(limiter); err != nil {
		log.WithError(err).Error("attach rate limiter")
		os.Exit(1)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := application.Start(runCtx); err != nil {
		log.WithError(err).Error("start application")
		os.Exit(1)
	}

	var handler http.Handler = httpapi.NewHandler(application, cfg.RouteTimeout)
	handler = metrics.InstrumentHandler(handler)
	handler = limiter.Handler(handler)

	var origins []string
	if cfg.CORSOrigin != "" {
		origins = []string{cfg.CORSOrigin}
	}
	handler = middleware.NewCORSMiddleware(origins).Handler(handler)
	handler = middleware.NewTracingMiddleware(log).Handler(handler)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  90 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.Addr()).Info("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("http server failed")
			cancel()
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-stop:
		log.Info("shutdown signal received")
	case <-runCtx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http server shutdown")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("application shutdown")
	}
	log.Info("server stopped")
}
