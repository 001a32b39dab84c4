package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/clearwell-health/therabill/internal/api/router"
	"github.com/clearwell-health/therabill/internal/audit"
	appconfig "github.com/clearwell-health/therabill/internal/config"
	"github.com/clearwell-health/therabill/internal/credentials"
	"github.com/clearwell-health/therabill/internal/eligibility"
	"github.com/clearwell-health/therabill/internal/http/handlers"
	"github.com/clearwell-health/therabill/internal/observability/metrics"
	"github.com/clearwell-health/therabill/internal/payer"
	"github.com/clearwell-health/therabill/internal/payer/clearinghouse"
	"github.com/clearwell-health/therabill/internal/payer/medicarefhir"
	"github.com/clearwell-health/therabill/pkg/logging"
)

const version = "0.3.0"

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting therabill API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"version", version,
	)

	ctx := context.Background()

	// Postgres: pgx pool for credential storage, database/sql for audit.
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create pgx pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	auditDB, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open audit db", "error", err)
		os.Exit(1)
	}
	defer auditDB.Close()

	// Redis for the eligibility result cache.
	redisOpts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	// Credential encryption and storage.
	credManager, err := credentials.NewManager(cfg.CredentialKey)
	if err != nil {
		logger.Error("invalid PAYER_CREDENTIAL_KEY", "error", err)
		os.Exit(1)
	}
	credStore := credentials.NewStore(pool)
	credSource := credentials.NewSource(credStore, credManager)

	// Payer adapters.
	registry := payer.NewRegistry()

	medicare, err := medicarefhir.New(medicarefhir.Config{
		BaseURL:        cfg.MedicareBaseURL,
		SandboxBaseURL: cfg.MedicareSandboxBaseURL,
		Sandbox:        cfg.MedicareSandbox,
		Timeout:        cfg.MedicareTimeout,
		Logger:         logger,
	})
	if err != nil {
		logger.Error("failed to create medicare adapter", "error", err)
		os.Exit(1)
	}
	if err := registry.Register(medicare); err != nil {
		logger.Error("failed to register medicare adapter", "error", err)
		os.Exit(1)
	}

	if cfg.ClearinghouseEligibilityURL != "" {
		gateway, err := clearinghouse.New(clearinghouse.Config{
			EligibilityURL: cfg.ClearinghouseEligibilityURL,
			HealthURL:      cfg.ClearinghouseHealthURL,
			Timeout:        cfg.ClearinghouseTimeout,
			Logger:         logger,
		})
		if err != nil {
			logger.Error("failed to create clearinghouse adapter", "error", err)
			os.Exit(1)
		}
		// One gateway instance serves every commercial payer it can route.
		for _, code := range gateway.Payers() {
			if err := registry.RegisterAs(code, gateway); err != nil {
				logger.Error("failed to register clearinghouse payer", "payer", code, "error", err)
				os.Exit(1)
			}
		}
	} else {
		logger.Warn("clearinghouse adapter disabled: CLEARINGHOUSE_ELIGIBILITY_URL not set")
	}
	logger.Info("payer adapters registered", "payers", registry.Codes())

	// Orchestrator with cache, audit trail, and metrics.
	promRegistry := prometheus.NewRegistry()
	payerMetrics := metrics.NewPayerMetrics(promRegistry)

	service := eligibility.NewService(registry, credSource, logger,
		eligibility.WithCache(eligibility.NewCache(redisClient, cfg.EligibilityCacheTTL)),
		eligibility.WithAudit(audit.NewService(auditDB)),
		eligibility.WithMetrics(payerMetrics),
	)

	r := router.New(&router.Config{
		Logger:           logger,
		Eligibility:      handlers.NewEligibilityHandler(service, logger),
		CredentialsAdmin: handlers.NewCredentialsAdminHandler(credStore, credManager, logger),
		Health:           handlers.NewHealthHandler(version),
		AdminAuthSecret:  cfg.AdminJWTSecret,
		MetricsHandler:   promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}),
		APIRateLimit:     10,
		APIRateBurst:     30,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		// Payer calls can burn the full retry budget before answering.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
