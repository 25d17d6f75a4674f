package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"signup-code-service/internal/config"
	"signup-code-service/internal/infra/api"
	pg "signup-code-service/internal/infra/db/postgres"
	"signup-code-service/internal/infra/logging"
	"signup-code-service/internal/infra/metrics"
	red "signup-code-service/internal/infra/redis"
	"signup-code-service/internal/infra/sched"
	"signup-code-service/internal/infra/web"
	"signup-code-service/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (verbose logs, unredacted codes)")
	flag.Parse()

	// .env is optional; real deployments set env vars directly.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("developer mode enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()

	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				st := pool.Stat()
				metrics.SetDBPoolStats(st.TotalConns(), st.IdleConns(), st.AcquiredConns())
			}
		}
	}()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connect failed")
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)

	// ---- Repositories ----
	codeRepo := pg.NewSignupCodeRepo(pool)
	cachedCodeRepo := pg.NewSignupCodeRepoCacheDecorator(codeRepo, redisClient, cfg.Redis.TTL)
	txManager := pg.NewTxManager(pool)

	// ---- Use cases ----
	redeemUC := usecase.NewRedemptionUseCase(cachedCodeRepo, txManager, logger, cfg.Runtime.Dev)
	lifeUC := usecase.NewLifecycleUseCase(cachedCodeRepo, logger)

	// ---- Expiry sweeper ----
	sweeper := sched.NewExpirySweeper(cfg.Sweeper.Interval, lifeUC, logger)
	go func() {
		if err := sweeper.Run(ctx); err != nil && err != context.Canceled {
			logger.Error().Err(err).Msg("expiry sweeper stopped")
		}
	}()

	// ---- Public API (redemption) ----
	pubServer := api.NewServer(redeemUC, rateLimiter, cfg.API.RedeemLimit, cfg.API.RedeemWindow, logger)
	pubHTTP := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.API.Port),
		Handler: pubServer.Router(),
	}
	go func() {
		logger.Info().Int("port", cfg.API.Port).Msg("public API listening")
		if err := pubHTTP.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("public API server failed")
		}
	}()

	// ---- Admin API (lifecycle) ----
	auth := web.NewAuthManager(cfg.Admin.JWTSecret, cfg.Admin.TokenTTL)
	admServer := web.NewServer(lifeUC, auth, logger)
	admMux := http.NewServeMux()
	admServer.RegisterRoutes(admMux)
	admHTTP := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Admin.Port),
		Handler: admMux,
	}
	go func() {
		logger.Info().Int("port", cfg.Admin.Port).Msg("admin API listening")
		if err := admHTTP.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("admin API server failed")
		}
	}()

	// ---- Graceful shutdown ----
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := pubHTTP.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("public API shutdown")
	}
	if err := admHTTP.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("admin API shutdown")
	}
	logger.Info().Msg("bye")
}
