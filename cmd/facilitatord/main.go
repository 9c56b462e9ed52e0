package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	facilitator "github.com/openfacilitator/go-facilitator"
	"github.com/openfacilitator/go-facilitator/chains"
	"github.com/openfacilitator/go-facilitator/config"
	"github.com/openfacilitator/go-facilitator/logger"
	"github.com/openfacilitator/go-facilitator/metrics"
	"github.com/openfacilitator/go-facilitator/settlement"
	"github.com/openfacilitator/go-facilitator/subscription"
	"github.com/openfacilitator/go-facilitator/vault"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync() //nolint:errcheck

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config load failed", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Redis ─────────────────────────────────────────────────────────────────
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("redis ping failed", zap.Error(err))
	}

	// ── Chain registry ────────────────────────────────────────────────────────
	registry, err := chains.NewRegistry(cfg.ChainConfigs())
	if err != nil {
		log.Fatal("chain registry init failed", zap.Error(err))
	}
	defer registry.Close()

	appLog := logger.WrapZap(log)
	rec := metrics.NewPrometheusRecorder()

	// ── Facilitator core ──────────────────────────────────────────────────────
	fac := facilitator.New(registry,
		facilitator.WithLogger(appLog),
		facilitator.WithMetrics(rec),
		facilitator.WithTimeout(cfg.SettleTimeout()),
		facilitator.WithOutcomeStore(settlement.NewRedisOutcomeStore(rdb, cfg.OutcomeTTL())),
	)

	// ── Key vault ─────────────────────────────────────────────────────────────
	walletStore := vault.NewWalletStore(rdb)
	keyVault, err := vault.New(walletStore, cfg.Vault.MasterSecret, registry.Family, appLog)
	if err != nil {
		log.Fatal("vault init failed", zap.Error(err))
	}

	// ── Webhook activator ─────────────────────────────────────────────────────
	subStore := subscription.NewStore(rdb, nil)
	activator, err := subscription.NewActivator(cfg.Webhook.Secret, keyVault, subStore, appLog, rec)
	if err != nil {
		log.Fatal("activator init failed", zap.Error(err))
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	h := newHandler(fac, keyVault, activator, appLog)
	h.register(r)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Info("HTTP server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	log.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}
	log.Info("shutdown complete")
}
