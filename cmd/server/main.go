// Package main is the entry point for the CoinScope token tracker backend.
// It wires the storage layer, the queue backend, the job scheduler, the
// per-queue processors and the monitor, then serves the monitoring and
// trigger API until a shutdown signal arrives.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/coinscope/coinscope/internal/cache"
	"github.com/coinscope/coinscope/internal/clients/market"
	"github.com/coinscope/coinscope/internal/config"
	"github.com/coinscope/coinscope/internal/database"
	"github.com/coinscope/coinscope/internal/jobs/monitor"
	"github.com/coinscope/coinscope/internal/jobs/processors"
	"github.com/coinscope/coinscope/internal/jobs/scheduler"
	"github.com/coinscope/coinscope/internal/modules/alerts"
	"github.com/coinscope/coinscope/internal/modules/coins"
	"github.com/coinscope/coinscope/internal/modules/portfolio"
	"github.com/coinscope/coinscope/internal/modules/risk"
	"github.com/coinscope/coinscope/internal/modules/social"
	"github.com/coinscope/coinscope/internal/modules/whales"
	"github.com/coinscope/coinscope/internal/notify"
	"github.com/coinscope/coinscope/internal/queue"
	"github.com/coinscope/coinscope/internal/realtime"
	"github.com/coinscope/coinscope/internal/reliability"
	"github.com/coinscope/coinscope/internal/server"
	"github.com/coinscope/coinscope/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode})
	log.Info().Str("data_dir", cfg.DataDir).Msg("Starting CoinScope")

	db, err := database.New(database.Config{Path: cfg.DataDir, Name: "coinscope"})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()

	// Redis is optional; without it the cache and the monitor store run
	// in-process.
	var redisClient *redis.Client
	var cacheSvc cache.Service
	var monitorStore monitor.WindowedStore
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("Failed to connect to Redis")
		}
		defer redisClient.Close()
		cacheSvc = cache.NewRedisCache(redisClient, log)
		monitorStore = monitor.NewRedisStore(redisClient)
	} else {
		log.Warn().Msg("REDIS_ADDR not set, using in-process cache and monitor store")
		cacheSvc = cache.NewMemoryCache()
		monitorStore = monitor.NewMemoryStore()
	}

	// Repositories
	coinsRepo := coins.NewRepository(db.Conn(), log)
	socialRepo := social.NewRepository(db.Conn(), log)
	alertsRepo := alerts.NewRepository(db.Conn(), log)
	portfolioRepo := portfolio.NewRepository(db.Conn(), log)
	whalesRepo := whales.NewRepository(db.Conn(), log)
	riskRepo := risk.NewRepository(db.Conn(), log)

	// Clients and collaborators
	marketClient := market.NewClient(cfg.MarketAPIBaseURL, cfg.MarketAPIKey, cfg.MarketAPITimeout, log)
	hub := realtime.NewHub(log)
	notifier := notify.NewDispatcher(hub, log)
	trendingEval := social.NewEvaluator(socialRepo)

	riskSources := market.NewRiskSources(marketClient)
	engine := risk.NewEngine(risk.Sources{
		Liquidity: riskSources,
		Holders:   riskSources,
		Contract:  riskSources,
		Social:    social.NewRiskSource(socialRepo),
	}, cacheSvc, riskRepo, log)

	backend := queue.NewMemory(queue.AllQueues, log)

	mon := monitor.New(backend, monitorStore, log)
	mon.Initialize()

	backupEnabled := cfg.Backup != nil && cfg.Backup.Enabled
	var backupSvc *reliability.BackupService
	if backupEnabled {
		backupSvc, err = reliability.NewBackupService(context.Background(), cfg.Backup, db, cfg.DataDir, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize backup service")
		}
	}

	registry := processors.NewRegistry()
	processors.RegisterPriceHandlers(registry, &processors.PriceDeps{
		Coins:     coinsRepo,
		Holdings:  portfolioRepo,
		Quotes:    marketClient,
		Broadcast: hub,
		Log:       log,
	})
	processors.RegisterSocialHandlers(registry, &processors.SocialDeps{
		Coins:    coinsRepo,
		Social:   socialRepo,
		Trending: trendingEval,
		Stats:    marketClient,
		Log:      log,
	})
	processors.RegisterAlertHandlers(registry, &processors.AlertDeps{
		Alerts:    alertsRepo,
		Coins:     coinsRepo,
		Whales:    whalesRepo,
		Social:    socialRepo,
		Notifier:  notifier,
		Broadcast: hub,
		Log:       log,
	})
	processors.RegisterRiskHandlers(registry, &processors.RiskDeps{Engine: engine})
	processors.RegisterWhaleHandlers(registry, &processors.WhaleDeps{
		Coins:     coinsRepo,
		Whales:    whalesRepo,
		Transfers: marketClient,
		Log:       log,
	})
	maintenanceDeps := &processors.MaintenanceDeps{
		Coins:  coinsRepo,
		Social: socialRepo,
		Cache:  cacheSvc,
		Log:    log,
	}
	if backupSvc != nil {
		maintenanceDeps.Backup = backupSvc
	}
	processors.RegisterMaintenanceHandlers(registry, maintenanceDeps)

	procs := processors.New(backend, registry, processors.DefaultWorkerConfigs(), log)
	procs.Start()

	sched := scheduler.New(backend, coinsRepo, backupEnabled, log)
	if err := sched.Initialize(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to register recurring jobs")
	}

	srv := server.New(server.Config{
		Port:       cfg.Port,
		DevMode:    cfg.DevMode,
		Log:        log,
		Backend:    backend,
		Monitor:    mon,
		Scheduler:  sched,
		RiskEngine: engine,
		Hub:        hub,
		DataDir:    cfg.DataDir,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	hub.Close()

	// Stop dequeues first so workers drain, then close the backend and
	// finally the monitor, which drains the remaining event streams.
	procs.Close()
	if err := backend.Close(); err != nil {
		log.Error().Err(err).Msg("Queue backend close failed")
	}
	mon.Close()

	log.Info().Msg("Shutdown complete")
}
