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

	"github.com/SherClockHolmes/webpush-go"
	"github.com/joho/godotenv"

	"requisition-sync/config"
	"requisition-sync/internal/api"
	"requisition-sync/internal/batch"
	"requisition-sync/internal/db"
	"requisition-sync/internal/notification"
	"requisition-sync/internal/remote"
	"requisition-sync/internal/store"
	"requisition-sync/internal/syncer"
	applog "requisition-sync/pkg/logger"
)

func main() {
	// A missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		applog.Default().Fatalw("failed to load configuration", "path", configPath, "error", err)
	}

	log, err := applog.New(applog.Config{Level: cfg.Log.Level, Development: cfg.Log.Development})
	if err != nil {
		applog.Default().Fatalw("failed to build logger", "error", err)
	}
	defer log.Sync()
	log.Infow("configuration loaded", "path", configPath)

	gormDB, err := db.Init(&cfg.Database, log)
	if err != nil {
		log.Fatalw("failed to initialize database", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores := store.NewStores(gormDB, cfg.Cache.TTL)

	client := remote.NewClient(&cfg.Remote, log)
	monitor := remote.NewMonitor(client, cfg.Remote.ForceOffline, log)
	go monitor.Run(ctx, cfg.Remote.ProbeInterval)

	coordinator := syncer.New(client, stores, monitor, log)

	notifiers := notification.Multi{notification.NewLogNotifier(log)}
	var webpushOptions *webpush.Options
	if cfg.Push.Enabled {
		if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
			log.Fatalw("push is enabled but VAPID keys are not configured")
		}
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, gormDB, webpushOptions, log)
		pool.Start(ctx)
		notifiers = append(notifiers, pool)
	}

	sessions := batch.NewSessions(cfg.Server.SessionTTL)
	handler := api.NewHandler(coordinator, sessions, batch.Deps{
		Remote:    client,
		Store:     stores.BatchRequisitions,
		Notifier:  notifiers,
		Confirmer: batch.ContextConfirmer{},
		Log:       log,
	}, gormDB, webpushOptions)

	router := api.NewRouter(handler, &cfg.Server, log)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Infow("HTTP server starting", "port", cfg.Server.Port, "remote", cfg.Remote.BaseURL)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("HTTP server stopped unexpectedly", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("shutdown signal received, stopping services")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("HTTP server shutdown failed", "error", err)
		return
	}
	log.Info("server gracefully stopped")
}
