package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dlanger/studyden/internal/backup"
	"github.com/dlanger/studyden/internal/config"
	"github.com/dlanger/studyden/internal/database"
	"github.com/dlanger/studyden/internal/logging"
	"github.com/dlanger/studyden/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Setup("info", "text").Error("load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	srv := server.New(db, server.Config{
		JWTSecret:       []byte(cfg.JWTSecret),
		TokenTTL:        cfg.TokenTTL,
		LoginRateLimit:  cfg.LoginRateLimit,
		LoginRatePeriod: cfg.LoginRatePeriod,
		VAPIDPublicKey:  cfg.VAPIDPublicKey,
		VAPIDPrivateKey: cfg.VAPIDPrivateKey,
		PushSubscriber:  cfg.PushSubscriber,
		ReminderHour:    cfg.ReminderHour,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if sched := srv.PushScheduler(); sched != nil {
		sched.Start(ctx)
		defer sched.Stop()
	}

	backupMgr := backup.NewManager(cfg.Backup, db, logger)
	backupMgr.Start(ctx)
	defer backupMgr.Stop()

	// Rate limiter windows expire lazily, sweep them hourly.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				srv.RateLimiter().Cleanup()
			}
		}
	}()

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("listening", "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
