package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"funnel-crm/internal/account"
	"funnel-crm/internal/api"
	"funnel-crm/internal/auth"
	"funnel-crm/internal/config"
	"funnel-crm/internal/contacts"
	"funnel-crm/internal/database"
	"funnel-crm/internal/funnel"
	"funnel-crm/internal/ledger"
	"funnel-crm/internal/logger"
	"funnel-crm/internal/media"
	"funnel-crm/internal/webhook"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Run starts the HTTP server and blocks until ctx is cancelled.
func Run(ctx context.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Env)
	defer func() { _ = log.Sync() }()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Open(cfg, log)
	if err != nil {
		log.Error("database unavailable", zap.Error(err))
		return err
	}

	store, err := media.NewStore(db, cfg.UploadDir, cfg.UploadMaxBytes, cfg.UploadRetention, log)
	if err != nil {
		return err
	}
	store.SweepAsync()

	accounts := account.NewService(db)
	funnels := funnel.NewEngine(db)
	contactSvc := contacts.NewService(db, funnels)
	ldg := ledger.New(db)
	notifier := webhook.NewNotifier(cfg.WebhookURL, cfg.PublicBaseURL, cfg.NotifyTimeout, log)
	if !notifier.Enabled() {
		log.Info("WEBHOOK_URL not set, outbound notifications disabled")
	}

	router := api.NewRouter(api.Deps{
		Config:   cfg,
		Log:      log,
		Accounts: accounts,
		JWT:      auth.NewJWTService(cfg.SessionSecret, cfg.SessionTTL),
		Funnels:  funnels,
		Contacts: contactSvc,
		Ledger:   ldg,
		Bridge:   webhook.NewBridge(accounts, funnels, contactSvc, ldg, log),
		Notifier: notifier,
		Media:    store,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			log.Error("server error", zap.Error(err))
			return err
		}
	}

	log.Info("shutting down server")
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Warn("graceful shutdown incomplete", zap.Error(err))
	}
	notifier.Wait()
	store.Wait()

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := Run(ctx); err != nil {
		os.Exit(1)
	}
}
