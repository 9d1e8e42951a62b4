package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/welldanyogia/mailpilot-backend/internal/api"
	"github.com/welldanyogia/mailpilot-backend/internal/config"
	"github.com/welldanyogia/mailpilot-backend/internal/database"
	"github.com/welldanyogia/mailpilot-backend/internal/llm"
	"github.com/welldanyogia/mailpilot-backend/internal/logger"
	"github.com/welldanyogia/mailpilot-backend/internal/mailbox"
	"github.com/welldanyogia/mailpilot-backend/internal/repository"
	"github.com/welldanyogia/mailpilot-backend/internal/secrets"
	"github.com/welldanyogia/mailpilot-backend/internal/services"
	"github.com/welldanyogia/mailpilot-backend/internal/websocket"
	"github.com/welldanyogia/mailpilot-backend/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("server exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	if err := config.LoadEnvFile(); err != nil {
		return err
	}
	cfg, err := config.LoadWithValidation()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Setup logger
	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)
	slog.Info("Starting Mailpilot Backend Server...")
	cfg.LogConfig(log)

	// Initialize database connection
	db, err := database.Connect(cfg.DatabaseURL, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(db); err != nil {
			log.Error("failed to close database", slog.String("error", err.Error()))
		}
	}()
	if err := database.Migrate(db); err != nil {
		return err
	}

	tokenCipher, err := secrets.NewCipher(cfg.TokenEncryptionKey)
	if err != nil {
		return fmt.Errorf("invalid token encryption key: %w", err)
	}

	// Initialize repositories
	ownerRepo := repository.NewOwnerRepository(db)
	connRepo := repository.NewConnectionRepository(db, tokenCipher)
	messageRepo := repository.NewMessageRepository(db)
	ruleRepo := repository.NewRuleRepository(db)
	draftRepo := repository.NewDraftRepository(db)
	batchRepo := repository.NewBatchJobRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)

	// Initialize WebSocket hub
	hub := websocket.NewHub(log)
	go hub.Run()

	// Upstream clients
	model := llm.NewClient(llm.Options{
		APIKey:       cfg.LLMAPIKey,
		BaseURL:      cfg.LLMBaseURL,
		DefaultModel: cfg.LLMDefaultModel,
		Timeout:      cfg.LLMTimeout,
	}, log)
	provider := mailbox.NewGmailProvider(
		mailbox.OAuthConfig(cfg.GmailClientID, cfg.GmailClientSecret, cfg.GmailRedirectURL),
		connRepo, log)

	// Pipeline
	pool := worker.NewPool(cfg.WorkerConcurrency, log)
	locks := worker.NewKeyedMutex()

	activity := services.NewActivityService(activityRepo, hub, log)
	settings := services.NewSettingsService(settingsRepo, activity, cfg.LLMDefaultModel, log)
	ruleSvc := services.NewRuleService(ruleRepo, messageRepo, log)
	decider := services.NewResponseDecider(model, log)
	composer := services.NewDraftComposer(model, messageRepo, log)
	dispatcher := services.NewActionDispatcher(draftRepo, messageRepo, provider, activity, hub, log)
	processor := services.NewEmailProcessor(messageRepo, ruleRepo, settings, decider, composer, dispatcher, activity, locks, log)
	drafts := services.NewDraftService(draftRepo, ruleRepo, messageRepo, settings, composer, dispatcher, activity, hub, locks, log)
	batches := services.NewBatchJobManager(batchRepo, messageRepo, processor, pool, activity, hub, services.BatchConfig{
		MaxBatchSize: cfg.MaxBatchSize,
		ItemTimeout:  cfg.ItemTimeout,
	}, log)
	syncer := services.NewSyncCoordinator(connRepo, messageRepo, provider, activity, hub, services.SyncConfig{
		FallbackWindow: cfg.SyncFallbackWindow,
	}, log)
	mailboxSvc := services.NewMailboxService(ownerRepo, connRepo, messageRepo, provider, tokenCipher, activity, log)
	scheduler := services.NewPollScheduler(ownerRepo, messageRepo, syncer, processor, pool, services.PollSchedulerConfig{
		Interval:    cfg.PollInterval,
		ItemTimeout: cfg.ItemTimeout,
	}, log)

	routerCfg := &api.RouterConfig{
		DB:             db,
		Logger:         log,
		APIKey:         cfg.APIKey,
		AllowedOrigins: cfg.AllowedOrigins,
		AppEnv:         cfg.AppEnv,
		RateLimit:      cfg.RateLimitRequests,
		RateBurst:      cfg.RateLimitBurst,
		Owners:         ownerRepo,
		Messages:       messageRepo,
		Poller:         scheduler,
		Processor:      processor,
		Rules:          ruleSvc,
		Drafts:         drafts,
		Batches:        batches,
		Settings:       settings,
		Activity:       activity,
		Mailbox:        mailboxSvc,
		Hub:            hub,
	}
	if cfg.PollEnabled {
		scheduler.Start()
		routerCfg.Scheduler = scheduler
	} else {
		log.Info("background polling disabled")
	}

	done := make(chan struct{})
	routerCfg.Done = done
	e := api.NewRouter(routerCfg)

	// Start HTTP server
	serverErr := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.APIPort)
		log.Info("HTTP server listening", slog.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-serverErr:
		log.Error("HTTP server failed", slog.String("error", err.Error()))
	}
	slog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Error("HTTP server shutdown failed", slog.String("error", err.Error()))
	}
	scheduler.Stop()
	batches.Shutdown()
	pool.Wait()
	close(done)
	hub.Stop()

	slog.Info("Server stopped")
	return nil
}
