package api

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/welldanyogia/mailpilot-backend/internal/api/handlers"
	"github.com/welldanyogia/mailpilot-backend/internal/api/middleware"
	"github.com/welldanyogia/mailpilot-backend/internal/logger"
	"github.com/welldanyogia/mailpilot-backend/internal/repository"
	"github.com/welldanyogia/mailpilot-backend/internal/services"
	"github.com/welldanyogia/mailpilot-backend/internal/websocket"
)

// RouterConfig holds dependencies for the router
type RouterConfig struct {
	DB       *gorm.DB
	Logger   *slog.Logger
	Security *logger.SecurityLogger

	// Security configuration
	APIKey         string  // API key for authentication (empty = disabled)
	AllowedOrigins string  // Comma-separated CORS and WebSocket origins
	AppEnv         string  // "production" rejects wildcard origins
	RateLimit      float64 // Requests per second per IP
	RateBurst      int     // Burst size for rate limiter

	// Done stops background cleanup owned by the router
	Done <-chan struct{}

	Owners   repository.OwnerRepository
	Messages repository.MessageRepository

	Poller    handlers.MailboxPoller
	Scheduler handlers.SchedulerStatus // nil when polling is disabled
	Processor services.EmailProcessor
	Rules     services.RuleService
	Drafts    services.DraftService
	Batches   services.BatchJobManager
	Settings  services.SettingsService
	Activity  services.ActivityService
	Mailbox   services.MailboxService
	Hub       *websocket.Hub
}

// NewRouter creates and configures the Echo router with all routes
func NewRouter(cfg *RouterConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	if cfg.Security == nil {
		cfg.Security = logger.FromLogger(cfg.Logger)
	}

	// Middleware order matters: recover first, log last so the logged status
	// is the one the client sees.
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.SecureHeaders())
	e.Use(middleware.SecureCORS(cfg.AllowedOrigins, cfg.AppEnv))
	if cfg.RateLimit > 0 {
		e.Use(middleware.RateLimiterWithConfig(cfg.RateLimit, cfg.RateBurst, cfg.Security, cfg.Done))
	}
	e.Use(middleware.RequestLogger(cfg.Logger))

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Scheduler)
	messageHandler := handlers.NewMessageHandler(cfg.Messages, cfg.Poller, cfg.Processor)
	ruleHandler := handlers.NewRuleHandler(cfg.Rules)
	draftHandler := handlers.NewDraftHandler(cfg.Drafts)
	batchHandler := handlers.NewBatchHandler(cfg.Batches)
	settingsHandler := handlers.NewSettingsHandler(cfg.Settings)
	activityHandler := handlers.NewActivityHandler(cfg.Activity)
	mailboxHandler := handlers.NewMailboxHandler(cfg.Mailbox)
	wsHandler := handlers.NewWebSocketHandler(cfg.Hub, cfg.AllowedOrigins, cfg.Logger)

	// Probes and metrics (no auth required)
	e.GET("/health", healthHandler.Health)
	e.GET("/ready", healthHandler.Ready)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	auth := middleware.APIKeyAuth(cfg.APIKey, cfg.Security)
	owner := middleware.OwnerContext(cfg.Owners, cfg.Security)

	e.GET("/ws", wsHandler.Connect, auth, owner)

	// Owner registration happens before an owner exists
	e.POST("/api/owners", mailboxHandler.RegisterOwner, auth)

	api := e.Group("/api", auth, owner)

	// Mailbox connection routes
	api.GET("/mailbox", mailboxHandler.Status)
	api.GET("/mailbox/authorize", mailboxHandler.Authorize)
	api.POST("/mailbox/connect", mailboxHandler.Connect)
	api.DELETE("/mailbox", mailboxHandler.Disconnect)

	// Message routes
	messages := api.Group("/messages")
	messages.GET("", messageHandler.List)
	messages.POST("/sync", messageHandler.Sync)
	messages.GET("/:id", messageHandler.Get)
	messages.GET("/:id/thread", messageHandler.Thread)
	messages.POST("/:id/draft", messageHandler.Draft)

	// Rule routes
	rules := api.Group("/rules")
	rules.GET("", ruleHandler.List)
	rules.POST("", ruleHandler.Create)
	rules.POST("/test", ruleHandler.Test)
	rules.GET("/:id", ruleHandler.Get)
	rules.PUT("/:id", ruleHandler.Update)
	rules.PATCH("/:id/toggle", ruleHandler.Toggle)
	rules.DELETE("/:id", ruleHandler.Delete)

	// Draft routes
	drafts := api.Group("/drafts")
	drafts.GET("", draftHandler.List)
	drafts.GET("/:id", draftHandler.Get)
	drafts.PATCH("/:id", draftHandler.Edit)
	drafts.POST("/:id/approve", draftHandler.Approve)
	drafts.POST("/:id/reject", draftHandler.Reject)
	drafts.POST("/:id/regenerate", draftHandler.Regenerate)

	// Batch draft routes
	batches := api.Group("/batch-drafts")
	batches.POST("", batchHandler.Submit)
	batches.GET("", batchHandler.List)
	batches.GET("/:id", batchHandler.Status)

	// Settings routes
	api.GET("/settings", settingsHandler.Get)
	api.PUT("/settings", settingsHandler.Update)
	api.POST("/guardrails/test", settingsHandler.TestGuardrails)

	// Activity routes
	api.GET("/activity", activityHandler.List)

	return e
}
