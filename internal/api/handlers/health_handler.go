package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// SchedulerStatus reports whether background polling is running
type SchedulerStatus interface {
	IsRunning() bool
}

// HealthHandler handles health check HTTP requests
type HealthHandler struct {
	db        *gorm.DB
	scheduler SchedulerStatus
}

// NewHealthHandler creates a new HealthHandler. scheduler may be nil when
// polling is disabled.
func NewHealthHandler(db *gorm.DB, scheduler SchedulerStatus) *HealthHandler {
	return &HealthHandler{db: db, scheduler: scheduler}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

// Health handles GET /health. A stopped poller is reported but does not make
// the service unhealthy: on-demand drafting still works without it.
func (h *HealthHandler) Health(c echo.Context) error {
	services := make(map[string]string)
	status := "healthy"

	// Check database connection
	sqlDB, err := h.db.DB()
	if err != nil {
		services["database"] = "unhealthy"
		status = "unhealthy"
	} else if err := sqlDB.PingContext(c.Request().Context()); err != nil {
		services["database"] = "unhealthy"
		status = "unhealthy"
	} else {
		services["database"] = "healthy"
	}

	switch {
	case h.scheduler == nil:
		services["poller"] = "disabled"
	case h.scheduler.IsRunning():
		services["poller"] = "running"
	default:
		services["poller"] = "stopped"
	}

	statusCode := http.StatusOK
	if status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	return c.JSON(statusCode, HealthResponse{
		Status:   status,
		Services: services,
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(c echo.Context) error {
	// Check database connection
	sqlDB, err := h.db.DB()
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "database connection failed",
		})
	}

	if err := sqlDB.PingContext(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "database ping failed",
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "ready",
	})
}
