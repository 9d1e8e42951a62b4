package middleware

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/welldanyogia/mailpilot-backend/internal/logger"
	"github.com/welldanyogia/mailpilot-backend/internal/repository"
)

// OwnerHeader names the mailbox owner a request acts for
const OwnerHeader = "X-Owner-ID"

const ownerContextKey = "owner_id"

// OwnerContext resolves the acting owner from the X-Owner-ID header (or the
// owner_id query parameter on /ws) and stores its id on the context. Unknown
// and inactive owners are rejected before any handler runs.
func OwnerContext(owners repository.OwnerRepository, sec *logger.SecurityLogger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := c.Request().Header.Get(OwnerHeader)
			if raw == "" && c.Path() == "/ws" {
				raw = c.QueryParam("owner_id")
			}
			if raw == "" {
				return echo.NewHTTPError(http.StatusBadRequest, map[string]string{
					"error": "missing " + OwnerHeader + " header",
					"code":  "INVALID_INPUT",
				})
			}

			id, err := strconv.ParseUint(raw, 10, 32)
			if err != nil || id == 0 {
				if sec != nil {
					sec.InvalidOwner(c.RealIP(), c.Path(), raw)
				}
				return echo.NewHTTPError(http.StatusBadRequest, map[string]string{
					"error": "invalid owner ID",
					"code":  "INVALID_INPUT",
				})
			}

			owner, err := owners.GetByID(c.Request().Context(), uint(id))
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return echo.NewHTTPError(http.StatusInternalServerError, map[string]string{
					"error": "internal server error",
					"code":  "INTERNAL_ERROR",
				})
			}
			if err != nil || !owner.IsActive {
				if sec != nil {
					sec.InvalidOwner(c.RealIP(), c.Path(), raw)
				}
				return echo.NewHTTPError(http.StatusForbidden, map[string]string{
					"error": "unknown or inactive owner",
					"code":  "FORBIDDEN",
				})
			}

			c.Set(ownerContextKey, owner.ID)
			return next(c)
		}
	}
}

// OwnerID returns the owner stored by OwnerContext, or 0 outside it
func OwnerID(c echo.Context) uint {
	id, _ := c.Get(ownerContextKey).(uint)
	return id
}

// WithOwner stores an owner id on the context. Handler tests use it in place
// of the full middleware.
func WithOwner(c echo.Context, ownerID uint) {
	c.Set(ownerContextKey, ownerID)
}
