// Package middleware provides HTTP middleware for the Mailpilot API.
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/welldanyogia/mailpilot-backend/internal/logger"
)

// publicPaths are served without an API key
var publicPaths = []string{"/health", "/ready", "/metrics"}

// APIKeyAuth validates the API key from the Authorization header. Browsers
// cannot set headers on a WebSocket handshake, so /ws also accepts the key in
// the "token" query parameter. An empty apiKey disables the check.
func APIKeyAuth(apiKey string, sec *logger.SecurityLogger) echo.MiddlewareFunc {
	if apiKey == "" && sec != nil {
		sec.Info("API_KEY not set - API is UNSECURED")
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Path()

			for _, p := range publicPaths {
				if strings.HasPrefix(path, p) {
					return next(c)
				}
			}

			// Skip if API_KEY not configured (development mode)
			if apiKey == "" {
				return next(c)
			}

			token := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if token == "" && path == "/ws" {
				token = c.QueryParam("token")
			}
			if token == "" {
				if sec != nil {
					sec.AuthFailure(c.RealIP(), path, "missing_credentials")
				}
				return echo.NewHTTPError(http.StatusUnauthorized, map[string]string{
					"error": "missing authorization header",
					"code":  "UNAUTHORIZED",
				})
			}

			// Use constant-time comparison to prevent timing attacks
			if subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
				if sec != nil {
					sec.AuthFailure(c.RealIP(), path, "invalid_api_key")
				}
				return echo.NewHTTPError(http.StatusUnauthorized, map[string]string{
					"error": "invalid API key",
					"code":  "UNAUTHORIZED",
				})
			}

			return next(c)
		}
	}
}

func bearerToken(header string) string {
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}
