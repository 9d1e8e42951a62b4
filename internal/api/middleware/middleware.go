package middleware

import (
	"log/slog"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// RequestLogger returns a middleware that logs HTTP requests. Errors are
// handed to echo first so the logged status is the one the client gets.
// Probe endpoints log at debug level.
func RequestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			if err := next(c); err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()

			attrs := []any{
				slog.String("method", req.Method),
				slog.String("path", req.URL.Path),
				slog.Int("status", res.Status),
				slog.Duration("latency", time.Since(start)),
				slog.String("remote_ip", c.RealIP()),
			}
			if id := res.Header().Get(echo.HeaderXRequestID); id != "" {
				attrs = append(attrs, slog.String("request_id", id))
			}
			if owner := OwnerID(c); owner != 0 {
				attrs = append(attrs, slog.Uint64("owner_id", uint64(owner)))
			}

			switch {
			case res.Status >= 500:
				logger.Error("request", attrs...)
			case isProbe(req.URL.Path):
				logger.Debug("request", attrs...)
			default:
				logger.Info("request", attrs...)
			}

			return nil
		}
	}
}

func isProbe(path string) bool {
	return path == "/health" || path == "/ready" || strings.HasPrefix(path, "/metrics")
}

// RequestID returns a middleware that tags every request with X-Request-ID
func RequestID() echo.MiddlewareFunc {
	return middleware.RequestID()
}

// Recover returns a middleware that recovers from panics
func Recover() echo.MiddlewareFunc {
	return middleware.Recover()
}
