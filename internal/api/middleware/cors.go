package middleware

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/welldanyogia/mailpilot-backend/internal/websocket"
)

// SecureCORS returns CORS middleware for the dashboard origins in
// allowedOrigins (comma separated). Wildcards are dropped in production.
func SecureCORS(allowedOrigins, appEnv string) echo.MiddlewareFunc {
	origins := websocket.ParseOrigins(allowedOrigins)

	if appEnv == "production" {
		filtered := make([]string, 0, len(origins))
		for _, origin := range origins {
			if origin != "*" {
				filtered = append(filtered, origin)
			}
		}
		origins = filtered
		if len(origins) == 0 {
			origins = websocket.ParseOrigins("")
		}
	}

	return middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{echo.GET, echo.POST, echo.PUT, echo.PATCH, echo.DELETE, echo.OPTIONS},
		AllowHeaders: []string{
			echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, OwnerHeader,
		},
		AllowCredentials: true,
		MaxAge:           300,
	})
}
