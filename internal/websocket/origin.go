package websocket

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
)

// defaultAllowedOrigin is used when no origins are configured
const defaultAllowedOrigin = "http://localhost:3000"

// ParseOrigins splits a comma separated ALLOWED_ORIGINS value, dropping blanks
func ParseOrigins(raw string) []string {
	origins := make([]string, 0, 4)
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		origins = append(origins, defaultAllowedOrigin)
	}
	return origins
}

// NewSecureUpgrader creates a WebSocket upgrader that only accepts the
// configured dashboard origins. Origins compare exactly, case included.
func NewSecureUpgrader(allowedOrigins string, logger *slog.Logger) websocket.Upgrader {
	allowed := make(map[string]bool)
	for _, o := range ParseOrigins(allowedOrigins) {
		allowed[o] = true
	}

	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")

			// Allow same-origin requests (empty Origin)
			if origin == "" || allowed[origin] {
				return true
			}

			if logger != nil {
				logger.Warn("rejected websocket connection",
					slog.String("origin", origin),
					slog.String("remote_ip", r.RemoteAddr))
			}
			return false
		},
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
}
