package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func corsEcho(allowed, env string) *echo.Echo {
	e := echo.New()
	e.Use(SecureCORS(allowed, env))
	e.GET("/test", func(c echo.Context) error {
		return c.String(http.StatusOK, "success")
	})
	return e
}

func TestSecureCORS_AllowedOrigin(t *testing.T) {
	e := corsEcho("http://localhost:3000, http://dashboard.example.com", "development")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Origin", "http://dashboard.example.com")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://dashboard.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSecureCORS_DisallowedOrigin(t *testing.T) {
	e := corsEcho("http://localhost:3000", "development")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Origin", "http://malicious.com")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	// Request still succeeds but without CORS headers for disallowed origin
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSecureCORS_PreflightAllowsOwnerHeader(t *testing.T) {
	e := corsEcho("http://localhost:3000", "development")

	req := httptest.NewRequest(http.MethodOptions, "/test", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", OwnerHeader)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), OwnerHeader)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestSecureCORS_DefaultOrigin(t *testing.T) {
	e := corsEcho("", "development")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSecureCORS_ProductionNoWildcard(t *testing.T) {
	e := corsEcho("*", "production")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Origin", "http://malicious.com")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.NotEqual(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEqual(t, "http://malicious.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSecureCORS_CredentialsAllowed(t *testing.T) {
	e := corsEcho("http://localhost:3000", "development")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}
