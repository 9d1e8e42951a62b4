package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/welldanyogia/mailpilot-backend/internal/logger"
)

const testAPIKey = "test-api-key"

func runAuth(t *testing.T, apiKey, path, target string, header string, sec *logger.SecurityLogger) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if header != "" {
		req.Header.Set(echo.HeaderAuthorization, header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath(path)

	handler := APIKeyAuth(apiKey, sec)(func(c echo.Context) error {
		return c.String(http.StatusOK, "success")
	})
	return rec, handler(c)
}

func TestAPIKeyAuth_MissingHeader(t *testing.T) {
	_, err := runAuth(t, testAPIKey, "/api/drafts", "/api/drafts", "", nil)

	require.Error(t, err)
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
}

func TestAPIKeyAuth_InvalidKey(t *testing.T) {
	_, err := runAuth(t, testAPIKey, "/api/drafts", "/api/drafts", "Bearer wrong-key", nil)

	require.Error(t, err)
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
}

func TestAPIKeyAuth_ValidKey(t *testing.T) {
	rec, err := runAuth(t, testAPIKey, "/api/drafts", "/api/drafts", "Bearer "+testAPIKey, nil)

	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIKeyAuth_PublicEndpointsSkipAuth(t *testing.T) {
	for _, path := range []string{"/health", "/ready", "/metrics"} {
		t.Run(path, func(t *testing.T) {
			rec, err := runAuth(t, testAPIKey, path, path, "", nil)

			assert.NoError(t, err)
			assert.Equal(t, http.StatusOK, rec.Code)
		})
	}
}

func TestAPIKeyAuth_WebSocketQueryToken(t *testing.T) {
	rec, err := runAuth(t, testAPIKey, "/ws", "/ws?token="+testAPIKey, "", nil)

	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIKeyAuth_QueryTokenOnlyForWebSocket(t *testing.T) {
	_, err := runAuth(t, testAPIKey, "/api/drafts", "/api/drafts?token="+testAPIKey, "", nil)

	assert.Error(t, err)
}

func TestAPIKeyAuth_NoAPIKeyConfigured(t *testing.T) {
	rec, err := runAuth(t, "", "/api/drafts", "/api/drafts", "", nil)

	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIKeyAuth_LogsFailureWithoutKey(t *testing.T) {
	var buf bytes.Buffer
	sec := logger.NewSecurityLoggerWithHandler(slog.NewJSONHandler(&buf, nil))

	_, err := runAuth(t, testAPIKey, "/api/drafts", "/api/drafts", "Bearer leaked-guess", sec)

	assert.Error(t, err)
	assert.Contains(t, buf.String(), "invalid_api_key")
	assert.NotContains(t, buf.String(), "leaked-guess")
}
