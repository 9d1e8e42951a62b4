package handlers

import (
	"errors"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/welldanyogia/mailpilot-backend/internal/repository"
)

// Pagination bounds
const (
	defaultLimit = 20
	maxLimit     = 100
)

// parseID reads a positive numeric path parameter
func parseID(c echo.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// pagination reads limit and offset, ignoring malformed values
func pagination(c echo.Context) (int, int) {
	limit := defaultLimit
	offset := 0

	if l := c.QueryParam("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if o := c.QueryParam("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	return limit, offset
}

// boolQuery parses an optional boolean query parameter
func boolQuery(c echo.Context, name string) (*bool, bool) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, false
	}
	return &v, true
}

func isRepoNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}
