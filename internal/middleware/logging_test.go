package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRequestLoggerOmitsQueryString(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	e := echo.New()
	e.Use(RequestLogger(zap.New(core)))
	e.GET("/api/v1/requests/feed", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/api/v1/requests/feed?token=eyJhbGciOiJIUzI1NiJ9.secret", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("log entries = %d; want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["path"] != "/api/v1/requests/feed" {
		t.Errorf("path = %v; want /api/v1/requests/feed", fields["path"])
	}
	for k, v := range fields {
		if s, ok := v.(string); ok && (strings.Contains(s, "secret") || strings.Contains(s, "token=")) {
			t.Errorf("field %s leaks the query string: %q", k, s)
		}
	}
}
