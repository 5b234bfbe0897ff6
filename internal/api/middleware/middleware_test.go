package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func TestRequestLogger_OmitsQuery(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/r/123-456-789-012?token=SECRETSECRETSECRET12", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/r/:id")

	handler := RequestLogger(zerolog.New(&buf))(func(c echo.Context) error {
		return c.NoContent(http.StatusFound)
	})
	if err := handler(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	if strings.Contains(buf.String(), "SECRETSECRETSECRET12") {
		t.Fatalf("token leaked into log: %s", buf.String())
	}

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("invalid log line %q: %v", buf.String(), err)
	}
	if line["path"] != "/r/123-456-789-012" || line["route"] != "/r/:id" {
		t.Fatalf("unexpected path fields: %v", line)
	}
	if line["status"] != float64(http.StatusFound) || line["level"] != "info" {
		t.Fatalf("unexpected status fields: %v", line)
	}
}

func TestRequestLogger_HandlesError(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	req := httptest.NewRequest(http.MethodPut, "/email", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := RequestLogger(zerolog.New(&buf))(func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusBadRequest, "id is required")
	})
	if err := handler(c); err != nil {
		t.Fatalf("expected error to be handled, got %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(buf.String(), `"level":"warn"`) {
		t.Fatalf("expected warn level: %s", buf.String())
	}
}

func TestNoStore(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/app/profile/1", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	handler := NoStore()(func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	})
	if err := handler(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !called {
		t.Fatalf("next handler not called")
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Fatalf("expected no-store, got %q", got)
	}
}
