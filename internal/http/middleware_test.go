package http

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"peregrine/internal/config"
	"peregrine/internal/logger"
	"peregrine/internal/store"
)

func authTestApp(serviceKey string) *fiber.App {
	cfg := &config.Config{}
	cfg.Auth.Enabled = true
	cfg.Auth.ServiceKey = serviceKey

	app := fiber.New()
	app.Get("/protected", authMiddleware(cfg), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})
	return app
}

func TestAuthMiddlewareRejectsMissingHeader(t *testing.T) {
	app := authTestApp("secret-key")

	req := httptest.NewRequest("GET", "/protected", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	var er ErrorResponse
	if err := json.Unmarshal(body, &er); err != nil {
		t.Fatalf("bad error body: %v", err)
	}
	if er.Code != "UNAUTHENTICATED" {
		t.Fatalf("code = %q, want UNAUTHENTICATED", er.Code)
	}
}

func TestAuthMiddlewareRejectsWrongKey(t *testing.T) {
	app := authTestApp("secret-key")

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer wrong-key")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestAuthMiddlewareAcceptsServiceKey(t *testing.T) {
	app := authTestApp("secret-key")

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer secret-key")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestAuthMiddlewareDisabledPassesThrough(t *testing.T) {
	cfg := &config.Config{}
	cfg.Auth.Enabled = false

	app := fiber.New()
	app.Get("/protected", authMiddleware(cfg), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})

	req := httptest.NewRequest("GET", "/protected", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestHealthzShallow(t *testing.T) {
	cfg := &config.Config{}
	srv := NewServer(cfg, &store.Store{}, logger.NewNop())

	req := httptest.NewRequest("GET", "/healthz", nil)
	resp, err := srv.app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	var out map[string]string
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if out["status"] != "ok" {
		t.Fatalf("status field = %q, want ok", out["status"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	cfg := &config.Config{}
	srv := NewServer(cfg, &store.Store{}, logger.NewNop())

	req := httptest.NewRequest("GET", "/metrics", nil)
	resp, err := srv.app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestV1RequiresAuth(t *testing.T) {
	cfg := &config.Config{}
	cfg.Auth.Enabled = true
	cfg.Auth.ServiceKey = "secret-key"
	srv := NewServer(cfg, &store.Store{}, logger.NewNop())

	req := httptest.NewRequest("GET", "/v1/jobs", nil)
	resp, err := srv.app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestJobDetailRejectsBadID(t *testing.T) {
	cfg := &config.Config{}
	srv := NewServer(cfg, &store.Store{}, logger.NewNop())

	req := httptest.NewRequest("GET", "/v1/jobs/not-a-uuid", nil)
	resp, err := srv.app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestJobsListRejectsBadStatus(t *testing.T) {
	cfg := &config.Config{}
	srv := NewServer(cfg, &store.Store{}, logger.NewNop())

	req := httptest.NewRequest("GET", "/v1/jobs?status=sideways", nil)
	resp, err := srv.app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}
