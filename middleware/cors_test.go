package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"dealflow/config"
)

func newCORSApp(t *testing.T, origins string) *fiber.App {
	t.Helper()
	config.AppConfig.CORSAllowedOrigins = origins

	app := fiber.New()
	app.Use(CORS())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	return app
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	app := newCORSApp(t, "http://localhost:3000, https://app.example.com")

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Origin", "https://app.example.com")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}

	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("allow-origin = %q", got)
	}
	if got := resp.Header.Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("allow-credentials = %q", got)
	}
}

func TestCORSRejectsUnknownOrigin(t *testing.T) {
	app := newCORSApp(t, "http://localhost:3000")

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}

	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unknown origin was allowed: %q", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	app := newCORSApp(t, "http://localhost:3000")

	req := httptest.NewRequest("OPTIONS", "/", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}

	if resp.StatusCode != fiber.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Methods"); got != corsAllowedMethods {
		t.Errorf("allow-methods = %q", got)
	}
	if got := resp.Header.Get("Access-Control-Max-Age"); got != corsMaxAge {
		t.Errorf("max-age = %q", got)
	}
}
