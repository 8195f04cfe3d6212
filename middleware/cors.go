package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"dealflow/config"
)

const (
	corsAllowedMethods = "GET,POST,PUT,DELETE,PATCH,OPTIONS"
	corsAllowedHeaders = "Origin,Content-Type,Accept,Authorization,X-Requested-With"
	corsMaxAge         = "3600"
)

// CORS allows the configured frontend origins (CORS_ALLOWED_ORIGINS,
// comma separated) with credentials, and answers preflight requests.
func CORS() fiber.Handler {
	allowed := make(map[string]struct{})
	for _, origin := range strings.Split(config.AppConfig.CORSAllowedOrigins, ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			allowed[origin] = struct{}{}
		}
	}

	return func(c *fiber.Ctx) error {
		origin := c.Get("Origin")
		if _, ok := allowed[origin]; ok {
			c.Set("Access-Control-Allow-Origin", origin)
			c.Set("Access-Control-Allow-Credentials", "true")
		}

		if c.Method() == fiber.MethodOptions {
			c.Set("Access-Control-Allow-Methods", corsAllowedMethods)
			c.Set("Access-Control-Allow-Headers", corsAllowedHeaders)
			c.Set("Access-Control-Max-Age", corsMaxAge)
			return c.SendStatus(fiber.StatusNoContent)
		}

		return c.Next()
	}
}
