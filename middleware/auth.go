package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
)

// bearerAuth guards a route group with a static bearer token. Constant-time
// comparison; failures are logged with the path only.
func bearerAuth(expected, realm string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		if header == "" {
			log.Warnf("[%s] missing Authorization header for %s", realm, c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "authentication required",
			})
		}
		tok := strings.TrimPrefix(header, "Bearer ")
		if subtle.ConstantTimeCompare([]byte(tok), []byte(expected)) != 1 {
			log.Warnf("[%s] invalid token for %s", realm, c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid authentication token",
			})
		}
		return c.Next()
	}
}

// WorkerAuth authenticates the external delivery agent on /api/queue.
func WorkerAuth(workerToken string) fiber.Handler {
	return bearerAuth(workerToken, "WORKER_AUTH")
}

// AdminAuth authenticates administrative callers.
func AdminAuth(adminToken string) fiber.Handler {
	return bearerAuth(adminToken, "ADMIN_AUTH")
}
