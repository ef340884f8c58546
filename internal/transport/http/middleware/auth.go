package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sakashimaa/product-showcase/internal/domain"
	"github.com/sakashimaa/product-showcase/internal/identity"
	"github.com/sakashimaa/product-showcase/pkg/mylogger"
	"go.uber.org/zap"
)

const callerKey = "caller"

// NewAuthMiddleware resolves an optional bearer token to the caller. Requests
// without an Authorization header continue anonymously. An unusable header is
// rejected on mutating requests and ignored on reads.
func NewAuthMiddleware(provider identity.Provider, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return c.Next()
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			if isRead(c) {
				return c.Next()
			}
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized: Invalid header format"})
		}

		ctx, cancel := context.WithTimeout(c.UserContext(), time.Second)
		defer cancel()

		caller, err := provider.CurrentCaller(ctx, parts[1])
		if err != nil {
			mylogger.Warn(ctx, logger, "token rejected", zap.Error(err))
			if isRead(c) {
				return c.Next()
			}
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized: Invalid token"})
		}

		c.Locals(callerKey, caller)
		return c.Next()
	}
}

func isRead(c *fiber.Ctx) bool {
	return c.Method() == fiber.MethodGet || c.Method() == fiber.MethodHead
}

// CallerFrom returns the caller resolved by NewAuthMiddleware, or nil.
func CallerFrom(c *fiber.Ctx) *domain.Caller {
	caller, ok := c.Locals(callerKey).(*domain.Caller)
	if !ok {
		return nil
	}

	return caller
}
