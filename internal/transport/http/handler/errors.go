package handler

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sakashimaa/product-showcase/internal/domain"
	"github.com/sony/gobreaker"
)

func mapErrorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthenticated):
		return fiber.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrStoreUnavailable),
		errors.Is(err, gobreaker.ErrOpenState),
		errors.Is(err, gobreaker.ErrTooManyRequests):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusInternalServerError
	}
}

// isExpected reports errors that say nothing about the health of the store.
// They never count against the breaker.
func isExpected(err error) bool {
	return err == nil ||
		errors.Is(err, domain.ErrValidation) ||
		errors.Is(err, domain.ErrUnauthenticated) ||
		errors.Is(err, domain.ErrForbidden) ||
		errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, context.Canceled)
}

func writeError(c *fiber.Ctx, err error) error {
	status := mapErrorStatus(err)

	body := fiber.Map{"error": err.Error()}

	var validationErr *domain.ValidationError
	switch {
	case errors.As(err, &validationErr):
		body = fiber.Map{
			"error":  domain.ErrValidation.Error(),
			"fields": validationErr.Fields,
		}
	case status == fiber.StatusServiceUnavailable:
		c.Set(fiber.HeaderRetryAfter, "1")
		body = fiber.Map{"error": "service temporarily unavailable"}
	case status == fiber.StatusInternalServerError:
		body = fiber.Map{"error": "internal error"}
	}

	return c.Status(status).JSON(body)
}
