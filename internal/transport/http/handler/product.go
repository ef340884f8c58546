package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sakashimaa/product-showcase/internal/domain"
	"github.com/sakashimaa/product-showcase/internal/service"
	"github.com/sakashimaa/product-showcase/internal/transport/http/middleware"
	"github.com/sakashimaa/product-showcase/pkg/mylogger"
	"github.com/sakashimaa/product-showcase/pkg/utils"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

type ProductHandler struct {
	service service.ProductService
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
	logger  *zap.Logger
}

type CommentRequest struct {
	Message string `json:"message"`
}

type ImageRequest struct {
	ImageURL string `json:"image_url"`
}

func NewProductHandler(
	service service.ProductService,
	breaker utils.BreakerSettings,
	timeout time.Duration,
	logger *zap.Logger,
) *ProductHandler {
	if breaker.Name == "" {
		breaker.Name = "ProductStore"
	}
	breaker.IsSuccessful = isExpected

	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	return &ProductHandler{
		service: service,
		cb:      utils.NewBreaker(breaker, logger),
		timeout: timeout,
		logger:  logger,
	}
}

func (h *ProductHandler) Create(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	input := new(domain.ProductDraft)
	if err := c.BodyParser(input); err != nil {
		mylogger.Warn(ctx, h.logger, "failed to parse body in create", zap.Error(err))

		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "error parsing body",
		})
	}

	caller := middleware.CallerFrom(c)

	product, err := utils.ExecuteWithBreaker(h.cb, func() (*domain.Product, error) {
		return h.service.Create(ctx, caller, *input)
	})
	if err != nil {
		mylogger.Warn(ctx, h.logger, "create product failed", zap.Int("http_code", mapErrorStatus(err)), zap.Error(err))
		return writeError(c, err)
	}

	mylogger.Info(ctx, h.logger, "create product succeeded", zap.String("created_id", product.ID.String()))

	return c.Status(fiber.StatusCreated).JSON(toProductResponse(product, caller))
}

func (h *ProductHandler) FindByID(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	id := c.Params("id")

	product, err := utils.ExecuteWithBreaker(h.cb, func() (*domain.Product, error) {
		return h.service.FindByID(ctx, id)
	})
	if err != nil {
		mylogger.Warn(ctx, h.logger, "find by id failed", zap.String("id", id), zap.Error(err))
		return writeError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(toProductResponse(product, middleware.CallerFrom(c)))
}

func (h *ProductHandler) Vote(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	id := c.Params("id")
	caller := middleware.CallerFrom(c)

	product, err := utils.ExecuteWithBreaker(h.cb, func() (*domain.Product, error) {
		return h.service.Vote(ctx, id, caller)
	})
	if err != nil {
		mylogger.Warn(ctx, h.logger, "vote failed", zap.String("product_id", id), zap.Error(err))
		return writeError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(toProductResponse(product, caller))
}

func (h *ProductHandler) AddComment(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	input := new(CommentRequest)
	if err := c.BodyParser(input); err != nil {
		mylogger.Warn(ctx, h.logger, "body parsing failed", zap.Error(err))

		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	id := c.Params("id")
	caller := middleware.CallerFrom(c)

	product, err := utils.ExecuteWithBreaker(h.cb, func() (*domain.Product, error) {
		return h.service.AddComment(ctx, id, caller, input.Message)
	})
	if err != nil {
		mylogger.Warn(ctx, h.logger, "add comment failed", zap.String("product_id", id), zap.Error(err))
		return writeError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(toProductResponse(product, caller))
}

func (h *ProductHandler) SetImage(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	input := new(ImageRequest)
	if err := c.BodyParser(input); err != nil {
		mylogger.Warn(ctx, h.logger, "body parsing failed", zap.Error(err))

		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	id := c.Params("id")
	caller := middleware.CallerFrom(c)

	product, err := utils.ExecuteWithBreaker(h.cb, func() (*domain.Product, error) {
		return h.service.SetImage(ctx, id, caller, input.ImageURL)
	})
	if err != nil {
		mylogger.Warn(ctx, h.logger, "set image failed", zap.String("product_id", id), zap.Error(err))
		return writeError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(toProductResponse(product, caller))
}

func (h *ProductHandler) Delete(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	id := c.Params("id")

	mylogger.Info(ctx, h.logger, "delete product request", zap.String("product_id", id))

	_, err := utils.ExecuteWithBreaker(h.cb, func() (struct{}, error) {
		return struct{}{}, h.service.Delete(ctx, id, middleware.CallerFrom(c))
	})
	if err != nil {
		mylogger.Warn(
			ctx,
			h.logger,
			"delete product failed",
			zap.String("product_id", id),
			zap.Int("http_status", mapErrorStatus(err)),
			zap.Error(err),
		)

		return writeError(c, err)
	}

	mylogger.Info(ctx, h.logger, "product deleted successfully", zap.String("product_id", id))

	return c.SendStatus(fiber.StatusNoContent)
}
