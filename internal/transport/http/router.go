package http

import (
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sakashimaa/product-showcase/internal/identity"
	"github.com/sakashimaa/product-showcase/internal/transport/http/handler"
	"github.com/sakashimaa/product-showcase/internal/transport/http/middleware"
	"go.uber.org/zap"
)

type Handlers struct {
	Product *handler.ProductHandler
	Listing *handler.ListingHandler
}

type LimiterConfig struct {
	Max    int
	Window time.Duration
}

// NewApp builds the fiber app with tracing and rate limiting in front of
// every route.
func NewApp(limits LimiterConfig) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: "product-showcase",
	})

	app.Use(otelfiber.Middleware(
		otelfiber.WithNext(func(c *fiber.Ctx) bool {
			return c.Path() == "/health" || c.Path() == "/metrics"
		}),
	))

	if limits.Max > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        limits.Max,
			Expiration: limits.Window,
			Next: func(c *fiber.Ctx) bool {
				return c.Path() == "/health" || c.Path() == "/metrics"
			},
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP()
			},
			LimitReached: func(c *fiber.Ctx) error {
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
					"error": "Too many requests. Try again later.",
				})
			},
		}))
	}

	return app
}

func RegisterRoutes(app *fiber.App, h *Handlers, provider identity.Provider, gatherer prometheus.Gatherer, logger *zap.Logger) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := app.Group("/api", middleware.NewAuthMiddleware(provider, logger))

	product := api.Group("/products")
	product.Get("", h.Listing.List)
	product.Get("/stream", h.Listing.Stream)
	product.Post("", h.Product.Create)
	product.Get("/:id", h.Product.FindByID)
	product.Delete("/:id", h.Product.Delete)
	product.Post("/:id/votes", h.Product.Vote)
	product.Post("/:id/comments", h.Product.AddComment)
	product.Put("/:id/image", h.Product.SetImage)
}
