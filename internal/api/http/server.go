package http

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/casaplus/listing-service/internal/config"
	"github.com/casaplus/listing-service/internal/observability"
)

// NewApp builds the Fiber application with the global middleware chain.
// Routes are added with RegisterRoutes.
func NewApp(cfg config.Config, logger *zap.Logger, metrics *observability.Metrics) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		BodyLimit:    cfg.HTTP.BodyLimit(),
		ErrorHandler: ErrorHandler(logger),
	})
	RegisterMiddlewares(app, cfg, logger, metrics)
	return app
}
