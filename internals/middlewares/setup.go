package middlewares

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/etag"

	"library_backend/internals/configs"
	"library_backend/internals/middlewares/logger"
)

const globalRequestsPerMinute = 100

// SetupMiddlewares installs the global middleware chain. Order matters:
// recovery wraps everything, the request id exists before the access log.
func SetupMiddlewares(app *fiber.App, cfg configs.Config) {
	app.Use(RecoveryMiddleware())
	app.Use(logger.RequestIDMiddleware())
	app.Use(logger.LoggerMiddleware())
	app.Use(CorsMiddleware(cfg.CORSOrigins))
	app.Use(compress.New(compress.Config{Level: compress.LevelDefault}))
	app.Use(etag.New())
	app.Use(GlobalRateLimiter(globalRequestsPerMinute))
}
