package httpapi

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"

	"github.com/i474232898/weather-records/internal/weather"
)

const appName = "weather-records"

// Options configures the Fiber app built by NewApp.
type Options struct {
	RequestTimeout   time.Duration
	CORSAllowOrigins string
	// AccessLog enables the per-request logger middleware.
	AccessLog bool
}

// NewApp builds the Fiber app with middleware, the health endpoint and the API routes.
func NewApp(service *weather.Service, opts Options) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               appName,
		DisableStartupMessage: true,
		UnescapePath:          true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler:          ErrorHandler,
	})

	app.Use(requestid.New(requestid.Config{
		Generator: uuid.NewString,
	}))
	if opts.AccessLog {
		app.Use(logger.New(logger.Config{
			Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
		}))
	}
	app.Use(recover.New())
	if opts.CORSAllowOrigins != "" {
		app.Use(cors.New(cors.Config{
			AllowOrigins: opts.CORSAllowOrigins,
			AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
			AllowHeaders: "Origin, Content-Type, Accept",
		}))
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": appName,
		})
	})

	RegisterRoutes(app, service, opts.RequestTimeout)
	return app
}

func logError(c *fiber.Ctx, err error) {
	log.Printf("ERROR: %s %s [%v]: %v", c.Method(), c.Path(), c.Locals("requestid"), err)
}
