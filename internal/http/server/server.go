package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/monitor"

	"pdfconvert/internal/config"
	"pdfconvert/internal/conversion"
	"pdfconvert/internal/domain"
	"pdfconvert/internal/http/handlers"
	"pdfconvert/internal/http/middleware"
	"pdfconvert/internal/infra/logging"
)

// Deps are the collaborators the HTTP layer needs.
type Deps struct {
	Config  config.Config
	Service *conversion.Service
}

// New creates and configures the Fiber app.
func New(deps Deps) *fiber.App {
	cfg := deps.Config
	app := fiber.New(fiber.Config{
		Prefork:               cfg.Server.Prefork,
		Concurrency:           cfg.Server.Concurrency,
		BodyLimit:             cfg.Limits.MaxHTMLBytes,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	middleware.Register(app, cfg)
	registerRoutes(app, deps)

	// Ensure all responses, including 404s, return JSON
	app.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "Not Found")
	})

	return app
}

func registerRoutes(app *fiber.App, deps Deps) {
	h := handlers.NewConvertHandler(deps.Config, deps.Service)

	app.Post("/convert", h.HandleConvert)

	v1 := app.Group("/v1")
	v1.Post("/convert", h.HandleConvert)
	v1.Get("/renderer/stats", h.HandleStats)
	v1.Get("/monitor", monitor.New())
}

// errorHandler turns any error that reached the app boundary into flat JSON.
// Unknown errors, including recovered panics, never leak their text.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	resp := handlers.ErrorResponse{
		Error: "An internal server error occurred",
		Kind:  string(domain.KindInternalError),
	}

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		resp = handlers.ErrorResponse{Error: fe.Message}
		logging.Warn("Request failed", "path", c.Path(), "status", code, "message", fe.Message)
	} else {
		logging.Error("Unhandled error", "path", c.Path(), "request_id", handlers.RequestID(c), "error", err)
	}

	return c.Status(code).JSON(resp)
}
