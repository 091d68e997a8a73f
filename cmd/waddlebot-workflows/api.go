// Package main provides the waddlebot workflow server and its offline tools.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/penguintechinc/waddlebot-sub014/pkg/eventbus"
	"github.com/penguintechinc/waddlebot-sub014/pkg/persistence"
	"github.com/penguintechinc/waddlebot-sub014/pkg/registry"
	"github.com/penguintechinc/waddlebot-sub014/pkg/services"
	"github.com/penguintechinc/waddlebot-sub014/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	runner      services.Runner
	admission   services.Admission
	eventBus    eventbus.EventPublisher
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	registry *registry.Registry,
	runner services.Runner,
	admission services.Admission,
	eventBus eventbus.EventPublisher,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		registry:    registry,
		runner:      runner,
		admission:   admission,
		eventBus:    eventBus,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(
		services.NewWorkflow(a.persistence, a.admission, a.logger),
		services.NewPublishing(a.persistence, a.eventBus, a.logger),
		services.NewExecution(a.persistence, a.admission, a.runner, a.eventBus, a.logger),
		services.NewLicense(a.admission, a.eventBus, a.logger),
		a.validate,
		a.registry,
	)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("WaddleBot Workflows API")
	})

	handlers.Register(app)

	return app
}

func (a *API) Start(port int) error {
	return a.App().Listen(":" + strconv.Itoa(port))
}
