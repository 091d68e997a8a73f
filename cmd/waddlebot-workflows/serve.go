package main

import (
	"context"
	"fmt"

	cli "github.com/urfave/cli/v3"

	"github.com/penguintechinc/waddlebot-sub014/pkg/cmd"
	"github.com/penguintechinc/waddlebot-sub014/pkg/license"
	"github.com/penguintechinc/waddlebot-sub014/pkg/log"
	"github.com/penguintechinc/waddlebot-sub014/pkg/otelhelper"
	"github.com/penguintechinc/waddlebot-sub014/pkg/workflow"
)

const (
	defaultPort = 9091
	serviceName = "waddlebot-workflows"
)

func APICommand() *cli.Command {
	return &cli.Command{
		Name:    "api",
		Aliases: []string{"serve"},
		Usage:   "Start the workflow API server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Persistence URL (postgres://... or file://path)",
				Value:   "file://./data",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for the shared license verdict cache",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "license-server-url",
				Usage:   "Base URL of the license server",
				Sources: cli.EnvVars("LICENSE_SERVER_URL"),
			},
			&cli.StringFlag{
				Name:    "license-api-key",
				Usage:   "API key sent to the license server",
				Sources: cli.EnvVars("LICENSE_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "license-signing-key",
				Usage:   "HMAC key used to verify signed license tokens",
				Sources: cli.EnvVars("LICENSE_SIGNING_KEY"),
			},
			&cli.BoolFlag{
				Name:    "license-enforce",
				Usage:   "Enforce license admission for creation and execution",
				Value:   true,
				Sources: cli.EnvVars("LICENSE_ENFORCE"),
			},
			&cli.IntFlag{
				Name:    "free-workflow-limit",
				Usage:   "Workflows a free tier community may own",
				Value:   license.FreeTierWorkflowLimit,
				Sources: cli.EnvVars("FREE_WORKFLOW_LIMIT"),
			},
			&cli.DurationFlag{
				Name:    "execution-timeout",
				Usage:   "Deadline of a single workflow execution",
				Value:   workflow.DefaultTimeout,
				Sources: cli.EnvVars("EXECUTION_TIMEOUT"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma separated kafka brokers",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "router-url",
				Usage:   "Base URL of the message router; messages are only logged when empty",
				Sources: cli.EnvVars("ROUTER_URL"),
			},
			&cli.StringFlag{
				Name:    "router-api-key",
				Usage:   "API key sent to the message router",
				Sources: cli.EnvVars("ROUTER_API_KEY"),
			},
			&cli.BoolFlag{
				Name:    "otel",
				Usage:   "Export execution traces over OTLP",
				Sources: cli.EnvVars("OTEL_ENABLED"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			logger := log.WithModule("api")

			logger.InfoContext(ctx, "Initializing WaddleBot workflows API")

			store, queries, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := store.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), command.String("kafka-brokers"), logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			controller, closeCache, err := cmd.NewLicenseController(ctx, cmd.LicenseConfig{
				ServerURL:         command.String("license-server-url"),
				APIKey:            command.String("license-api-key"),
				SigningKey:        command.String("license-signing-key"),
				RedisURL:          command.String("redis-url"),
				Enforce:           command.Bool("license-enforce"),
				FreeWorkflowLimit: command.Int("free-workflow-limit"),
			}, store, logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := closeCache(); err != nil {
					logger.ErrorContext(ctx, "Failed to close license cache", "error", err)
				}
			}()

			registry := cmd.NewRegistry(logger, command.String("router-url"), command.String("router-api-key"), queries)

			engineOpts := []workflow.Option{
				workflow.WithLogger(logger),
				workflow.WithTimeout(command.Duration("execution-timeout")),
			}

			if command.Bool("otel") {
				tracer, shutdown, err := otelhelper.NewTracer(ctx, serviceName)
				if err != nil {
					return fmt.Errorf("failed to initialize tracer: %w", err)
				}

				defer func() {
					if err := shutdown(context.WithoutCancel(ctx)); err != nil {
						logger.ErrorContext(ctx, "Failed to flush traces", "error", err)
					}
				}()

				engineOpts = append(engineOpts, workflow.WithTracer(tracer))
			}

			api := NewAPI(
				logger,
				store,
				registry,
				workflow.NewEngine(registry, engineOpts...),
				controller,
				eventBus,
			)

			port := command.Int("port")
			logger.InfoContext(ctx, "Starting API server",
				"port", port,
				"license_enforced", controller.Enforcing())

			return api.Start(port)
		},
	}
}
