package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	cli "github.com/urfave/cli/v3"

	"github.com/penguintechinc/waddlebot-sub014/pkg/cmd"
	"github.com/penguintechinc/waddlebot-sub014/pkg/log"
	"github.com/penguintechinc/waddlebot-sub014/pkg/models"
	"github.com/penguintechinc/waddlebot-sub014/pkg/trace"
	"github.com/penguintechinc/waddlebot-sub014/pkg/workflow"
)

// RunCommand executes a workflow document once, without persistence or
// license admission. Actions go to the router when one is configured.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Execute a workflow document against a single trigger event",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "Workflow document (.json, .yaml or .yml)",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "event",
				Aliases:  []string{"e"},
				Usage:    "Trigger event as inline JSON or a path to a JSON file",
				Required: true,
			},
			&cli.DurationFlag{
				Name:  "execution-timeout",
				Usage: "Deadline of the execution",
				Value: workflow.DefaultTimeout,
			},
			&cli.BoolFlag{
				Name:  "trace",
				Usage: "Print the trace document instead of the raw execution result",
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
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			logger := log.WithModule("run")

			def, err := loadWorkflow(command.String("file"))
			if err != nil {
				return err
			}

			out := command.Root().Writer
			if err := reportValidation(out, def); err != nil {
				return err
			}

			event, err := loadEvent(command.String("event"))
			if err != nil {
				return err
			}

			if event.CommunityID == "" {
				event.CommunityID = def.CommunityID
			}

			registry := cmd.NewRegistry(logger, command.String("router-url"), command.String("router-api-key"), nil)
			engine := workflow.NewEngine(registry,
				workflow.WithLogger(logger),
				workflow.WithTimeout(command.Duration("execution-timeout")),
			)

			result, err := engine.Execute(ctx, def, *event)
			if err != nil {
				return err
			}

			var output any = result
			if command.Bool("trace") {
				output = trace.NewDocument(result)
			}

			encoded, err := json.MarshalIndent(output, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode execution result: %w", err)
			}

			_, _ = fmt.Fprintln(out, string(encoded))

			switch result.Status {
			case models.ExecutionStatusFailed, models.ExecutionStatusCancelled, models.ExecutionStatusTimeout:
				return fmt.Errorf("execution %s: %s", result.Status, result.Error)
			default:
				return nil
			}
		},
	}
}

func loadEvent(raw string) (*models.TriggerEvent, error) {
	data := []byte(raw)

	if !strings.HasPrefix(strings.TrimSpace(raw), "{") {
		content, err := os.ReadFile(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to read event: %w", err)
		}

		data = content
	}

	var event models.TriggerEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("invalid event JSON: %w", err)
	}

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(event); err != nil {
		return nil, fmt.Errorf("invalid event: %w", err)
	}

	return &event, nil
}
