package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/penguintechinc/waddlebot-sub014/pkg/models"
	"github.com/penguintechinc/waddlebot-sub014/pkg/workflow"
)

func ValidateCommand() *cli.Command {
	return &cli.Command{
		Name:    "validate",
		Aliases: []string{"v"},
		Usage:   "Check a workflow document without running it",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "Workflow document (.json, .yaml or .yml)",
				Required: true,
			},
		},
		Action: func(_ context.Context, command *cli.Command) error {
			def, err := loadWorkflow(command.String("file"))
			if err != nil {
				return err
			}

			return reportValidation(command.Root().Writer, def)
		},
	}
}

func loadWorkflow(path string) (*models.WorkflowDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow: %w", err)
	}

	return workflow.Decode(data, workflow.FormatFromPath(path))
}

// reportValidation writes one line per problem and fails when any was found.
func reportValidation(out io.Writer, def *models.WorkflowDefinition) error {
	err := workflow.Validate(def)
	if err == nil {
		_, _ = fmt.Fprintf(out, "workflow %q is valid: %d nodes, %d edges\n", def.Name, len(def.Nodes), len(def.Edges))

		return nil
	}

	var validation *workflow.ValidationError
	if !errors.As(err, &validation) {
		return err
	}

	for _, problem := range validation.Problems {
		node := problem.NodeID
		if node == "" {
			node = "-"
		}

		_, _ = fmt.Fprintf(out, "%s\t%s\t%s\n", node, problem.Code, problem.Message)
	}

	return err
}
