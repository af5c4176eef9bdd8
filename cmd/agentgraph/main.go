// Command agentgraph serves, runs and checks multi-agent workflow graphs.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dukex/agentgraph/pkg/log"
	cli "github.com/urfave/cli/v3"
)

func newCommand() *cli.Command {
	return &cli.Command{
		Name:                  "agentgraph",
		Usage:                 "Build and run multi-agent workflow graphs",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML engine configuration",
				Sources: cli.EnvVars("AGENTGRAPH_CONFIG"),
			},
			&cli.BoolFlag{
				Name:    "otel",
				Usage:   "Export traces over OTLP/HTTP",
				Sources: cli.EnvVars("OTEL_ENABLED"),
			},
		},
		Before: func(ctx context.Context, command *cli.Command) (context.Context, error) {
			log.SetupWriter(command.ErrWriter, command.String("log-level"))

			return ctx, nil
		},
		Commands: []*cli.Command{
			APICommand(),
			RunCommand(),
			PlanCommand(),
			ValidateCommand(),
		},
	}
}

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "agentgraph:", err)
		os.Exit(1)
	}
}
