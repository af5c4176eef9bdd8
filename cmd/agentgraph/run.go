package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/dukex/agentgraph/pkg/config"
	"github.com/dukex/agentgraph/pkg/eventbus"
	"github.com/dukex/agentgraph/pkg/graph"
	"github.com/dukex/agentgraph/pkg/log"
	"github.com/dukex/agentgraph/pkg/models"
	"github.com/dukex/agentgraph/pkg/snapshot"
	"github.com/dukex/agentgraph/pkg/workflow"
	cli "github.com/urfave/cli/v3"
)

var (
	errSnapshotRequired = errors.New("snapshot path is required")
	errRunFailed        = errors.New("run finished with error")
)

func inputFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "input",
		Aliases: []string{"i"},
		Usage:   "Entry input as a JSON object",
	}
}

func RunCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Aliases:   []string{"r"},
		Usage:     "Import a snapshot and execute it with simulated agents",
		ArgsUsage: "<snapshot.json>",
		Flags: append([]cli.Flag{
			inputFlag(),
			&cli.BoolFlag{
				Name:  "trace",
				Usage: "Write run events to stderr as JSON lines",
			},
		}, backendFlags()...),
		Action: func(ctx context.Context, command *cli.Command) error {
			logger := log.WithModule("run")

			def, entry, err := readArgs(command)
			if err != nil {
				return err
			}

			cfg, err := config.Load(command.String("config"))
			if err != nil {
				return err
			}

			rt, err := newRuntime(ctx, logger, cfg, runtimeOptionsFrom(command))
			if err != nil {
				return err
			}

			defer func() {
				if err := rt.Close(context.WithoutCancel(ctx)); err != nil {
					logger.ErrorContext(ctx, "Failed to close backends", "error", err)
				}
			}()

			if command.Bool("trace") {
				defer rt.events.Subscribe(traceObserver(command.Root().ErrWriter))()
			}

			id, err := rt.store.Import(def)
			if err != nil {
				return err
			}

			rec, err := rt.engine.Execute(ctx, id, entry)
			if err != nil {
				return err
			}

			if err := printJSON(command.Root().Writer, rec); err != nil {
				return err
			}

			if rec.Status == models.ExecutionStatusError {
				return fmt.Errorf("%w: %s", errRunFailed, rec.Reason)
			}

			return nil
		},
	}
}

// traceObserver encodes each event as one JSON line on w.
func traceObserver(w io.Writer) eventbus.Observer {
	var mu sync.Mutex

	encoder := json.NewEncoder(w)

	return func(_ context.Context, event eventbus.Event) {
		mu.Lock()
		defer mu.Unlock()

		_ = encoder.Encode(event)
	}
}

func PlanCommand() *cli.Command {
	return &cli.Command{
		Name:      "plan",
		Usage:     "Print the path a run of the snapshot would take",
		ArgsUsage: "<snapshot.json>",
		Flags:     []cli.Flag{inputFlag()},
		Action: func(_ context.Context, command *cli.Command) error {
			def, entry, err := readArgs(command)
			if err != nil {
				return err
			}

			plan, err := checkWorkflow(def, entry)
			if err != nil {
				return err
			}

			return printJSON(command.Root().Writer, map[string]any{
				"workflow_id": def.ID,
				"path":        plan.Path,
				"branches":    plan.Branches,
				"edges":       plan.Edges,
			})
		},
	}
}

func ValidateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Check a snapshot against the schema, the connection rules and for cycles",
		ArgsUsage: "<snapshot.json>",
		Action: func(_ context.Context, command *cli.Command) error {
			path := command.Args().First()

			def, err := readSnapshot(path)
			if err != nil {
				return err
			}

			if _, err := checkWorkflow(def, nil); err != nil {
				return err
			}

			_, err = fmt.Fprintf(command.Root().Writer, "%s: valid (%d nodes, %d edges)\n", path, len(def.Nodes), len(def.Edges))

			return err
		},
	}
}

func readArgs(command *cli.Command) (*models.WorkflowDefinition, map[string]any, error) {
	def, err := readSnapshot(command.Args().First())
	if err != nil {
		return nil, nil, err
	}

	var entry map[string]any

	if raw := command.String("input"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return nil, nil, fmt.Errorf("invalid --input: %w", err)
		}
	}

	return def, entry, nil
}

func readSnapshot(path string) (*models.WorkflowDefinition, error) {
	if path == "" {
		return nil, errSnapshotRequired
	}

	return snapshot.ReadFile(path)
}

// checkWorkflow applies the connection rules to every edge and plans the
// workflow, which rejects cycles.
func checkWorkflow(def *models.WorkflowDefinition, entry map[string]any) (*workflow.Plan, error) {
	store := graph.NewStore(log.WithModule("validate"))

	id, err := store.Import(def)
	if err != nil {
		return nil, err
	}

	imported, err := store.GetWorkflow(id)
	if err != nil {
		return nil, err
	}

	return workflow.NewPlanner(nil).Plan(imported, entry)
}

func printJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	return encoder.Encode(v)
}
