package main

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dukex/agentgraph/pkg/config"
	"github.com/dukex/agentgraph/pkg/log"
	"github.com/dukex/agentgraph/pkg/registry"
	"github.com/dukex/agentgraph/pkg/schedule"
	"github.com/dukex/agentgraph/pkg/services"
	"github.com/dukex/agentgraph/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	cli "github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

const (
	defaultPort     = 9091
	shutdownTimeout = 10 * time.Second
)

type API struct {
	logger    *slog.Logger
	runtime   *runtime
	workflows *services.Workflow
	scheduler *schedule.Scheduler
	validate  *validator.Validate
}

func NewAPI(logger *slog.Logger, rt *runtime) *API {
	return &API{
		logger:    logger,
		runtime:   rt,
		workflows: services.NewWorkflow(rt.store, rt.persistence, logger, services.WithHistory(rt.history)),
		scheduler: schedule.New(rt.engine, logger),
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	nodeService := services.NewNode(a.workflows, registry.NewRegistry(a.logger))
	executionService := services.NewExecution(a.runtime.engine, a.runtime.persistence, a.logger)

	handlers := web.NewAPIHandlers(a.workflows, nodeService, executionService, a.runtime.metrics, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("agentgraph API")
	})

	handlers.Routes(app)

	return app
}

// Start restores persisted workflows, schedules the configured jobs and
// serves until ctx ends.
func (a *API) Start(ctx context.Context, port int, schedules []schedule.Job) error {
	restored, err := a.workflows.Restore(ctx)
	if err != nil {
		return err
	}

	a.logger.InfoContext(ctx, "Restored workflows", "count", restored)

	for _, job := range schedules {
		if err := a.scheduler.Add(job); err != nil {
			return err
		}
	}

	app := a.App()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return app.Listen(":"+strconv.Itoa(port), fiber.ListenConfig{DisableStartupMessage: true})
	})

	g.Go(func() error {
		a.scheduler.Start(ctx)
		<-ctx.Done()
		<-a.scheduler.Stop().Done()

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		return app.ShutdownWithContext(shutdownCtx)
	})

	a.logger.InfoContext(ctx, "Serving agentgraph API", "port", port)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

func APICommand() *cli.Command {
	return &cli.Command{
		Name:    "api",
		Aliases: []string{"serve"},
		Usage:   "Serve the workflow REST API",
		Flags: append([]cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
		}, backendFlags()...),
		Action: func(ctx context.Context, command *cli.Command) error {
			logger := log.WithModule("api")

			logger.InfoContext(ctx, "Initializing agentgraph API")

			cfg, err := config.Load(command.String("config"))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rt, err := newRuntime(ctx, logger, cfg, runtimeOptionsFrom(command))
			if err != nil {
				return err
			}

			defer func() {
				if err := rt.Close(context.WithoutCancel(ctx)); err != nil {
					logger.ErrorContext(ctx, "Failed to close backends", "error", err)
				}
			}()

			return NewAPI(logger, rt).Start(ctx, command.Int("port"), cfg.Schedules)
		},
	}
}
