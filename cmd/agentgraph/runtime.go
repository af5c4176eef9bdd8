package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/dukex/agentgraph/pkg/a2a"
	"github.com/dukex/agentgraph/pkg/cmd"
	"github.com/dukex/agentgraph/pkg/config"
	"github.com/dukex/agentgraph/pkg/eventbus"
	"github.com/dukex/agentgraph/pkg/graph"
	"github.com/dukex/agentgraph/pkg/metrics"
	"github.com/dukex/agentgraph/pkg/nodes"
	"github.com/dukex/agentgraph/pkg/otelhelper"
	"github.com/dukex/agentgraph/pkg/persistence"
	"github.com/dukex/agentgraph/pkg/protocol"
	"github.com/dukex/agentgraph/pkg/workflow"
	cli "github.com/urfave/cli/v3"
)

// backendFlags select where workflows, run events and memory entries live.
func backendFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "Persistence URL (file path, file://, postgres://, redis://); empty keeps state in memory",
			Sources: cli.EnvVars("DATABASE_URL"),
		},
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Event bus for run events (memory, kafka); empty disables publishing",
			Sources: cli.EnvVars("EVENT_BUS_TYPE"),
		},
		&cli.StringFlag{
			Name:    "kafka-brokers",
			Usage:   "Comma separated Kafka brokers used by the kafka event bus",
			Value:   "localhost:9092",
			Sources: cli.EnvVars("KAFKA_BROKERS"),
		},
		&cli.StringFlag{
			Name:    "memory-store",
			Usage:   "Store behind memory nodes (memory, redis://)",
			Sources: cli.EnvVars("MEMORY_STORE_URL"),
		},
	}
}

type runtimeOptions struct {
	DatabaseURL    string
	EventBus       string
	KafkaBrokers   string
	MemoryStoreURL string
	Otel           bool
	Invoker        protocol.Invoker
}

func runtimeOptionsFrom(command *cli.Command) runtimeOptions {
	return runtimeOptions{
		DatabaseURL:    command.String("database-url"),
		EventBus:       command.String("event-bus"),
		KafkaBrokers:   command.String("kafka-brokers"),
		MemoryStoreURL: command.String("memory-store"),
		Otel:           command.Bool("otel"),
		Invoker:        echoInvoker(),
	}
}

// runtime is the wired engine and its backends.
type runtime struct {
	logger      *slog.Logger
	config      config.Config
	store       *graph.Store
	history     *workflow.History
	engine      *workflow.Engine
	metrics     *metrics.Metrics
	events      *eventbus.Broadcaster
	persistence persistence.Persistence
	closers     []func(context.Context) error
}

func newRuntime(ctx context.Context, logger *slog.Logger, cfg config.Config, opts runtimeOptions) (_ *runtime, err error) {
	rt := &runtime{
		logger:  logger,
		config:  cfg,
		store:   graph.NewStore(logger),
		history: workflow.NewHistory(cfg.Engine.HistoryLimit),
		metrics: metrics.New(),
		events:  eventbus.NewBroadcaster(logger),
	}

	defer func() {
		if err != nil {
			_ = rt.Close(context.WithoutCancel(ctx))
		}
	}()

	engineOpts := []workflow.Option{
		workflow.WithHistory(rt.history),
		workflow.WithObserver(rt.metrics),
		workflow.WithNodeLatency(cfg.Engine.NodeLatency),
	}

	rt.persistence, err = cmd.NewPersistence(ctx, logger, opts.DatabaseURL)
	if err != nil {
		return nil, err
	}

	if rt.persistence != nil {
		rt.closers = append(rt.closers, rt.persistence.Close)
		engineOpts = append(engineOpts, workflow.WithRecorder(rt.persistence))
	}

	memoryStore, closeMemory, err := cmd.NewMemoryStore(ctx, opts.MemoryStoreURL)
	if err != nil {
		return nil, err
	}

	rt.closers = append(rt.closers, func(context.Context) error { return closeMemory() })

	publisher := eventbus.Fanout{rt.events}

	if opts.EventBus != "" {
		bus, err := cmd.NewEventBus(opts.EventBus, opts.KafkaBrokers, logger)
		if err != nil {
			return nil, err
		}

		rt.closers = append(rt.closers, func(context.Context) error { return bus.Close() })
		publisher = append(publisher, bus)
	}

	engineOpts = append(engineOpts, workflow.WithPublisher(publisher))

	if opts.Otel {
		tracer, shutdown, err := otelhelper.NewTracer(ctx, "agentgraph")
		if err != nil {
			return nil, fmt.Errorf("failed to initialize tracer: %w", err)
		}

		rt.closers = append(rt.closers, shutdown)
		engineOpts = append(engineOpts, workflow.WithTracer(tracer))
	}

	messengerOpts := append(cfg.MessengerOptions(), a2a.WithObserver(rt.metrics))

	engineOpts = append(engineOpts,
		workflow.WithMessenger(a2a.NewMessenger(workflow.InvokerTransport(opts.Invoker), logger, messengerOpts...)),
		workflow.WithExecutors(nodes.Executors(nodes.Dependencies{Logger: logger, Memory: memoryStore})),
	)

	rt.engine = workflow.NewEngine(rt.store, opts.Invoker, logger, engineOpts...)

	return rt, nil
}

// Close releases backends in reverse order of opening.
func (rt *runtime) Close(ctx context.Context) error {
	var errs []error

	for _, closeFn := range slices.Backward(rt.closers) {
		if err := closeFn(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	rt.closers = nil

	return errors.Join(errs...)
}
