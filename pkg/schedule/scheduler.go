// Package schedule runs workflows on cron schedules.
package schedule

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/dukex/agentgraph/pkg/models"
	"github.com/dukex/agentgraph/pkg/workflow"
	"github.com/robfig/cron/v3"
)

var (
	ErrInvalidJob   = errors.New("invalid schedule job")
	ErrDuplicateJob = errors.New("schedule job already exists")
	ErrJobNotFound  = errors.New("schedule job not found")
)

// Runner executes a workflow to completion.
type Runner interface {
	Execute(ctx context.Context, workflowID string, entry map[string]any) (*models.ExecutionRecord, error)
}

// Job runs WorkflowID with a fixed Input every time Cron fires.
type Job struct {
	ID         string         `json:"id"               yaml:"id"               validate:"required"`
	WorkflowID string         `json:"workflow_id"      yaml:"workflow_id"      validate:"required"`
	Cron       string         `json:"cron"             yaml:"cron"             validate:"required"`
	Input      map[string]any `json:"input,omitempty"  yaml:"input,omitempty"`
}

func (j Job) Validate() error {
	if j.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidJob)
	}

	if j.WorkflowID == "" {
		return fmt.Errorf("%w: workflow id is required", ErrInvalidJob)
	}

	if _, err := cron.ParseStandard(j.Cron); err != nil {
		return fmt.Errorf("%w: invalid cron expression %q: %w", ErrInvalidJob, j.Cron, err)
	}

	return nil
}

type entry struct {
	job Job
	id  cron.EntryID
}

type Scheduler struct {
	runner Runner
	logger *slog.Logger
	cron   *cron.Cron

	mu   sync.Mutex
	ctx  context.Context
	jobs map[string]entry
}

func New(runner Runner, logger *slog.Logger) *Scheduler {
	logger = logger.With("module", "scheduler")
	cronLogger := cronLogger{logger: logger}

	return &Scheduler{
		runner: runner,
		logger: logger,
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(
				cron.SkipIfStillRunning(cronLogger),
				cron.Recover(cronLogger),
			),
		),
		ctx:  context.Background(),
		jobs: make(map[string]entry),
	}
}

// Add validates job and registers it. Jobs added after Start fire on their
// next tick.
func (s *Scheduler) Add(job Job) error {
	if err := job.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, job.ID)
	}

	job.Input = maps.Clone(job.Input)

	id, err := s.cron.AddFunc(job.Cron, func() {
		s.mu.Lock()
		ctx := s.ctx
		s.mu.Unlock()

		_ = s.run(ctx, job)
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job %s: %w", job.ID, err)
	}

	s.jobs[job.ID] = entry{job: job, id: id}

	s.logger.Info("Scheduled workflow", "job_id", job.ID, "workflow_id", job.WorkflowID, "cron", job.Cron)

	return nil
}

func (s *Scheduler) Remove(jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}

	s.cron.Remove(e.id)
	delete(s.jobs, jobID)

	return nil
}

// Jobs returns the registered jobs ordered by id.
func (s *Scheduler) Jobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := make([]Job, 0, len(s.jobs))
	for _, e := range s.jobs {
		jobs = append(jobs, e.job)
	}

	slices.SortFunc(jobs, func(a, b Job) int { return cmp.Compare(a.ID, b.ID) })

	return jobs
}

// Trigger runs a job immediately, outside its schedule.
func (s *Scheduler) Trigger(ctx context.Context, jobID string) error {
	s.mu.Lock()
	e, ok := s.jobs[jobID]
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}

	return s.run(ctx, e.job)
}

// Start begins firing jobs. Scheduled runs use ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.logger.Info("Starting scheduler", "jobs", len(s.Jobs()))
	s.cron.Start()
}

// Stop halts the schedule and returns a context that is done once running
// jobs have finished.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("Stopping scheduler")

	return s.cron.Stop()
}

// run executes one job. A workflow that is already running is skipped.
func (s *Scheduler) run(ctx context.Context, job Job) error {
	logger := s.logger.With("job_id", job.ID, "workflow_id", job.WorkflowID)

	rec, err := s.runner.Execute(ctx, job.WorkflowID, maps.Clone(job.Input))

	switch {
	case errors.Is(err, workflow.ErrConcurrentRun):
		logger.Warn("Skipping scheduled run, workflow is already running")

		return nil
	case err != nil:
		logger.Error("Scheduled run failed", "error", err)

		return err
	}

	logger.Info("Scheduled run finished", "execution_id", rec.ID, "status", rec.Status)

	return nil
}

// cronLogger routes cron's own logging into slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
