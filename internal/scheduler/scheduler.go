// Package scheduler owns job registration and invocation cadence, decoupled
// from the job logic itself: jobs are parameterless closures invocable
// directly (manual trigger, tests) without waiting on wall-clock schedules.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"mealcard/internal/platform/metrics"
	dErrors "mealcard/pkg/domain-errors"
)

// Job couples a name and cron spec with the run entry point.
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) error
}

// Scheduler manages cron-based job execution.
type Scheduler struct {
	cron    *cron.Cron
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu   sync.Mutex
	jobs map[string]Job
}

// New creates a scheduler. metrics may be nil in tests.
func New(m *metrics.Metrics, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		metrics: m,
		logger:  logger,
		jobs:    make(map[string]Job),
	}
}

// Register adds a job on its cadence. Jobs fire-and-forget: overlapping runs
// are not excluded, by design; every write path tolerates a concurrent run.
func (s *Scheduler) Register(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.Name]; exists {
		return fmt.Errorf("job %q already registered", job.Name)
	}
	if _, err := s.cron.AddFunc(job.Spec, func() {
		s.runJob(context.Background(), job)
	}); err != nil {
		return fmt.Errorf("invalid cron spec %q for job %q: %w", job.Spec, job.Name, err)
	}
	s.jobs[job.Name] = job
	s.logger.Info("job registered", "job", job.Name, "spec", job.Spec)
	return nil
}

// Trigger runs a registered job immediately. Used by the ops endpoints.
func (s *Scheduler) Trigger(ctx context.Context, name string) error {
	s.mu.Lock()
	job, exists := s.jobs[name]
	s.mu.Unlock()
	if !exists {
		return dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("unknown job %q", name))
	}
	return s.runJob(ctx, job)
}

// Jobs lists registered job names.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Start begins firing registered jobs on their cadences.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started")
}

// Stop stops the cron scheduler; running jobs finish on their own.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) runJob(ctx context.Context, job Job) error {
	start := time.Now()
	err := job.Run(ctx)
	elapsed := time.Since(start)

	result := "ok"
	if err != nil {
		result = "error"
		s.logger.Error("job run failed", "job", job.Name, "duration", elapsed, "error", err)
	}
	if s.metrics != nil {
		s.metrics.RunsTotal.WithLabelValues(job.Name, result).Inc()
		s.metrics.RunDuration.WithLabelValues(job.Name).Observe(elapsed.Seconds())
	}
	return err
}
