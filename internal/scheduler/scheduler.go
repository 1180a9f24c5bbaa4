package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/creco/imaikura/pkg/logger"
)

// Options configures retries of failed runs
type Options struct {
	MaxRetries int
	RetryDelay time.Duration
}

// Scheduler runs jobs on cron schedules with retries and keeps their history
// ⭐ SSOT: スケジュール管理はこのスケジューラーだけ
type Scheduler struct {
	cron    *cron.Cron
	logger  *logger.Logger
	opts    Options
	baseCtx context.Context
	cancel  context.CancelFunc

	mu      sync.RWMutex
	jobs    map[string]Job
	entries map[string]cron.EntryID
	history map[string]*JobHistory
}

// New creates a new scheduler. Overlapping runs of the same job are skipped.
func New(log *logger.Logger, opts Options) *Scheduler {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		logger:  log,
		opts:    opts,
		baseCtx: ctx,
		cancel:  cancel,
		jobs:    make(map[string]Job),
		entries: make(map[string]cron.EntryID),
		history: make(map[string]*JobHistory),
	}
}

// AddJob registers a job on its schedule
func (s *Scheduler) AddJob(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already exists", name)
	}

	id, err := s.cron.AddFunc(job.Schedule(), func() {
		s.runJob(s.baseCtx, job)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}

	s.jobs[name] = job
	s.entries[name] = id
	s.history[name] = &JobHistory{}

	s.logger.WithFields(map[string]interface{}{
		"job":      name,
		"schedule": job.Schedule(),
	}).Info("Job added to scheduler")

	return nil
}

// RemoveJob unschedules a job. Its history is kept.
func (s *Scheduler) RemoveJob(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, exists := s.entries[name]
	if !exists {
		return fmt.Errorf("job %s not found", name)
	}

	s.cron.Remove(id)
	delete(s.jobs, name)
	delete(s.entries, name)
	s.logger.WithField("job", name).Info("Job removed from scheduler")

	return nil
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.logger.Info("Starting scheduler")
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
}

// RunNow runs a job immediately and waits for it, retries included
func (s *Scheduler) RunNow(ctx context.Context, name string) (JobResult, error) {
	s.mu.RLock()
	job, exists := s.jobs[name]
	s.mu.RUnlock()

	if !exists {
		return JobResult{}, fmt.Errorf("job %s not found", name)
	}

	return s.runJob(ctx, job), nil
}

// runJob executes a job with retry logic
func (s *Scheduler) runJob(ctx context.Context, job Job) JobResult {
	name := job.Name()
	result := JobResult{JobName: name, StartTime: time.Now()}

	s.logger.WithField("job", name).Debug("Job started")

	var lastErr error
retry:
	for attempt := 0; attempt <= s.opts.MaxRetries; attempt++ {
		result.Attempts = attempt + 1

		lastErr = job.Run(ctx)
		if lastErr == nil {
			break
		}

		s.logger.WithFields(map[string]interface{}{
			"job":     name,
			"attempt": attempt + 1,
		}).WithError(lastErr).Warn("Job execution failed")

		if attempt == s.opts.MaxRetries {
			break
		}

		// 停止時は待たずに終了
		select {
		case <-ctx.Done():
			break retry
		case <-time.After(s.opts.RetryDelay):
		}
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	result.Success = lastErr == nil
	if lastErr != nil {
		result.Error = lastErr.Error()
	}

	s.mu.Lock()
	if h, exists := s.history[name]; exists {
		h.AddResult(result)
	}
	s.mu.Unlock()

	log := s.logger.WithFields(map[string]interface{}{
		"job":      name,
		"duration": result.Duration,
		"attempts": result.Attempts,
	})
	if result.Success {
		log.Info("Job completed successfully")
	} else {
		log.WithError(lastErr).Error("Job failed after all retries")
	}

	return result
}

// JobNames returns the registered job names, sorted
func (s *Scheduler) JobNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// JobStats summarises a job's history
type JobStats struct {
	JobName     string     `json:"job_name"`
	Schedule    string     `json:"schedule"`
	NextRun     *time.Time `json:"next_run,omitempty"`
	TotalRuns   int        `json:"total_runs"`
	SuccessRate float64    `json:"success_rate"`
	LastRun     *JobResult `json:"last_run,omitempty"`
}

// Stats returns statistics for every registered job
func (s *Scheduler) Stats() map[string]JobStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]JobStats, len(s.jobs))
	for name, job := range s.jobs {
		h := s.history[name]
		st := JobStats{
			JobName:     name,
			Schedule:    job.Schedule(),
			TotalRuns:   len(h.Results),
			SuccessRate: h.SuccessRate(),
		}
		if last, ok := h.Latest(); ok {
			st.LastRun = &last
		}
		if next := s.cron.Entry(s.entries[name]).Next; !next.IsZero() {
			st.NextRun = &next
		}
		stats[name] = st
	}
	return stats
}
