package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creco/imaikura/pkg/logger"
)

// flakyJob fails its first failures runs
type flakyJob struct {
	name     string
	schedule string
	failures int32
	calls    atomic.Int32
}

func (j *flakyJob) Name() string     { return j.name }
func (j *flakyJob) Schedule() string { return j.schedule }

func (j *flakyJob) Run(ctx context.Context) error {
	if j.calls.Add(1) <= j.failures {
		return errors.New("provider unavailable")
	}
	return nil
}

func newJob(name string, failures int32) *flakyJob {
	return &flakyJob{name: name, schedule: "0 */10 * * * *", failures: failures}
}

func newTestScheduler(retries int, delay time.Duration) *Scheduler {
	return New(logger.Nop(), Options{MaxRetries: retries, RetryDelay: delay})
}

func TestRunNow_RetriesUntilSuccess(t *testing.T) {
	s := newTestScheduler(2, time.Millisecond)
	job := newJob("rates_refresh", 2)
	require.NoError(t, s.AddJob(job))

	result, err := s.RunNow(context.Background(), "rates_refresh")
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 3, result.Attempts)
	assert.Empty(t, result.Error)
	assert.Equal(t, int32(3), job.calls.Load())
}

func TestRunNow_FailsAfterRetries(t *testing.T) {
	s := newTestScheduler(1, time.Millisecond)
	require.NoError(t, s.AddJob(newJob("sitemap", 10)))

	result, err := s.RunNow(context.Background(), "sitemap")
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, 2, result.Attempts)
	assert.Equal(t, "provider unavailable", result.Error)
}

func TestRunNow_CancelStopsRetrying(t *testing.T) {
	s := newTestScheduler(5, time.Hour)
	job := newJob("sitemap", 10)
	require.NoError(t, s.AddJob(job))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := s.RunNow(ctx, "sitemap")
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, 1, result.Attempts)
}

func TestRunNow_UnknownJob(t *testing.T) {
	s := newTestScheduler(0, 0)

	_, err := s.RunNow(context.Background(), "missing")
	assert.Error(t, err)
}

func TestAddJob_Errors(t *testing.T) {
	s := newTestScheduler(0, 0)
	require.NoError(t, s.AddJob(newJob("rates_refresh", 0)))

	assert.Error(t, s.AddJob(newJob("rates_refresh", 0)))

	bad := newJob("bad", 0)
	bad.schedule = "every ten minutes"
	assert.Error(t, s.AddJob(bad))
}

func TestRemoveJob(t *testing.T) {
	s := newTestScheduler(0, 0)
	require.NoError(t, s.AddJob(newJob("a", 0)))
	require.NoError(t, s.AddJob(newJob("b", 0)))

	require.NoError(t, s.RemoveJob("a"))
	assert.Error(t, s.RemoveJob("a"))
	assert.Equal(t, []string{"b"}, s.JobNames())
	assert.Len(t, s.cron.Entries(), 1)
}

func TestStats(t *testing.T) {
	s := newTestScheduler(0, time.Millisecond)
	require.NoError(t, s.AddJob(newJob("rates_refresh", 1)))

	_, err := s.RunNow(context.Background(), "rates_refresh")
	require.NoError(t, err)
	_, err = s.RunNow(context.Background(), "rates_refresh")
	require.NoError(t, err)

	st := s.Stats()["rates_refresh"]
	assert.Equal(t, "0 */10 * * * *", st.Schedule)
	assert.Equal(t, 2, st.TotalRuns)
	assert.Equal(t, 0.5, st.SuccessRate)
	require.NotNil(t, st.LastRun)
	assert.True(t, st.LastRun.Success)
}

func TestStartStop(t *testing.T) {
	s := newTestScheduler(0, 0)
	require.NoError(t, s.AddJob(newJob("rates_refresh", 0)))

	s.Start()
	require.Eventually(t, func() bool {
		return s.Stats()["rates_refresh"].NextRun != nil
	}, time.Second, 10*time.Millisecond)
	s.Stop()
}

func TestJobHistory(t *testing.T) {
	var h JobHistory

	_, ok := h.Latest()
	assert.False(t, ok)
	assert.Equal(t, 0.0, h.SuccessRate())

	for i := 0; i < historyLimit+5; i++ {
		h.AddResult(JobResult{Attempts: i, Success: i%2 == 0})
	}

	assert.Len(t, h.Results, historyLimit)
	last, ok := h.Latest()
	require.True(t, ok)
	assert.Equal(t, historyLimit+4, last.Attempts)
	assert.Equal(t, 0.5, h.SuccessRate())
}
