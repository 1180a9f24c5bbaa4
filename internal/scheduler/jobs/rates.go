package jobs

import (
	"context"

	"github.com/creco/imaikura/pkg/logger"
)

// Refresher refreshes the shared exchange rate cache. *rates.Fetcher
// implements it.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// RatesRefreshJob refetches exchange rates ahead of cache expiry
type RatesRefreshJob struct {
	fetcher  Refresher
	schedule string
	logger   *logger.Logger
}

// NewRatesRefreshJob creates a new rate refresh job
func NewRatesRefreshJob(fetcher Refresher, schedule string, log *logger.Logger) *RatesRefreshJob {
	return &RatesRefreshJob{
		fetcher:  fetcher,
		schedule: schedule,
		logger:   log,
	}
}

// Name returns the job name
func (j *RatesRefreshJob) Name() string {
	return "rates_refresh"
}

// Schedule returns the cron schedule (every 10 minutes by default)
func (j *RatesRefreshJob) Schedule() string {
	return j.schedule
}

// Run refreshes the rates. A fallback counts as a failure so the scheduler
// retries.
func (j *RatesRefreshJob) Run(ctx context.Context) error {
	j.logger.Debug("Starting scheduled rate refresh")
	return j.fetcher.Refresh(ctx)
}
