package inflation

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/creco/imaikura/internal/rates"
	"github.com/creco/imaikura/pkg/logger"
)

// RateSource supplies exchange-rate snapshots. *rates.Fetcher implements it.
type RateSource interface {
	Load(ctx context.Context) rates.Snapshot
	Retry(ctx context.Context) rates.Snapshot
	Current() rates.Snapshot
}

// CpiSource loads the CPI table from a file or a database
type CpiSource interface {
	LoadTable(ctx context.Context) (*CpiTable, error)
}

// Service wires the validator, the CPI table and the rate fetcher into one
// entry point for the API, the CLI and the static generators.
// ⭐ SSOT: 計算の入口はここだけ
type Service struct {
	table  atomic.Pointer[CpiTable]
	rates  RateSource
	logger *logger.Logger
	now    func() time.Time
}

// NewService creates a service with no CPI table yet. Calculations report
// StatusLoading until Init or SetTable provides one.
func NewService(src RateSource, log *logger.Logger) *Service {
	return &Service{
		rates:  src,
		logger: log,
		now:    time.Now,
	}
}

// WithClock overrides the clock used for validation and CPI resolution
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Now returns the service clock
func (s *Service) Now() time.Time {
	return s.now()
}

// Init loads the CPI table and the first rate snapshot concurrently.
// A rate failure is not an error here: the fetcher has already fallen back.
func (s *Service) Init(ctx context.Context, cpi CpiSource) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		table, err := cpi.LoadTable(gctx)
		if err != nil {
			return fmt.Errorf("failed to load CPI table: %w", err)
		}
		s.SetTable(table)
		return nil
	})

	g.Go(func() error {
		snap := s.rates.Load(gctx)
		if snap.UsingFallback && snap.Err != nil {
			s.logger.WithField("kind", string(snap.Err.Kind)).Warn("Using fallback exchange rates")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	s.logger.WithField("years", s.Table().Len()).Info("Calculation service ready")
	return nil
}

// SetTable installs a CPI table
func (s *Service) SetTable(t *CpiTable) {
	s.table.Store(t)
}

// Table returns the CPI table, or nil while it is loading
func (s *Service) Table() *CpiTable {
	return s.table.Load()
}

// Calculate validates a raw request and evaluates it. Rejected input never
// reaches CPI or rate lookup.
func (s *Service) Calculate(ctx context.Context, req Request) Outcome {
	now := s.now()

	valid, err := ParseRequest(req, now)
	if err != nil {
		return failureOutcome(validationFailure(err), false)
	}

	return s.evaluate(ctx, valid, now)
}

// CalculateValid evaluates an already validated request
func (s *Service) CalculateValid(ctx context.Context, req ValidRequest) Outcome {
	return s.evaluate(ctx, req, s.now())
}

func (s *Service) evaluate(ctx context.Context, req ValidRequest, now time.Time) Outcome {
	table := s.Table()
	if table == nil {
		return loadingOutcome()
	}

	out := Evaluate(req, table, RateInputFromSnapshot(s.rates.Load(ctx)), now)

	if out.Status == StatusFailure {
		s.logger.WithFields(map[string]interface{}{
			"year":     req.YearText,
			"currency": req.Currency,
			"kind":     string(out.Failure.Kind),
		}).Debug("Calculation failed")
	}
	return out
}

// Rates returns the current rate snapshot, fetching when stale
func (s *Service) Rates(ctx context.Context) rates.Snapshot {
	return s.rates.Load(ctx)
}

// Retry forces a fresh rate fetch
func (s *Service) Retry(ctx context.Context) rates.Snapshot {
	snap := s.rates.Retry(ctx)
	s.logger.WithFields(map[string]interface{}{
		"retry_count":    snap.RetryCount,
		"using_fallback": snap.UsingFallback,
	}).Info("Exchange rates retried")
	return snap
}

// RateInputFromSnapshot adapts a fetcher snapshot for Evaluate. It returns
// nil while the first fetch is in flight.
func RateInputFromSnapshot(snap rates.Snapshot) *RateInput {
	if !snap.Ready() {
		return nil
	}
	return &RateInput{
		Values:        snap.Rates.Values(),
		UsingFallback: snap.UsingFallback,
		NetworkError:  snap.Err.IsNetworkError(),
	}
}

var fieldLabels = map[string]string{
	"year":     "年",
	"currency": "通貨",
	"amount":   "金額",
}

func validationFailure(err error) *Failure {
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		return &Failure{Kind: ValidationRejected, Message: err.Error()}
	}
	return &Failure{
		Kind:    ValidationRejected,
		Message: fmt.Sprintf("%sの入力値が無効です: %s", fieldLabels[vErr.Field], vErr.Value),
	}
}
