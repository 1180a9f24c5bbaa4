package rates

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/creco/imaikura/pkg/logger"
	"github.com/creco/imaikura/pkg/redis"
)

// Provider is an external exchange rate source
type Provider interface {
	Name() string
	FetchRates(ctx context.Context) (RateSet, error)
}

// Cache is the TTL store for live rate sets. *redis.Cache implements it.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// State is the fetcher state machine position
type State string

const (
	StateFetching   State = "fetching"
	StateSucceeded  State = "succeeded"
	StateFallenBack State = "fallen_back"
)

// Snapshot is an immutable view of the fetcher after a transition
type Snapshot struct {
	State         State       `json:"state"`
	Rates         RateSet     `json:"rates,omitempty"`
	Source        string      `json:"source,omitempty"` // provider, cache, fallback
	UsingFallback bool        `json:"using_fallback"`
	Err           *FetchError `json:"error,omitempty"`
	RetryCount    int         `json:"retry_count"`
	FetchedAt     time.Time   `json:"fetched_at,omitempty"`
}

// Ready reports whether the snapshot carries a usable rate set
func (s Snapshot) Ready() bool {
	return s.State != StateFetching && s.Rates != nil
}

// DefaultFetchTimeout bounds one shared fetch including every retry
const DefaultFetchTimeout = 20 * time.Second

// Fetcher obtains rate sets from a Provider with caching and fallback.
// Load never fails: a failed fetch yields the fallback table.
// ⭐ SSOT: 為替レート取得はここだけ
type Fetcher struct {
	provider Provider
	cache    Cache
	ttl      time.Duration
	timeout  time.Duration
	logger   *logger.Logger
	now      func() time.Time

	group singleflight.Group

	mu         sync.RWMutex
	current    Snapshot
	retryCount int
	subs       map[chan Snapshot]struct{}
}

// NewFetcher creates a fetcher. cache may be nil.
func NewFetcher(provider Provider, cache Cache, ttl time.Duration, log *logger.Logger) *Fetcher {
	if ttl <= 0 {
		ttl = redis.TTLRates
	}
	return &Fetcher{
		provider: provider,
		cache:    cache,
		ttl:      ttl,
		timeout:  DefaultFetchTimeout,
		logger:   log,
		now:      time.Now,
		current:  Snapshot{State: StateFetching},
		subs:     make(map[chan Snapshot]struct{}),
	}
}

// WithFetchTimeout sets the total deadline of one provider fetch
func (f *Fetcher) WithFetchTimeout(d time.Duration) *Fetcher {
	if d > 0 {
		f.timeout = d
	}
	return f
}

func (f *Fetcher) cacheKey() string {
	return redis.ExchangeRatesKey(f.provider.Name())
}

// Current returns the latest snapshot without fetching
func (f *Fetcher) Current() Snapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.current
}

// Load returns the current snapshot while it is younger than the TTL, then
// the shared cache, and only then fetches from the provider. A fallback
// snapshot is held for the TTL as well; Retry bypasses it.
// Concurrent calls share one fetch.
func (f *Fetcher) Load(ctx context.Context) Snapshot {
	if snap := f.Current(); snap.Ready() && f.fresh(snap) {
		return snap
	}
	if snap, ok := f.fromCache(ctx); ok {
		return snap
	}

	v, _, _ := f.group.Do("load", func() (interface{}, error) {
		return f.fetchShared(ctx), nil
	})
	return v.(Snapshot)
}

func (f *Fetcher) fresh(s Snapshot) bool {
	return f.now().Sub(s.FetchedAt) < f.ttl
}

// Retry forces a fresh fetch that bypasses and invalidates the cache, from
// either terminal state.
func (f *Fetcher) Retry(ctx context.Context) Snapshot {
	f.mu.Lock()
	f.retryCount++
	f.mu.Unlock()

	if f.cache != nil {
		if err := f.cache.Delete(ctx, f.cacheKey()); err != nil {
			f.logger.WithError(err).Warn("Failed to invalidate rate cache")
		}
	}

	// 進行中の取得には合流しない
	f.group.Forget("load")
	v, _, _ := f.group.Do("load", func() (interface{}, error) {
		return f.fetchShared(ctx), nil
	})
	return v.(Snapshot)
}

// Refresh refetches unless a fresh live set is cached. Unlike Load it does
// not hold on to a fallback snapshot. Used by the scheduler.
func (f *Fetcher) Refresh(ctx context.Context) error {
	if _, ok := f.fromCache(ctx); ok {
		return nil
	}

	v, _, _ := f.group.Do("load", func() (interface{}, error) {
		return f.fetchShared(ctx), nil
	})
	if snap := v.(Snapshot); snap.Err != nil {
		return snap.Err
	}
	return nil
}

func (f *Fetcher) fromCache(ctx context.Context) (Snapshot, bool) {
	if f.cache == nil {
		return Snapshot{}, false
	}

	var set RateSet
	found, err := f.cache.Get(ctx, f.cacheKey(), &set)
	if err != nil {
		f.logger.WithError(err).Warn("Rate cache read failed")
		return Snapshot{}, false
	}
	if !found || set.Validate() != nil {
		return Snapshot{}, false
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	// 他インスタンスが更新したキャッシュも取り込む
	if f.current.State == StateSucceeded && f.fresh(f.current) {
		return f.current, true
	}
	f.current = Snapshot{
		State:      StateSucceeded,
		Rates:      set,
		Source:     "cache",
		RetryCount: f.retryCount,
		FetchedAt:  f.now(),
	}
	f.publishLocked()
	return f.current, true
}

// fetchShared runs one provider fetch for every joined caller. It is detached
// from the caller's cancellation and bounded by the fetch timeout instead.
func (f *Fetcher) fetchShared(ctx context.Context) Snapshot {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.timeout)
	defer cancel()
	return f.fetch(ctx)
}

func (f *Fetcher) fetch(ctx context.Context) Snapshot {
	f.mu.RLock()
	previous := f.current
	f.mu.RUnlock()

	f.transition(func(s *Snapshot) {
		s.State = StateFetching
		s.Err = nil
	})

	set, err := f.provider.FetchRates(ctx)
	if err == nil {
		err = set.Validate()
	}

	// 中断時は状態を確定しない
	if errors.Is(err, context.Canceled) {
		f.logger.WithField("provider", f.provider.Name()).Warn("為替レート取得が中断されました")
		return f.restore(previous)
	}

	if err != nil {
		fetchErr := classify(err)
		f.logger.WithFields(map[string]interface{}{
			"provider": f.provider.Name(),
			"kind":     string(fetchErr.Kind),
		}).WithError(err).Warn("為替レートAPI取得に失敗しました。フォールバックデータを使用します")

		return f.transition(func(s *Snapshot) {
			*s = Snapshot{
				State:         StateFallenBack,
				Rates:         FallbackRates(),
				Source:        "fallback",
				UsingFallback: true,
				Err:           fetchErr,
			}
		})
	}

	if f.cache != nil {
		if err := f.cache.Set(ctx, f.cacheKey(), set, f.ttl); err != nil {
			f.logger.WithError(err).Warn("Rate cache write failed")
		}
	}

	f.logger.WithField("provider", f.provider.Name()).Debug("Exchange rates fetched")

	return f.transition(func(s *Snapshot) {
		*s = Snapshot{
			State:  StateSucceeded,
			Rates:  set,
			Source: "provider",
		}
	})
}

// restore puts back the snapshot held before an abandoned fetch. The caller
// still gets usable rates when none were held.
func (f *Fetcher) restore(previous Snapshot) Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.current = previous
	f.publishLocked()

	if previous.Ready() {
		return previous
	}
	return Snapshot{
		State:         StateFallenBack,
		Rates:         FallbackRates(),
		Source:        "fallback",
		UsingFallback: true,
		RetryCount:    f.retryCount,
	}
}

// transition applies change to the current snapshot, stamps it and notifies
// subscribers.
func (f *Fetcher) transition(change func(*Snapshot)) Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	next := f.current
	change(&next)
	next.RetryCount = f.retryCount
	next.FetchedAt = f.now()
	f.current = next
	f.publishLocked()

	return next
}

// Subscribe returns a channel receiving every snapshot transition. Slow
// receivers only see the latest snapshot. Call the returned func to stop.
func (f *Fetcher) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	f.mu.Lock()
	f.subs[ch] = struct{}{}
	ch <- f.current
	f.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, ch)
			close(ch)
			f.mu.Unlock()
		})
	}
	return ch, cancel
}

func (f *Fetcher) publishLocked() {
	for ch := range f.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- f.current:
		default:
		}
	}
}
