package scrape

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/xconmik/buildata-automation/internal/model"
	"github.com/xconmik/buildata-automation/internal/resilience"
)

// DefaultCacheTTL is how long a scraped record is served without
// re-scraping.
const DefaultCacheTTL = 2 * time.Minute

// Cache outcomes reported to a CacheObserver.
const (
	CacheHit      = "hit"
	CacheMiss     = "miss"
	CacheShared   = "shared"
	CacheFallback = "fallback"
	CacheEmpty    = "empty"
)

// CacheObserver receives one outcome per Fetch call.
type CacheObserver interface {
	ObserveCache(kind Kind, result string)
}

// ComputeFunc performs the actual scrape for one key.
type ComputeFunc func(ctx context.Context) (model.FactRecord, error)

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithTTL sets the cache TTL.
func WithTTL(ttl time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock sets the time source used for cache ages.
func WithClock(clock resilience.Clock) CoordinatorOption {
	return func(c *Coordinator) { c.clock = clock }
}

// WithObserver registers a CacheObserver.
func WithObserver(o CacheObserver) CoordinatorOption {
	return func(c *Coordinator) { c.observer = o }
}

type cacheKey struct {
	kind Kind
	key  string
}

// Coordinator deduplicates and serializes scrape work. A live cache entry
// is served without computing; concurrent requests for one (kind, key)
// share a single computation; and computations of one kind run one at a
// time. An empty or failed computation falls back to the last non-empty
// record for the key, however old.
type Coordinator struct {
	ttl      time.Duration
	clock    resilience.Clock
	observer CacheObserver
	log      *zap.Logger

	flights singleflight.Group

	mu      sync.Mutex
	entries map[cacheKey]model.CacheEntry
	queues  map[Kind]*semaphore.Weighted
	flying  map[string]*flight
}

// flight is the context shared by everyone waiting on one computation. It
// is cancelled when the last waiter leaves, not when the first one does.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// NewCoordinator creates an empty Coordinator.
func NewCoordinator(opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		ttl:     DefaultCacheTTL,
		clock:   resilience.SystemClock{},
		log:     zap.L().With(zap.String("component", "scrape.coordinator")),
		entries: make(map[cacheKey]model.CacheEntry),
		queues:  make(map[Kind]*semaphore.Weighted),
		flying:  make(map[string]*flight),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// DomainKey is the cache key for domain-scoped facts.
func DomainKey(domain string) string {
	return strings.ToLower(strings.TrimSpace(domain))
}

// PersonKey is the cache key for person-scoped facts.
func PersonKey(domain, first, last string) string {
	return DomainKey(domain) + "|" + strings.ToLower(strings.TrimSpace(first)) + "|" + strings.ToLower(strings.TrimSpace(last))
}

// Fetch returns the record for (kind, key), running compute at most once
// across concurrent callers. compute errors are logged and absorbed; the
// only error Fetch returns is ctx ending while the caller waits. A caller
// giving up does not cancel the computation for other callers.
func (c *Coordinator) Fetch(ctx context.Context, kind Kind, key string, compute ComputeFunc) (model.FactRecord, error) {
	ck := cacheKey{kind: kind, key: key}
	if rec, ok := c.live(ck); ok {
		c.observe(kind, CacheHit)
		return rec, nil
	}

	fk := string(kind) + "\x00" + key
	f := c.join(ctx, fk)
	defer c.leave(fk, f)

	ch := c.flights.DoChan(fk, func() (any, error) {
		return c.run(f.ctx, ck, compute)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return model.FactRecord{}, res.Err
		}
		out := res.Val.(flightResult)
		if res.Shared {
			c.observe(kind, CacheShared)
		} else {
			c.observe(kind, out.outcome)
		}
		return out.rec, nil
	case <-ctx.Done():
		return model.FactRecord{}, eris.Wrapf(ctx.Err(), "scrape: fetch %s %q", kind, key)
	}
}

type flightResult struct {
	rec     model.FactRecord
	outcome string
}

func (c *Coordinator) join(ctx context.Context, fk string) *flight {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.flying[fk]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: fctx, cancel: cancel}
		c.flying[fk] = f
	}
	f.waiters++
	return f
}

// leave drops one waiter. The last one out cancels the computation and
// forgets the flight so later callers start a fresh one.
func (c *Coordinator) leave(fk string, f *flight) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.cancel()
	if c.flying[fk] == f {
		delete(c.flying, fk)
	}
	c.flights.Forget(fk)
}

func (c *Coordinator) run(ctx context.Context, ck cacheKey, compute ComputeFunc) (flightResult, error) {
	q := c.queue(ck.kind)
	if err := q.Acquire(ctx, 1); err != nil {
		return flightResult{}, eris.Wrapf(err, "scrape: wait for %s queue", ck.kind)
	}
	defer q.Release(1)

	// An earlier flight of this kind may have stored the key while we
	// were queued.
	if rec, ok := c.live(ck); ok {
		return flightResult{rec: rec, outcome: CacheHit}, nil
	}

	start := c.clock.Now()
	rec, err := compute(ctx)
	log := c.log.With(
		zap.String("kind", string(ck.kind)),
		zap.String("key", ck.key),
		zap.Duration("elapsed", c.clock.Now().Sub(start)),
	)
	if err != nil {
		log.Warn("scrape failed", zap.Error(err))
	}

	if err == nil && !rec.IsEmpty() {
		c.mu.Lock()
		c.entries[ck] = model.CacheEntry{StoredAt: c.clock.Now(), Facts: rec}
		c.mu.Unlock()
		log.Debug("scrape stored")
		return flightResult{rec: rec, outcome: CacheMiss}, nil
	}

	c.mu.Lock()
	last, ok := c.entries[ck]
	c.mu.Unlock()
	if ok {
		log.Info("serving last good record", zap.Time("stored_at", last.StoredAt))
		return flightResult{rec: last.Facts, outcome: CacheFallback}, nil
	}
	return flightResult{rec: rec, outcome: CacheEmpty}, nil
}

func (c *Coordinator) live(ck cacheKey) (model.FactRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[ck]
	if !ok || c.clock.Now().Sub(e.StoredAt) >= c.ttl {
		return model.FactRecord{}, false
	}
	return e.Facts, true
}

func (c *Coordinator) queue(kind Kind) *semaphore.Weighted {
	c.mu.Lock()
	defer c.mu.Unlock()
	q, ok := c.queues[kind]
	if !ok {
		q = semaphore.NewWeighted(1)
		c.queues[kind] = q
	}
	return q
}

func (c *Coordinator) observe(kind Kind, result string) {
	if c.observer != nil {
		c.observer.ObserveCache(kind, result)
	}
}

// Invalidate drops the entry for (kind, key), including its fallback value.
func (c *Coordinator) Invalidate(kind Kind, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, cacheKey{kind: kind, key: key})
}

// Len returns the number of stored entries, live or stale.
func (c *Coordinator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
