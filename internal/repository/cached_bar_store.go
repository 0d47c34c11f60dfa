package repository

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"chartfeed/internal/domain/models"
	domrepo "chartfeed/internal/domain/repository"
	"chartfeed/pkg/cache"
	applogger "chartfeed/pkg/logger"
)

const (
	cacheHit  = "hit"
	cacheMiss = "miss"
	cacheL2   = "l2_hit"
)

// snapshot is an immutable loaded series.
type snapshot[T any] struct {
	data     []T
	loadedAt time.Time
}

// entry holds one key's snapshot. mu serialises loads for that key only.
type entry[T any] struct {
	mu   sync.Mutex
	snap atomic.Pointer[snapshot[T]]
}

// snapshotMap is a per-key snapshot cache with optional TTL and L2.
type snapshotMap[T any] struct {
	mu      sync.RWMutex
	entries map[string]*entry[T]
}

func (m *snapshotMap[T]) entry(key string) *entry[T] {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if ok {
		return e
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok = m.entries[key]; ok {
		return e
	}
	e = &entry[T]{}
	m.entries[key] = e
	return e
}

func (m *snapshotMap[T]) drop(key string) {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
}

// CachedBarStore keeps one immutable snapshot per symbol in front of
// another BarStore. Different symbols never wait on each other's loads.
type CachedBarStore struct {
	next    domrepo.BarStore
	ttl     time.Duration
	l2      cache.Service
	l2TTL   time.Duration
	metrics domrepo.Metrics
	l       *applogger.Logger
	now     func() time.Time

	bars   snapshotMap[models.Bar]
	series snapshotMap[models.SeriesPoint]
}

// CachedOption configures CachedBarStore.
type CachedOption func(*CachedBarStore)

// WithTTL expires snapshots after ttl; zero keeps them forever.
func WithTTL(ttl time.Duration) CachedOption {
	return func(s *CachedBarStore) { s.ttl = ttl }
}

// WithL2 shares snapshots through a second-level cache such as Redis.
func WithL2(c cache.Service, ttl time.Duration) CachedOption {
	return func(s *CachedBarStore) {
		s.l2 = c
		s.l2TTL = ttl
	}
}

// WithCacheMetrics records hit/miss counters.
func WithCacheMetrics(m domrepo.Metrics) CachedOption {
	return func(s *CachedBarStore) { s.metrics = m }
}

func NewCachedBarStore(next domrepo.BarStore, opts ...CachedOption) *CachedBarStore {
	s := &CachedBarStore{
		next:   next,
		now:    time.Now,
		bars:   snapshotMap[models.Bar]{entries: make(map[string]*entry[models.Bar])},
		series: snapshotMap[models.SeriesPoint]{entries: make(map[string]*entry[models.SeriesPoint])},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetLogger injects a structured logger.
func (s *CachedBarStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CachedBarStore) LoadBars(ctx context.Context, meta *models.SymbolMeta) ([]models.Bar, error) {
	key := cache.GenerateKey("bars", datasetKey(meta))
	return load(ctx, s, &s.bars, key, func(ctx context.Context) ([]models.Bar, error) {
		return s.next.LoadBars(ctx, meta)
	})
}

func (s *CachedBarStore) LoadSeries(ctx context.Context, meta *models.SymbolMeta, column string) ([]models.SeriesPoint, error) {
	key := cache.GenerateKeyWithParams("series", datasetKey(meta), column)
	return load(ctx, s, &s.series, key, func(ctx context.Context) ([]models.SeriesPoint, error) {
		return s.next.LoadSeries(ctx, meta, column)
	})
}

// Invalidate drops the cached snapshots of a dataset in both layers.
func (s *CachedBarStore) Invalidate(ctx context.Context, dataset string) error {
	s.bars.drop(cache.GenerateKey("bars", dataset))

	prefix := cache.GenerateKey("series", dataset) + ":"
	s.series.mu.Lock()
	for key := range s.series.entries {
		if strings.HasPrefix(key, prefix) {
			delete(s.series.entries, key)
		}
	}
	s.series.mu.Unlock()

	if s.l2 == nil {
		return nil
	}
	if err := s.l2.Delete(ctx, cache.GenerateKey("bars", dataset)); err != nil {
		return err
	}
	return s.l2.DeleteByPattern(ctx, cache.GenerateKey("series", dataset)+":*")
}

func (s *CachedBarStore) fresh(loadedAt time.Time) bool {
	return s.ttl <= 0 || s.now().Sub(loadedAt) < s.ttl
}

func (s *CachedBarStore) record(result string) {
	if s.metrics != nil {
		s.metrics.RecordCache(result)
	}
}

func load[T any](ctx context.Context, s *CachedBarStore, m *snapshotMap[T], key string, fetch func(context.Context) ([]T, error)) ([]T, error) {
	e := m.entry(key)
	if snap := e.snap.Load(); snap != nil && s.fresh(snap.loadedAt) {
		s.record(cacheHit)
		return snap.data, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Another caller may have loaded while we waited.
	if snap := e.snap.Load(); snap != nil && s.fresh(snap.loadedAt) {
		s.record(cacheHit)
		return snap.data, nil
	}

	if s.l2 != nil {
		var data []T
		err := s.l2.Get(ctx, key, &data)
		switch {
		case err == nil:
			s.record(cacheL2)
			e.snap.Store(&snapshot[T]{data: data, loadedAt: s.now()})
			return data, nil
		case !errors.Is(err, cache.ErrCacheMiss) && s.l != nil:
			s.l.Warn("l2 cache get failed", applogger.String("key", key), applogger.Error(err))
		}
	}

	s.record(cacheMiss)
	data, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	e.snap.Store(&snapshot[T]{data: data, loadedAt: s.now()})

	if s.l2 != nil {
		if err := s.l2.Set(ctx, key, data, s.l2TTL); err != nil && s.l != nil {
			s.l.Warn("l2 cache set failed", applogger.String("key", key), applogger.Error(err))
		}
	}
	return data, nil
}
