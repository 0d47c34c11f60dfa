package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"chartfeed/internal/domain/models"
	domrepo "chartfeed/internal/domain/repository"
)

type fakeRegistry struct {
	metas map[string]models.SymbolMeta
}

func newFakeRegistry(metas ...models.SymbolMeta) *fakeRegistry {
	r := &fakeRegistry{metas: make(map[string]models.SymbolMeta)}
	for _, m := range metas {
		if m.Base == "" {
			m.Base = m.Ticker
		}
		r.metas[m.Ticker] = m
	}
	return r
}

func (r *fakeRegistry) Resolve(_ context.Context, symbol string) (*models.SymbolMeta, error) {
	m, ok := r.metas[symbol]
	if !ok {
		return nil, fmt.Errorf("ticker '%s' not found in registry: %w", symbol, domrepo.ErrSymbolNotFound)
	}
	return &m, nil
}

func (r *fakeRegistry) List(context.Context) ([]models.SymbolMeta, error) {
	out := make([]models.SymbolMeta, 0, len(r.metas))
	for _, m := range r.metas {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out, nil
}

type fakeBarStore struct {
	bars   map[string][]models.Bar
	series map[string][]models.SeriesPoint // keyed base:column
	loads  int
	panics bool
}

func (s *fakeBarStore) LoadBars(_ context.Context, meta *models.SymbolMeta) ([]models.Bar, error) {
	s.loads++
	if s.panics {
		panic("corrupt dataset")
	}
	bars, ok := s.bars[meta.Base]
	if !ok {
		return nil, fmt.Errorf("%s: %w", meta.Base, domrepo.ErrNoData)
	}
	return bars, nil
}

func (s *fakeBarStore) LoadSeries(_ context.Context, meta *models.SymbolMeta, column string) ([]models.SeriesPoint, error) {
	s.loads++
	pts, ok := s.series[meta.Base+":"+column]
	if !ok {
		return nil, fmt.Errorf("%s: %w", column, domrepo.ErrColumnNotFound)
	}
	return pts, nil
}

type fakeMetrics struct {
	mu      sync.Mutex
	history map[string]int
	shapes  map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{history: map[string]int{}, shapes: map[string]int{}}
}

func (m *fakeMetrics) RecordHistory(_, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history[status]++
}

func (m *fakeMetrics) RecordBarLoad(string, time.Duration, error) {}

func (m *fakeMetrics) RecordCache(string) {}

func (m *fakeMetrics) RecordShapeOp(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shapes[op]++
}

type fakeShapeStore struct {
	nextID int64
	shapes map[int64]models.Shape
}

func newFakeShapeStore() *fakeShapeStore {
	return &fakeShapeStore{shapes: make(map[int64]models.Shape)}
}

func (s *fakeShapeStore) Create(_ context.Context, sh *models.Shape) error {
	s.nextID++
	sh.ID = s.nextID
	s.shapes[sh.ID] = *sh
	return nil
}

func (s *fakeShapeStore) Get(_ context.Context, id int64) (*models.Shape, error) {
	sh, ok := s.shapes[id]
	if !ok {
		return nil, fmt.Errorf("shape %d: %w", id, domrepo.ErrShapeNotFound)
	}
	return &sh, nil
}

func (s *fakeShapeStore) FindBySig(_ context.Context, symbol, sig string) (*models.Shape, error) {
	for _, sh := range s.shapes {
		if sh.Symbol == symbol && sh.Sig == sig {
			cp := sh
			return &cp, nil
		}
	}
	return nil, domrepo.ErrShapeNotFound
}

func (s *fakeShapeStore) Update(_ context.Context, sh *models.Shape) error {
	if _, ok := s.shapes[sh.ID]; !ok {
		return domrepo.ErrShapeNotFound
	}
	s.shapes[sh.ID] = *sh
	return nil
}

func (s *fakeShapeStore) Delete(_ context.Context, id int64) error {
	if _, ok := s.shapes[id]; !ok {
		return domrepo.ErrShapeNotFound
	}
	delete(s.shapes, id)
	return nil
}

func (s *fakeShapeStore) List(_ context.Context, symbol string) ([]models.Shape, error) {
	var out []models.Shape
	for _, sh := range s.shapes {
		if symbol == "" || sh.Symbol == symbol {
			out = append(out, sh)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeShapeStore) Close() error { return nil }

type fakeEvents struct {
	events []models.ShapeEvent
	err    error
}

func (e *fakeEvents) Publish(_ context.Context, ev models.ShapeEvent) error {
	if e.err != nil {
		return e.err
	}
	e.events = append(e.events, ev)
	return nil
}

func (e *fakeEvents) Close() error { return nil }
