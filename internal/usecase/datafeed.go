package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"chartfeed/internal/domain/models"
	domrepo "chartfeed/internal/domain/repository"
	applogger "chartfeed/pkg/logger"
)

// DatafeedService answers the metadata side of the datafeed protocol.
type DatafeedService struct {
	registry domrepo.Registry
	store    domrepo.BarStore
	l        *applogger.Logger
}

func NewDatafeedService(registry domrepo.Registry, store domrepo.BarStore) *DatafeedService {
	return &DatafeedService{registry: registry, store: store}
}

// SetLogger injects a structured logger.
func (s *DatafeedService) SetLogger(l *applogger.Logger) { s.l = l }

// Config advertises the union of every symbol's supported resolutions.
func (s *DatafeedService) Config(ctx context.Context) (*models.DatafeedConfig, error) {
	metas, err := s.registry.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list registry: %w", err)
	}

	set := make(map[string]struct{})
	for _, m := range metas {
		for _, r := range m.Resolutions() {
			set[r] = struct{}{}
		}
	}
	all := make([]string, 0, len(set))
	for r := range set {
		all = append(all, r)
	}
	sort.Strings(all)

	return &models.DatafeedConfig{
		SupportedResolutions:   all,
		SupportsSearch:         true,
		SupportsGroupRequest:   false,
		SupportsMarks:          false,
		SupportsTimescaleMarks: false,
		SupportsTime:           true,
	}, nil
}

// Symbol returns the stored metadata object for symbol.
func (s *DatafeedService) Symbol(ctx context.Context, symbol string) (map[string]any, error) {
	meta, err := s.registry.Resolve(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return meta.Raw, nil
}

// Search matches tickers containing query (case-insensitive), optionally
// filtered by exchange and type. Results are ordered by ticker.
func (s *DatafeedService) Search(ctx context.Context, req models.SearchRequest) ([]models.SearchResult, error) {
	metas, err := s.registry.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list registry: %w", err)
	}

	q := strings.ToLower(req.Query)
	out := make([]models.SearchResult, 0)
	for _, m := range metas {
		if !strings.Contains(strings.ToLower(m.Ticker), q) {
			continue
		}
		if req.Exchange != "" && !strings.EqualFold(m.Exchange, req.Exchange) {
			continue
		}
		if req.Type != "" && !strings.EqualFold(m.Type, req.Type) {
			continue
		}
		out = append(out, models.SearchResult{
			Symbol:      m.Ticker,
			Name:        m.Name,
			Ticker:      tickerOf(m),
			FullName:    m.FullName,
			Description: m.Description,
			Exchange:    m.Exchange,
			Type:        m.Type,
		})
	}
	if req.Limit > 0 && len(out) > req.Limit {
		out = out[:req.Limit]
	}
	return out, nil
}

// ServerTime returns the latest bar timestamp in seconds for symbol,
// or the maximum across the registry when symbol is empty.
func (s *DatafeedService) ServerTime(ctx context.Context, symbol string) (int64, error) {
	if symbol != "" {
		meta, err := s.registry.Resolve(ctx, symbol)
		if err != nil {
			return 0, err
		}
		latest, err := s.latest(ctx, meta)
		if err != nil {
			return 0, err
		}
		return latest / 1000, nil
	}

	metas, err := s.registry.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list registry: %w", err)
	}
	var latest int64
	for i := range metas {
		ts, err := s.latest(ctx, &metas[i])
		if errors.Is(err, domrepo.ErrNoData) {
			if s.l != nil {
				s.l.Warn("time: symbol without data", applogger.String("symbol", metas[i].Ticker))
			}
			continue
		}
		if err != nil {
			return 0, err
		}
		if ts > latest {
			latest = ts
		}
	}
	return latest / 1000, nil
}

func (s *DatafeedService) latest(ctx context.Context, meta *models.SymbolMeta) (int64, error) {
	bars, err := s.store.LoadBars(ctx, meta)
	if err != nil {
		return 0, fmt.Errorf("load bars %s: %w", meta.Ticker, err)
	}
	if len(bars) == 0 {
		return 0, fmt.Errorf("%s: %w", meta.Ticker, domrepo.ErrNoData)
	}
	var latest int64
	for i, b := range bars {
		if i == 0 || b.Timestamp > latest {
			latest = b.Timestamp
		}
	}
	return latest, nil
}

// tickerOf prefers the stored "ticker" field over the registry key.
func tickerOf(m models.SymbolMeta) string {
	if v, ok := m.Raw["ticker"].(string); ok && v != "" {
		return v
	}
	return m.Ticker
}
