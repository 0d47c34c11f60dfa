package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chartfeed/internal/domain/models"
	domrepo "chartfeed/internal/domain/repository"
	applogger "chartfeed/pkg/logger"
)

// HistoryService runs the history pipeline: registry lookup, bar load,
// resolution parse, aggregation and range selection.
type HistoryService struct {
	registry domrepo.Registry
	store    domrepo.BarStore
	metrics  domrepo.Metrics
	l        *applogger.Logger
}

func NewHistoryService(registry domrepo.Registry, store domrepo.BarStore, metrics domrepo.Metrics) *HistoryService {
	return &HistoryService{registry: registry, store: store, metrics: metrics}
}

// SetLogger injects a structured logger.
func (s *HistoryService) SetLogger(l *applogger.Logger) { s.l = l }

// History never fails: every error, including a panic inside the pipeline,
// is converted into the error envelope.
func (s *HistoryService) History(ctx context.Context, q models.HistoryQuery) (resp models.HistoryResponse) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			resp = models.ErrorResponse(fmt.Sprintf("%v", r))
		}
		if s.metrics != nil {
			s.metrics.RecordHistory(q.Resolution, resp.Status)
		}
		if s.l != nil {
			s.l.Debug("history served",
				applogger.String("symbol", q.Symbol),
				applogger.String("resolution", q.Resolution),
				applogger.String("status", resp.Status),
				applogger.Int("bars", resp.Len()),
				applogger.Duration("duration_ms", time.Since(start)),
			)
		}
	}()

	resp, err := s.history(ctx, q)
	if err != nil {
		if s.l != nil {
			s.l.Warn("history failed",
				applogger.String("symbol", q.Symbol),
				applogger.String("resolution", q.Resolution),
				applogger.Error(err),
			)
		}
		return models.ErrorResponse(err.Error())
	}
	return resp
}

func (s *HistoryService) history(ctx context.Context, q models.HistoryQuery) (models.HistoryResponse, error) {
	if q.From <= 0 && q.To <= 0 {
		return models.NoDataResponse(q.From), nil
	}

	meta, err := s.registry.Resolve(ctx, q.Symbol)
	if err != nil {
		return models.HistoryResponse{}, fmt.Errorf("resolve %q: %w", q.Symbol, err)
	}

	res, err := domrepo.ParseResolution(q.Resolution)
	if err != nil {
		return models.HistoryResponse{}, err
	}
	if !domrepo.SupportsResolution(meta.Resolutions(), res) {
		return models.HistoryResponse{}, fmt.Errorf("%w: %s for %s", domrepo.ErrUnsupportedResolution, q.Resolution, meta.Ticker)
	}

	if meta.IsSeries() {
		points, err := s.store.LoadSeries(ctx, meta, meta.Column)
		if errors.Is(err, domrepo.ErrColumnNotFound) {
			return models.NoDataResponse(q.From), nil
		}
		if err != nil {
			return models.HistoryResponse{}, fmt.Errorf("load series: %w", err)
		}
		return SelectSeries(AggregateSeries(points, res), q.From, q.To, q.Countback), nil
	}

	bars, err := s.store.LoadBars(ctx, meta)
	if err != nil {
		return models.HistoryResponse{}, fmt.Errorf("load bars: %w", err)
	}
	return Select(Aggregate(bars, res), q.From, q.To, q.Countback), nil
}
