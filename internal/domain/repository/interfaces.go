package repository

import (
	"context"
	"errors"
	"time"

	"chartfeed/internal/domain/models"
)

var (
	ErrSymbolNotFound        = errors.New("symbol not found")
	ErrNoData                = errors.New("no bar data")
	ErrColumnNotFound        = errors.New("series column not found")
	ErrInvalidResolution     = errors.New("invalid resolution")
	ErrUnsupportedResolution = errors.New("unsupported resolution")
	ErrShapeNotFound         = errors.New("shape not found")
)

// Registry resolves symbols to their metadata and dataset location.
type Registry interface {
	Resolve(ctx context.Context, symbol string) (*models.SymbolMeta, error)
	List(ctx context.Context) ([]models.SymbolMeta, error)
}

// BarStore yields a symbol's raw series, ascending by timestamp.
// Returned slices are shared snapshots and must not be modified.
type BarStore interface {
	LoadBars(ctx context.Context, meta *models.SymbolMeta) ([]models.Bar, error)
	LoadSeries(ctx context.Context, meta *models.SymbolMeta, column string) ([]models.SeriesPoint, error)
}

// ShapeStore persists chart annotations.
type ShapeStore interface {
	Create(ctx context.Context, s *models.Shape) error
	Get(ctx context.Context, id int64) (*models.Shape, error)
	FindBySig(ctx context.Context, symbol, sig string) (*models.Shape, error)
	Update(ctx context.Context, s *models.Shape) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, symbol string) ([]models.Shape, error)
	Close() error
}

// ShapeEvents publishes shape changes to interested consumers.
type ShapeEvents interface {
	Publish(ctx context.Context, ev models.ShapeEvent) error
	Close() error
}

type Metrics interface {
	RecordHistory(resolution, status string)
	RecordBarLoad(backend string, d time.Duration, err error)
	RecordCache(result string)
	RecordShapeOp(op string)
}
