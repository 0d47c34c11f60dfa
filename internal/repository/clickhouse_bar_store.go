package repository

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	"chartfeed/internal/domain/models"
	domrepo "chartfeed/internal/domain/repository"
	applogger "chartfeed/pkg/logger"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

// BarSchema is the expected bar table layout; bars are read-only here.
const BarSchema = `CREATE TABLE IF NOT EXISTS %s (
	symbol LowCardinality(String),
	ts     DateTime64(3, 'UTC'),
	open   Float64,
	high   Float64,
	low    Float64,
	close  Float64,
	volume Float64
) ENGINE = ReplacingMergeTree ORDER BY (symbol, ts)`

// SeriesSchema stores derived columns in long format.
const SeriesSchema = `CREATE TABLE IF NOT EXISTS %s (
	symbol LowCardinality(String),
	column LowCardinality(String),
	ts     DateTime64(3, 'UTC'),
	value  Float64
) ENGINE = ReplacingMergeTree ORDER BY (symbol, column, ts)`

// ClickHouseBarStore loads bars from a ClickHouse table keyed by symbol.
type ClickHouseBarStore struct {
	db          *sql.DB
	barTable    string
	seriesTable string
	metrics     domrepo.Metrics
	l           *applogger.Logger
}

func NewClickHouseBarStore(db *sql.DB, barTable, seriesTable string, metrics domrepo.Metrics) (*ClickHouseBarStore, error) {
	for _, t := range []string{barTable, seriesTable} {
		if !identRe.MatchString(t) {
			return nil, fmt.Errorf("invalid table name %q", t)
		}
	}
	return &ClickHouseBarStore{db: db, barTable: barTable, seriesTable: seriesTable, metrics: metrics}, nil
}

// SetLogger injects a structured logger.
func (s *ClickHouseBarStore) SetLogger(l *applogger.Logger) { s.l = l }

// datasetKey is the symbol value stored in the table: the registry dataset
// when set, else the base ticker.
func datasetKey(meta *models.SymbolMeta) string {
	if meta.Dataset != "" {
		return meta.Dataset
	}
	if meta.Base != "" {
		return meta.Base
	}
	return meta.Ticker
}

func (s *ClickHouseBarStore) LoadBars(ctx context.Context, meta *models.SymbolMeta) (bars []models.Bar, err error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordBarLoad("clickhouse", time.Since(start), err)
		}
	}()

	key := datasetKey(meta)
	q := fmt.Sprintf(`SELECT toUnixTimestamp64Milli(ts), open, high, low, close, volume
FROM %s WHERE symbol = ? ORDER BY ts`, s.barTable)
	rows, err := s.db.QueryContext(ctx, q, key)
	if err != nil {
		return nil, fmt.Errorf("query bars: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var b models.Bar
		if err := rows.Scan(&b.Timestamp, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bars: %w", err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: '%s' in %s", domrepo.ErrNoData, key, s.barTable)
	}

	if s.l != nil {
		s.l.Debug("bars loaded",
			applogger.String("symbol", key),
			applogger.String("table", s.barTable),
			applogger.Int("bars", len(bars)),
		)
	}
	return bars, nil
}

func (s *ClickHouseBarStore) LoadSeries(ctx context.Context, meta *models.SymbolMeta, column string) (points []models.SeriesPoint, err error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordBarLoad("clickhouse", time.Since(start), err)
		}
	}()

	key := datasetKey(meta)
	q := fmt.Sprintf(`SELECT toUnixTimestamp64Milli(ts), value
FROM %s WHERE symbol = ? AND column = ? AND NOT isNaN(value) ORDER BY ts`, s.seriesTable)
	rows, err := s.db.QueryContext(ctx, q, key, column)
	if err != nil {
		return nil, fmt.Errorf("query series: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p models.SeriesPoint
		if err := rows.Scan(&p.Timestamp, &p.Value); err != nil {
			return nil, fmt.Errorf("scan series point: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate series: %w", err)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: %q for '%s'", domrepo.ErrColumnNotFound, column, key)
	}
	return points, nil
}

// EnsureSchema creates the bar and series tables when missing.
func (s *ClickHouseBarStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range []string{
		fmt.Sprintf(BarSchema, s.barTable),
		fmt.Sprintf(SeriesSchema, s.seriesTable),
	} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}
