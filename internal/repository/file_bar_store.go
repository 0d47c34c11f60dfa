package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"chartfeed/internal/domain/models"
	domrepo "chartfeed/internal/domain/repository"
	applogger "chartfeed/pkg/logger"
)

// FileBarStore reads per-symbol bar files from a directory. A symbol's
// dataset is the registry "dataset" entry when present, else <base>.csv,
// else <base>.parquet.
type FileBarStore struct {
	dir     string
	metrics domrepo.Metrics
	l       *applogger.Logger
}

func NewFileBarStore(dir string, metrics domrepo.Metrics) *FileBarStore {
	return &FileBarStore{dir: dir, metrics: metrics}
}

// SetLogger injects a structured logger.
func (s *FileBarStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *FileBarStore) LoadBars(ctx context.Context, meta *models.SymbolMeta) (bars []models.Bar, err error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordBarLoad("file", time.Since(start), err)
		}
	}()

	path, err := s.datasetPath(meta)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(path), ".parquet") {
		bars, err = parquet.ReadFile[models.Bar](path)
		if err != nil {
			return nil, fmt.Errorf("read parquet %s: %w", path, err)
		}
	} else {
		bars, err = readCSVBars(path)
		if err != nil {
			return nil, err
		}
	}

	if !sort.SliceIsSorted(bars, func(i, j int) bool { return bars[i].Timestamp < bars[j].Timestamp }) {
		sort.SliceStable(bars, func(i, j int) bool { return bars[i].Timestamp < bars[j].Timestamp })
	}
	if s.l != nil {
		s.l.Debug("bars loaded",
			applogger.String("symbol", meta.Base),
			applogger.String("path", path),
			applogger.Int("bars", len(bars)),
		)
	}
	return bars, nil
}

func (s *FileBarStore) LoadSeries(ctx context.Context, meta *models.SymbolMeta, column string) (points []models.SeriesPoint, err error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordBarLoad("file", time.Since(start), err)
		}
	}()

	path, err := s.datasetPath(meta)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(path), ".parquet") {
		bars, err := parquet.ReadFile[models.Bar](path)
		if err != nil {
			return nil, fmt.Errorf("read parquet %s: %w", path, err)
		}
		points, err = barColumn(bars, column)
		if err != nil {
			return nil, err
		}
	} else {
		points, err = readCSVColumn(path, column)
		if err != nil {
			return nil, err
		}
	}

	if !sort.SliceIsSorted(points, func(i, j int) bool { return points[i].Timestamp < points[j].Timestamp }) {
		sort.SliceStable(points, func(i, j int) bool { return points[i].Timestamp < points[j].Timestamp })
	}
	return points, nil
}

func (s *FileBarStore) datasetPath(meta *models.SymbolMeta) (string, error) {
	var candidates []string
	if meta.Dataset != "" {
		p := meta.Dataset
		if !filepath.IsAbs(p) {
			p = filepath.Join(s.dir, p)
		}
		candidates = append(candidates, p)
	}
	base := meta.Base
	if base == "" {
		base = meta.Ticker
	}
	candidates = append(candidates,
		filepath.Join(s.dir, base+".csv"),
		filepath.Join(s.dir, base+".parquet"),
	)

	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: no dataset for '%s' in %s", domrepo.ErrNoData, base, s.dir)
}

// csvTable is a header-indexed CSV reader. Column names match case-insensitively.
type csvTable struct {
	r     *csv.Reader
	index map[string]int
	f     *os.File
}

func openCSV(path string) (*csvTable, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domrepo.ErrNoData, path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	r := csv.NewReader(f)
	r.ReuseRecord = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		f.Close()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty file %s", domrepo.ErrNoData, path)
		}
		return nil, fmt.Errorf("read header %s: %w", path, err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return &csvTable{r: r, index: index, f: f}, nil
}

func (t *csvTable) col(name string) (int, bool) {
	i, ok := t.index[strings.ToLower(name)]
	return i, ok
}

func (t *csvTable) Close() error { return t.f.Close() }

func readCSVBars(path string) ([]models.Bar, error) {
	t, err := openCSV(path)
	if err != nil {
		return nil, err
	}
	defer t.Close()

	var idx [5]int
	for i, name := range []string{"timestamp", "open", "high", "low", "close"} {
		c, ok := t.col(name)
		if !ok {
			return nil, fmt.Errorf("%s: missing column %q", path, name)
		}
		idx[i] = c
	}
	volIdx, hasVol := t.col("volume")

	var bars []models.Bar
	line := 1
	for {
		rec, err := t.r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		line++

		ts, err := parseTimestamp(field(rec, idx[0]))
		if err != nil {
			return nil, fmt.Errorf("%s:%d: timestamp: %w", path, line, err)
		}
		var vals [4]float64
		for i := 0; i < 4; i++ {
			vals[i], err = strconv.ParseFloat(field(rec, idx[i+1]), 64)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: %w", path, line, err)
			}
		}
		var vol float64
		if hasVol {
			if v := field(rec, volIdx); v != "" {
				vol, err = strconv.ParseFloat(v, 64)
				if err != nil {
					return nil, fmt.Errorf("%s:%d: volume: %w", path, line, err)
				}
			}
		}
		bars = append(bars, models.Bar{
			Timestamp: ts,
			Open:      vals[0],
			High:      vals[1],
			Low:       vals[2],
			Close:     vals[3],
			Volume:    vol,
		})
	}
	return bars, nil
}

func readCSVColumn(path, column string) ([]models.SeriesPoint, error) {
	t, err := openCSV(path)
	if err != nil {
		return nil, err
	}
	defer t.Close()

	tsIdx, ok := t.col("timestamp")
	if !ok {
		return nil, fmt.Errorf("%s: missing column %q", path, "timestamp")
	}
	colIdx, ok := t.col(column)
	if !ok {
		return nil, fmt.Errorf("%w: %q in %s", domrepo.ErrColumnNotFound, column, path)
	}

	var points []models.SeriesPoint
	line := 1
	for {
		rec, err := t.r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		line++

		raw := field(rec, colIdx)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) {
			continue
		}
		ts, err := parseTimestamp(field(rec, tsIdx))
		if err != nil {
			return nil, fmt.Errorf("%s:%d: timestamp: %w", path, line, err)
		}
		points = append(points, models.SeriesPoint{Timestamp: ts, Value: v})
	}
	return points, nil
}

func barColumn(bars []models.Bar, column string) ([]models.SeriesPoint, error) {
	var pick func(models.Bar) float64
	switch strings.ToLower(column) {
	case "open":
		pick = func(b models.Bar) float64 { return b.Open }
	case "high":
		pick = func(b models.Bar) float64 { return b.High }
	case "low":
		pick = func(b models.Bar) float64 { return b.Low }
	case "close":
		pick = func(b models.Bar) float64 { return b.Close }
	case "volume":
		pick = func(b models.Bar) float64 { return b.Volume }
	default:
		return nil, fmt.Errorf("%w: %q", domrepo.ErrColumnNotFound, column)
	}
	out := make([]models.SeriesPoint, 0, len(bars))
	for _, b := range bars {
		v := pick(b)
		if math.IsNaN(v) {
			continue
		}
		out = append(out, models.SeriesPoint{Timestamp: b.Timestamp, Value: v})
	}
	return out, nil
}

func field(rec []string, i int) string {
	if i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// parseTimestamp accepts integer or float millisecond timestamps.
func parseTimestamp(s string) (int64, error) {
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ts, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}
