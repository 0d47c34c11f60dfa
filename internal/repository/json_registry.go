package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"chartfeed/internal/domain/models"
	domrepo "chartfeed/internal/domain/repository"
	applogger "chartfeed/pkg/logger"
)

// SeriesSep separates a base ticker from a column name in derived series symbols.
const SeriesSep = "#SERIES:"

// FileRegistry implements Registry over a registry.json file mapping
// tickers to metadata objects. The file is re-read when it changes on disk.
type FileRegistry struct {
	path string
	l    *applogger.Logger

	mu      sync.RWMutex
	modTime time.Time
	size    int64
	loaded  bool
	entries map[string]models.SymbolMeta
	tickers []string
}

func NewFileRegistry(path string) *FileRegistry {
	return &FileRegistry{path: path}
}

// SetLogger injects a structured logger.
func (r *FileRegistry) SetLogger(l *applogger.Logger) { r.l = l }

func (r *FileRegistry) Resolve(ctx context.Context, symbol string) (*models.SymbolMeta, error) {
	if err := r.refresh(); err != nil {
		return nil, err
	}

	base, column, isSeries := ParseSeriesSymbol(symbol)
	r.mu.RLock()
	meta, ok := r.entries[base]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: ticker '%s' not found in registry", domrepo.ErrSymbolNotFound, base)
	}

	meta.Raw = copyRaw(meta.Raw)
	if isSeries {
		meta = seriesMeta(meta, symbol, column)
	}
	return &meta, nil
}

func (r *FileRegistry) List(ctx context.Context) ([]models.SymbolMeta, error) {
	if err := r.refresh(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.SymbolMeta, 0, len(r.tickers))
	for _, t := range r.tickers {
		m := r.entries[t]
		m.Raw = copyRaw(m.Raw)
		out = append(out, m)
	}
	return out, nil
}

// refresh reloads the file when its size or modification time changed.
func (r *FileRegistry) refresh() error {
	fi, err := os.Stat(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("no registry found at %s", r.path)
		}
		return fmt.Errorf("stat registry: %w", err)
	}

	r.mu.RLock()
	fresh := r.loaded && fi.ModTime().Equal(r.modTime) && fi.Size() == r.size
	r.mu.RUnlock()
	if fresh {
		return nil
	}

	b, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("read registry: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(b, &doc); err != nil {
		return fmt.Errorf("parse registry: %w", err)
	}

	entries := make(map[string]models.SymbolMeta, len(doc))
	tickers := make([]string, 0, len(doc))
	for key, v := range doc {
		raw, ok := v.(map[string]any)
		if !ok {
			continue
		}
		entries[key] = parseMeta(key, raw)
		tickers = append(tickers, key)
	}
	sort.Strings(tickers)

	r.mu.Lock()
	r.entries = entries
	r.tickers = tickers
	r.modTime = fi.ModTime()
	r.size = fi.Size()
	r.loaded = true
	r.mu.Unlock()

	if r.l != nil {
		r.l.Info("registry loaded", applogger.String("path", r.path), applogger.Int("symbols", len(tickers)))
	}
	return nil
}

// ParseSeriesSymbol splits "BASE#SERIES:column" into its parts.
func ParseSeriesSymbol(symbol string) (base, column string, ok bool) {
	base, column, ok = strings.Cut(symbol, SeriesSep)
	if !ok {
		return symbol, "", false
	}
	return base, column, true
}

func parseMeta(key string, raw map[string]any) models.SymbolMeta {
	m := models.SymbolMeta{
		Base:        key,
		Ticker:      key,
		Name:        str(raw, "name"),
		FullName:    str(raw, "full_name"),
		Description: str(raw, "description"),
		Exchange:    str(raw, "exchange"),
		Type:        str(raw, "type"),
		Dataset:     str(raw, "dataset"),
		Raw:         raw,
	}
	if list, ok := raw["supported_resolutions"].([]any); ok {
		m.SupportedResolutions = make([]string, 0, len(list))
		for _, v := range list {
			if s, ok := v.(string); ok {
				m.SupportedResolutions = append(m.SupportedResolutions, s)
			}
		}
	}
	return m
}

func seriesMeta(base models.SymbolMeta, symbol, column string) models.SymbolMeta {
	name := base.Name
	if name == "" {
		name = base.Base
	}
	desc := base.Description
	if desc == "" {
		desc = base.Base
	}

	m := base
	m.Ticker = symbol
	m.Column = column
	m.Name = fmt.Sprintf("%s (%s)", name, column)
	m.Description = fmt.Sprintf("%s • Series: %s", desc, column)
	if m.FullName == "" {
		m.FullName = symbol
	}

	m.Raw["ticker"] = m.Ticker
	m.Raw["name"] = m.Name
	m.Raw["description"] = m.Description
	if _, ok := m.Raw["full_name"]; !ok {
		m.Raw["full_name"] = m.FullName
	}
	return m
}

func str(raw map[string]any, key string) string {
	if v, ok := raw[key].(string); ok {
		return v
	}
	return ""
}

func copyRaw(raw map[string]any) map[string]any {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		out[k] = v
	}
	return out
}
