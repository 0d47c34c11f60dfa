package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"chartfeed/internal/domain/models"
	domrepo "chartfeed/internal/domain/repository"
	applogger "chartfeed/pkg/logger"
)

const shapeSchema = `
CREATE TABLE IF NOT EXISTS shapes (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	symbol     TEXT    NOT NULL,
	shape_type TEXT    NOT NULL,
	points     TEXT    NOT NULL,
	options    TEXT    NOT NULL,
	sig        TEXT    NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_shapes_symbol_sig ON shapes (symbol, sig);
CREATE INDEX IF NOT EXISTS idx_shapes_created ON shapes (created_at, id);`

const shapeColumns = `id, symbol, shape_type, points, options, sig, created_at`

// SQLiteShapeStore persists shapes in a single SQLite file in WAL mode.
type SQLiteShapeStore struct {
	db *sql.DB
	l  *applogger.Logger
}

// NewSQLiteShapeStore opens (or creates) the database and its schema.
// Use ":memory:" for a throwaway store.
func NewSQLiteShapeStore(path string) (*SQLiteShapeStore, error) {
	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	if path == ":memory:" {
		dsn = path
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	// Single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(shapeSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return &SQLiteShapeStore{db: db}, nil
}

// SetLogger injects a structured logger.
func (s *SQLiteShapeStore) SetLogger(l *applogger.Logger) { s.l = l }

// DB returns the underlying sql.DB for health checks.
func (s *SQLiteShapeStore) DB() *sql.DB { return s.db }

func (s *SQLiteShapeStore) Create(ctx context.Context, shape *models.Shape) error {
	pts, opts, err := encodeShape(shape)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO shapes (symbol, shape_type, points, options, sig, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		shape.Symbol, shape.ShapeType, pts, opts, shape.Sig, shape.CreatedAt.UnixMicro())
	if err != nil {
		return fmt.Errorf("insert shape: %w", err)
	}
	shape.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert shape id: %w", err)
	}
	return nil
}

func (s *SQLiteShapeStore) Get(ctx context.Context, id int64) (*models.Shape, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+shapeColumns+` FROM shapes WHERE id = ?`, id)
	shape, err := scanShape(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", domrepo.ErrShapeNotFound, id)
	}
	return shape, err
}

func (s *SQLiteShapeStore) FindBySig(ctx context.Context, symbol, sig string) (*models.Shape, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+shapeColumns+` FROM shapes WHERE symbol = ? AND sig = ? ORDER BY id LIMIT 1`, symbol, sig)
	shape, err := scanShape(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domrepo.ErrShapeNotFound
	}
	return shape, err
}

func (s *SQLiteShapeStore) Update(ctx context.Context, shape *models.Shape) error {
	pts, opts, err := encodeShape(shape)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE shapes SET symbol = ?, shape_type = ?, points = ?, options = ?, sig = ? WHERE id = ?`,
		shape.Symbol, shape.ShapeType, pts, opts, shape.Sig, shape.ID)
	if err != nil {
		return fmt.Errorf("update shape: %w", err)
	}
	return affectedOne(res, shape.ID)
}

func (s *SQLiteShapeStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM shapes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete shape: %w", err)
	}
	return affectedOne(res, id)
}

// List returns shapes ordered by creation; an empty symbol lists all.
func (s *SQLiteShapeStore) List(ctx context.Context, symbol string) ([]models.Shape, error) {
	q := `SELECT ` + shapeColumns + ` FROM shapes`
	var args []any
	if symbol != "" {
		q += ` WHERE symbol = ?`
		args = append(args, symbol)
	}
	q += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list shapes: %w", err)
	}
	defer rows.Close()

	var out []models.Shape
	for rows.Next() {
		shape, err := scanShape(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *shape)
	}
	return out, rows.Err()
}

func (s *SQLiteShapeStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanShape(r rowScanner) (*models.Shape, error) {
	var (
		shape     models.Shape
		pts, opts string
		created   int64
	)
	if err := r.Scan(&shape.ID, &shape.Symbol, &shape.ShapeType, &pts, &opts, &shape.Sig, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan shape: %w", err)
	}
	if err := json.Unmarshal([]byte(pts), &shape.Points); err != nil {
		return nil, fmt.Errorf("decode points of shape %d: %w", shape.ID, err)
	}
	if err := json.Unmarshal([]byte(opts), &shape.Options); err != nil {
		return nil, fmt.Errorf("decode options of shape %d: %w", shape.ID, err)
	}
	if shape.Options == nil {
		shape.Options = map[string]any{}
	}
	shape.CreatedAt = time.UnixMicro(created).UTC()
	return &shape, nil
}

func encodeShape(shape *models.Shape) (string, string, error) {
	pts, err := json.Marshal(shape.Points)
	if err != nil {
		return "", "", fmt.Errorf("encode points: %w", err)
	}
	opts := shape.Options
	if opts == nil {
		opts = map[string]any{}
	}
	o, err := json.Marshal(opts)
	if err != nil {
		return "", "", fmt.Errorf("encode options: %w", err)
	}
	return string(pts), string(o), nil
}

func affectedOne(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: id %d", domrepo.ErrShapeNotFound, id)
	}
	return nil
}
