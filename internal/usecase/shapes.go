package usecase

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"chartfeed/internal/domain/models"
	domrepo "chartfeed/internal/domain/repository"
	applogger "chartfeed/pkg/logger"
)

// ShapeService manages chart annotations and announces changes.
type ShapeService struct {
	store   domrepo.ShapeStore
	events  domrepo.ShapeEvents
	metrics domrepo.Metrics
	l       *applogger.Logger
	now     func() time.Time
}

func NewShapeService(store domrepo.ShapeStore, events domrepo.ShapeEvents, metrics domrepo.Metrics) *ShapeService {
	return &ShapeService{store: store, events: events, metrics: metrics, now: time.Now}
}

// SetLogger injects a structured logger.
func (s *ShapeService) SetLogger(l *applogger.Logger) { s.l = l }

// InvalidShapeError reports a shape payload that cannot be normalised.
type InvalidShapeError struct {
	Err error
}

func (e *InvalidShapeError) Error() string { return "invalid shape: " + e.Err.Error() }

func (e *InvalidShapeError) Unwrap() error { return e.Err }

// Create stores a shape. A shape with the same symbol and content signature
// is returned as is instead of being inserted twice.
func (s *ShapeService) Create(ctx context.Context, req models.ShapeCreateRequest) (*models.Shape, error) {
	pts, err := NormalizePoints(req.Points)
	if err != nil {
		return nil, &InvalidShapeError{Err: err}
	}
	opts := req.Options
	if opts == nil {
		opts = map[string]any{}
	}
	sig, err := ShapeSignature(req.Symbol, req.ShapeType, pts, opts)
	if err != nil {
		return nil, &InvalidShapeError{Err: err}
	}

	existing, err := s.store.FindBySig(ctx, req.Symbol, sig)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domrepo.ErrShapeNotFound) {
		return nil, fmt.Errorf("find shape: %w", err)
	}

	shape := &models.Shape{
		Symbol:    req.Symbol,
		ShapeType: req.ShapeType,
		Points:    pts,
		Options:   opts,
		Sig:       sig,
		CreatedAt: s.now().UTC().Truncate(time.Microsecond),
	}
	if err := s.store.Create(ctx, shape); err != nil {
		return nil, fmt.Errorf("create shape: %w", err)
	}
	s.record(ctx, "created", shape)
	return shape, nil
}

// Update patches the provided fields and recomputes the signature.
func (s *ShapeService) Update(ctx context.Context, req models.ShapeUpdateRequest) (*models.Shape, error) {
	shape, err := s.store.Get(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	if req.Symbol != nil {
		shape.Symbol = *req.Symbol
	}
	if req.ShapeType != nil {
		shape.ShapeType = *req.ShapeType
	}
	if req.Points != nil {
		pts, err := NormalizePoints(req.Points)
		if err != nil {
			return nil, &InvalidShapeError{Err: err}
		}
		shape.Points = pts
	}
	if req.Options != nil {
		shape.Options = req.Options
	}
	if shape.Options == nil {
		shape.Options = map[string]any{}
	}

	shape.Sig, err = ShapeSignature(shape.Symbol, shape.ShapeType, shape.Points, shape.Options)
	if err != nil {
		return nil, &InvalidShapeError{Err: err}
	}
	if err := s.store.Update(ctx, shape); err != nil {
		return nil, fmt.Errorf("update shape: %w", err)
	}
	s.record(ctx, "updated", shape)
	return shape, nil
}

// Delete removes a shape.
func (s *ShapeService) Delete(ctx context.Context, id int64) error {
	shape, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete shape: %w", err)
	}
	s.record(ctx, "deleted", shape)
	return nil
}

// List returns shapes ordered by creation time, optionally for one symbol.
func (s *ShapeService) List(ctx context.Context, symbol string) (*models.ShapeList, error) {
	items, err := s.store.List(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("list shapes: %w", err)
	}
	if items == nil {
		items = []models.Shape{}
	}
	return &models.ShapeList{Items: items}, nil
}

func (s *ShapeService) record(ctx context.Context, event string, shape *models.Shape) {
	if s.metrics != nil {
		s.metrics.RecordShapeOp(event)
	}
	if s.events == nil {
		return
	}
	// Event delivery failures never fail the request.
	if err := s.events.Publish(ctx, models.ShapeEvent{Event: event, Shape: *shape, At: s.now().UTC()}); err != nil && s.l != nil {
		s.l.Warn("shape event publish failed",
			applogger.String("event", event),
			applogger.Int64("id", shape.ID),
			applogger.Error(err),
		)
	}
}

// NormalizePoints coerces point fields to stable types: time and id to
// integers, price to float, channel to string.
func NormalizePoints(points []map[string]any) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(points))
	for i, p := range points {
		q := make(map[string]any, len(p))
		for k, v := range p {
			q[k] = v
		}
		if v, ok := q["time"]; ok {
			n, err := toInt(v)
			if err != nil {
				return nil, fmt.Errorf("point %d time: %w", i, err)
			}
			q["time"] = n
		}
		if v, ok := q["id"]; ok {
			n, err := toInt(v)
			if err != nil {
				return nil, fmt.Errorf("point %d id: %w", i, err)
			}
			q["id"] = n
		}
		if v, ok := q["price"]; ok {
			f, err := toFloat(v)
			if err != nil {
				return nil, fmt.Errorf("point %d price: %w", i, err)
			}
			q["price"] = f
		}
		if v, ok := q["channel"]; ok && v != nil {
			q["channel"] = fmt.Sprint(v)
		}
		out = append(out, q)
	}
	return out, nil
}

// ShapeSignature hashes symbol, type and the canonical JSON of points and options.
func ShapeSignature(symbol, shapeType string, points []map[string]any, options map[string]any) (string, error) {
	pts, err := canonical(points)
	if err != nil {
		return "", err
	}
	opts, err := canonical(options)
	if err != nil {
		return "", err
	}
	sum := sha1.Sum([]byte(symbol + "|" + shapeType + "|" + pts + "|" + opts))
	return hex.EncodeToString(sum[:]), nil
}

// canonical renders v as compact JSON with sorted object keys.
// encoding/json already sorts map keys; a round trip through any makes
// numbers compare by value regardless of their Go type.
func canonical(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("canonical json: %w", err)
	}
	var generic any
	if err := json.Unmarshal(b, &generic); err != nil {
		return "", fmt.Errorf("canonical json: %w", err)
	}
	b, err = json.Marshal(generic)
	if err != nil {
		return "", fmt.Errorf("canonical json: %w", err)
	}
	return string(b), nil
}

func toInt(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case float64:
		return int64(math.Trunc(x)), nil
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n, nil
		}
		f, err := x.Float64()
		return int64(math.Trunc(f)), err
	case string:
		if n, err := strconv.ParseInt(x, 10, 64); err == nil {
			return n, nil
		}
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", x)
		}
		return int64(math.Trunc(f)), nil
	default:
		return 0, fmt.Errorf("not a number: %v", v)
	}
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int64:
		return float64(x), nil
	case int:
		return float64(x), nil
	case json.Number:
		return x.Float64()
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", x)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("not a number: %v", v)
	}
}
