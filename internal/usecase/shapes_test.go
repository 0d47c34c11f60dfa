package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chartfeed/internal/domain/models"
	domrepo "chartfeed/internal/domain/repository"
)

func newShapes() (*ShapeService, *fakeShapeStore, *fakeEvents, *fakeMetrics) {
	store := newFakeShapeStore()
	events := &fakeEvents{}
	m := newFakeMetrics()
	svc := NewShapeService(store, events, m)
	svc.now = func() time.Time { return time.Date(2024, 3, 4, 10, 0, 0, 123456789, time.UTC) }
	return svc, store, events, m
}

func trendLine() models.ShapeCreateRequest {
	return models.ShapeCreateRequest{
		Symbol:    "AAPL",
		ShapeType: "trend_line",
		Points: []map[string]any{
			{"time": 1700000000.0, "price": "101.5"},
			{"time": "1700003600", "price": 99, "channel": 2},
		},
		Options: map[string]any{"color": "#f00", "width": 2},
	}
}

func TestNormalizePoints(t *testing.T) {
	pts, err := NormalizePoints(trendLine().Points)
	require.NoError(t, err)

	assert.Equal(t, int64(1700000000), pts[0]["time"])
	assert.Equal(t, 101.5, pts[0]["price"])
	assert.Equal(t, int64(1700003600), pts[1]["time"])
	assert.Equal(t, 99.0, pts[1]["price"])
	assert.Equal(t, "2", pts[1]["channel"])

	_, err = NormalizePoints([]map[string]any{{"price": "cheap"}})
	assert.Error(t, err)
}

func TestShapeSignatureIgnoresKeyOrderAndNumberType(t *testing.T) {
	a, err := ShapeSignature("AAPL", "line",
		[]map[string]any{{"time": int64(1), "price": 2.0}},
		map[string]any{"a": 1, "b": "x"})
	require.NoError(t, err)
	b, err := ShapeSignature("AAPL", "line",
		[]map[string]any{{"price": 2, "time": 1.0}},
		map[string]any{"b": "x", "a": 1.0})
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 40)

	c, err := ShapeSignature("MSFT", "line",
		[]map[string]any{{"time": int64(1), "price": 2.0}},
		map[string]any{"a": 1, "b": "x"})
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestShapeCreateIsIdempotent(t *testing.T) {
	svc, store, events, m := newShapes()
	ctx := context.Background()

	first, err := svc.Create(ctx, trendLine())
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, time.Date(2024, 3, 4, 10, 0, 0, 123456000, time.UTC), first.CreatedAt)

	second, err := svc.Create(ctx, trendLine())
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, store.shapes, 1)

	require.Len(t, events.events, 1)
	assert.Equal(t, "created", events.events[0].Event)
	assert.Equal(t, 1, m.shapes["created"])
}

func TestShapeCreateDefaultsOptions(t *testing.T) {
	svc, _, _, _ := newShapes()
	req := trendLine()
	req.Options = nil

	sh, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{}, sh.Options)
}

func TestShapeCreateInvalid(t *testing.T) {
	svc, store, _, _ := newShapes()
	req := trendLine()
	req.Points = []map[string]any{{"time": "yesterday"}}

	_, err := svc.Create(context.Background(), req)
	var invalid *InvalidShapeError
	assert.True(t, errors.As(err, &invalid))
	assert.Empty(t, store.shapes)
}

func TestShapeUpdateRecomputesSignature(t *testing.T) {
	svc, _, events, _ := newShapes()
	ctx := context.Background()

	created, err := svc.Create(ctx, trendLine())
	require.NoError(t, err)
	oldSig := created.Sig

	kind := "ray"
	updated, err := svc.Update(ctx, models.ShapeUpdateRequest{ID: created.ID, ShapeType: &kind})
	require.NoError(t, err)
	assert.Equal(t, "ray", updated.ShapeType)
	assert.Equal(t, "AAPL", updated.Symbol)
	assert.Equal(t, created.Points, updated.Points)
	assert.NotEqual(t, oldSig, updated.Sig)

	want, err := ShapeSignature(updated.Symbol, updated.ShapeType, updated.Points, updated.Options)
	require.NoError(t, err)
	assert.Equal(t, want, updated.Sig)

	require.Len(t, events.events, 2)
	assert.Equal(t, "updated", events.events[1].Event)
}

func TestShapeUpdateMissing(t *testing.T) {
	svc, _, _, _ := newShapes()
	_, err := svc.Update(context.Background(), models.ShapeUpdateRequest{ID: 42})
	assert.ErrorIs(t, err, domrepo.ErrShapeNotFound)
}

func TestShapeDelete(t *testing.T) {
	svc, store, events, _ := newShapes()
	ctx := context.Background()

	created, err := svc.Create(ctx, trendLine())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, created.ID))
	assert.Empty(t, store.shapes)
	assert.Equal(t, "deleted", events.events[len(events.events)-1].Event)

	assert.ErrorIs(t, svc.Delete(ctx, created.ID), domrepo.ErrShapeNotFound)
}

func TestShapeList(t *testing.T) {
	svc, _, _, _ := newShapes()
	ctx := context.Background()

	empty, err := svc.List(ctx, "AAPL")
	require.NoError(t, err)
	assert.NotNil(t, empty.Items)
	assert.Empty(t, empty.Items)

	_, err = svc.Create(ctx, trendLine())
	require.NoError(t, err)
	other := trendLine()
	other.Symbol = "MSFT"
	_, err = svc.Create(ctx, other)
	require.NoError(t, err)

	list, err := svc.List(ctx, "AAPL")
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "AAPL", list.Items[0].Symbol)

	all, err := svc.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all.Items, 2)
}

func TestShapeEventFailureDoesNotFailRequest(t *testing.T) {
	svc, store, events, _ := newShapes()
	events.err = errors.New("broker down")

	_, err := svc.Create(context.Background(), trendLine())
	require.NoError(t, err)
	assert.Len(t, store.shapes, 1)
}
