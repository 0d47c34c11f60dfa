package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chartfeed/internal/domain/models"
	"chartfeed/internal/repository"
	"chartfeed/internal/usecase"
	xlogger "chartfeed/pkg/logger"
)

func newShapesServer(t *testing.T) *echo.Echo {
	t.Helper()
	store, err := repository.NewSQLiteShapeStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	svc := usecase.NewShapeService(store, repository.NopShapeEvents{}, nil)
	e := echo.New()
	NewShapesEchoHandler(xlogger.Nop(), svc).RegisterRoutes(e)
	return e
}

func do(t *testing.T, e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

const trendLineJSON = `{"symbol":"XYZ","shape_type":"trend_line",
  "points":[{"time":1700002800.7,"price":"101.5"},{"time":1700006400,"price":99}],
  "options":{"color":"#f00"}}`

func TestShapesCreateIsIdempotent(t *testing.T) {
	e := newShapesServer(t)

	rec := do(t, e, http.MethodPost, "/shapes", trendLineJSON)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var first models.Shape
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	assert.NotZero(t, first.ID)
	assert.Equal(t, 1700002800.0, first.Points[0]["time"])
	assert.Equal(t, 101.5, first.Points[0]["price"])

	rec = do(t, e, http.MethodPost, "/shapes", trendLineJSON)
	require.Equal(t, http.StatusOK, rec.Code)
	var second models.Shape
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	assert.Equal(t, first.ID, second.ID)

	rec = do(t, e, http.MethodGet, "/shapes?symbol=XYZ", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list models.ShapeList
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list.Items, 1)
}

func TestShapesCreateValidation(t *testing.T) {
	e := newShapesServer(t)

	rec := do(t, e, http.MethodPost, "/shapes", `{"symbol":"XYZ","points":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "shape_type is required")

	rec = do(t, e, http.MethodPost, "/shapes", `{"symbol":"XYZ","shape_type":"line","points":[{"price":"cheap"}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid shape")
}

func TestShapesUpdateAndDelete(t *testing.T) {
	e := newShapesServer(t)

	rec := do(t, e, http.MethodPost, "/shapes", trendLineJSON)
	require.Equal(t, http.StatusOK, rec.Code)
	var created models.Shape
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id := jsonID(created.ID)

	rec = do(t, e, http.MethodPut, "/shapes/"+id, `{"options":{"color":"#0f0"}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated models.Shape
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "#0f0", updated.Options["color"])
	assert.Equal(t, "trend_line", updated.ShapeType)
	assert.Len(t, updated.Points, 2)

	// The original content is free again, so posting it creates a new shape.
	rec = do(t, e, http.MethodPost, "/shapes", trendLineJSON)
	require.Equal(t, http.StatusOK, rec.Code)
	var recreated models.Shape
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &recreated))
	assert.NotEqual(t, created.ID, recreated.ID)

	rec = do(t, e, http.MethodDelete, "/shapes/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())

	rec = do(t, e, http.MethodDelete, "/shapes/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"s":"error"`)

	rec = do(t, e, http.MethodPut, "/shapes/"+id, `{"shape_type":"ray"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, e, http.MethodDelete, "/shapes/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestShapesListOrder(t *testing.T) {
	e := newShapesServer(t)

	for _, kind := range []string{"a", "b", "c"} {
		rec := do(t, e, http.MethodPost, "/shapes", `{"symbol":"XYZ","shape_type":"`+kind+`","points":[]}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	rec := do(t, e, http.MethodPost, "/shapes", `{"symbol":"ABC","shape_type":"a","points":[]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, e, http.MethodGet, "/shapes?symbol=XYZ", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list models.ShapeList
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Items, 3)
	assert.Equal(t, "a", list.Items[0].ShapeType)
	assert.Equal(t, "c", list.Items[2].ShapeType)

	rec = do(t, e, http.MethodGet, "/shapes", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list.Items, 4)
}

func jsonID(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
