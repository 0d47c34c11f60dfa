package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
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

const testRegistry = `{
  "XYZ": {"ticker": "XYZ", "name": "Xyz Corp", "description": "Xyz common", "exchange": "NYSE", "type": "stock",
          "supported_resolutions": ["1", "60", "1D"], "pricescale": 100},
  "IDX": {"ticker": "IDX", "name": "Index", "exchange": "CBOE", "type": "index"}
}`

// writeXYZ writes 120 one-minute bars starting at startMs plus an rsi column.
func writeXYZ(t *testing.T, dir string, startMs int64) {
	t.Helper()
	var b strings.Builder
	b.WriteString("timestamp,open,high,low,close,volume,rsi\n")
	for i := 0; i < 120; i++ {
		p := 100 + float64(i)
		fmt.Fprintf(&b, "%d,%g,%g,%g,%g,1,%d\n", startMs+int64(i)*60_000, p, p+0.5, p-0.5, p+0.25, i)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "XYZ.csv"), []byte(b.String()), 0o644))
}

func newDatafeedServer(t *testing.T) *echo.Echo {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "registry.json"), []byte(testRegistry), 0o644))
	writeXYZ(t, dir, 1700002800000)

	reg := repository.NewFileRegistry(filepath.Join(dir, "registry.json"))
	store := repository.NewFileBarStore(dir, nil)

	h := NewDatafeedEchoHandler(xlogger.Nop(), usecase.NewDatafeedService(reg, store), usecase.NewHistoryService(reg, store, nil))
	e := echo.New()
	h.RegisterRoutes(e)
	return e
}

func get(t *testing.T, e *echo.Echo, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var body map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	return rec, body
}

func TestHistoryEndpoint(t *testing.T) {
	e := newDatafeedServer(t)

	rec, _ := get(t, e, "/history?symbol=XYZ&resolution=60&from=1700002800&to=1700010000")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.HistoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, models.StatusOK, resp.Status)
	assert.Equal(t, []int64{1700002800, 1700006400}, resp.Times)
	assert.Equal(t, []float64{100, 160}, resp.Opens)
	assert.Equal(t, []float64{159.25, 219.25}, resp.Closes)
	assert.Equal(t, []float64{60, 60}, resp.Volumes)
}

func TestHistoryEndpointCountback(t *testing.T) {
	e := newDatafeedServer(t)

	rec, _ := get(t, e, "/history?symbol=XYZ&resolution=1&from=0&to=1700002980&countback=2")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.HistoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []int64{1700002860, 1700002920}, resp.Times)
}

func TestHistoryEndpointNoData(t *testing.T) {
	e := newDatafeedServer(t)

	rec, body := get(t, e, "/history?symbol=XYZ&resolution=1&from=1800000000&to=1800000001")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no_data", body["s"])
	assert.Equal(t, 1800000000.0, body["nextTime"])
	assert.NotContains(t, body, "t")
}

func TestHistoryEndpointErrors(t *testing.T) {
	e := newDatafeedServer(t)

	rec, body := get(t, e, "/history?symbol=NOPE&resolution=1&from=1&to=2")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "error", body["s"])
	assert.Contains(t, body["errmsg"], "NOPE")

	rec, body = get(t, e, "/history?symbol=XYZ&resolution=5&from=1&to=2")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "error", body["s"])

	rec, body = get(t, e, "/history?symbol=IDX&resolution=1&from=1&to=2")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "error", body["s"])

	rec, body = get(t, e, "/history?symbol=XYZ&resolution=1&from=1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "error", body["s"])
	assert.Contains(t, body["errmsg"], "to is required")

	rec, body = get(t, e, "/history?symbol=XYZ&resolution=1&from=yesterday&to=2")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "error", body["s"])
}

func TestHistoryEndpointSeries(t *testing.T) {
	e := newDatafeedServer(t)

	rec, _ := get(t, e, "/history?symbol=XYZ%23SERIES:rsi&resolution=60&from=1700002800&to=1700010000")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.HistoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, models.StatusOK, resp.Status)
	assert.Equal(t, []float64{59, 119}, resp.Closes)
	assert.Equal(t, resp.Closes, resp.Opens)

	rec, body := get(t, e, "/history?symbol=XYZ%23SERIES:macd&resolution=60&from=1700002800&to=1700010000")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no_data", body["s"])
	assert.Equal(t, 1700002800.0, body["nextTime"])
}

func TestConfigEndpoint(t *testing.T) {
	e := newDatafeedServer(t)

	rec, body := get(t, e, "/config")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["supports_search"])
	assert.Equal(t, true, body["supports_time"])
	assert.Equal(t, false, body["supports_group_request"])
	assert.Contains(t, body["supported_resolutions"], "1W")
}

func TestSymbolsEndpoint(t *testing.T) {
	e := newDatafeedServer(t)

	rec, body := get(t, e, "/symbols?symbol=XYZ")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Xyz Corp", body["name"])
	assert.Equal(t, 100.0, body["pricescale"])

	rec, body = get(t, e, "/symbols?symbol=XYZ%23SERIES:rsi")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "XYZ#SERIES:rsi", body["ticker"])
	assert.Equal(t, "Xyz Corp (rsi)", body["name"])
	assert.Equal(t, "Xyz common • Series: rsi", body["description"])

	rec, body = get(t, e, "/symbols?symbol=NOPE")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "error", body["s"])
	assert.Contains(t, body["errmsg"], "NOPE")

	rec, _ = get(t, e, "/symbols")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchEndpoint(t *testing.T) {
	e := newDatafeedServer(t)

	req := httptest.NewRequest(http.MethodGet, "/search?query=x&type=STOCK", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var res []models.SearchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Len(t, res, 1)
	assert.Equal(t, "XYZ", res[0].Symbol)
	assert.Equal(t, "NYSE", res[0].Exchange)

	rec, _ = get(t, e, "/search?limit=-1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTimeEndpoint(t *testing.T) {
	e := newDatafeedServer(t)

	req := httptest.NewRequest(http.MethodGet, "/time?symbol=XYZ", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1700009940", strings.TrimSpace(rec.Body.String()))

	// IDX has no dataset and is skipped when scanning all symbols.
	req = httptest.NewRequest(http.MethodGet, "/time", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1700009940", strings.TrimSpace(rec.Body.String()))

	rec, body := get(t, e, "/time?symbol=IDX")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "error", body["s"])
}
