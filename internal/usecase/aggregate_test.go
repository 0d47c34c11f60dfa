package usecase

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chartfeed/internal/domain/models"
	domrepo "chartfeed/internal/domain/repository"
)

func mustRes(t *testing.T, token string) domrepo.Resolution {
	t.Helper()
	r, err := domrepo.ParseResolution(token)
	require.NoError(t, err)
	return r
}

func ms(s string) int64 {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t.UnixMilli()
}

func fourMinuteBars() []models.Bar {
	return []models.Bar{
		{Timestamp: 0, Open: 1, High: 5, Low: 0.5, Close: 1.5, Volume: 10},
		{Timestamp: 60000, Open: 2, High: 6, Low: 1, Close: 2.5, Volume: 20},
		{Timestamp: 120000, Open: 3, High: 7, Low: 2, Close: 3.5, Volume: 30},
		{Timestamp: 180000, Open: 4, High: 8, Low: 3, Close: 4.5, Volume: 40},
	}
}

func TestAggregateFiveMinutes(t *testing.T) {
	got := Aggregate(fourMinuteBars(), mustRes(t, "5"))
	assert.Equal(t, []models.Bar{{Timestamp: 0, Open: 1, High: 8, Low: 0.5, Close: 4.5, Volume: 100}}, got)
}

func TestAggregateOmitsEmptyBuckets(t *testing.T) {
	bars := []models.Bar{
		{Timestamp: 0, Open: 1, High: 1, Low: 1, Close: 1, Volume: 1},
		{Timestamp: 600000, Open: 2, High: 2, Low: 2, Close: 2, Volume: 2},
	}
	got := Aggregate(bars, mustRes(t, "1"))
	require.Len(t, got, 2)
	assert.Equal(t, int64(0), got[0].Timestamp)
	assert.Equal(t, int64(600000), got[1].Timestamp)
}

func TestAggregateIsIdempotent(t *testing.T) {
	bars := fourMinuteBars()
	for _, token := range []string{"1", "2", "5", "1D", "1W", "1M"} {
		res := mustRes(t, token)
		a, err := json.Marshal(Aggregate(bars, res))
		require.NoError(t, err)
		b, err := json.Marshal(Aggregate(bars, res))
		require.NoError(t, err)
		assert.Equal(t, a, b, token)
	}
}

func TestAggregateEmpty(t *testing.T) {
	assert.Empty(t, Aggregate(nil, mustRes(t, "1D")))
}

func TestAggregateNegativeTimestampsFloor(t *testing.T) {
	bars := []models.Bar{
		{Timestamp: -30000, Open: 1, High: 1, Low: 1, Close: 1},
		{Timestamp: 30000, Open: 2, High: 2, Low: 2, Close: 2},
	}
	got := Aggregate(bars, mustRes(t, "1"))
	require.Len(t, got, 2)
	assert.Equal(t, int64(-60000), got[0].Timestamp)
	assert.Equal(t, int64(0), got[1].Timestamp)
}

func TestAggregateDuplicateTimestamps(t *testing.T) {
	bars := []models.Bar{
		{Timestamp: 60000, Open: 1, High: 2, Low: 1, Close: 2, Volume: 1},
		{Timestamp: 60000, Open: 3, High: 4, Low: 0, Close: 3, Volume: 1},
	}
	got := Aggregate(bars, mustRes(t, "1"))
	assert.Equal(t, []models.Bar{{Timestamp: 60000, Open: 1, High: 4, Low: 0, Close: 3, Volume: 2}}, got)
}

func TestAggregateOutOfOrderInput(t *testing.T) {
	bars := fourMinuteBars()
	shuffled := []models.Bar{bars[2], bars[0], bars[3], bars[1]}
	assert.Equal(t, Aggregate(bars, mustRes(t, "5")), Aggregate(shuffled, mustRes(t, "5")))
	assert.Equal(t, int64(120000), shuffled[0].Timestamp, "input must not be reordered")
}

func TestAggregateDaily(t *testing.T) {
	bars := []models.Bar{
		{Timestamp: ms("2024-03-04T09:30:00Z"), Open: 10, High: 11, Low: 9, Close: 10.5, Volume: 1},
		{Timestamp: ms("2024-03-04T23:59:00Z"), Open: 10.5, High: 12, Low: 10, Close: 11, Volume: 1},
		{Timestamp: ms("2024-03-05T00:00:00Z"), Open: 11, High: 11, Low: 8, Close: 9, Volume: 1},
	}
	got := Aggregate(bars, mustRes(t, "1D"))
	assert.Equal(t, []models.Bar{
		{Timestamp: ms("2024-03-04T00:00:00Z"), Open: 10, High: 12, Low: 9, Close: 11, Volume: 2},
		{Timestamp: ms("2024-03-05T00:00:00Z"), Open: 11, High: 11, Low: 8, Close: 9, Volume: 1},
	}, got)
}

func TestAggregateWeeksStartMonday(t *testing.T) {
	bars := []models.Bar{
		// Sunday closes the week that began Monday 2024-03-04.
		{Timestamp: ms("2024-03-10T12:00:00Z"), Open: 1, High: 1, Low: 1, Close: 1, Volume: 1},
		{Timestamp: ms("2024-03-11T00:00:00Z"), Open: 2, High: 2, Low: 2, Close: 2, Volume: 1},
		{Timestamp: ms("2024-03-15T00:00:00Z"), Open: 3, High: 3, Low: 3, Close: 3, Volume: 1},
	}
	got := Aggregate(bars, mustRes(t, "1W"))
	require.Len(t, got, 2)
	assert.Equal(t, ms("2024-03-04T00:00:00Z"), got[0].Timestamp)
	assert.Equal(t, ms("2024-03-11T00:00:00Z"), got[1].Timestamp)
	assert.Equal(t, 3.0, got[1].Close)
	assert.Equal(t, 2.0, got[1].Volume)
}

func TestAggregateMonths(t *testing.T) {
	bars := []models.Bar{
		{Timestamp: ms("2024-01-31T23:00:00Z"), Open: 1, High: 1, Low: 1, Close: 1, Volume: 1},
		{Timestamp: ms("2024-02-01T00:00:00Z"), Open: 2, High: 2, Low: 2, Close: 2, Volume: 1},
		{Timestamp: ms("2024-02-29T12:00:00Z"), Open: 3, High: 5, Low: 2, Close: 4, Volume: 1},
	}
	got := Aggregate(bars, mustRes(t, "1M"))
	assert.Equal(t, []models.Bar{
		{Timestamp: ms("2024-01-01T00:00:00Z"), Open: 1, High: 1, Low: 1, Close: 1, Volume: 1},
		{Timestamp: ms("2024-02-01T00:00:00Z"), Open: 2, High: 5, Low: 2, Close: 4, Volume: 2},
	}, got)
}

func TestAggregateMultiDayChunksNonEmptyDays(t *testing.T) {
	// Friday, Monday, Tuesday: the weekend gap does not open a chunk.
	bars := []models.Bar{
		{Timestamp: ms("2024-03-08T10:00:00Z"), Open: 1, High: 2, Low: 1, Close: 2, Volume: 1},
		{Timestamp: ms("2024-03-11T10:00:00Z"), Open: 2, High: 3, Low: 2, Close: 3, Volume: 1},
		{Timestamp: ms("2024-03-12T10:00:00Z"), Open: 3, High: 4, Low: 3, Close: 4, Volume: 1},
	}
	got := Aggregate(bars, mustRes(t, "2D"))
	assert.Equal(t, []models.Bar{
		{Timestamp: ms("2024-03-08T00:00:00Z"), Open: 1, High: 3, Low: 1, Close: 3, Volume: 2},
		{Timestamp: ms("2024-03-12T00:00:00Z"), Open: 3, High: 4, Low: 3, Close: 4, Volume: 1},
	}, got)
}

func TestAggregateSeriesLastValue(t *testing.T) {
	points := []models.SeriesPoint{
		{Timestamp: 0, Value: 1},
		{Timestamp: 60000, Value: 2},
		{Timestamp: 300000, Value: 3},
		{Timestamp: 359999, Value: 4},
	}
	got := AggregateSeries(points, mustRes(t, "5"))
	assert.Equal(t, []models.SeriesPoint{{Timestamp: 0, Value: 2}, {Timestamp: 300000, Value: 4}}, got)
}
