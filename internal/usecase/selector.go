package usecase

import (
	"sort"

	"chartfeed/internal/domain/models"
)

// window returns the [lo, hi) index range of ascending timestamps ts selected by
// either countback (the trailing n strictly before to) or the half-open [from, to).
func window(n int, ts func(i int) int64, fromMs, toMs int64, countback *int) (int, int) {
	hi := sort.Search(n, func(i int) bool { return ts(i) >= toMs })
	if countback != nil {
		lo := max(hi-*countback, 0)
		return lo, hi
	}
	lo := sort.Search(n, func(i int) bool { return ts(i) >= fromMs })
	if lo > hi {
		lo = hi
	}
	return lo, hi
}

// Select slices aggregated bars for the requested window and packages them.
// from and to are Unix seconds; countback, when set, ignores from.
// An empty selection yields no_data with nextTime = from.
func Select(bars []models.Bar, from, to int64, countback *int) models.HistoryResponse {
	if !sort.SliceIsSorted(bars, func(i, j int) bool { return bars[i].Timestamp < bars[j].Timestamp }) {
		cp := make([]models.Bar, len(bars))
		copy(cp, bars)
		sort.SliceStable(cp, func(i, j int) bool { return cp[i].Timestamp < cp[j].Timestamp })
		bars = cp
	}

	lo, hi := window(len(bars), func(i int) int64 { return bars[i].Timestamp }, from*1000, to*1000, countback)
	if lo >= hi {
		return models.NoDataResponse(from)
	}

	sel := bars[lo:hi]
	resp := models.HistoryResponse{
		Status:  models.StatusOK,
		Times:   make([]int64, len(sel)),
		Opens:   make([]float64, len(sel)),
		Highs:   make([]float64, len(sel)),
		Lows:    make([]float64, len(sel)),
		Closes:  make([]float64, len(sel)),
		Volumes: make([]float64, len(sel)),
	}
	for i, b := range sel {
		resp.Times[i] = b.Timestamp / 1000
		resp.Opens[i] = b.Open
		resp.Highs[i] = b.High
		resp.Lows[i] = b.Low
		resp.Closes[i] = b.Close
		resp.Volumes[i] = b.Volume
	}
	return resp
}

// SelectSeries is Select for a single-value series: every price array carries
// the value and volumes are zero.
func SelectSeries(points []models.SeriesPoint, from, to int64, countback *int) models.HistoryResponse {
	lo, hi := window(len(points), func(i int) int64 { return points[i].Timestamp }, from*1000, to*1000, countback)
	if lo >= hi {
		return models.NoDataResponse(from)
	}

	sel := points[lo:hi]
	times := make([]int64, len(sel))
	vals := make([]float64, len(sel))
	for i, p := range sel {
		times[i] = p.Timestamp / 1000
		vals[i] = p.Value
	}
	return models.HistoryResponse{
		Status:  models.StatusOK,
		Times:   times,
		Opens:   vals,
		Highs:   vals,
		Lows:    vals,
		Closes:  vals,
		Volumes: make([]float64, len(sel)),
	}
}
