package usecase

import (
	"sort"

	"chartfeed/internal/domain/models"
	domrepo "chartfeed/internal/domain/repository"
	"chartfeed/pkg/util"
)

// bucketing maps a timestamp to its bucket key and a key back to the bucket start (ms).
// Keys are monotonic in the timestamp, so an ascending series yields ascending keys.
type bucketing struct {
	key   func(ms int64) int64
	start func(key int64) int64
}

func bucketingFor(res domrepo.Resolution) bucketing {
	switch res.Unit {
	case domrepo.UnitDay:
		return bucketing{key: util.DayIndex, start: util.DayStartMillis}
	case domrepo.UnitWeek:
		return bucketing{key: util.WeekIndex, start: util.WeekStartMillis}
	case domrepo.UnitMonth:
		return bucketing{key: util.MonthIndex, start: util.MonthStartMillis}
	default:
		w := res.WidthMillis()
		return bucketing{
			key:   func(ms int64) int64 { return util.FloorDiv(ms, w) },
			start: func(key int64) int64 { return key * w },
		}
	}
}

type keyedBar struct {
	key int64
	bar models.Bar
}

// Aggregate groups raw bars into resolution buckets and reduces each bucket:
// first open, max high, min low, last close, summed volume, timestamp = bucket start.
// Empty buckets are not emitted. For calendar units with a multiplier above one,
// consecutive non-empty calendar buckets are merged in chunks of Multiplier.
func Aggregate(bars []models.Bar, res domrepo.Resolution) []models.Bar {
	if len(bars) == 0 {
		return []models.Bar{}
	}
	b := bucketingFor(res)
	buckets := reduceBuckets(chronological(bars), b.key)

	n := res.Multiplier
	if res.IsIntraday() || n <= 1 {
		out := make([]models.Bar, len(buckets))
		for i, kb := range buckets {
			out[i] = kb.bar
			out[i].Timestamp = b.start(kb.key)
		}
		return out
	}

	out := make([]models.Bar, 0, (len(buckets)+n-1)/n)
	for i := 0; i < len(buckets); i += n {
		end := min(i+n, len(buckets))
		agg := buckets[i].bar
		for _, kb := range buckets[i+1 : end] {
			agg = mergeBar(agg, kb.bar)
		}
		agg.Timestamp = b.start(buckets[i].key)
		out = append(out, agg)
	}
	return out
}

func reduceBuckets(bars []models.Bar, key func(int64) int64) []keyedBar {
	out := make([]keyedBar, 0, 64)
	for _, bar := range bars {
		k := key(bar.Timestamp)
		if last := len(out) - 1; last >= 0 && out[last].key == k {
			out[last].bar = mergeBar(out[last].bar, bar)
			continue
		}
		out = append(out, keyedBar{key: k, bar: bar})
	}
	return out
}

// mergeBar folds next (chronologically later) into acc.
func mergeBar(acc, next models.Bar) models.Bar {
	if next.High > acc.High {
		acc.High = next.High
	}
	if next.Low < acc.Low {
		acc.Low = next.Low
	}
	acc.Close = next.Close
	acc.Volume += next.Volume
	return acc
}

// chronological returns bars in ascending timestamp order, copying only when
// the input is out of order. Equal timestamps keep their input order.
func chronological(bars []models.Bar) []models.Bar {
	if sort.SliceIsSorted(bars, func(i, j int) bool { return bars[i].Timestamp < bars[j].Timestamp }) {
		return bars
	}
	cp := make([]models.Bar, len(bars))
	copy(cp, bars)
	sort.SliceStable(cp, func(i, j int) bool { return cp[i].Timestamp < cp[j].Timestamp })
	return cp
}

// AggregateSeries reduces a single-value series to the last value per bucket.
func AggregateSeries(points []models.SeriesPoint, res domrepo.Resolution) []models.SeriesPoint {
	if len(points) == 0 {
		return []models.SeriesPoint{}
	}
	if !sort.SliceIsSorted(points, func(i, j int) bool { return points[i].Timestamp < points[j].Timestamp }) {
		cp := make([]models.SeriesPoint, len(points))
		copy(cp, points)
		sort.SliceStable(cp, func(i, j int) bool { return cp[i].Timestamp < cp[j].Timestamp })
		points = cp
	}

	b := bucketingFor(res)
	keys := make([]int64, 0, 64)
	vals := make([]float64, 0, 64)
	for _, p := range points {
		k := b.key(p.Timestamp)
		if last := len(keys) - 1; last >= 0 && keys[last] == k {
			vals[last] = p.Value
			continue
		}
		keys = append(keys, k)
		vals = append(vals, p.Value)
	}

	n := res.Multiplier
	if res.IsIntraday() || n <= 1 {
		n = 1
	}
	out := make([]models.SeriesPoint, 0, (len(keys)+n-1)/n)
	for i := 0; i < len(keys); i += n {
		end := min(i+n, len(keys))
		out = append(out, models.SeriesPoint{Timestamp: b.start(keys[i]), Value: vals[end-1]})
	}
	return out
}
