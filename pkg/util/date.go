package util

import "time"

// MillisPerDay is the length of a UTC calendar day in milliseconds.
const MillisPerDay int64 = 86_400_000

// FloorDiv divides rounding toward negative infinity.
func FloorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// DayIndex returns the UTC day number (days since 1970-01-01) containing ms.
func DayIndex(ms int64) int64 { return FloorDiv(ms, MillisPerDay) }

// DayStartMillis returns UTC midnight of day number idx.
func DayStartMillis(idx int64) int64 { return idx * MillisPerDay }

// WeekIndex returns the Monday-anchored UTC week number containing ms.
// 1970-01-01 is a Thursday, so week 0 starts on Monday 1969-12-29 (day -3).
func WeekIndex(ms int64) int64 { return FloorDiv(DayIndex(ms)+3, 7) }

// WeekStartMillis returns Monday UTC midnight of week number idx.
func WeekStartMillis(idx int64) int64 { return (idx*7 - 3) * MillisPerDay }

// MonthIndex returns year*12 + (month-1) of the UTC calendar month containing ms.
func MonthIndex(ms int64) int64 {
	t := time.UnixMilli(ms).UTC()
	return int64(t.Year())*12 + int64(t.Month()) - 1
}

// MonthStartMillis returns the first of the UTC month idx at midnight.
func MonthStartMillis(idx int64) int64 {
	y := FloorDiv(idx, 12)
	m := idx - y*12
	return time.Date(int(y), time.Month(m+1), 1, 0, 0, 0, 0, time.UTC).UnixMilli()
}
