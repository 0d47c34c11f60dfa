package models

// Bar represents one OHLCV sample. Timestamp is Unix milliseconds.
// Aggregated bars reuse the type with Timestamp set to the bucket start.
type Bar struct {
	Timestamp int64   `json:"timestamp" parquet:"timestamp"`
	Open      float64 `json:"open" parquet:"open"`
	High      float64 `json:"high" parquet:"high"`
	Low       float64 `json:"low" parquet:"low"`
	Close     float64 `json:"close" parquet:"close"`
	Volume    float64 `json:"volume" parquet:"volume"`
}

// SeriesPoint is a single value of a derived column series (Unix ms).
type SeriesPoint struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}
