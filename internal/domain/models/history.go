package models

import (
	"fmt"
	"strconv"
)

// History response statuses understood by the charting widget.
const (
	StatusOK     = "ok"
	StatusNoData = "no_data"
	StatusError  = "error"
)

// HistoryRequest is the raw /history query as bound from the URL.
type HistoryRequest struct {
	Symbol     string `query:"symbol" validate:"required"`
	Resolution string `query:"resolution" validate:"required"`
	From       string `query:"from" validate:"required"`
	To         string `query:"to" validate:"required"`
	Countback  string `query:"countback"`
}

// HistoryQuery is the typed form of a history request. From and To are
// Unix seconds; a non-nil Countback switches to countback pagination.
type HistoryQuery struct {
	Symbol     string
	Resolution string
	From       int64
	To         int64
	Countback  *int
}

// ToQuery converts the bound request into a HistoryQuery.
func (r HistoryRequest) ToQuery() (HistoryQuery, error) {
	from, err := strconv.ParseInt(r.From, 10, 64)
	if err != nil {
		return HistoryQuery{}, fmt.Errorf("from must be an integer: %q", r.From)
	}
	to, err := strconv.ParseInt(r.To, 10, 64)
	if err != nil {
		return HistoryQuery{}, fmt.Errorf("to must be an integer: %q", r.To)
	}
	q := HistoryQuery{Symbol: r.Symbol, Resolution: r.Resolution, From: from, To: to}
	if r.Countback != "" {
		n, err := strconv.Atoi(r.Countback)
		if err != nil || n < 0 {
			return HistoryQuery{}, fmt.Errorf("countback must be a non-negative integer: %q", r.Countback)
		}
		q.Countback = &n
	}
	return q, nil
}

// HistoryResponse is one of three shapes: ok with parallel arrays,
// no_data with NextTime, or error with ErrMsg.
type HistoryResponse struct {
	Status   string    `json:"s"`
	Times    []int64   `json:"t,omitempty"`
	Opens    []float64 `json:"o,omitempty"`
	Highs    []float64 `json:"h,omitempty"`
	Lows     []float64 `json:"l,omitempty"`
	Closes   []float64 `json:"c,omitempty"`
	Volumes  []float64 `json:"v,omitempty"`
	NextTime *int64    `json:"nextTime,omitempty"`
	ErrMsg   string    `json:"errmsg,omitempty"`
}

// NoDataResponse builds the no_data sentinel echoing from unchanged.
func NoDataResponse(from int64) HistoryResponse {
	return HistoryResponse{Status: StatusNoData, NextTime: &from}
}

// ErrorResponse builds the error envelope.
func ErrorResponse(msg string) HistoryResponse {
	return HistoryResponse{Status: StatusError, ErrMsg: msg}
}

// Len returns the number of bars in an ok response.
func (r HistoryResponse) Len() int { return len(r.Times) }
