package http

// StatusError is the "s" value of every error body.
const StatusError = "error"

// ErrorEnvelope is the error body shared by all endpoints, matching the
// datafeed protocol's {"s":"error","errmsg":...} shape.
type ErrorEnvelope struct {
	Status  string            `json:"s" example:"error"`
	ErrMsg  string            `json:"errmsg" example:"unknown symbol"`
	Code    string            `json:"code,omitempty" example:"ERR_NOT_FOUND"`
	Details []ValidationError `json:"details,omitempty"`
}

// ValidationError represents validation error detail.
type ValidationError struct {
	Code    string                 `json:"code,omitempty" example:"ERR_REQUIRED"`
	Field   string                 `json:"field,omitempty" example:"symbol"`
	Message string                 `json:"message,omitempty" example:"symbol is required"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// OKResult is the body of mutations that return no payload.
type OKResult struct {
	OK bool `json:"ok"`
}
