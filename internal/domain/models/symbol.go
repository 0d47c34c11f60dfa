package models

// DefaultSupportedResolutions is advertised for symbols that declare none.
var DefaultSupportedResolutions = []string{"1", "5", "15", "30", "60", "1D", "1W", "1M"}

// SymbolMeta is one registry entry. Raw holds the stored object verbatim,
// the typed fields are extracted from it.
type SymbolMeta struct {
	// Base is the registry key owning the dataset; equal to Ticker except
	// for derived series symbols.
	Base string

	Ticker               string
	Name                 string
	FullName             string
	Description          string
	Exchange             string
	Type                 string
	SupportedResolutions []string
	Dataset              string

	// Column is set for derived series symbols (BASE#SERIES:column).
	Column string

	Raw map[string]any
}

// Resolutions returns the declared supported resolutions, or the default
// list when none are declared.
func (m SymbolMeta) Resolutions() []string {
	if len(m.SupportedResolutions) > 0 {
		return m.SupportedResolutions
	}
	return DefaultSupportedResolutions
}

// IsSeries reports whether the meta describes a derived column series.
func (m SymbolMeta) IsSeries() bool { return m.Column != "" }

// SearchResult is a single /search match.
type SearchResult struct {
	Symbol      string `json:"symbol"`
	Name        string `json:"name"`
	Ticker      string `json:"ticker"`
	FullName    string `json:"full_name"`
	Description string `json:"description"`
	Exchange    string `json:"exchange"`
	Type        string `json:"type"`
}

// SearchRequest is the validated /search request.
type SearchRequest struct {
	Query    string `query:"query"`
	Type     string `query:"type"`
	Exchange string `query:"exchange"`
	Limit    int    `query:"limit" validate:"gte=0"`
}

// DatafeedConfig is the /config capability advertisement.
type DatafeedConfig struct {
	SupportedResolutions   []string `json:"supported_resolutions"`
	SupportsSearch         bool     `json:"supports_search"`
	SupportsGroupRequest   bool     `json:"supports_group_request"`
	SupportsMarks          bool     `json:"supports_marks"`
	SupportsTimescaleMarks bool     `json:"supports_timescale_marks"`
	SupportsTime           bool     `json:"supports_time"`
}
