package types

// Suggestion is a typeahead entry from the suggestions endpoint
type Suggestion struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Provider string `json:"provider,omitempty"`
	Price    *Price `json:"price,omitempty"`
}

// ParsedLocation holds the location hints the unified search extracted from the query
type ParsedLocation struct {
	City     string `json:"city,omitempty"`
	District string `json:"district,omitempty"`
}

// UnifiedSearchResponse is the /v2/search payload. The server ranks
// packages and services itself.
type UnifiedSearchResponse struct {
	Success  bool            `json:"success"`
	Packages []ServiceRecord `json:"packages"`
	Services []ServiceRecord `json:"services"`
	Parsed   *ParsedLocation `json:"parsed,omitempty"`
}
