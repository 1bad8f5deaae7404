package httpapi

import (
	"github.com/dshills/medsearch-mcp/internal/cache"
	"github.com/dshills/medsearch-mcp/internal/searcher"
	"github.com/dshills/medsearch-mcp/pkg/types"
)

// SearchResponse is the body of the search routes
type SearchResponse struct {
	Query           string                `json:"query"`
	NormalizedQuery string                `json:"normalized_query"`
	Packages        []types.ScoredRecord  `json:"packages"`
	Tests           []types.ScoredRecord  `json:"tests"`
	TotalResults    int                   `json:"total_results"`
	Excluded        int                   `json:"excluded"`
	SearchMode      searcher.SearchMode   `json:"search_mode"`
	Parsed          *types.ParsedLocation `json:"parsed,omitempty"`
	CacheHit        bool                  `json:"cache_hit"`
	Degraded        bool                  `json:"degraded,omitempty"`
	DurationMS      int64                 `json:"duration_ms"`
}

func newSearchResponse(resp *searcher.SearchResponse) SearchResponse {
	return SearchResponse{
		Query:           resp.Query,
		NormalizedQuery: resp.NormalizedQuery,
		Packages:        resp.Packages,
		Tests:           resp.Tests,
		TotalResults:    resp.TotalResults,
		Excluded:        resp.Excluded,
		SearchMode:      resp.SearchMode,
		Parsed:          resp.Parsed,
		CacheHit:        resp.CacheHit,
		Degraded:        resp.Degraded,
		DurationMS:      resp.Duration.Milliseconds(),
	}
}

// PackageMatchDTO is a smart-search package match with its coverage bucket
type PackageMatchDTO struct {
	types.PackageMatch
	CoveragePercent int    `json:"coverage_percent"`
	CoverageLevel   string `json:"coverage_level"`
}

// SmartSearchResponse is the body of POST /v1/smart-search
type SmartSearchResponse struct {
	Success           bool                     `json:"success"`
	SuggestedPathway  *types.PathwayRecord     `json:"suggested_pathway,omitempty"`
	CompletePackages  []PackageMatchDTO        `json:"complete_packages"`
	PartialPackages   []PackageMatchDTO        `json:"partial_packages"`
	IndividualOptions *types.IndividualOptions `json:"individual_options,omitempty"`
	CacheHit          bool                     `json:"cache_hit"`
	Degraded          bool                     `json:"degraded,omitempty"`
}

func newSmartSearchResponse(result *searcher.SmartSearchResult) SmartSearchResponse {
	resp := result.Response
	return SmartSearchResponse{
		Success:           resp.Success,
		SuggestedPathway:  resp.SuggestedPathway,
		CompletePackages:  packageMatchDTOs(resp.Results.CompletePackages),
		PartialPackages:   packageMatchDTOs(resp.Results.PartialPackages),
		IndividualOptions: resp.Results.IndividualOptions,
		CacheHit:          result.CacheHit,
		Degraded:          result.Degraded,
	}
}

func packageMatchDTOs(matches []types.PackageMatch) []PackageMatchDTO {
	out := make([]PackageMatchDTO, 0, len(matches))
	for i := range matches {
		m := &matches[i]
		out = append(out, PackageMatchDTO{
			PackageMatch:    *m,
			CoveragePercent: m.CoveragePercent(),
			CoverageLevel:   m.CoverageLevel(),
		})
	}
	return out
}

// ReferenceResponse is the body of GET /v1/reference/{dataset}
type ReferenceResponse struct {
	Dataset   string `json:"dataset"`
	FromCache bool   `json:"from_cache"`
	Count     int    `json:"count"`
	Data      any    `json:"data"`
}

// CacheStatusResponse is the body of GET /v1/cache/status
type CacheStatusResponse struct {
	Reference cache.Status   `json:"reference"`
	Queries   map[string]int `json:"queries"`
}

// ComponentsResponse is the body of GET /v1/services/{id}/components
type ComponentsResponse struct {
	PackageID  string                `json:"package_id"`
	Components []types.ServiceRecord `json:"components"`
	Count      int                   `json:"count"`
	CacheHit   bool                  `json:"cache_hit"`
}

// BranchesResponse is the body of the branch routes
type BranchesResponse struct {
	ServiceIDs []types.ID     `json:"service_ids"`
	Branches   []types.Branch `json:"branches"`
	Count      int            `json:"count"`
	Total      int            `json:"total"`
	Cities     []string       `json:"cities"`
	Districts  []string       `json:"districts"`
}

func newBranchesResponse(ids []types.ID, result *searcher.BranchResult) BranchesResponse {
	return BranchesResponse{
		ServiceIDs: ids,
		Branches:   result.Branches,
		Count:      len(result.Branches),
		Total:      result.Total,
		Cities:     result.Cities,
		Districts:  result.Districts,
	}
}
