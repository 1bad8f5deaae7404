package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/medsearch-mcp/internal/cache"
	"github.com/dshills/medsearch-mcp/internal/searcher"
	"github.com/dshills/medsearch-mcp/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams  = -32602 // Invalid method parameters
	ErrorCodeInternalError  = -32603 // Internal JSON-RPC error
	ErrorCodeEmptyQuery     = -32004 // Query parameter is empty
	ErrorCodeSuperseded     = -32005 // A newer request of the same kind replaced this one
	ErrorCodeUnknownDataset = -32006 // Dataset name not recognized
	ErrorCodeLookupFailed   = -32007 // Remote detail or branch lookup failed
)

// Limits and scopes
const (
	DefaultLimit = 20
	MaxLimit     = 100

	ScopeAll       = "all"
	ScopeReference = "reference"
	ScopeQueries   = "queries"
)

// handleSearchServices handles the search_services tool invocation
func (s *Server) handleSearchServices(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, err := requireQuery(args)
	if err != nil {
		return nil, err
	}
	limit, err := parseLimit(args)
	if err != nil {
		return nil, err
	}

	resp, err := s.searcher.Search(ctx, searcher.SearchRequest{
		Query:            query,
		Limit:            limit,
		PreferStandalone: getBoolDefault(args, "prefer_standalone", false),
		KeepUnmatched:    getBoolDefault(args, "keep_unmatched", false),
		UseCache:         getBoolDefault(args, "use_cache", true),
	})
	if err != nil {
		return nil, s.searchError("search_services", err)
	}

	return mcp.NewToolResultText(formatJSON(searchResponseView(resp))), nil
}

// handleUnifiedSearch handles the unified_search tool invocation
func (s *Server) handleUnifiedSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, err := requireQuery(args)
	if err != nil {
		return nil, err
	}
	limit, err := parseLimit(args)
	if err != nil {
		return nil, err
	}

	resp, err := s.searcher.UnifiedSearch(ctx, searcher.SearchRequest{
		Query:    query,
		Limit:    limit,
		UseCache: true,
	})
	if err != nil {
		return nil, s.searchError("unified_search", err)
	}

	return mcp.NewToolResultText(formatJSON(searchResponseView(resp))), nil
}

// handleSuggestServices handles the suggest_services tool invocation
func (s *Server) handleSuggestServices(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, err := requireQuery(args)
	if err != nil {
		return nil, err
	}

	suggestions, err := s.searcher.Suggest(ctx, query)
	if err != nil {
		return nil, s.searchError("suggest_services", err)
	}

	response := map[string]interface{}{
		"query":       query,
		"suggestions": suggestions,
		"count":       len(suggestions),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSmartSearch handles the smart_search tool invocation
func (s *Server) handleSmartSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	req := types.SmartSearchRequest{
		Query:         getStringDefault(args, "query", ""),
		PathwayID:     types.ID(getIDString(args, "pathway_id")),
		PatientGender: getStringDefault(args, "patient_gender", ""),
	}
	if _, present := args["patient_age"]; present {
		age := getIntDefault(args, "patient_age", -1)
		if age < 0 || age > 150 {
			return nil, newMCPError(ErrorCodeInvalidParams, "patient_age must be between 0 and 150", map[string]interface{}{
				"param": "patient_age",
				"value": args["patient_age"],
			})
		}
		req.PatientAge = &age
	}
	if g := req.PatientGender; g != "" && g != "male" && g != "female" {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid patient_gender", map[string]interface{}{
			"param":   "patient_gender",
			"value":   g,
			"allowed": []string{"male", "female"},
		})
	}

	result, err := s.searcher.SmartSearch(ctx, req)
	if err != nil {
		if errors.Is(err, searcher.ErrEmptyQuery) {
			return nil, newMCPError(ErrorCodeEmptyQuery, "query or pathway_id is required", map[string]interface{}{
				"param":  "query",
				"reason": "missing or empty",
			})
		}
		return nil, s.searchError("smart_search", err)
	}

	return mcp.NewToolResultText(formatJSON(smartSearchView(result))), nil
}

// handleGetPackageComponents handles the get_package_components tool invocation
func (s *Server) handleGetPackageComponents(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	id := getIDString(args, "package_id")
	if id == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "package_id is required", map[string]interface{}{
			"param":  "package_id",
			"reason": "missing or empty",
		})
	}

	components, cached, err := s.searcher.PackageComponents(ctx, types.ID(id))
	if err != nil {
		return nil, s.searchError("get_package_components", err)
	}

	response := map[string]interface{}{
		"package_id": id,
		"components": components,
		"count":      len(components),
		"cache_hit":  cached,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetServiceBranches handles the get_service_branches tool invocation
func (s *Server) handleGetServiceBranches(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	ids := getIDList(args, "service_ids")
	if len(ids) == 0 {
		return nil, newMCPError(ErrorCodeInvalidParams, "service_ids must list at least one id", map[string]interface{}{
			"param":  "service_ids",
			"reason": "missing or empty",
		})
	}

	result, err := s.searcher.Branches(ctx, ids, searcher.BranchFilter{
		City:     getStringDefault(args, "city", ""),
		District: getStringDefault(args, "district", ""),
		Query:    getStringDefault(args, "query", ""),
	})
	if err != nil {
		return nil, s.searchError("get_service_branches", err)
	}

	response := map[string]interface{}{
		"service_ids": ids,
		"branches":    result.Branches,
		"count":       len(result.Branches),
		"total":       result.Total,
		"cities":      result.Cities,
		"districts":   result.Districts,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetReferenceData handles the get_reference_data tool invocation
func (s *Server) handleGetReferenceData(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	dataset := getStringDefault(args, "dataset", "")
	if _, known := cache.DatasetKey(dataset); !known {
		return nil, newMCPError(ErrorCodeUnknownDataset, "unknown dataset", map[string]interface{}{
			"param":   "dataset",
			"value":   dataset,
			"allowed": cache.DatasetNames(),
		})
	}

	snap := s.cache.Initialize(ctx, getBoolDefault(args, "refresh", false))

	data, count, _ := snap.Dataset(dataset)
	if key, _ := cache.DatasetKey(dataset); key == cache.KeyPathways && getBoolDefault(args, "group_by_category", false) {
		data = types.GroupPathways(snap.Pathways)
	}

	response := map[string]interface{}{
		"dataset":    dataset,
		"from_cache": snap.FromCache,
		"count":      count,
		"data":       data,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleClearCache handles the clear_cache tool invocation
func (s *Server) handleClearCache(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})

	scope := getStringDefault(args, "scope", ScopeAll)
	switch scope {
	case ScopeAll:
		s.cache.Clear(ctx)
		s.searcher.InvalidateCache()
	case ScopeReference:
		s.cache.Clear(ctx)
	case ScopeQueries:
		s.searcher.InvalidateCache()
	default:
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid scope", map[string]interface{}{
			"param":   "scope",
			"value":   scope,
			"allowed": []string{ScopeAll, ScopeReference, ScopeQueries},
		})
	}

	s.logger.Info("cache cleared", "scope", scope)
	response := map[string]interface{}{
		"cleared": true,
		"scope":   scope,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetCacheStatus handles the get_cache_status tool invocation
func (s *Server) handleGetCacheStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	response := map[string]interface{}{
		"reference": s.cache.Status(ctx),
		"queries":   s.searcher.CacheStats(),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// searchResponseView shapes a search response for tool output
func searchResponseView(resp *searcher.SearchResponse) map[string]interface{} {
	view := map[string]interface{}{
		"query":            resp.Query,
		"normalized_query": resp.NormalizedQuery,
		"packages":         resp.Packages,
		"tests":            resp.Tests,
		"total_results":    resp.TotalResults,
		"excluded":         resp.Excluded,
		"search_mode":      resp.SearchMode,
		"cache_hit":        resp.CacheHit,
		"duration_ms":      resp.Duration.Milliseconds(),
	}
	if resp.Degraded {
		view["degraded"] = true
	}
	if resp.Parsed != nil {
		view["parsed"] = resp.Parsed
	}
	return view
}

// smartSearchView adds coverage levels to a smart-search response
func smartSearchView(result *searcher.SmartSearchResult) map[string]interface{} {
	resp := result.Response
	view := map[string]interface{}{
		"success":           resp.Success,
		"cache_hit":         result.CacheHit,
		"complete_packages": packageMatchViews(resp.Results.CompletePackages),
		"partial_packages":  packageMatchViews(resp.Results.PartialPackages),
	}
	if result.Degraded {
		view["degraded"] = true
	}
	if resp.SuggestedPathway != nil {
		view["suggested_pathway"] = resp.SuggestedPathway
	}
	if resp.Results.IndividualOptions != nil {
		view["individual_options"] = resp.Results.IndividualOptions
	}
	return view
}

func packageMatchViews(matches []types.PackageMatch) []map[string]interface{} {
	views := make([]map[string]interface{}, 0, len(matches))
	for i := range matches {
		m := &matches[i]
		view := map[string]interface{}{
			"provider_service_id": m.ProviderServiceID,
			"name":                m.Name,
			"coverage_percent":    m.CoveragePercent(),
			"coverage_level":      m.CoverageLevel(),
			"matched_required":    m.MatchedRequired,
			"total_required":      m.TotalRequired,
			"matched_recommended": m.MatchedRecommended,
		}
		if m.Provider != nil {
			view["provider"] = m.Provider.BrandName
		}
		svc := m.AsService()
		if price, ok := svc.EffectivePrice(); ok {
			view["price"] = price
		}
		if len(m.MissingCanonicalIDs) > 0 {
			view["missing_canonical_ids"] = m.MissingCanonicalIDs
		}
		views = append(views, view)
	}
	return views
}

// searchError maps searcher errors to MCP errors
func (s *Server) searchError(tool string, err error) error {
	switch {
	case errors.Is(err, searcher.ErrEmptyQuery):
		return newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	case errors.Is(err, searcher.ErrSuperseded):
		return newMCPError(ErrorCodeSuperseded, "request superseded by a newer one", nil)
	case errors.Is(err, searcher.ErrNoServiceIDs):
		return newMCPError(ErrorCodeInvalidParams, err.Error(), nil)
	case errors.Is(err, searcher.ErrLookupFailed):
		s.logger.Warn("lookup failed", "tool", tool, "error", err)
		return newMCPError(ErrorCodeLookupFailed, tool+" lookup failed", map[string]interface{}{
			"error": err.Error(),
		})
	default:
		s.logger.Error("tool failed", "tool", tool, "error", err)
		return newMCPError(ErrorCodeInternalError, tool+" failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// requireQuery extracts the non-empty query parameter
func requireQuery(args map[string]interface{}) (string, error) {
	query, ok := args["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return "", newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}
	return query, nil
}

// parseLimit extracts and validates the limit parameter
func parseLimit(args map[string]interface{}) (int, error) {
	limit := getIntDefault(args, "limit", DefaultLimit)
	if limit < 0 || limit > MaxLimit {
		return 0, newMCPError(ErrorCodeInvalidParams, "limit must be between 0 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}
	return limit, nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// getIDString extracts an id given as a string or a number
func getIDString(args map[string]interface{}, key string) string {
	switch val := args[key].(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	}
	return ""
}

// getIDList extracts a list of ids given as strings or numbers. A single
// id is accepted in place of a list.
func getIDList(args map[string]interface{}, key string) []types.ID {
	var raw []interface{}
	switch val := args[key].(type) {
	case []interface{}:
		raw = val
	case []string:
		for _, v := range val {
			raw = append(raw, v)
		}
	case nil:
		return nil
	default:
		raw = []interface{}{val}
	}

	ids := make([]types.ID, 0, len(raw))
	for _, v := range raw {
		if id := getIDString(map[string]interface{}{"id": v}, "id"); id != "" {
			ids = append(ids, types.ID(id))
		}
	}
	return ids
}
