package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/medsearch-mcp/internal/cache"
)

// searchServicesTool returns the tool definition for search_services
func searchServicesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_services",
		Description: "Search medical tests and health-check packages by name, ranked by relevance (accent-insensitive Vietnamese matching)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search text, e.g. 'xét nghiệm máu' or 'xet nghiem mau'",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum results per category (0 returns all, up to 100)",
					"default":     DefaultLimit,
					"minimum":     0,
					"maximum":     MaxLimit,
				},
				"prefer_standalone": map[string]interface{}{
					"type":        "boolean",
					"description": "On equal scores, rank standalone tests above package components",
					"default":     false,
				},
				"keep_unmatched": map[string]interface{}{
					"type":        "boolean",
					"description": "Keep candidates that scored zero (not matching any query word)",
					"default":     false,
				},
				"use_cache": map[string]interface{}{
					"type":        "boolean",
					"description": "Serve repeated queries from the 5 minute query cache",
					"default":     true,
				},
			},
			Required: []string{"query"},
		},
	}
}

// unifiedSearchTool returns the tool definition for unified_search
func unifiedSearchTool() mcp.Tool {
	return mcp.Tool{
		Name:        "unified_search",
		Description: "Server-ranked search that also parses locations (city, district) out of the query; falls back to local ranking when unavailable",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search text, may include a location, e.g. 'khám tổng quát quận 3'",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum results per category (0 returns all, up to 100)",
					"default":     DefaultLimit,
					"minimum":     0,
					"maximum":     MaxLimit,
				},
			},
			Required: []string{"query"},
		},
	}
}

// suggestServicesTool returns the tool definition for suggest_services
func suggestServicesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "suggest_services",
		Description: "Typeahead suggestions for a partial query (at least 2 characters)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Partial search text",
				},
			},
			Required: []string{"query"},
		},
	}
}

// smartSearchTool returns the tool definition for smart_search
func smartSearchTool() mcp.Tool {
	return mcp.Tool{
		Name:        "smart_search",
		Description: "Match a health concern or clinical pathway against provider packages, reporting coverage of required tests and the price of booking tests individually",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Free-text health concern, e.g. 'tiểu đường'",
				},
				"pathway_id": map[string]interface{}{
					"type":        "string",
					"description": "Clinical pathway id (takes precedence over query)",
				},
				"patient_age": map[string]interface{}{
					"type":        "integer",
					"description": "Patient age in years",
					"minimum":     0,
					"maximum":     150,
				},
				"patient_gender": map[string]interface{}{
					"type":        "string",
					"description": "Patient gender",
					"enum":        []string{"male", "female"},
				},
			},
		},
	}
}

// getReferenceDataTool returns the tool definition for get_reference_data
func getReferenceDataTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_reference_data",
		Description: "Return a cached reference dataset (pathways, canonical services, popular services, providers), loading it when the 30 minute cache is empty or stale",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"dataset": map[string]interface{}{
					"type":        "string",
					"description": "Dataset to return",
					"enum":        cache.DatasetNames(),
				},
				"refresh": map[string]interface{}{
					"type":        "boolean",
					"description": "Force a re-fetch of all reference datasets",
					"default":     false,
				},
				"group_by_category": map[string]interface{}{
					"type":        "boolean",
					"description": "For pathways: group by category ('Khác' when uncategorized)",
					"default":     false,
				},
			},
			Required: []string{"dataset"},
		},
	}
}

// clearCacheTool returns the tool definition for clear_cache
func clearCacheTool() mcp.Tool {
	return mcp.Tool{
		Name:        "clear_cache",
		Description: "Clear cached reference data and/or cached query results",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"scope": map[string]interface{}{
					"type":        "string",
					"description": "What to clear",
					"enum":        []string{ScopeAll, ScopeReference, ScopeQueries},
					"default":     ScopeAll,
				},
			},
		},
	}
}

// getCacheStatusTool returns the tool definition for get_cache_status
func getCacheStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_cache_status",
		Description: "Report reference cache state (EMPTY, FRESH, STALE), dataset sizes and query cache usage",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// getPackageComponentsTool returns the tool definition for get_package_components
func getPackageComponentsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_package_components",
		Description: "List the individual tests included in a health-check package",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"package_id": map[string]interface{}{
					"type":        "string",
					"description": "Package service id",
				},
			},
			Required: []string{"package_id"},
		},
	}
}

// getServiceBranchesTool returns the tool definition for get_service_branches
func getServiceBranchesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_service_branches",
		Description: "List branches where a package, or every test in a cart of single tests, can be booked, optionally filtered by city, district or name",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"service_ids": map[string]interface{}{
					"type":        "array",
					"description": "Service ids; with several ids only branches offering all of them are returned",
					"items":       map[string]interface{}{"type": "string"},
					"minItems":    1,
				},
				"city": map[string]interface{}{
					"type":        "string",
					"description": "Exact city name, e.g. 'Hà Nội'",
				},
				"district": map[string]interface{}{
					"type":        "string",
					"description": "Exact district name, e.g. 'Quận 3'",
				},
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Accent-insensitive text matched against branch name and address",
				},
			},
			Required: []string{"service_ids"},
		},
	}
}
