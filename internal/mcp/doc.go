// Package mcp implements the Model Context Protocol (MCP) server for medsearch.
//
// The MCP server exposes the medical test search core to AI assistants:
//   - search_services: Ranked search over tests and packages
//   - unified_search: Server-ranked search with location parsing
//   - suggest_services: Typeahead suggestions
//   - smart_search: Pathway/package coverage matching
//   - get_package_components: Tests included in a package
//   - get_service_branches: Branches offering a package or a cart of tests
//   - get_reference_data: Cached pathways, canonical services, popular services, providers
//   - clear_cache: Drop reference and/or query caches
//   - get_cache_status: Reference cache state and query cache usage
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// Logs go to stderr; stdout carries protocol messages only.
//
// # Tool: search_services
//
//	Request:
//	{
//	  "name": "search_services",
//	  "arguments": {
//	    "query": "xet nghiem mau",
//	    "limit": 10
//	  }
//	}
//
//	Response:
//	{
//	  "query": "xet nghiem mau",
//	  "normalized_query": "xet nghiem mau",
//	  "packages": [...],
//	  "tests": [
//	    {"id": "12", "provider_service_name_vn": "Xét nghiệm máu", "relevanceScore": 115, "rank": 1, ...}
//	  ],
//	  "total_results": 1,
//	  "search_mode": "local",
//	  "cache_hit": false
//	}
//
// Candidates scoring zero are dropped unless keep_unmatched is set. When the
// remote API fails the response is empty with "degraded": true.
//
// # Tool: smart_search
//
//	Request:
//	{
//	  "name": "smart_search",
//	  "arguments": {"pathway_id": "7", "patient_age": 45, "patient_gender": "female"}
//	}
//
// Each package match carries coverage_percent and coverage_level
// (high >= 90%, medium >= 70%, else low).
//
// # Error Codes
//
//	-32602  Invalid params
//	-32603  Internal error
//	-32004  Empty query
//	-32005  Superseded by a newer request
//	-32006  Unknown dataset
//	-32007  Remote lookup failed
package mcp
