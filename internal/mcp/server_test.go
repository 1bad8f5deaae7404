package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/medsearch-mcp/internal/cache"
	"github.com/dshills/medsearch-mcp/internal/searcher"
	"github.com/dshills/medsearch-mcp/pkg/types"
)

type fakeAPI struct {
	records  []types.ServiceRecord
	smart    *types.SmartSearchResponse
	branches map[types.ID][]types.Branch
	err      error
}

func (f *fakeAPI) SearchServices(ctx context.Context, q string) ([]types.ServiceRecord, error) {
	return f.records, f.err
}

func (f *fakeAPI) UnifiedSearch(ctx context.Context, q string) (*types.UnifiedSearchResponse, error) {
	return nil, errors.New("unified search unavailable")
}

func (f *fakeAPI) Suggestions(ctx context.Context, q string) ([]types.Suggestion, error) {
	return []types.Suggestion{{Name: "Xét nghiệm máu", Type: "test"}}, f.err
}

func (f *fakeAPI) SmartSearch(ctx context.Context, req types.SmartSearchRequest) (*types.SmartSearchResponse, error) {
	return f.smart, f.err
}

func (f *fakeAPI) ServiceDetail(ctx context.Context, id types.ID) (*types.ServiceDetail, error) {
	if f.err != nil {
		return nil, f.err
	}
	parent := id
	return &types.ServiceDetail{
		ServiceRecord: types.ServiceRecord{ID: id, Name: "Gói tổng quát", ServiceType: types.ServiceTypePackage},
		Components: []types.ServiceRecord{
			{ID: "c1", Name: "Công thức máu", ServiceType: types.ServiceTypeAtomic, ParentServiceID: &parent},
		},
	}, nil
}

func (f *fakeAPI) ServiceBranches(ctx context.Context, id types.ID) ([]types.Branch, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.branches[id], nil
}

func (f *fakeAPI) ClinicalPathways(ctx context.Context) ([]types.PathwayRecord, error) {
	return []types.PathwayRecord{
		{ID: "1", Name: "Tầm soát tiểu đường", Category: "metabolic"},
		{ID: "2", Name: "Khám tổng quát"},
	}, nil
}

func (f *fakeAPI) CanonicalServices(ctx context.Context) ([]types.CanonicalService, error) {
	return []types.CanonicalService{{ID: "10", Name: "Glucose"}}, nil
}

func (f *fakeAPI) PopularServices(ctx context.Context) ([]types.ServiceRecord, error) {
	return f.records, nil
}

func (f *fakeAPI) Providers(ctx context.Context) ([]types.Provider, error) {
	return []types.Provider{{ID: "p1", BrandName: "Medlatec"}}, nil
}

func price(v float64) *types.Price {
	p := types.Price(v)
	return &p
}

func newTestServer(t *testing.T, api *fakeAPI) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srch := searcher.NewSearcher(api, searcher.Options{Logger: logger})
	mgr := cache.NewManager(api, nil, cache.Options{Logger: logger})

	server, err := NewServer(srch, mgr, logger)
	require.NoError(t, err)
	return server
}

func callRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultJSON(t *testing.T, result *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	require.NotNil(t, result)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out))
	return out
}

func requireMCPError(t *testing.T, err error, code int) {
	t.Helper()
	var mcpErr *MCPError
	require.True(t, errors.As(err, &mcpErr), "expected MCPError, got %v", err)
	assert.Equal(t, code, mcpErr.Code)
}

func TestNewServerRequiresDependencies(t *testing.T) {
	_, err := NewServer(nil, nil, nil)
	assert.Error(t, err)
}

func TestHandleSearchServices(t *testing.T) {
	api := &fakeAPI{records: []types.ServiceRecord{
		{ID: "1", Name: "Xét nghiệm máu tổng quát", ServiceType: types.ServiceTypeAtomic, DiscountedPrice: price(150000)},
		{ID: "2", Name: "Gói xét nghiệm máu", ServiceType: types.ServiceTypePackage, DiscountedPrice: price(900000)},
		{ID: "3", Name: "Chụp X-quang", ServiceType: types.ServiceTypeAtomic, DiscountedPrice: price(200000)},
	}}
	s := newTestServer(t, api)

	result, err := s.handleSearchServices(context.Background(), callRequest("search_services", map[string]interface{}{
		"query": "xét nghiệm máu",
	}))
	require.NoError(t, err)

	out := resultJSON(t, result)
	assert.Equal(t, "xet nghiem mau", out["normalized_query"])
	assert.Equal(t, float64(2), out["total_results"])
	assert.Equal(t, float64(1), out["excluded"])
	assert.Equal(t, "local", out["search_mode"])

	tests := out["tests"].([]interface{})
	require.Len(t, tests, 1)
	first := tests[0].(map[string]interface{})
	assert.Equal(t, "1", first["id"])
	assert.Equal(t, float64(1), first["rank"])
	assert.Greater(t, first["relevanceScore"].(float64), float64(0))
}

func TestHandleSearchServicesValidation(t *testing.T) {
	s := newTestServer(t, &fakeAPI{})
	ctx := context.Background()

	_, err := s.handleSearchServices(ctx, callRequest("search_services", map[string]interface{}{"query": "  "}))
	requireMCPError(t, err, ErrorCodeEmptyQuery)

	_, err = s.handleSearchServices(ctx, callRequest("search_services", map[string]interface{}{
		"query": "gan",
		"limit": float64(500),
	}))
	requireMCPError(t, err, ErrorCodeInvalidParams)

	req := mcp.CallToolRequest{}
	req.Params.Arguments = "not a map"
	_, err = s.handleSearchServices(ctx, req)
	requireMCPError(t, err, ErrorCodeInvalidParams)
}

func TestHandleSearchServicesDegraded(t *testing.T) {
	s := newTestServer(t, &fakeAPI{err: errors.New("connection refused")})

	result, err := s.handleSearchServices(context.Background(), callRequest("search_services", map[string]interface{}{
		"query": "gan",
	}))
	require.NoError(t, err)

	out := resultJSON(t, result)
	assert.Equal(t, true, out["degraded"])
	assert.Equal(t, float64(0), out["total_results"])
}

func TestHandleUnifiedSearchFallsBack(t *testing.T) {
	api := &fakeAPI{records: []types.ServiceRecord{
		{ID: "1", Name: "Xét nghiệm gan", ServiceType: types.ServiceTypeAtomic, DiscountedPrice: price(100000)},
	}}
	s := newTestServer(t, api)

	result, err := s.handleUnifiedSearch(context.Background(), callRequest("unified_search", map[string]interface{}{
		"query": "gan",
	}))
	require.NoError(t, err)

	out := resultJSON(t, result)
	assert.Equal(t, "local", out["search_mode"])
	assert.Equal(t, float64(1), out["total_results"])
}

func TestHandleSuggestServices(t *testing.T) {
	s := newTestServer(t, &fakeAPI{})

	result, err := s.handleSuggestServices(context.Background(), callRequest("suggest_services", map[string]interface{}{
		"query": "xét",
	}))
	require.NoError(t, err)
	out := resultJSON(t, result)
	assert.Equal(t, float64(1), out["count"])

	// Too short for suggestions
	result, err = s.handleSuggestServices(context.Background(), callRequest("suggest_services", map[string]interface{}{
		"query": "x",
	}))
	require.NoError(t, err)
	out = resultJSON(t, result)
	assert.Equal(t, float64(0), out["count"])
}

func TestHandleSmartSearch(t *testing.T) {
	api := &fakeAPI{smart: &types.SmartSearchResponse{
		Success: true,
		Results: types.SmartSearchResults{
			CompletePackages: []types.PackageMatch{
				{ProviderServiceID: "9", Name: "Gói tiểu đường", Price: price(1200000), CoverageScore: 0.92},
			},
			PartialPackages: []types.PackageMatch{
				{ProviderServiceID: "8", Name: "Gói cơ bản", Price: price(500000), CoverageScore: 0.71},
			},
		},
	}}
	s := newTestServer(t, api)

	result, err := s.handleSmartSearch(context.Background(), callRequest("smart_search", map[string]interface{}{
		"pathway_id":  float64(7),
		"patient_age": float64(50),
	}))
	require.NoError(t, err)

	out := resultJSON(t, result)
	assert.Equal(t, true, out["success"])
	complete := out["complete_packages"].([]interface{})
	require.Len(t, complete, 1)
	assert.Equal(t, "high", complete[0].(map[string]interface{})["coverage_level"])
	assert.Equal(t, float64(92), complete[0].(map[string]interface{})["coverage_percent"])
	partial := out["partial_packages"].([]interface{})
	require.Len(t, partial, 1)
	assert.Equal(t, "medium", partial[0].(map[string]interface{})["coverage_level"])

	// Second identical request is served from the cache
	result, err = s.handleSmartSearch(context.Background(), callRequest("smart_search", map[string]interface{}{
		"pathway_id":  "7",
		"patient_age": float64(50),
	}))
	require.NoError(t, err)
	assert.Equal(t, true, resultJSON(t, result)["cache_hit"])
}

func TestHandleSmartSearchValidation(t *testing.T) {
	s := newTestServer(t, &fakeAPI{})
	ctx := context.Background()

	_, err := s.handleSmartSearch(ctx, callRequest("smart_search", map[string]interface{}{}))
	requireMCPError(t, err, ErrorCodeEmptyQuery)

	_, err = s.handleSmartSearch(ctx, callRequest("smart_search", map[string]interface{}{
		"query":       "gan",
		"patient_age": float64(-3),
	}))
	requireMCPError(t, err, ErrorCodeInvalidParams)

	_, err = s.handleSmartSearch(ctx, callRequest("smart_search", map[string]interface{}{
		"query":          "gan",
		"patient_gender": "other",
	}))
	requireMCPError(t, err, ErrorCodeInvalidParams)
}

func TestHandleGetReferenceData(t *testing.T) {
	s := newTestServer(t, &fakeAPI{})
	ctx := context.Background()

	result, err := s.handleGetReferenceData(ctx, callRequest("get_reference_data", map[string]interface{}{
		"dataset": "providers",
	}))
	require.NoError(t, err)
	out := resultJSON(t, result)
	assert.Equal(t, false, out["from_cache"])
	assert.Equal(t, float64(1), out["count"])

	result, err = s.handleGetReferenceData(ctx, callRequest("get_reference_data", map[string]interface{}{
		"dataset":           "pathways",
		"group_by_category": true,
	}))
	require.NoError(t, err)
	out = resultJSON(t, result)
	assert.Equal(t, true, out["from_cache"])
	groups := out["data"].(map[string]interface{})
	assert.Contains(t, groups, "metabolic")
	assert.Contains(t, groups, types.DefaultPathwayCategory)

	_, err = s.handleGetReferenceData(ctx, callRequest("get_reference_data", map[string]interface{}{
		"dataset": "bookings",
	}))
	requireMCPError(t, err, ErrorCodeUnknownDataset)
}

func TestHandleClearCacheAndStatus(t *testing.T) {
	s := newTestServer(t, &fakeAPI{})
	ctx := context.Background()

	s.cache.Initialize(ctx, false)

	result, err := s.handleGetCacheStatus(ctx, callRequest("get_cache_status", nil))
	require.NoError(t, err)
	out := resultJSON(t, result)
	reference := out["reference"].(map[string]interface{})
	assert.Equal(t, "FRESH", reference["state"])

	_, err = s.handleClearCache(ctx, callRequest("clear_cache", map[string]interface{}{"scope": "everything"}))
	requireMCPError(t, err, ErrorCodeInvalidParams)

	result, err = s.handleClearCache(ctx, callRequest("clear_cache", nil))
	require.NoError(t, err)
	assert.Equal(t, "all", resultJSON(t, result)["scope"])
	assert.Equal(t, cache.StateEmpty, s.cache.State(ctx))
}

func TestHandleGetPackageComponents(t *testing.T) {
	s := newTestServer(t, &fakeAPI{})
	ctx := context.Background()

	result, err := s.handleGetPackageComponents(ctx, callRequest("get_package_components", map[string]interface{}{
		"package_id": float64(42),
	}))
	require.NoError(t, err)

	out := resultJSON(t, result)
	assert.Equal(t, "42", out["package_id"])
	assert.Equal(t, float64(1), out["count"])
	assert.Equal(t, false, out["cache_hit"])

	result, err = s.handleGetPackageComponents(ctx, callRequest("get_package_components", map[string]interface{}{
		"package_id": "42",
	}))
	require.NoError(t, err)
	assert.Equal(t, true, resultJSON(t, result)["cache_hit"])

	_, err = s.handleGetPackageComponents(ctx, callRequest("get_package_components", map[string]interface{}{}))
	requireMCPError(t, err, ErrorCodeInvalidParams)
}

func TestHandleGetPackageComponentsLookupFailure(t *testing.T) {
	s := newTestServer(t, &fakeAPI{err: errors.New("connection refused")})

	_, err := s.handleGetPackageComponents(context.Background(), callRequest("get_package_components", map[string]interface{}{
		"package_id": "42",
	}))
	requireMCPError(t, err, ErrorCodeLookupFailed)
}

func TestHandleGetServiceBranches(t *testing.T) {
	q3 := types.Branch{ID: "1", Name: "Chi nhánh Võ Văn Tần", District: "Quận 3", City: "Hồ Chí Minh"}
	cg := types.Branch{ID: "2", Name: "Chi nhánh Cầu Giấy", District: "Cầu Giấy", City: "Hà Nội"}
	api := &fakeAPI{branches: map[types.ID][]types.Branch{
		"t1": {q3, cg},
		"t2": {cg},
	}}
	s := newTestServer(t, api)
	ctx := context.Background()

	t.Run("SingleWithCity", func(t *testing.T) {
		result, err := s.handleGetServiceBranches(ctx, callRequest("get_service_branches", map[string]interface{}{
			"service_ids": []interface{}{"t1"},
			"city":        "Hà Nội",
		}))
		require.NoError(t, err)

		out := resultJSON(t, result)
		assert.Equal(t, float64(1), out["count"])
		assert.Equal(t, float64(2), out["total"])
		assert.Equal(t, []interface{}{"Hồ Chí Minh", "Hà Nội"}, out["cities"])
		branches := out["branches"].([]interface{})
		assert.Equal(t, "Chi nhánh Cầu Giấy", branches[0].(map[string]interface{})["branch_name_vn"])
	})

	t.Run("CartIntersection", func(t *testing.T) {
		result, err := s.handleGetServiceBranches(ctx, callRequest("get_service_branches", map[string]interface{}{
			"service_ids": []interface{}{"t1", "t2"},
		}))
		require.NoError(t, err)

		out := resultJSON(t, result)
		assert.Equal(t, float64(1), out["count"])
		assert.Equal(t, []interface{}{"Cầu Giấy"}, out["districts"])
	})

	t.Run("SingleIDAccepted", func(t *testing.T) {
		result, err := s.handleGetServiceBranches(ctx, callRequest("get_service_branches", map[string]interface{}{
			"service_ids": "t2",
		}))
		require.NoError(t, err)
		assert.Equal(t, float64(1), resultJSON(t, result)["count"])
	})

	t.Run("MissingIDs", func(t *testing.T) {
		_, err := s.handleGetServiceBranches(ctx, callRequest("get_service_branches", map[string]interface{}{
			"service_ids": []interface{}{},
		}))
		requireMCPError(t, err, ErrorCodeInvalidParams)
	})
}
