package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/medsearch-mcp/internal/cache"
	"github.com/dshills/medsearch-mcp/internal/searcher"
	"github.com/dshills/medsearch-mcp/pkg/types"
)

type stubAPI struct {
	smartReq types.SmartSearchRequest
}

func (s *stubAPI) SearchServices(ctx context.Context, q string) ([]types.ServiceRecord, error) {
	return []types.ServiceRecord{
		{ID: "1", Name: "Gói xét nghiệm gan", ServiceType: types.ServiceTypePackage},
		{ID: "2", Name: "Xét nghiệm gan", ServiceType: types.ServiceTypeAtomic},
		{ID: "3", Name: "Siêu âm", ServiceType: types.ServiceTypeAtomic},
	}, nil
}

func (s *stubAPI) UnifiedSearch(ctx context.Context, q string) (*types.UnifiedSearchResponse, error) {
	return &types.UnifiedSearchResponse{
		Success:  true,
		Services: []types.ServiceRecord{{ID: "2", Name: "Xét nghiệm gan", ServiceType: types.ServiceTypeAtomic}},
		Parsed:   &types.ParsedLocation{City: "Hà Nội"},
	}, nil
}

func (s *stubAPI) Suggestions(ctx context.Context, q string) ([]types.Suggestion, error) {
	return []types.Suggestion{{Name: "Xét nghiệm gan", Type: "test"}}, nil
}

func (s *stubAPI) SmartSearch(ctx context.Context, req types.SmartSearchRequest) (*types.SmartSearchResponse, error) {
	s.smartReq = req
	return &types.SmartSearchResponse{
		Success: true,
		Results: types.SmartSearchResults{
			PartialPackages: []types.PackageMatch{{ProviderServiceID: "5", Name: "Gói gan", CoverageScore: 0.5}},
		},
	}, nil
}

func (s *stubAPI) ServiceDetail(ctx context.Context, id types.ID) (*types.ServiceDetail, error) {
	if id == "404" {
		return nil, errors.New("api error 404")
	}
	parent := id
	return &types.ServiceDetail{
		ServiceRecord: types.ServiceRecord{ID: id, Name: "Gói xét nghiệm gan", ServiceType: types.ServiceTypePackage},
		Components: []types.ServiceRecord{
			{ID: "2", Name: "Xét nghiệm gan", ServiceType: types.ServiceTypeAtomic, ParentServiceID: &parent},
			{ID: "4", Name: "Men gan", ServiceType: types.ServiceTypeAtomic, ParentServiceID: &parent},
		},
	}, nil
}

func (s *stubAPI) ServiceBranches(ctx context.Context, id types.ID) ([]types.Branch, error) {
	q3 := types.Branch{ID: "b1", Name: "Chi nhánh Võ Văn Tần", Address: "12 Võ Văn Tần", District: "Quận 3", City: "Hồ Chí Minh"}
	q1 := types.Branch{ID: "b2", Name: "Chi nhánh Bến Thành", Address: "1 Lê Lợi", District: "Quận 1", City: "Hồ Chí Minh"}
	cg := types.Branch{ID: "b3", Name: "Chi nhánh Cầu Giấy", Address: "5 Xuân Thủy", District: "Cầu Giấy", City: "Hà Nội"}
	switch id {
	case "1":
		return []types.Branch{q3, q1, cg}, nil
	case "2":
		return []types.Branch{cg, q3}, nil
	case "500":
		return nil, errors.New("api error 500")
	}
	return []types.Branch{}, nil
}

func (s *stubAPI) ClinicalPathways(ctx context.Context) ([]types.PathwayRecord, error) {
	return []types.PathwayRecord{{ID: "1", Name: "Viêm gan"}}, nil
}

func (s *stubAPI) CanonicalServices(ctx context.Context) ([]types.CanonicalService, error) {
	return nil, errors.New("unavailable")
}

func (s *stubAPI) PopularServices(ctx context.Context) ([]types.ServiceRecord, error) {
	return []types.ServiceRecord{}, nil
}

func (s *stubAPI) Providers(ctx context.Context) ([]types.Provider, error) {
	return []types.Provider{{ID: "p1", BrandName: "Diag"}}, nil
}

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  errorPayload    `json:"error"`
}

func newTestRouter(t *testing.T) (http.Handler, *stubAPI, *cache.Manager) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	api := &stubAPI{}
	mgr := cache.NewManager(api, nil, cache.Options{Logger: logger})
	srch := searcher.NewSearcher(api, searcher.Options{Logger: logger})
	return NewRouter(NewHandler(srch, mgr, logger), logger), api, mgr
}

func do(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func TestHealthzSetsRequestID(t *testing.T) {
	h, _, _ := newTestRouter(t)

	rec, env := do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", env.Status)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestSearchRoute(t *testing.T) {
	h, _, _ := newTestRouter(t)

	rec, env := do(t, h, http.MethodGet, "/v1/search?q=x%C3%A9t+nghi%E1%BB%87m+gan&limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SearchResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, "xet nghiem gan", resp.NormalizedQuery)
	assert.Len(t, resp.Packages, 1)
	assert.Len(t, resp.Tests, 1)
	assert.Equal(t, 1, resp.Excluded)
	assert.Equal(t, searcher.SearchModeLocal, resp.SearchMode)
}

func TestSearchRouteValidation(t *testing.T) {
	h, _, _ := newTestRouter(t)

	tests := []struct {
		name   string
		target string
		code   string
	}{
		{"MissingQuery", "/v1/search", "empty_query"},
		{"BlankQuery", "/v1/search?q=++", "empty_query"},
		{"BadLimit", "/v1/search?q=gan&limit=abc", "invalid_input"},
		{"LimitTooHigh", "/v1/search/unified?q=gan&limit=101", "invalid_input"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := do(t, h, http.MethodGet, tt.target, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "error", env.Status)
			assert.Equal(t, tt.code, env.Error.Code)
			assert.NotEmpty(t, env.Error.RequestID)
		})
	}
}

func TestUnifiedSearchRoute(t *testing.T) {
	h, _, _ := newTestRouter(t)

	rec, env := do(t, h, http.MethodGet, "/v1/search/unified?q=gan+h%C3%A0+n%E1%BB%99i", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SearchResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, searcher.SearchModeUnified, resp.SearchMode)
	require.NotNil(t, resp.Parsed)
	assert.Equal(t, "Hà Nội", resp.Parsed.City)
}

func TestSuggestionsRoute(t *testing.T) {
	h, _, _ := newTestRouter(t)

	_, env := do(t, h, http.MethodGet, "/v1/suggestions?q=gan", "")
	var data map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, float64(1), data["count"])
}

func TestSmartSearchRoute(t *testing.T) {
	h, api, _ := newTestRouter(t)

	rec, env := do(t, h, http.MethodPost, "/v1/smart-search", `{"query":"gan","pathway_id":12,"patient_age":30}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, types.ID("12"), api.smartReq.PathwayID)

	var resp SmartSearchResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	require.Len(t, resp.PartialPackages, 1)
	assert.Equal(t, 50, resp.PartialPackages[0].CoveragePercent)
	assert.Equal(t, types.CoverageLow, resp.PartialPackages[0].CoverageLevel)

	rec, env = do(t, h, http.MethodPost, "/v1/smart-search", `{"patient_age":30}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "empty_query", env.Error.Code)

	rec, env = do(t, h, http.MethodPost, "/v1/smart-search", `{"query":"gan","patient_gender":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_input", env.Error.Code)

	rec, env = do(t, h, http.MethodPost, "/v1/smart-search", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_json", env.Error.Code)
}

func TestReferenceRoutes(t *testing.T) {
	h, _, mgr := newTestRouter(t)

	rec, env := do(t, h, http.MethodGet, "/v1/reference/providers", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp ReferenceResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.False(t, resp.FromCache)
	assert.Equal(t, 1, resp.Count)

	// Failed fetch yields an empty list, not an error
	_, env = do(t, h, http.MethodGet, "/v1/reference/canonical_services", "")
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.True(t, resp.FromCache)
	assert.Equal(t, 0, resp.Count)

	_, env = do(t, h, http.MethodGet, "/v1/reference/pathways?group_by_category=true", "")
	var grouped struct {
		Data map[string][]types.PathwayRecord `json:"data"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &grouped))
	assert.Len(t, grouped.Data[types.DefaultPathwayCategory], 1)

	rec, env = do(t, h, http.MethodGet, "/v1/reference/bookings", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "unknown_dataset", env.Error.Code)

	rec, _ = do(t, h, http.MethodPost, "/v1/reference/refresh", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, cache.StateFresh, mgr.State(context.Background()))
}

func TestCacheRoutes(t *testing.T) {
	h, _, mgr := newTestRouter(t)
	mgr.Initialize(context.Background(), false)
	do(t, h, http.MethodGet, "/v1/search?q=gan", "")

	_, env := do(t, h, http.MethodGet, "/v1/cache/status", "")
	var status CacheStatusResponse
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.Equal(t, cache.StateFresh, status.Reference.State)
	assert.Equal(t, 1, status.Queries["search"])

	rec, env := do(t, h, http.MethodDelete, "/v1/cache?scope=bogus", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_input", env.Error.Code)

	rec, _ = do(t, h, http.MethodDelete, "/v1/cache?scope=queries", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, cache.StateFresh, mgr.State(context.Background()))

	rec, _ = do(t, h, http.MethodDelete, "/v1/cache", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, cache.StateEmpty, mgr.State(context.Background()))
}

func TestMapSearchError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{searcher.ErrEmptyQuery, http.StatusBadRequest, "empty_query"},
		{searcher.ErrSuperseded, http.StatusConflict, "superseded"},
		{context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
		{searcher.ErrNoServiceIDs, http.StatusBadRequest, "invalid_input"},
		{fmt.Errorf("%w: api error 503", searcher.ErrLookupFailed), http.StatusBadGateway, "upstream_error"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		status, code := mapSearchError(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
		assert.Equal(t, tt.code, code, tt.err.Error())
	}
}

func TestComponentsRoute(t *testing.T) {
	h, _, _ := newTestRouter(t)

	rec, env := do(t, h, http.MethodGet, "/v1/services/1/components", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ComponentsResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, "1", resp.PackageID)
	assert.Equal(t, 2, resp.Count)
	assert.False(t, resp.CacheHit)
	assert.Equal(t, "Men gan", resp.Components[1].Name)

	_, env = do(t, h, http.MethodGet, "/v1/services/1/components", "")
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.True(t, resp.CacheHit)

	rec, env = do(t, h, http.MethodGet, "/v1/services/404/components", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "upstream_error", env.Error.Code)
}

func TestBranchRoutes(t *testing.T) {
	h, _, _ := newTestRouter(t)

	tests := []struct {
		name      string
		target    string
		wantIDs   []types.ID
		wantTotal int
	}{
		{name: "AllBranches", target: "/v1/services/1/branches", wantIDs: []types.ID{"b1", "b2", "b3"}, wantTotal: 3},
		{name: "CityFilter", target: "/v1/services/1/branches?city=H%E1%BB%93+Ch%C3%AD+Minh", wantIDs: []types.ID{"b1", "b2"}, wantTotal: 3},
		{name: "DistrictFilter", target: "/v1/services/1/branches?district=Qu%E1%BA%ADn+1", wantIDs: []types.ID{"b2"}, wantTotal: 3},
		{name: "TextFilter", target: "/v1/services/1/branches?q=xuan+thuy", wantIDs: []types.ID{"b3"}, wantTotal: 3},
		{name: "Cart", target: "/v1/branches?service_id=1&service_id=2", wantIDs: []types.ID{"b1", "b3"}, wantTotal: 2},
		{name: "CartCommaList", target: "/v1/branches?service_id=1,2&district=C%E1%BA%A7u+Gi%E1%BA%A5y", wantIDs: []types.ID{"b3"}, wantTotal: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := do(t, h, http.MethodGet, tt.target, "")
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var resp BranchesResponse
			require.NoError(t, json.Unmarshal(env.Data, &resp))
			ids := make([]types.ID, 0, len(resp.Branches))
			for _, b := range resp.Branches {
				ids = append(ids, b.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Equal(t, len(tt.wantIDs), resp.Count)
			assert.Equal(t, tt.wantTotal, resp.Total)
		})
	}
}

func TestBranchRoutesErrors(t *testing.T) {
	h, _, _ := newTestRouter(t)

	rec, env := do(t, h, http.MethodGet, "/v1/branches", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_input", env.Error.Code)

	rec, env = do(t, h, http.MethodGet, "/v1/services/500/branches", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "upstream_error", env.Error.Code)
	assert.NotEmpty(t, env.Error.RequestID)
}
