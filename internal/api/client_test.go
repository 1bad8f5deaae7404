package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/medsearch-mcp/pkg/types"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(server.URL+"/api", Options{
		Timeout: 2 * time.Second,
		Retry: RetryConfig{
			MaxAttempts: 2,
			BaseDelay:   time.Millisecond,
			MaxDelay:    5 * time.Millisecond,
			Multiplier:  2,
		},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	return client, server
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewClientValidatesBaseURL(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		wantErr bool
	}{
		{name: "https with prefix", baseURL: "https://api.example.com/api"},
		{name: "trailing slash", baseURL: "http://localhost:8080/api/"},
		{name: "empty", baseURL: "", wantErr: true},
		{name: "no scheme", baseURL: "api.example.com", wantErr: true},
		{name: "unsupported scheme", baseURL: "ftp://example.com", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClient(tt.baseURL, Options{})
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidBaseURL)
				return
			}
			require.NoError(t, err)
			assert.False(t, strings.HasSuffix(c.BaseURL(), "/"))
		})
	}
}

func TestSearchServices(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/search/services", r.URL.Path)
		assert.Equal(t, "xet nghiem mau", r.URL.Query().Get("q"))

		// No success flag on this endpoint; ids and prices arrive mixed
		_, _ = io.WriteString(w, `{"data":[
			{"id": 12, "provider_service_name_vn": "Xét nghiệm máu", "service_type": "atomic", "discounted_price": "150000.00"},
			{"id": "a-1", "provider_service_name_vn": "Gói tổng quát", "service_type": "package",
			 "pricing_data": [{"tier_id": 1, "label": "Cơ bản", "price": 900000}, {"tier_id": 2, "label": "Nâng cao", "price": 1500000, "is_default": true}]}
		]}`)
	})

	records, err := client.SearchServices(context.Background(), "xet nghiem mau")
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, types.ID("12"), records[0].ID)
	price, ok := records[0].EffectivePrice()
	require.True(t, ok)
	assert.Equal(t, 150000.0, price.Float64())

	assert.Equal(t, types.ID("a-1"), records[1].ID)
	tier, ok := records[1].DefaultTier()
	require.True(t, ok)
	assert.Equal(t, "Nâng cao", tier.Label)
}

func TestReferenceEndpoints(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/clinical-pathways":
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": []map[string]any{
				{"id": 1, "name_vn": "Tầm soát tiểu đường", "category": "metabolic"},
			}})
		case "/api/canonical-services":
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": []map[string]any{
				{"id": 5, "name_vn": "Glucose máu", "code": "GLU"},
			}})
		case "/api/search/popular":
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": []any{}})
		case "/api/providers":
			writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": "maintenance"})
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	pathways, err := client.ClinicalPathways(ctx)
	require.NoError(t, err)
	require.Len(t, pathways, 1)
	assert.Equal(t, "metabolic", pathways[0].Category)

	canonical, err := client.CanonicalServices(ctx)
	require.NoError(t, err)
	require.Len(t, canonical, 1)
	assert.Equal(t, "GLU", canonical[0].Code)

	popular, err := client.PopularServices(ctx)
	require.NoError(t, err)
	assert.NotNil(t, popular)
	assert.Empty(t, popular)

	_, err = client.Providers(ctx)
	assert.ErrorIs(t, err, ErrUnsuccessful)
	assert.Contains(t, err.Error(), "maintenance")
}

func TestEnvelopeErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "missing data", status: 200, body: `{"success": true}`, wantErr: ErrMalformedResponse},
		{name: "null data", status: 200, body: `{"success": true, "data": null}`, wantErr: ErrMalformedResponse},
		{name: "data not a list", status: 200, body: `{"success": true, "data": {"id": 1}}`, wantErr: ErrMalformedResponse},
		{name: "not json", status: 200, body: `<html>oops</html>`, wantErr: ErrMalformedResponse},
		{name: "missing success flag", status: 200, body: `{"data": []}`, wantErr: ErrUnsuccessful},
		{name: "not found", status: 404, body: `{"error":"nope"}`, wantErr: ErrRequestFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			_, err := client.ClinicalPathways(context.Background())
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": []any{}})
	})

	_, err := client.Providers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRetryGivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, "down")
	})

	_, err := client.Providers(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRequestFailed)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	assert.Equal(t, "down", statusErr.Body)
	assert.Equal(t, int32(2), calls.Load())
}

func TestNoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := client.Suggestions(context.Background(), "ga")
	assert.ErrorIs(t, err, ErrRequestFailed)
	assert.Equal(t, int32(1), calls.Load())
}

func TestNoRetryOnMalformedResponse(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = io.WriteString(w, "{")
	})

	_, err := client.SearchServices(context.Background(), "gan")
	assert.ErrorIs(t, err, ErrMalformedResponse)
	assert.Equal(t, int32(1), calls.Load())
}

func TestContextCancellation(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.ClinicalPathways(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestUnifiedSearch(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/search", r.URL.Path)
		// Raw, non-normalized query is sent
		assert.Equal(t, "Xét nghiệm Hà Nội", r.URL.Query().Get("q"))
		writeJSON(w, http.StatusOK, map[string]any{
			"success":  true,
			"packages": []map[string]any{
				{"id": 1, "provider_service_name_vn": "Gói A", "service_type": "package", "discounted_price": 500000},
				{"id": 2, "provider_service_name_vn": "Gói B", "service_type": "package"},
			},
			"parsed":   map[string]any{"city": "Hà Nội"},
		})
	})

	resp, err := client.UnifiedSearch(context.Background(), "Xét nghiệm Hà Nội")
	require.NoError(t, err)
	assert.True(t, resp.Success)
	// The unpriced package is dropped at the boundary
	require.Len(t, resp.Packages, 1)
	assert.Equal(t, types.ID("1"), resp.Packages[0].ID)
	assert.NotNil(t, resp.Services)
	require.NotNil(t, resp.Parsed)
	assert.Equal(t, "Hà Nội", resp.Parsed.City)
}

func TestSmartSearch(t *testing.T) {
	age := 45
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/smart-search", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		// pathway_id wins; query is dropped
		assert.Equal(t, "7", body["pathway_id"])
		assert.NotContains(t, body, "query")
		assert.Equal(t, float64(45), body["patient_age"])
		assert.Equal(t, "female", body["patient_gender"])

		_, _ = io.WriteString(w, `{
			"success": true,
			"suggested_pathway": {"id": 7, "name_vn": "Tầm soát tim mạch"},
			"results": {
				"complete_packages": [{"provider_service_id": 99, "name": "Gói tim mạch", "price": 2500000, "coverage_score": 0.95,
					"matched_required": 5, "total_required": 5, "matched_recommended": 2}],
				"partial_packages": [],
				"individual_options": {"total_price": 800000, "services": [
					{"canonical_id": 3, "canonical_service": {"id": 3, "name_vn": "Lipid máu"},
					 "provider_service": {"id": 31, "provider_service_name_vn": "Bộ mỡ máu", "service_type": "atomic"}, "price": "800000"}
				]}
			}
		}`)
	})

	resp, err := client.SmartSearch(context.Background(), types.SmartSearchRequest{
		Query:         "tim mạch",
		PathwayID:     "7",
		PatientAge:    &age,
		PatientGender: "female",
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.SuggestedPathway)
	assert.Equal(t, types.ID("7"), resp.SuggestedPathway.ID)

	require.Len(t, resp.Results.CompletePackages, 1)
	match := resp.Results.CompletePackages[0]
	assert.Equal(t, types.CoverageHigh, match.CoverageLevel())
	assert.Equal(t, types.ID("99"), match.ProviderServiceID)

	require.NotNil(t, resp.Results.IndividualOptions)
	assert.Equal(t, 800000.0, resp.Results.IndividualOptions.TotalPrice.Float64())
	require.Len(t, resp.Results.IndividualOptions.Services, 1)
	assert.Equal(t, 800000.0, resp.Results.IndividualOptions.Services[0].Price.Float64())
}

func TestSearchServicesDropsInvalidRecords(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":[
			{"id": 1, "provider_service_name_vn": "Xét nghiệm máu", "service_type": "atomic", "discounted_price": 100000},
			{"id": 2, "provider_service_name_vn": "", "service_type": "atomic", "discounted_price": 100000},
			{"id": 3, "provider_service_name_vn": "Voucher", "service_type": "voucher", "discounted_price": 100000},
			{"id": 4, "provider_service_name_vn": "Gói lạ", "service_type": "package", "discounted_price": 1,
			 "pricing_data": [{"tier_id": 1, "label": "A", "price": 2}]},
			{"id": 5, "provider_service_name_vn": "Siêu âm", "service_type": "individual_test", "discounted_price": 200000}
		]}`)
	})

	records, err := client.SearchServices(context.Background(), "x")
	require.NoError(t, err)

	ids := make([]types.ID, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.ID)
	}
	assert.Equal(t, []types.ID{"1", "5"}, ids)
}

func TestServiceDetail(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/services/42":
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{
				"id": 42, "provider_service_name_vn": "Gói tổng quát", "service_type": "package",
				"discounted_price": 900000,
				"components": []map[string]any{
					{"id": 7, "provider_service_name_vn": "Công thức máu", "service_type": "atomic", "parent_service_id": 42},
					{"id": 8, "provider_service_name_vn": "Glucose", "service_type": "atomic", "parent_service_id": 42},
				},
			}})
		case "/api/services/43":
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{
				"id": 43, "provider_service_name_vn": "Glucose", "service_type": "atomic",
			}})
		case "/api/services/44":
			writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": "not found"})
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	detail, err := client.ServiceDetail(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "Gói tổng quát", detail.Name)
	require.Len(t, detail.Components, 2)
	assert.True(t, detail.Components[0].IsComponent())

	single, err := client.ServiceDetail(ctx, "43")
	require.NoError(t, err)
	assert.NotNil(t, single.Components)
	assert.Empty(t, single.Components)

	_, err = client.ServiceDetail(ctx, "44")
	assert.ErrorIs(t, err, ErrUnsuccessful)

	_, err = client.ServiceDetail(ctx, "")
	assert.ErrorIs(t, err, types.ErrMissingID)
}

func TestServiceBranches(t *testing.T) {
	var gotPath string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		writeJSON(w, http.StatusOK, map[string]any{"data": []map[string]any{
			{"id": 1, "branch_name_vn": "Chi nhánh Quận 3", "address": "12 Võ Văn Tần", "district": "Quận 3", "city": "Hồ Chí Minh"},
			{"id": "b2", "branch_name_vn": "Chi nhánh Cầu Giấy", "address": "5 Xuân Thủy", "district": "Cầu Giấy", "city": "Hà Nội"},
		}})
	})

	branches, err := client.ServiceBranches(context.Background(), "a/1")
	require.NoError(t, err)
	assert.Equal(t, "/api/services/a%2F1/branches", gotPath)
	require.Len(t, branches, 2)
	assert.Equal(t, types.ID("1"), branches[0].ID)
	assert.Equal(t, "Quận 3", branches[0].District)
	assert.Equal(t, "Hà Nội", branches[1].City)

	_, err = client.ServiceBranches(context.Background(), "")
	assert.ErrorIs(t, err, types.ErrMissingID)
}
