package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/dshills/medsearch-mcp/pkg/types"
)

// Endpoint paths, relative to the base URL
const (
	PathSearchServices    = "/search/services"
	PathUnifiedSearch     = "/v2/search"
	PathSuggestions       = "/search/suggestions"
	PathPopularServices   = "/search/popular"
	PathClinicalPathways  = "/clinical-pathways"
	PathCanonicalServices = "/canonical-services"
	PathProviders         = "/providers"
	PathSmartSearch       = "/smart-search"
	PathServices          = "/services"
)

// envelope is the {success, data} wrapper most endpoints respond with
type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message,omitempty"`
}

// decodeData checks the envelope and decodes its data list. When
// requireSuccess is set, a missing or false success flag is ErrUnsuccessful.
func decodeData[T any](env envelope, requireSuccess bool) ([]T, error) {
	if requireSuccess && (env.Success == nil || !*env.Success) {
		if env.Message != "" {
			return nil, fmt.Errorf("%w: %s", ErrUnsuccessful, env.Message)
		}
		return nil, ErrUnsuccessful
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, fmt.Errorf("%w: missing data", ErrMalformedResponse)
	}

	var out []T
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return nil, fmt.Errorf("%w: decode data: %v", ErrMalformedResponse, err)
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

// fetchList GETs path and returns the envelope's data list
func fetchList[T any](ctx context.Context, c *Client, path string, query url.Values, requireSuccess bool) ([]T, error) {
	var env envelope
	if err := c.getJSON(ctx, path, query, &env); err != nil {
		return nil, err
	}
	return decodeData[T](env, requireSuccess)
}

// decodeObject checks the envelope and decodes its data object into out
func decodeObject(env envelope, out any) error {
	if env.Success == nil || !*env.Success {
		if env.Message != "" {
			return fmt.Errorf("%w: %s", ErrUnsuccessful, env.Message)
		}
		return ErrUnsuccessful
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return fmt.Errorf("%w: missing data", ErrMalformedResponse)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: decode data: %v", ErrMalformedResponse, err)
	}
	return nil
}

// validServices drops records that fail validation. The API is loose about
// shape, so a bad record is logged and skipped rather than failing the list.
func (c *Client) validServices(path string, records []types.ServiceRecord) []types.ServiceRecord {
	valid := records[:0]
	for _, rec := range records {
		if err := rec.Validate(); err != nil {
			c.logger.Warn("dropping invalid service record",
				"path", path,
				"id", rec.ID.String(),
				"error", err,
			)
			continue
		}
		valid = append(valid, rec)
	}
	return valid
}

func servicePath(id types.ID, suffix string) string {
	return PathServices + "/" + url.PathEscape(id.String()) + suffix
}

func queryParam(q string) url.Values {
	return url.Values{"q": []string{q}}
}

// SearchServices returns the raw candidate superset for an already
// normalized query. The endpoint carries no success flag.
func (c *Client) SearchServices(ctx context.Context, normalizedQuery string) ([]types.ServiceRecord, error) {
	records, err := fetchList[types.ServiceRecord](ctx, c, PathSearchServices, queryParam(normalizedQuery), false)
	if err != nil {
		return nil, err
	}
	return c.validServices(PathSearchServices, records), nil
}

// UnifiedSearch calls the server-ranked search with the raw query. The
// caller inspects Success.
func (c *Client) UnifiedSearch(ctx context.Context, rawQuery string) (*types.UnifiedSearchResponse, error) {
	var resp types.UnifiedSearchResponse
	if err := c.getJSON(ctx, PathUnifiedSearch, queryParam(rawQuery), &resp); err != nil {
		return nil, err
	}
	if resp.Packages == nil {
		resp.Packages = []types.ServiceRecord{}
	}
	if resp.Services == nil {
		resp.Services = []types.ServiceRecord{}
	}
	resp.Packages = c.validServices(PathUnifiedSearch, resp.Packages)
	resp.Services = c.validServices(PathUnifiedSearch, resp.Services)
	return &resp, nil
}

// Suggestions returns typeahead suggestions for a normalized query
func (c *Client) Suggestions(ctx context.Context, normalizedQuery string) ([]types.Suggestion, error) {
	return fetchList[types.Suggestion](ctx, c, PathSuggestions, queryParam(normalizedQuery), true)
}

// PopularServices returns the most booked services
func (c *Client) PopularServices(ctx context.Context) ([]types.ServiceRecord, error) {
	records, err := fetchList[types.ServiceRecord](ctx, c, PathPopularServices, nil, true)
	if err != nil {
		return nil, err
	}
	return c.validServices(PathPopularServices, records), nil
}

// ClinicalPathways returns every clinical pathway
func (c *Client) ClinicalPathways(ctx context.Context) ([]types.PathwayRecord, error) {
	return fetchList[types.PathwayRecord](ctx, c, PathClinicalPathways, nil, true)
}

// CanonicalServices returns the canonical service catalog
func (c *Client) CanonicalServices(ctx context.Context) ([]types.CanonicalService, error) {
	return fetchList[types.CanonicalService](ctx, c, PathCanonicalServices, nil, true)
}

// Providers returns every provider brand
func (c *Client) Providers(ctx context.Context) ([]types.Provider, error) {
	return fetchList[types.Provider](ctx, c, PathProviders, nil, true)
}

// SmartSearch posts a smart-search request. Responses with success=false
// are returned without error; the caller decides what to do with them.
func (c *Client) SmartSearch(ctx context.Context, req types.SmartSearchRequest) (*types.SmartSearchResponse, error) {
	var resp types.SmartSearchResponse
	if err := c.postJSON(ctx, PathSmartSearch, req.Body(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ServiceDetail returns one service with its package components
func (c *Client) ServiceDetail(ctx context.Context, id types.ID) (*types.ServiceDetail, error) {
	if id.IsZero() {
		return nil, types.ErrMissingID
	}

	var env envelope
	if err := c.getJSON(ctx, servicePath(id, ""), nil, &env); err != nil {
		return nil, err
	}
	var detail types.ServiceDetail
	if err := decodeObject(env, &detail); err != nil {
		return nil, err
	}
	if detail.Components == nil {
		detail.Components = []types.ServiceRecord{}
	}
	return &detail, nil
}

// ServiceBranches returns the branches offering a service. The endpoint
// carries no success flag.
func (c *Client) ServiceBranches(ctx context.Context, id types.ID) ([]types.Branch, error) {
	if id.IsZero() {
		return nil, types.ErrMissingID
	}
	return fetchList[types.Branch](ctx, c, servicePath(id, "/branches"), nil, false)
}
