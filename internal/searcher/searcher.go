package searcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/medsearch-mcp/internal/cache"
	"github.com/dshills/medsearch-mcp/internal/textnorm"
	"github.com/dshills/medsearch-mcp/pkg/types"
)

// SearchMode records which pipeline produced a response
type SearchMode string

const (
	SearchModeLocal   SearchMode = "local"   // server superset, ranked client-side
	SearchModeUnified SearchMode = "unified" // ranked by the /v2/search endpoint
)

// Operation names used for request sequencing
const (
	opSearch  = "search"
	opUnified = "unified"
	opSuggest = "suggest"
	opSmart   = "smart_search"
)

// Defaults
const (
	DefaultSearchTTL           = 5 * time.Minute
	DefaultSmartSearchTTL      = 5 * time.Minute
	DefaultSuggestionCacheSize = 200
	DefaultComponentCacheSize  = 200
	MinSuggestionQueryLength   = 2
)

var (
	// ErrEmptyQuery is returned when a search has nothing to search for
	ErrEmptyQuery = errors.New("query cannot be empty")
	// ErrSuperseded is returned when a newer request for the same operation
	// was issued while this one was in flight; its response is discarded
	ErrSuperseded = errors.New("superseded by a newer request")
)

// Client is the subset of the remote API the searcher consumes
type Client interface {
	SearchServices(ctx context.Context, normalizedQuery string) ([]types.ServiceRecord, error)
	UnifiedSearch(ctx context.Context, rawQuery string) (*types.UnifiedSearchResponse, error)
	Suggestions(ctx context.Context, normalizedQuery string) ([]types.Suggestion, error)
	SmartSearch(ctx context.Context, req types.SmartSearchRequest) (*types.SmartSearchResponse, error)
	ServiceDetail(ctx context.Context, id types.ID) (*types.ServiceDetail, error)
	ServiceBranches(ctx context.Context, id types.ID) ([]types.Branch, error)
}

// SearchRequest contains parameters for a search operation
type SearchRequest struct {
	Query            string
	Limit            int  // Per category; 0 returns everything
	PreferStandalone bool // Rank standalone tests above package components on ties
	KeepUnmatched    bool // Keep zero-scored records
	UseCache         bool // Whether to use the query cache
}

// SearchResponse contains ranked results and metadata
type SearchResponse struct {
	Query           string
	NormalizedQuery string
	Packages        []types.ScoredRecord
	Tests           []types.ScoredRecord
	TotalResults    int
	Excluded        int // Candidates dropped for scoring zero
	Parsed          *types.ParsedLocation
	SearchMode      SearchMode
	Duration        time.Duration
	CacheHit        bool
	Degraded        bool // The remote call failed; results are empty
}

// SmartSearchResult wraps a smart-search response with cache metadata
type SmartSearchResult struct {
	Response *types.SmartSearchResponse
	CacheHit bool
	Degraded bool
}

// Options configures a Searcher. Zero values select the defaults.
type Options struct {
	SearchTTL           time.Duration
	SmartSearchTTL      time.Duration
	QueryCacheSize      int
	SuggestionCacheSize int
	ComponentCacheSize  int
	Logger              *slog.Logger
}

// Searcher coordinates remote search calls, client-side ranking and caching
type Searcher struct {
	client      Client
	seq         *Sequencer
	searchCache *cache.QueryCache[[]types.ServiceRecord]
	smartCache  *cache.QueryCache[*types.SmartSearchResponse]
	suggestions *lru.Cache[string, []types.Suggestion]
	components  *lru.Cache[types.ID, []types.ServiceRecord]
	searchTTL   time.Duration
	smartTTL    time.Duration
	logger      *slog.Logger
}

// NewSearcher creates a new Searcher instance
func NewSearcher(client Client, opts Options) *Searcher {
	if opts.SearchTTL <= 0 {
		opts.SearchTTL = DefaultSearchTTL
	}
	if opts.SmartSearchTTL <= 0 {
		opts.SmartSearchTTL = DefaultSmartSearchTTL
	}
	if opts.SuggestionCacheSize <= 0 {
		opts.SuggestionCacheSize = DefaultSuggestionCacheSize
	}
	if opts.ComponentCacheSize <= 0 {
		opts.ComponentCacheSize = DefaultComponentCacheSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	// lru.New only fails for a non-positive size, which is excluded above
	suggestions, err := lru.New[string, []types.Suggestion](opts.SuggestionCacheSize)
	if err != nil {
		panic(fmt.Sprintf("failed to create suggestion cache: %v", err))
	}
	components, err := lru.New[types.ID, []types.ServiceRecord](opts.ComponentCacheSize)
	if err != nil {
		panic(fmt.Sprintf("failed to create component cache: %v", err))
	}

	return &Searcher{
		client:      client,
		seq:         NewSequencer(),
		searchCache: cache.NewQueryCache[[]types.ServiceRecord](opts.QueryCacheSize),
		smartCache:  cache.NewQueryCache[*types.SmartSearchResponse](opts.QueryCacheSize),
		suggestions: suggestions,
		components:  components,
		searchTTL:   opts.SearchTTL,
		smartTTL:    opts.SmartSearchTTL,
		logger:      opts.Logger.With("component", "searcher"),
	}
}

// Search fetches candidates for the query and ranks packages and tests
// independently. Remote failures degrade to an empty response.
func (s *Searcher) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	startTime := time.Now()

	if strings.TrimSpace(req.Query) == "" {
		return nil, ErrEmptyQuery
	}
	normalized := textnorm.Normalize(req.Query)

	// A cache hit also supersedes requests already in flight
	session := SessionFromContext(ctx)
	token := s.seq.Next(opSearch, session)
	defer s.seq.Done(opSearch, session, token)

	if req.UseCache {
		if candidates, ok := s.searchCache.Fresh(req.Query, s.searchTTL); ok {
			resp := s.rankCandidates(req, normalized, candidates)
			resp.CacheHit = true
			resp.Duration = time.Since(startTime)
			return resp, nil
		}
	}

	candidates, err := s.client.SearchServices(ctx, normalized)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if !s.seq.IsLatest(opSearch, session, token) {
		s.logger.Debug("discarding stale search response", "query", req.Query)
		return nil, ErrSuperseded
	}

	if err != nil {
		s.logger.Warn("search request failed", "query", req.Query, "error", err)
		resp := s.rankCandidates(req, normalized, nil)
		resp.Degraded = true
		resp.Duration = time.Since(startTime)
		return resp, nil
	}

	if req.UseCache {
		s.searchCache.Put(req.Query, candidates)
	}

	resp := s.rankCandidates(req, normalized, candidates)
	resp.Duration = time.Since(startTime)
	return resp, nil
}

// rankCandidates partitions and ranks raw candidates
func (s *Searcher) rankCandidates(req SearchRequest, normalized string, candidates []types.ServiceRecord) *SearchResponse {
	opts := RankOptions{
		KeepUnmatched:    req.KeepUnmatched,
		PreferStandalone: req.PreferStandalone,
		Limit:            req.Limit,
	}

	packages, tests := Partition(candidates)
	rankedPackages := Rank(packages, req.Query, opts)
	rankedTests := Rank(tests, req.Query, opts)

	excluded := 0
	if !req.KeepUnmatched {
		excluded = countUnmatched(packages, req.Query) + countUnmatched(tests, req.Query)
	}

	return &SearchResponse{
		Query:           req.Query,
		NormalizedQuery: normalized,
		Packages:        rankedPackages,
		Tests:           rankedTests,
		TotalResults:    len(rankedPackages) + len(rankedTests),
		Excluded:        excluded,
		SearchMode:      SearchModeLocal,
	}
}

func countUnmatched(records []types.ServiceRecord, query string) int {
	n := 0
	for _, rec := range records {
		if Score(rec, query) == 0 {
			n++
		}
	}
	return n
}

// UnifiedSearch queries the server-ranked /v2/search endpoint. Scores are
// filled in for display but the server order is kept. When the endpoint
// fails, it falls back to Search with client-side ranking.
func (s *Searcher) UnifiedSearch(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	startTime := time.Now()

	if strings.TrimSpace(req.Query) == "" {
		return nil, ErrEmptyQuery
	}

	session := SessionFromContext(ctx)
	token := s.seq.Next(opUnified, session)
	defer s.seq.Done(opUnified, session, token)
	result, err := s.client.UnifiedSearch(ctx, req.Query)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if !s.seq.IsLatest(opUnified, session, token) {
		s.logger.Debug("discarding stale unified search response", "query", req.Query)
		return nil, ErrSuperseded
	}

	if err != nil || result == nil || !result.Success {
		s.logger.Warn("unified search unavailable, ranking locally", "query", req.Query, "error", err)
		return s.Search(ctx, req)
	}

	packages := serverRanked(result.Packages, req.Query)
	tests := serverRanked(result.Services, req.Query)
	if req.Limit > 0 {
		packages = truncate(packages, req.Limit)
		tests = truncate(tests, req.Limit)
	}

	return &SearchResponse{
		Query:           req.Query,
		NormalizedQuery: textnorm.Normalize(req.Query),
		Packages:        packages,
		Tests:           tests,
		TotalResults:    len(packages) + len(tests),
		Parsed:          result.Parsed,
		SearchMode:      SearchModeUnified,
		Duration:        time.Since(startTime),
	}, nil
}

func truncate(records []types.ScoredRecord, limit int) []types.ScoredRecord {
	if len(records) > limit {
		return records[:limit]
	}
	return records
}

// Suggest returns typeahead suggestions. Queries shorter than
// MinSuggestionQueryLength runes return nothing.
func (s *Searcher) Suggest(ctx context.Context, query string) ([]types.Suggestion, error) {
	normalized := strings.TrimSpace(textnorm.Normalize(query))
	if utf8.RuneCountInString(normalized) < MinSuggestionQueryLength {
		return []types.Suggestion{}, nil
	}

	session := SessionFromContext(ctx)
	token := s.seq.Next(opSuggest, session)
	defer s.seq.Done(opSuggest, session, token)
	if cached, ok := s.suggestions.Get(normalized); ok {
		return cached, nil
	}

	suggestions, err := s.client.Suggestions(ctx, normalized)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if !s.seq.IsLatest(opSuggest, session, token) {
		return nil, ErrSuperseded
	}
	if err != nil {
		s.logger.Warn("suggestions request failed", "query", query, "error", err)
		return []types.Suggestion{}, nil
	}

	if suggestions == nil {
		suggestions = []types.Suggestion{}
	}
	s.suggestions.Add(normalized, suggestions)
	return suggestions, nil
}

// SmartSearch matches a query or pathway against provider packages on the
// server. Successful responses are cached per query/pathway and patient
// filters for the smart-search TTL.
func (s *Searcher) SmartSearch(ctx context.Context, req types.SmartSearchRequest) (*SmartSearchResult, error) {
	body := req.Body()
	if body.PathwayID.IsZero() && body.Query == "" {
		return nil, ErrEmptyQuery
	}

	session := SessionFromContext(ctx)
	token := s.seq.Next(opSmart, session)
	defer s.seq.Done(opSmart, session, token)
	key := cache.SmartSearchKey(body.Query, body.PathwayID.String(), body.PatientAge, body.PatientGender)
	if cached, ok := s.smartCache.Fresh(key, s.smartTTL); ok {
		return &SmartSearchResult{Response: cached, CacheHit: true}, nil
	}

	resp, err := s.client.SmartSearch(ctx, body)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if !s.seq.IsLatest(opSmart, session, token) {
		s.logger.Debug("discarding stale smart search response", "key", key)
		return nil, ErrSuperseded
	}

	if err != nil || resp == nil {
		s.logger.Warn("smart search failed", "key", key, "error", err)
		return &SmartSearchResult{Response: &types.SmartSearchResponse{}, Degraded: true}, nil
	}

	if resp.Success {
		s.smartCache.Put(key, resp)
	}
	return &SmartSearchResult{Response: resp}, nil
}

// InvalidateCache drops every cached search, smart search, suggestion and
// package component list
func (s *Searcher) InvalidateCache() {
	s.searchCache.Clear()
	s.smartCache.Clear()
	s.suggestions.Purge()
	s.components.Purge()
}

// CacheStats reports the number of cached entries per cache
func (s *Searcher) CacheStats() map[string]int {
	return map[string]int{
		"search":       s.searchCache.Len(),
		"smart_search": s.smartCache.Len(),
		"suggestions":  s.suggestions.Len(),
		"components":   s.components.Len(),
	}
}
