package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dshills/medsearch-mcp/internal/cache"
	"github.com/dshills/medsearch-mcp/internal/searcher"
	"github.com/dshills/medsearch-mcp/pkg/types"
)

// Query limits
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Cache scopes accepted by DELETE /v1/cache
const (
	ScopeAll       = "all"
	ScopeReference = "reference"
	ScopeQueries   = "queries"
)

// maxBodyBytes caps request bodies
const maxBodyBytes = 64 << 10

// Handler serves the HTTP routes over a searcher and reference cache
type Handler struct {
	searcher *searcher.Searcher
	cache    *cache.Manager
	logger   *slog.Logger
}

// NewHandler creates a Handler
func NewHandler(srch *searcher.Searcher, mgr *cache.Manager, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{searcher: srch, cache: mgr, logger: logger.With("component", "httpapi")}
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, map[string]any{
		"status": "ok",
		"cache":  h.cache.State(r.Context()),
	})
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	req, ok := h.searchRequest(w, r)
	if !ok {
		return
	}
	req.PreferStandalone = boolParam(r, "prefer_standalone", false)
	req.KeepUnmatched = boolParam(r, "keep_unmatched", false)
	req.UseCache = boolParam(r, "use_cache", true)

	resp, err := h.searcher.Search(r.Context(), req)
	if err != nil {
		h.writeSearchError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, newSearchResponse(resp))
}

func (h *Handler) unifiedSearch(w http.ResponseWriter, r *http.Request) {
	req, ok := h.searchRequest(w, r)
	if !ok {
		return
	}
	req.UseCache = true

	resp, err := h.searcher.UnifiedSearch(r.Context(), req)
	if err != nil {
		h.writeSearchError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, newSearchResponse(resp))
}

// searchRequest reads q and limit; it writes the error response itself
func (h *Handler) searchRequest(w http.ResponseWriter, r *http.Request) (searcher.SearchRequest, bool) {
	query := r.URL.Query().Get("q")
	if strings.TrimSpace(query) == "" {
		writeError(w, r, http.StatusBadRequest, "empty_query", "q is required")
		return searcher.SearchRequest{}, false
	}

	limit := DefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || n > MaxLimit {
			writeError(w, r, http.StatusBadRequest, "invalid_input", "limit must be an integer between 0 and 100")
			return searcher.SearchRequest{}, false
		}
		limit = n
	}

	return searcher.SearchRequest{Query: query, Limit: limit}, true
}

func (h *Handler) suggestions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	suggestions, err := h.searcher.Suggest(r.Context(), query)
	if err != nil {
		h.writeSearchError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"query":       query,
		"suggestions": suggestions,
		"count":       len(suggestions),
	})
}

func (h *Handler) smartSearch(w http.ResponseWriter, r *http.Request) {
	var req types.SmartSearchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if req.PatientAge != nil && (*req.PatientAge < 0 || *req.PatientAge > 150) {
		writeError(w, r, http.StatusBadRequest, "invalid_input", "patient_age must be between 0 and 150")
		return
	}
	if g := strings.TrimSpace(req.PatientGender); g != "" && g != "male" && g != "female" {
		writeError(w, r, http.StatusBadRequest, "invalid_input", "patient_gender must be male or female")
		return
	}

	result, err := h.searcher.SmartSearch(r.Context(), req)
	if err != nil {
		h.writeSearchError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, newSmartSearchResponse(result))
}

func (h *Handler) packageComponents(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	components, cached, err := h.searcher.PackageComponents(r.Context(), types.ID(id))
	if err != nil {
		h.writeSearchError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, ComponentsResponse{
		PackageID:  id,
		Components: components,
		Count:      len(components),
		CacheHit:   cached,
	})
}

// serviceBranches serves the branches of one service
func (h *Handler) serviceBranches(w http.ResponseWriter, r *http.Request) {
	h.writeBranches(w, r, []types.ID{types.ID(chi.URLParam(r, "id"))})
}

// cartBranches serves the branches offering every service_id given
func (h *Handler) cartBranches(w http.ResponseWriter, r *http.Request) {
	var ids []types.ID
	for _, raw := range r.URL.Query()["service_id"] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				ids = append(ids, types.ID(part))
			}
		}
	}
	if len(ids) == 0 {
		writeError(w, r, http.StatusBadRequest, "invalid_input", "service_id is required")
		return
	}
	h.writeBranches(w, r, ids)
}

func (h *Handler) writeBranches(w http.ResponseWriter, r *http.Request, ids []types.ID) {
	q := r.URL.Query()
	result, err := h.searcher.Branches(r.Context(), ids, searcher.BranchFilter{
		City:     q.Get("city"),
		District: q.Get("district"),
		Query:    q.Get("q"),
	})
	if err != nil {
		h.writeSearchError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, newBranchesResponse(ids, result))
}

func (h *Handler) referenceData(w http.ResponseWriter, r *http.Request) {
	dataset := chi.URLParam(r, "dataset")
	key, known := cache.DatasetKey(dataset)
	if !known {
		writeError(w, r, http.StatusNotFound, "unknown_dataset", "unknown dataset "+strconv.Quote(dataset))
		return
	}

	snap := h.cache.Initialize(r.Context(), boolParam(r, "refresh", false))
	data, count, _ := snap.Dataset(key)
	if key == cache.KeyPathways && boolParam(r, "group_by_category", false) {
		data = types.GroupPathways(snap.Pathways)
	}

	writeSuccess(w, http.StatusOK, ReferenceResponse{
		Dataset:   dataset,
		FromCache: snap.FromCache,
		Count:     count,
		Data:      data,
	})
}

func (h *Handler) refreshReference(w http.ResponseWriter, r *http.Request) {
	h.cache.Initialize(r.Context(), true)
	writeSuccess(w, http.StatusOK, h.cache.Status(r.Context()))
}

func (h *Handler) clearCache(w http.ResponseWriter, r *http.Request) {
	scope := r.URL.Query().Get("scope")
	if scope == "" {
		scope = ScopeAll
	}

	switch scope {
	case ScopeAll:
		h.cache.Clear(r.Context())
		h.searcher.InvalidateCache()
	case ScopeReference:
		h.cache.Clear(r.Context())
	case ScopeQueries:
		h.searcher.InvalidateCache()
	default:
		writeError(w, r, http.StatusBadRequest, "invalid_input", "scope must be one of all, reference, queries")
		return
	}

	h.logger.Info("cache cleared", "scope", scope, "request_id", requestIDFromContext(r.Context()))
	writeSuccess(w, http.StatusOK, map[string]any{"cleared": true, "scope": scope})
}

func (h *Handler) cacheStatus(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, CacheStatusResponse{
		Reference: h.cache.Status(r.Context()),
		Queries:   h.searcher.CacheStats(),
	})
}

func (h *Handler) writeSearchError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := mapSearchError(err)
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway {
		h.logger.ErrorContext(r.Context(), "request failed",
			"path", r.URL.Path,
			"request_id", requestIDFromContext(r.Context()),
			"error", err,
		)
	}
	writeError(w, r, status, code, err.Error())
}

func boolParam(r *http.Request, name string, defaultValue bool) bool {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return defaultValue
	}
	return v
}
