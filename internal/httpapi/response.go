package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dshills/medsearch-mcp/internal/searcher"
)

type successResponse struct {
	Status string `json:"status"`
	Data   any    `json:"data"`
}

type errorPayload struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

type errorResponse struct {
	Status string       `json:"status"`
	Error  errorPayload `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, successResponse{Status: "success", Data: data})
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Status: "error",
		Error: errorPayload{
			Code:      code,
			Message:   message,
			RequestID: requestIDFromContext(r.Context()),
		},
	})
}

// mapSearchError maps searcher errors to an HTTP status and error code
func mapSearchError(err error) (int, string) {
	switch {
	case errors.Is(err, searcher.ErrEmptyQuery):
		return http.StatusBadRequest, "empty_query"
	case errors.Is(err, searcher.ErrSuperseded):
		return http.StatusConflict, "superseded"
	case errors.Is(err, searcher.ErrNoServiceIDs):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, searcher.ErrLookupFailed):
		return http.StatusBadGateway, "upstream_error"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, context.Canceled):
		// Client went away; nobody reads the body
		return 499, "canceled"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
