package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/danielolaszy/prism/internal/assistant"
	"github.com/danielolaszy/prism/internal/export"
	"github.com/danielolaszy/prism/internal/logging"
	"github.com/danielolaszy/prism/internal/tracker"
)

var (
	errNoSession  = errors.New("no session")
	errBadRequest = errors.New("bad request")
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.Warn("failed to write response", "error", err)
	}
}

// badRequest reports a malformed client request.
func badRequest(w http.ResponseWriter, message string) {
	jsonResponse(w, http.StatusBadRequest, errorBody{Error: message, Code: "invalid_request"})
}

// writeError maps err onto a status code and error body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := classify(err)
	if status >= http.StatusInternalServerError {
		logging.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		logging.Warn("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	jsonResponse(w, status, body)
}

func classify(err error) (int, errorBody) {
	switch {
	case errors.Is(err, errNoSession):
		return http.StatusUnauthorized, errorBody{
			Error: "Not authenticated",
			Code:  "unauthenticated",
		}
	case errors.Is(err, errBadRequest), errors.Is(err, export.ErrInvalidRequest):
		return http.StatusBadRequest, errorBody{Error: err.Error(), Code: "invalid_request"}
	case errors.Is(err, export.ErrNothingToExport):
		return http.StatusUnprocessableEntity, errorBody{
			Error: export.MessageNothingToExport,
			Code:  "nothing_to_export",
		}
	case errors.Is(err, assistant.ErrModelUnavailable):
		return http.StatusBadGateway, errorBody{
			Error: "The assistant is unavailable. Please retry.",
			Code:  "model_unavailable",
		}
	}

	body := errorBody{
		Error:   tracker.UserMessage(err),
		Code:    tracker.Category(err),
		Details: tracker.Detail(err),
	}
	switch {
	case errors.Is(err, tracker.ErrUnauthenticated):
		return http.StatusUnauthorized, body
	case errors.Is(err, tracker.ErrForbidden):
		return http.StatusForbidden, body
	case errors.Is(err, tracker.ErrNotFound):
		return http.StatusNotFound, body
	case errors.Is(err, tracker.ErrTransient):
		return http.StatusBadGateway, body
	case errors.Is(err, tracker.ErrRejected):
		return http.StatusBadGateway, body
	default:
		return http.StatusInternalServerError, errorBody{
			Error: "Internal server error",
			Code:  "internal_error",
		}
	}
}
