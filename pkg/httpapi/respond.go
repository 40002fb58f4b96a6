// Package httpapi exposes the Memory Facade over the REST contract in §6:
// a go-chi router, request/response shapes, and the §7 error-kind to
// HTTP-status mapping. The router/middleware/handler split and the
// respondJSON/respondError helpers follow 2lar-b2's
// interfaces/http/rest/router.go and handlers/node_handler.go.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rookmem/rook/pkg/logging"
	"github.com/rookmem/rook/pkg/rerr"
)

func respondJSON(w http.ResponseWriter, logger logging.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Status  string `json:"status"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func respondError(w http.ResponseWriter, logger logging.Logger, status int, message string) {
	respondJSON(w, logger, status, errorResponse{Status: "error", Error: http.StatusText(status), Message: message})
}

// statusForErr maps err to the HTTP status documented in §7. Invalid scope
// is its own 422 case carved out of the general Parse->400 mapping; every
// other kind follows rerr.Kind.HTTPStatus.
func statusForErr(err error) int {
	if errors.Is(err, rerr.ErrInvalidScope) {
		return http.StatusUnprocessableEntity
	}
	return rerr.KindOf(err).HTTPStatus()
}

func respondForErr(w http.ResponseWriter, logger logging.Logger, err error) {
	status := statusForErr(err)
	if status >= 500 {
		logger.Error("request failed", "error", err)
	}
	respondError(w, logger, status, err.Error())
}
