package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/gemsieve/gemsieve/internal/pkg/logger"
)

var log = logger.WithComponent("http")

// ListResponse is the standard envelope for paged collections.
type ListResponse struct {
	Items any `json:"items"`
	Total int `json:"total"`
}

// List writes a 200 response with the standard paged envelope.
func List(w http.ResponseWriter, items any, total int) {
	JSON(w, http.StatusOK, ListResponse{Items: items, Total: total})
}

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error("encode response", "error", err.Error())
	}
}

// Error writes a JSON error response. Use for client errors (4xx).
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Error: message})
}

// BadRequest writes a 400 error.
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, message)
}

// NotFound writes a 404 error.
func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, message)
}

// InternalError writes a 500 error. The real error is logged; the client
// gets a generic message.
func InternalError(w http.ResponseWriter, err error) {
	log.Error("internal error", "error", err.Error())
	Error(w, http.StatusInternalServerError, "internal server error")
}
