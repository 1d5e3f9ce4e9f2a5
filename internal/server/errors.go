package server

import (
	"net/http"

	"github.com/go-chi/render"
)

// APIError is the JSON error envelope.
type APIError struct {
	StatusCode int    `json:"status_code"`
	ErrorCode  string `json:"error_code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string { return e.Message }

// Render implements render.Renderer.
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

func invalidParam(err error) *APIError {
	return &APIError{StatusCode: http.StatusBadRequest, ErrorCode: "INVALID_PARAMETER", Message: err.Error()}
}

func internalError(err error) *APIError {
	return &APIError{StatusCode: http.StatusInternalServerError, ErrorCode: "INTERNAL_SERVER_ERROR", Message: err.Error()}
}

var errNotFound = &APIError{StatusCode: http.StatusNotFound, ErrorCode: "NOT_FOUND", Message: "resource not found"}

var errMethodNotAllowed = &APIError{StatusCode: http.StatusMethodNotAllowed, ErrorCode: "METHOD_NOT_ALLOWED", Message: "method not allowed"}
