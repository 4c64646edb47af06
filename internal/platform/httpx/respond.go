// Package httpx provides the JSON envelope shared by every endpoint.
package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/procurehub/procurehub/internal/shared"
)

// Envelope is the response body of every API call.
type Envelope struct {
	Success bool               `json:"success"`
	Data    any                `json:"data"`
	Error   string             `json:"error,omitempty"`
	Details map[string]string  `json:"details,omitempty"`
	Meta    *shared.Pagination `json:"meta,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// OK wraps data in a success envelope.
func OK(w http.ResponseWriter, status int, data any) {
	JSON(w, status, Envelope{Success: true, Data: data})
}

// List wraps a page of records and its pagination metadata.
func List(w http.ResponseWriter, data any, meta shared.Pagination) {
	JSON(w, http.StatusOK, Envelope{Success: true, Data: data, Meta: &meta})
}

// Fail sends an error envelope.
func Fail(w http.ResponseWriter, status int, message string, details map[string]string) {
	JSON(w, status, Envelope{Success: false, Error: message, Details: details})
}
