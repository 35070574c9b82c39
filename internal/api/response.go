// Package api provides the HTTP plumbing shared by the relique server and
// client daemons: response helpers, request decoding, the request logging
// middleware, and construction of http.Server / http.Client values with the
// TLS settings the relique protocol requires.
//
// Two response styles coexist. The backup protocol endpoints answer with
// plain-text bodies whose exact contents the relique client relies on
// ("Job registered", "Delta applied", ...). The management endpoints used by
// the CLI wrap their payloads in a JSON envelope:
//
//	Success:  {"data": <payload>}
//	Error:    {"error": {"message": "...", "code": "..."}}
package api

import (
	"encoding/json"
	"net/http"
)

// envelope is the JSON response wrapper for management API responses.
type envelope map[string]any

// JSON writes a JSON-encoded response with the given status code.
// It sets Content-Type to application/json automatically.
func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// Ok writes a 200 OK response with the payload wrapped in {"data": payload}.
func Ok(w http.ResponseWriter, payload any) {
	JSON(w, http.StatusOK, envelope{"data": payload})
}

// Text writes a plain-text response with the given status code. The backup
// protocol endpoints use it for their fixed wire bodies, which clients match
// on verbatim.
func Text(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// errorResponse is the shape of the "error" object in error responses.
type errorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// errJSON writes a JSON error response with the given status, message and
// machine-readable code (e.g. "not_found", "bad_request").
func errJSON(w http.ResponseWriter, status int, message, code string) {
	JSON(w, status, envelope{
		"error": errorResponse{
			Message: message,
			Code:    code,
		},
	})
}

// ErrBadRequest writes a 400 Bad Request error response.
func ErrBadRequest(w http.ResponseWriter, message string) {
	errJSON(w, http.StatusBadRequest, message, "bad_request")
}

// ErrNotFound writes a 404 Not Found error response.
func ErrNotFound(w http.ResponseWriter) {
	errJSON(w, http.StatusNotFound, "resource not found", "not_found")
}

// ErrConflict writes a 409 Conflict error response.
func ErrConflict(w http.ResponseWriter, message string) {
	errJSON(w, http.StatusConflict, message, "conflict")
}

// ErrUnavailable writes a 503 Service Unavailable error response, used
// when a daemon is up but not yet ready to serve the request.
func ErrUnavailable(w http.ResponseWriter, message string) {
	errJSON(w, http.StatusServiceUnavailable, message, "unavailable")
}

// ErrInternal writes a 500 Internal Server Error response.
// The internal error detail is intentionally not exposed to the caller.
func ErrInternal(w http.ResponseWriter) {
	errJSON(w, http.StatusInternalServerError, "an internal error occurred", "internal_error")
}

// MaxControlBody caps the body size of control-plane requests (job
// registration, status updates, config pushes). Delta uploads are exempt
// since they carry file contents.
const MaxControlBody = 1 << 20 // 1 MB

// Decode JSON-decodes the request body into dst, reading at most maxBytes
// when maxBytes > 0. It writes no response; callers render decoding failures
// in whatever body shape their endpoint requires.
func Decode(w http.ResponseWriter, r *http.Request, dst any, maxBytes int64) error {
	body := r.Body
	if maxBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	return json.NewDecoder(body).Decode(dst)
}

// DecodeJSON decodes the request body into dst. Returns false and writes a
// JSON error response if decoding fails, so callers can early-return. Meant
// for management endpoints; protocol endpoints use Decode and render their
// own plain-text errors.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := Decode(w, r, dst, MaxControlBody); err != nil {
		ErrBadRequest(w, "invalid request body: "+err.Error())
		return false
	}
	return true
}
