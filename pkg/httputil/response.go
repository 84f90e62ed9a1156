package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/platinummonkey/parley/pkg/auth"
)

// ErrorResponse is the JSON body of every error reply
type ErrorResponse struct {
	Error  string `json:"error"`
	Code   string `json:"code,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Error codes carried in ErrorResponse.Code
const (
	CodeAuthFailure      = "auth_failure"
	CodeUnauthenticated  = "unauthenticated"
	CodePermissionDenied = "permission_denied"
	CodeConflict         = "conflict"
	CodeInvalidInvite    = "invalid_invite"
	CodeNotFound         = "not_found"
	CodeInvalidInput     = "invalid_input"
	CodeRateLimited      = "rate_limited"
	CodeUnavailable      = "unavailable"
	CodeInternal         = "internal"
)

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteErrorResponse writes body with the given status code
func WriteErrorResponse(w http.ResponseWriter, status int, body ErrorResponse) {
	WriteJSON(w, status, body)
}

// WriteErrorMessage writes a JSON error response with a custom message
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	WriteErrorResponse(w, status, ErrorResponse{Error: message})
}

// WriteDomainError maps an access-control error onto an HTTP status and a
// stable error code. Storage failures and anything unrecognised never leak
// their message to the client.
func WriteDomainError(w http.ResponseWriter, err error) {
	status, body := DomainErrorResponse(err)
	WriteErrorResponse(w, status, body)
}

// DomainErrorResponse returns the status and body WriteDomainError would send
func DomainErrorResponse(err error) (int, ErrorResponse) {
	switch {
	case errors.Is(err, auth.ErrAuthFailure):
		return http.StatusUnauthorized, ErrorResponse{Error: auth.ErrAuthFailure.Error(), Code: CodeAuthFailure}
	case errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized, ErrorResponse{Error: auth.ErrUnauthenticated.Error(), Code: CodeUnauthenticated}
	case errors.Is(err, auth.ErrPermissionDenied):
		return http.StatusForbidden, ErrorResponse{Error: auth.ErrPermissionDenied.Error(), Code: CodePermissionDenied}
	case errors.Is(err, auth.ErrConflict):
		return http.StatusConflict, ErrorResponse{Error: err.Error(), Code: CodeConflict}
	case errors.Is(err, auth.ErrInvalidInvite):
		body := ErrorResponse{Error: auth.ErrInvalidInvite.Error(), Code: CodeInvalidInvite}
		reason := auth.InviteReasonOf(err)
		if reason == "" {
			return http.StatusBadRequest, body
		}
		body.Reason = string(reason)
		if reason == auth.InviteNotFound {
			return http.StatusNotFound, body
		}
		return http.StatusGone, body
	case errors.Is(err, auth.ErrNotFound):
		return http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: CodeNotFound}
	case errors.Is(err, auth.ErrInvalidInput):
		return http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: CodeInvalidInput}
	case auth.IsStorageError(err):
		return http.StatusServiceUnavailable, ErrorResponse{Error: "service temporarily unavailable", Code: CodeUnavailable}
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Code: CodeInternal}
	}
}

// WriteCreated writes a successful creation response (201 Created) with JSON data
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, data)
}

// WriteSuccess writes a successful response (200 OK) with JSON data
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteNoContent writes a successful response with no content (204 No Content)
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// WriteBadRequest writes a bad request error (400)
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteErrorResponse(w, http.StatusBadRequest, ErrorResponse{Error: message, Code: CodeInvalidInput})
}

// WriteUnauthorized writes an unauthorized error (401)
func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteErrorResponse(w, http.StatusUnauthorized, ErrorResponse{Error: message, Code: CodeUnauthenticated})
}

// WriteForbidden writes a forbidden error (403)
func WriteForbidden(w http.ResponseWriter, message string) {
	WriteErrorResponse(w, http.StatusForbidden, ErrorResponse{Error: message, Code: CodePermissionDenied})
}

// WriteTooManyRequests writes a rate limit error (429)
func WriteTooManyRequests(w http.ResponseWriter, message string) {
	WriteErrorResponse(w, http.StatusTooManyRequests, ErrorResponse{Error: message, Code: CodeRateLimited})
}
