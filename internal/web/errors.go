package web

import (
	"encoding/json"
	"net/http"
)

// Error codes surfaced in the error envelope.
const (
	codeUnauthorized    = "unauthorized"
	codeNotFound        = "not_found"
	codeRateLimited     = "rate_limited"
	codePayloadTooLarge = "payload_too_large"
	codeNotCancelable   = "not_cancelable"
	codeBackpressure    = "sse_backpressure"
	codeValidation      = "validation_error"
	codeInternal        = "internal_error"
)

type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

// writeError sends the standard error envelope. The correlation id is
// already on the response via the request-id middleware.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeErrorDetails(w, status, code, message, nil)
}

func writeErrorDetails(w http.ResponseWriter, status int, code, message string, details map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorEnvelope{Error: errorBody{
		Code:    code,
		Message: message,
		Details: details,
	}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
