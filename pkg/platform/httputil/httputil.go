// Package httputil centralizes the JSON envelopes the HTTP layer speaks,
// including the translation from coded domain errors to statuses.
package httputil

import (
	"encoding/json"
	"net/http"

	domainerrors "concord/pkg/domain-errors"
)

// WriteJSON encodes v with the standard content type.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError renders a coded error as a JSON envelope. Unexpected errors
// keep their detail out of the response body.
func WriteError(w http.ResponseWriter, err error) {
	code := domainerrors.CodeOf(err)
	body := map[string]string{"error": string(code)}
	if code != domainerrors.CodeUnexpected {
		body["error_description"] = err.Error()
	}
	WriteJSON(w, StatusOf(code), body)
}

// StatusOf maps a domain error code to its HTTP status.
func StatusOf(code domainerrors.Code) int {
	switch code {
	case domainerrors.CodeBadRequest:
		return http.StatusBadRequest
	case domainerrors.CodeInvalidCredentials, domainerrors.CodeUnknownEmail:
		return http.StatusUnauthorized
	case domainerrors.CodeEmailInUse:
		return http.StatusConflict
	case domainerrors.CodeWeakPassword:
		return http.StatusUnprocessableEntity
	case domainerrors.CodeRateLimited:
		return http.StatusTooManyRequests
	case domainerrors.CodeOffline, domainerrors.CodeNetworkUnavailable:
		return http.StatusServiceUnavailable
	case domainerrors.CodeResolutionTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
