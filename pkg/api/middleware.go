package api

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/cockroachdb/errors"

	"github.com/ssargent/nifkit/pkg/nif"
)

// apiKeyMiddleware validates the X-API-Key header. An empty expected key
// lets every request through.
func apiKeyMiddleware(expectedKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if expectedKey == "" {
				next.ServeHTTP(w, r)
				return
			}
			apiKey := r.Header.Get("X-API-Key")
			if apiKey == "" {
				sendError(w, "Missing X-API-Key header", http.StatusUnauthorized)
				return
			}
			if subtle.ConstantTimeCompare([]byte(apiKey), []byte(expectedKey)) != 1 {
				sendError(w, "Invalid API key", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// sendSuccess sends a successful JSON response
func sendSuccess(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	response := APIResponse{
		Success: true,
		Data:    data,
	}
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}

// sendError sends an error JSON response
func sendError(w http.ResponseWriter, message string, statusCode int) {
	sendResponse(w, APIResponse{Success: false, Error: message}, statusCode)
}

// sendCodecError reports a decode or encode failure. Format errors are the
// client's file and map to 422 with their location.
func sendCodecError(w http.ResponseWriter, err error) {
	var fe *nif.Error
	if !errors.As(err, &fe) {
		sendError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	sendResponse(w, APIResponse{
		Success: false,
		Error:   err.Error(),
		Format: &FormatError{
			Kind:   fe.Kind.String(),
			Offset: fe.Offset,
			Record: fe.Record,
			Type:   fe.Type,
			Field:  fe.Field,
		},
	}, http.StatusUnprocessableEntity)
}

func sendResponse(w http.ResponseWriter, response APIResponse, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}
