package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/epion-news/epion/internal/circuitbreaker"
	"github.com/epion-news/epion/internal/store"
)

// maxBodyBytes caps request bodies; summaries and chat replies are far
// smaller.
const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func sendError(w http.ResponseWriter, message string, code int) {
	writeJSON(w, code, map[string]string{
		"error": message,
	})
}

// statusFor maps storage errors onto HTTP status codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, circuitbreaker.ErrOpen), errors.Is(err, circuitbreaker.ErrTooManyRequests):
		return http.StatusServiceUnavailable, "Storage temporarily unavailable"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// decodeJSON reads a size-limited JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

// textOrEmpty treats a missing or null text field as the empty string.
func textOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
