package middleware

import "net/http"

// SetupRequired answers every request with 503 and the given instructions.
// It is mounted in place of the API when storage is not configured.
func SetupRequired(message string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeError(w, http.StatusServiceUnavailable, message)
		})
	}
}
