package middleware

import (
	"context"
	"net/http"
	"strings"
)

type TokenVerifier interface {
	VerifyToken(token string) error
}

type teacherKey struct{}

// IsTeacher reports whether the request carried a valid teacher token.
func IsTeacher(ctx context.Context) bool {
	ok, _ := ctx.Value(teacherKey{}).(bool)
	return ok
}

func WithTeacher(ctx context.Context) context.Context {
	return context.WithValue(ctx, teacherKey{}, true)
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// OptionalTeacher marks the request as coming from a teacher when a valid
// bearer token is present and lets every request through.
func OptionalTeacher(v TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token, ok := bearerToken(r); ok && v.VerifyToken(token) == nil {
				r = r.WithContext(WithTeacher(r.Context()))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireTeacher rejects requests that OptionalTeacher did not mark.
func RequireTeacher(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsTeacher(r.Context()) {
			if _, ok := bearerToken(r); !ok {
				writeError(w, http.StatusUnauthorized, "authorization header required")
				return
			}
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		next.ServeHTTP(w, r)
	})
}
