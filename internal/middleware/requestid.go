// Package middleware provides HTTP middleware for sitecms.
package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/Strob0t/sitecms/internal/logger"
)

const (
	headerRequestID    = "X-Request-ID"
	maxRequestIDLength = 64
)

// RequestID tags the request context and response with a request id. A
// client-supplied X-Request-ID is kept when it is short and printable;
// anything else is replaced so it cannot forge log lines.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if !validRequestID(id) {
			id = uuid.NewString()
		}

		ctx := logger.WithRequestID(r.Context(), id)
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_', c == '.':
		default:
			return false
		}
	}
	return true
}
