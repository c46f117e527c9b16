package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/Strob0t/sitecms/internal/logger"
)

func TestRequestID(t *testing.T) {
	tests := []struct {
		name   string
		header string
		keep   bool
	}{
		{name: "generated", header: ""},
		{name: "propagated", header: "my-custom-id-123", keep: true},
		{name: "dotted", header: "edge.7f_01", keep: true},
		{name: "newline injection", header: "abc\ninjected=1"},
		{name: "spaces", header: "has space"},
		{name: "too long", header: strings.Repeat("a", maxRequestIDLength+1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var captured string
			handler := RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				captured = logger.RequestID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			if tt.header != "" {
				req.Header.Set(headerRequestID, tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			respID := rec.Header().Get(headerRequestID)
			if captured != respID {
				t.Fatalf("context id %q differs from response header %q", captured, respID)
			}
			if tt.keep {
				if respID != tt.header {
					t.Fatalf("expected %q to be kept, got %q", tt.header, respID)
				}
				return
			}
			if _, err := uuid.Parse(respID); err != nil {
				t.Fatalf("expected a generated uuid, got %q", respID)
			}
		})
	}
}
