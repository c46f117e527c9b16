package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Strob0t/sitecms/internal/port/cache"
)

const (
	headerIdempotencyKey = "Idempotency-Key"
	headerReplayed       = "Idempotent-Replayed"
	maxIdempotencyBody   = 1 << 20 // 1 MB
)

// idempotencyEntry stores a captured HTTP response.
type idempotencyEntry struct {
	StatusCode int                 `json:"status_code"`
	Headers    map[string][]string `json:"headers"`
	Body       []byte              `json:"body"`
}

// Idempotency returns middleware that deduplicates POST/PUT/DELETE requests
// carrying an Idempotency-Key header. Successful responses are kept in store
// for ttl and replayed for repeats; concurrent repeats inside this process
// wait for the first one and share its response.
func Idempotency(store cache.Cache, ttl time.Duration) func(http.Handler) http.Handler {
	var group singleflight.Group

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Only apply to mutating methods
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get(headerIdempotencyKey)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			storeKey := idempotencyStoreKey(r, key)

			v, _, shared := group.Do(storeKey, func() (any, error) {
				if data, found, err := store.Get(r.Context(), storeKey); err == nil && found {
					var cached idempotencyEntry
					if err := json.Unmarshal(data, &cached); err == nil {
						return &cached, nil
					}
					slog.Warn("idempotency: corrupt cache entry", "key", key)
				}

				rec := newBufferedResponse()
				next.ServeHTTP(rec, r)
				entry := &idempotencyEntry{
					StatusCode: rec.statusCode,
					Headers:    rec.header,
					Body:       rec.body.Bytes(),
				}
				if rec.statusCode < 300 && rec.body.Len() <= maxIdempotencyBody {
					if data, err := json.Marshal(entry); err == nil {
						if err := store.Set(r.Context(), storeKey, data, ttl); err != nil {
							slog.Warn("idempotency: failed to store response", "key", key, "error", err)
						}
					}
				}
				return entry, nil
			})

			entry, _ := v.(*idempotencyEntry)
			for k, vals := range entry.Headers {
				for _, val := range vals {
					w.Header().Add(k, val)
				}
			}
			if shared {
				w.Header().Set(headerReplayed, "true")
			}
			w.WriteHeader(entry.StatusCode)
			_, _ = w.Write(entry.Body)
		})
	}
}

// idempotencyStoreKey scopes the client key to the caller, the method and
// the path and hashes it into a KV-safe token. Unidentified callers share
// the public scope.
func idempotencyStoreKey(r *http.Request, key string) string {
	actor := IdentityFromContext(r.Context()).ActorID()
	sum := sha256.Sum256([]byte(actor + "\n" + r.Method + " " + r.URL.Path + "\n" + key))
	return "idem." + hex.EncodeToString(sum[:])
}

// bufferedResponse captures a handler's response without writing it.
type bufferedResponse struct {
	header     http.Header
	statusCode int
	body       *bytes.Buffer
	wrote      bool
}

func newBufferedResponse() *bufferedResponse {
	return &bufferedResponse{header: http.Header{}, statusCode: http.StatusOK, body: &bytes.Buffer{}}
}

func (b *bufferedResponse) Header() http.Header { return b.header }

func (b *bufferedResponse) WriteHeader(code int) {
	if b.wrote {
		return
	}
	b.statusCode = code
	b.wrote = true
}

func (b *bufferedResponse) Write(p []byte) (int, error) {
	b.wrote = true
	return b.body.Write(p)
}
