package middleware_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Strob0t/sitecms/internal/domain/user"
	"github.com/Strob0t/sitecms/internal/middleware"
)

// mockCache is an in-memory cache.Cache for testing.
type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string][]byte)}
}

func (m *mockCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *mockCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *mockCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *mockCache) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

func makeTestHandler(counter *int32, status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := atomic.AddInt32(counter, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = fmt.Fprintf(w, `{"call":%d}`, n)
	})
}

func post(h http.Handler, path, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, http.NoBody)
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestIdempotency_NoHeader(t *testing.T) {
	var counter int32
	handler := middleware.Idempotency(newMockCache(), time.Hour)(makeTestHandler(&counter, http.StatusCreated))

	post(handler, "/test", "")
	post(handler, "/test", "")
	if counter != 2 {
		t.Fatalf("expected 2 calls without a key, got %d", counter)
	}
}

func TestIdempotency_SecondRequestReplays(t *testing.T) {
	var counter int32
	store := newMockCache()
	handler := middleware.Idempotency(store, time.Hour)(makeTestHandler(&counter, http.StatusCreated))

	rec1 := post(handler, "/test", "key-2")
	rec2 := post(handler, "/test", "key-2")

	if counter != 1 {
		t.Fatalf("expected handler called once, got %d", counter)
	}
	if rec2.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec2.Code)
	}
	if rec1.Body.String() != rec2.Body.String() {
		t.Errorf("replayed body %q differs from original %q", rec2.Body.String(), rec1.Body.String())
	}
	if rec2.Header().Get("Content-Type") != "application/json" {
		t.Error("expected replayed headers")
	}
	if store.len() != 1 {
		t.Fatalf("expected 1 stored entry, got %d", store.len())
	}
}

func TestIdempotency_KeyScopedToPath(t *testing.T) {
	var counter int32
	handler := middleware.Idempotency(newMockCache(), time.Hour)(makeTestHandler(&counter, http.StatusCreated))

	post(handler, "/sites/a/requests", "same")
	post(handler, "/sites/b/requests", "same")
	if counter != 2 {
		t.Fatalf("same key on different paths should both run, got %d calls", counter)
	}
}

func TestIdempotency_KeyScopedToIdentity(t *testing.T) {
	var counter int32
	handler := middleware.Idempotency(newMockCache(), time.Hour)(makeTestHandler(&counter, http.StatusCreated))

	postAs := func(id *user.Identity) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/sites/a/content/news", http.NoBody)
		req.Header.Set("Idempotency-Key", "same")
		req = req.WithContext(middleware.WithIdentity(req.Context(), id))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	alice := &user.Identity{UserID: "admin-1", Role: user.RoleAdmin, Sites: []string{"a"}}
	bob := &user.Identity{UserID: "admin-2", Role: user.RoleAdmin, Sites: []string{"a"}}
	postAs(alice)
	if rec := postAs(bob); rec.Header().Get("Idempotent-Replayed") != "" || !strings.Contains(rec.Body.String(), `"call":2`) {
		t.Fatalf("second admin got a replay: %s", rec.Body.String())
	}
	if rec := postAs(alice); !strings.Contains(rec.Body.String(), `"call":1`) {
		t.Fatalf("repeat by the same admin should replay, got %s", rec.Body.String())
	}
	if counter != 2 {
		t.Fatalf("expected 2 handler calls, got %d", counter)
	}
}

func TestIdempotency_FailuresNotStored(t *testing.T) {
	var counter int32
	store := newMockCache()
	handler := middleware.Idempotency(store, time.Hour)(makeTestHandler(&counter, http.StatusBadRequest))

	post(handler, "/test", "key-bad")
	post(handler, "/test", "key-bad")
	if counter != 2 {
		t.Fatalf("failed responses must not be replayed, got %d calls", counter)
	}
	if store.len() != 0 {
		t.Fatalf("expected nothing stored, got %d", store.len())
	}
}

func TestIdempotency_GETIgnored(t *testing.T) {
	var counter int32
	handler := middleware.Idempotency(newMockCache(), time.Hour)(makeTestHandler(&counter, http.StatusOK))

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set("Idempotency-Key", "key-get")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if counter != 2 {
		t.Fatalf("expected handler called twice, got %d", counter)
	}
}

func TestIdempotency_ConcurrentDuplicatesRunOnce(t *testing.T) {
	var counter int32
	release := make(chan struct{})
	slow := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		atomic.AddInt32(&counter, 1)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	handler := middleware.Idempotency(newMockCache(), time.Hour)(slow)

	const n = 5
	var wg sync.WaitGroup
	codes := make([]int, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			codes[i] = post(handler, "/test", "double-click").Code
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if counter != 1 {
		t.Fatalf("expected one execution, got %d", counter)
	}
	for i, c := range codes {
		if c != http.StatusCreated {
			t.Errorf("caller %d got %d", i, c)
		}
	}
}

func TestIdempotency_CorruptEntryReruns(t *testing.T) {
	var counter int32
	store := newMockCache()
	handler := middleware.Idempotency(store, time.Hour)(makeTestHandler(&counter, http.StatusCreated))

	post(handler, "/test", "k")
	store.mu.Lock()
	for k := range store.data {
		store.data[k] = []byte("{not json")
	}
	store.mu.Unlock()

	rec := post(handler, "/test", "k")
	if counter != 2 || !strings.Contains(rec.Body.String(), `"call":2`) {
		t.Fatalf("corrupt entry should rerun the handler, calls=%d body=%s", counter, rec.Body.String())
	}
}
