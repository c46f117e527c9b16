package resilience

import (
	"context"
	"time"

	"github.com/Strob0t/sitecms/internal/domain/content"
	"github.com/Strob0t/sitecms/internal/domain/request"
	"github.com/Strob0t/sitecms/internal/port/database"
)

// Store guards every call to a database.Store with a Breaker. While the
// breaker is open calls fail with ErrCircuitOpen before reaching the store.
type Store struct {
	inner   database.Store
	breaker *Breaker
}

// NewStore wraps inner with breaker.
func NewStore(inner database.Store, breaker *Breaker) *Store {
	return &Store{inner: inner, breaker: breaker}
}

// CheckBreaker reports ErrCircuitOpen while the breaker is rejecting calls.
// It has the shape of a health check.
func (s *Store) CheckBreaker(context.Context) error {
	if s.breaker.State() == "open" {
		return ErrCircuitOpen
	}
	return nil
}

func guard[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var out T
	err := b.Execute(func() error {
		var err error
		out, err = fn()
		return err
	})
	return out, err
}

func (s *Store) CreateContent(ctx context.Context, item *content.Item) error {
	return s.breaker.Execute(func() error { return s.inner.CreateContent(ctx, item) })
}

func (s *Store) ListContent(ctx context.Context, siteID string, kind content.Kind) ([]content.Item, error) {
	return guard(s.breaker, func() ([]content.Item, error) { return s.inner.ListContent(ctx, siteID, kind) })
}

func (s *Store) GetContent(ctx context.Context, siteID, id string) (*content.Item, error) {
	return guard(s.breaker, func() (*content.Item, error) { return s.inner.GetContent(ctx, siteID, id) })
}

func (s *Store) DeleteContent(ctx context.Context, siteID, id string) error {
	return s.breaker.Execute(func() error { return s.inner.DeleteContent(ctx, siteID, id) })
}

func (s *Store) CountContent(ctx context.Context, siteID string) (map[content.Kind]int, error) {
	return guard(s.breaker, func() (map[content.Kind]int, error) { return s.inner.CountContent(ctx, siteID) })
}

func (s *Store) CreateRequest(ctx context.Context, req *request.Request) error {
	return s.breaker.Execute(func() error { return s.inner.CreateRequest(ctx, req) })
}

func (s *Store) ListRequests(ctx context.Context, siteID string) ([]request.Request, error) {
	return guard(s.breaker, func() ([]request.Request, error) { return s.inner.ListRequests(ctx, siteID) })
}

func (s *Store) GetRequest(ctx context.Context, siteID, id string) (*request.Request, error) {
	return guard(s.breaker, func() (*request.Request, error) { return s.inner.GetRequest(ctx, siteID, id) })
}

func (s *Store) UpdateRequestStatus(ctx context.Context, siteID, id string, from []request.Status, to request.Status, handledBy string, handledAt time.Time) (*request.Request, error) {
	return guard(s.breaker, func() (*request.Request, error) {
		return s.inner.UpdateRequestStatus(ctx, siteID, id, from, to, handledBy, handledAt)
	})
}

func (s *Store) CountRequests(ctx context.Context, siteID string) (map[request.Status]int, error) {
	return guard(s.breaker, func() (map[request.Status]int, error) { return s.inner.CountRequests(ctx, siteID) })
}

// Ping bypasses the breaker so health checks can observe recovery.
func (s *Store) Ping(ctx context.Context) error {
	return s.inner.Ping(ctx)
}
