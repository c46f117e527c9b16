// Package memory implements the document store and change feed ports in
// process. It serves local development and tests; data is lost on exit and
// changes never leave the process.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/Strob0t/sitecms/internal/domain"
	"github.com/Strob0t/sitecms/internal/domain/content"
	"github.com/Strob0t/sitecms/internal/domain/request"
)

// Store implements database.Store with maps guarded by a mutex.
type Store struct {
	mu       sync.RWMutex
	content  []content.Item // insertion order
	requests []request.Request
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// CreateContent stores a copy of item.
func (s *Store) CreateContent(_ context.Context, item *content.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.content {
		if s.content[i].ID == item.ID {
			return fmt.Errorf("create content %s: %w", item.ID, domain.ErrConflict)
		}
	}
	s.content = append(s.content, cloneItem(*item))
	return nil
}

// ListContent returns every item of kind for siteID, newest first.
func (s *Store) ListContent(_ context.Context, siteID string, kind content.Kind) ([]content.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]content.Item, 0)
	for i := len(s.content) - 1; i >= 0; i-- {
		it := s.content[i]
		if it.SiteID == siteID && it.Kind == kind {
			out = append(out, cloneItem(it))
		}
	}
	content.SortNewestFirst(out)
	return out, nil
}

// GetContent returns the item with id in siteID.
func (s *Store) GetContent(_ context.Context, siteID, id string) (*content.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.content {
		if s.content[i].ID == id && s.content[i].SiteID == siteID {
			it := cloneItem(s.content[i])
			return &it, nil
		}
	}
	return nil, fmt.Errorf("get content %s: %w", id, domain.ErrNotFound)
}

// DeleteContent removes the item with id in siteID.
func (s *Store) DeleteContent(_ context.Context, siteID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := slices.IndexFunc(s.content, func(it content.Item) bool {
		return it.ID == id && it.SiteID == siteID
	})
	if idx < 0 {
		return fmt.Errorf("delete content %s: %w", id, domain.ErrNotFound)
	}
	s.content = slices.Delete(s.content, idx, idx+1)
	return nil
}

// CountContent returns the number of items per kind for siteID.
func (s *Store) CountContent(_ context.Context, siteID string) (map[content.Kind]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[content.Kind]int, len(content.Kinds))
	for _, k := range content.Kinds {
		counts[k] = 0
	}
	for i := range s.content {
		if s.content[i].SiteID == siteID {
			counts[s.content[i].Kind]++
		}
	}
	return counts, nil
}

// CreateRequest stores a copy of req.
func (s *Store) CreateRequest(_ context.Context, req *request.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.requests {
		if s.requests[i].ID == req.ID {
			return fmt.Errorf("create request %s: %w", req.ID, domain.ErrConflict)
		}
	}
	s.requests = append(s.requests, cloneRequest(*req))
	return nil
}

// ListRequests returns every request of siteID, newest first.
func (s *Store) ListRequests(_ context.Context, siteID string) ([]request.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]request.Request, 0)
	for i := len(s.requests) - 1; i >= 0; i-- {
		if s.requests[i].SiteID == siteID {
			out = append(out, cloneRequest(s.requests[i]))
		}
	}
	slices.SortStableFunc(out, func(a, b request.Request) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

// GetRequest returns the request with id in siteID.
func (s *Store) GetRequest(_ context.Context, siteID, id string) (*request.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.requestIndex(siteID, id); i >= 0 {
		r := cloneRequest(s.requests[i])
		return &r, nil
	}
	return nil, fmt.Errorf("get request %s: %w", id, domain.ErrNotFound)
}

// UpdateRequestStatus sets the status while the current one is in from.
func (s *Store) UpdateRequestStatus(_ context.Context, siteID, id string, from []request.Status, to request.Status, handledBy string, handledAt time.Time) (*request.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.requestIndex(siteID, id)
	if i < 0 {
		return nil, fmt.Errorf("update request %s: %w", id, domain.ErrNotFound)
	}
	r := &s.requests[i]
	if !slices.Contains(from, r.Status) {
		return nil, fmt.Errorf("update request %s from %s: %w", id, r.Status, domain.ErrConflict)
	}
	at := handledAt
	r.Status = to
	r.HandledBy = handledBy
	r.HandledAt = &at
	out := cloneRequest(*r)
	return &out, nil
}

// CountRequests returns the number of requests per status for siteID.
func (s *Store) CountRequests(_ context.Context, siteID string) (map[request.Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := map[request.Status]int{
		request.StatusNew:        0,
		request.StatusInProgress: 0,
		request.StatusDone:       0,
	}
	for i := range s.requests {
		if s.requests[i].SiteID == siteID {
			counts[s.requests[i].Status]++
		}
	}
	return counts, nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) requestIndex(siteID, id string) int {
	for i := range s.requests {
		if s.requests[i].ID == id && s.requests[i].SiteID == siteID {
			return i
		}
	}
	return -1
}

func cloneItem(it content.Item) content.Item {
	if it.Progress != nil {
		p := *it.Progress
		it.Progress = &p
	}
	return it
}

func cloneRequest(r request.Request) request.Request {
	if r.HandledAt != nil {
		at := *r.HandledAt
		r.HandledAt = &at
	}
	return r
}
