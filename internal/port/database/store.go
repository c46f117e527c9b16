// Package database defines the document store port (interface).
package database

import (
	"context"
	"time"

	"github.com/Strob0t/sitecms/internal/domain/content"
	"github.com/Strob0t/sitecms/internal/domain/request"
)

// Store is the port interface for document storage. Every call is scoped
// to the application namespace the store was opened with and to a site.
type Store interface {
	// Content
	CreateContent(ctx context.Context, item *content.Item) error
	ListContent(ctx context.Context, siteID string, kind content.Kind) ([]content.Item, error)
	GetContent(ctx context.Context, siteID, id string) (*content.Item, error)
	DeleteContent(ctx context.Context, siteID, id string) error
	CountContent(ctx context.Context, siteID string) (map[content.Kind]int, error)

	// Service requests
	CreateRequest(ctx context.Context, req *request.Request) error
	ListRequests(ctx context.Context, siteID string) ([]request.Request, error)
	GetRequest(ctx context.Context, siteID, id string) (*request.Request, error)
	// UpdateRequestStatus writes status `to` only while the stored status is
	// one of `from`. It returns domain.ErrNotFound for an unknown id and
	// domain.ErrConflict when the stored status is outside `from`.
	UpdateRequestStatus(ctx context.Context, siteID, id string, from []request.Status, to request.Status, handledBy string, handledAt time.Time) (*request.Request, error)
	CountRequests(ctx context.Context, siteID string) (map[request.Status]int, error)

	Ping(ctx context.Context) error
}
