// Package content defines the published content items of a site: pages,
// news and project-progress cards.
package content

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Strob0t/sitecms/internal/domain"
	"github.com/Strob0t/sitecms/internal/domain/event"
)

// Kind selects which optional fields apply to an item.
type Kind string

const (
	KindPage    Kind = "page"
	KindNews    Kind = "news"
	KindProject Kind = "project"
)

// Progress bounds for project items.
const (
	MinProgress = 0
	MaxProgress = 100
)

// Kinds lists every content kind in admin tab order.
var Kinds = []Kind{KindNews, KindProject, KindPage}

// ParseKind accepts the singular kind or its collection name.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "page", "pages":
		return KindPage, nil
	case "news":
		return KindNews, nil
	case "project", "projects":
		return KindProject, nil
	default:
		return "", fmt.Errorf("%w: unknown content kind %q", domain.ErrValidation, s)
	}
}

// Collection returns the logical collection holding items of this kind.
func (k Kind) Collection() event.Collection {
	switch k {
	case KindPage:
		return event.CollectionPages
	case KindProject:
		return event.CollectionProjects
	default:
		return event.CollectionNews
	}
}

// KindOf maps a content collection back to its kind.
func KindOf(c event.Collection) (Kind, bool) {
	switch c {
	case event.CollectionPages:
		return KindPage, true
	case event.CollectionNews:
		return KindNews, true
	case event.CollectionProjects:
		return KindProject, true
	default:
		return "", false
	}
}

// Item is a published piece of content. Items are never updated in place.
type Item struct {
	ID        string    `json:"id"`
	SiteID    string    `json:"site_id"`
	Kind      Kind      `json:"kind"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Progress  *int      `json:"progress,omitempty"` // project only
	CreatedAt time.Time `json:"created_at"`
	AuthorID  string    `json:"author_id"`
}

// CreateRequest is the input of the admin content form.
type CreateRequest struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	Progress *int   `json:"progress,omitempty"`
}

// Validate checks that title and body are non-empty.
func (r *CreateRequest) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("%w: title is required", domain.ErrValidation)
	}
	if strings.TrimSpace(r.Body) == "" {
		return fmt.Errorf("%w: body is required", domain.ErrValidation)
	}
	return nil
}

// ClampProgress bounds p to [MinProgress, MaxProgress].
func ClampProgress(p int) int {
	return min(MaxProgress, max(MinProgress, p))
}

// ProgressFor returns the progress to store for an item of kind k: clamped
// (default 0) for projects, absent for every other kind.
func ProgressFor(k Kind, p *int) *int {
	if k != KindProject {
		return nil
	}
	v := 0
	if p != nil {
		v = ClampProgress(*p)
	}
	return &v
}

// SortNewestFirst orders items by CreatedAt descending. The sort is stable,
// so ties keep the order the store returned them in.
func SortNewestFirst(items []Item) {
	slices.SortStableFunc(items, func(a, b Item) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}

// SortByProgress orders project cards by progress descending, newest first on ties.
func SortByProgress(items []Item) {
	slices.SortStableFunc(items, func(a, b Item) int {
		pa, pb := progressOf(a), progressOf(b)
		if pa != pb {
			return pb - pa
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}

func progressOf(it Item) int {
	if it.Progress == nil {
		return 0
	}
	return *it.Progress
}
