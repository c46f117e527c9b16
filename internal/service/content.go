package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/sitecms/internal/adapter/otel"
	"github.com/Strob0t/sitecms/internal/domain"
	"github.com/Strob0t/sitecms/internal/domain/content"
	"github.com/Strob0t/sitecms/internal/domain/event"
	"github.com/Strob0t/sitecms/internal/domain/user"
	"github.com/Strob0t/sitecms/internal/domain/view"
	"github.com/Strob0t/sitecms/internal/logger"
	"github.com/Strob0t/sitecms/internal/port/changefeed"
	"github.com/Strob0t/sitecms/internal/port/database"
)

// ErrIdentityNotReady is returned for writes attempted before an identity
// has been resolved.
var ErrIdentityNotReady = fmt.Errorf("%w: identity not ready", domain.ErrUnavailable)

// ErrNotConfirmed is returned when a deletion is attempted without the
// explicit confirmation.
var ErrNotConfirmed = fmt.Errorf("%w: deletion must be confirmed", domain.ErrValidation)

// ContentService publishes and removes pages, news and project cards.
type ContentService struct {
	store     database.Store
	snapshots *Snapshots
	changes   changeNotifier
	metrics   *otel.Metrics
	now       func() time.Time
}

// NewContentService creates a content service.
func NewContentService(store database.Store, feed changefeed.Feed, snapshots *Snapshots, namespace string, metrics *otel.Metrics) *ContentService {
	return &ContentService{
		store:     store,
		snapshots: snapshots,
		changes:   changeNotifier{feed: feed, snapshots: snapshots, ns: namespace},
		metrics:   metrics,
		now:       time.Now,
	}
}

// Create validates req and stores one new item of kind on siteID.
func (s *ContentService) Create(ctx context.Context, id *user.Identity, siteID string, kind content.Kind, req content.CreateRequest) (*content.Item, error) {
	if id == nil {
		return nil, ErrIdentityNotReady
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := Authorize(id, ActionWriteContent, siteID); err != nil {
		return nil, err
	}

	item := &content.Item{
		ID:        uuid.NewString(),
		SiteID:    siteID,
		Kind:      kind,
		Title:     req.Title,
		Body:      req.Body,
		Progress:  content.ProgressFor(kind, req.Progress),
		CreatedAt: s.now().UTC(),
		AuthorID:  id.UserID,
	}

	ctx, span := otel.StartStoreSpan(ctx, "content.create", siteID)
	err := s.store.CreateContent(ctx, item)
	otel.EndSpan(span, err)
	if err != nil {
		logger.From(ctx).Error("create content failed", "site_id", siteID, "kind", kind, "error", err)
		return nil, fmt.Errorf("create %s: %w", kind, err)
	}

	s.changes.notify(ctx, kind.Collection(), siteID, event.OpCreated, item.ID, item.CreatedAt)
	s.metrics.CountContentCreated(ctx, siteID, string(kind))
	logger.From(ctx).Info("content created", "site_id", siteID, "kind", kind, "id", item.ID)
	return item, nil
}

// List returns every item of kind on siteID, newest first.
func (s *ContentService) List(ctx context.Context, id *user.Identity, siteID string, kind content.Kind) ([]content.Item, error) {
	if err := Authorize(id, ActionReadPublic, siteID); err != nil {
		return nil, err
	}
	snap, err := s.snapshots.Load(ctx, view.Stream{Collection: kind.Collection(), SiteID: siteID, Order: view.OrderNewest})
	if err != nil {
		return nil, err
	}
	return snap.Content, nil
}

// Delete removes one item after explicit confirmation. An item of another
// site or another kind is reported as not found.
func (s *ContentService) Delete(ctx context.Context, id *user.Identity, siteID string, kind content.Kind, itemID string, confirmed bool) error {
	if !confirmed {
		return ErrNotConfirmed
	}
	if id == nil {
		return ErrIdentityNotReady
	}
	if err := Authorize(id, ActionWriteContent, siteID); err != nil {
		return err
	}

	ctx, span := otel.StartStoreSpan(ctx, "content.delete", siteID)
	err := s.deleteItem(ctx, siteID, kind, itemID)
	otel.EndSpan(span, err)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			logger.From(ctx).Error("delete content failed", "site_id", siteID, "id", itemID, "error", err)
		}
		return err
	}

	s.changes.notify(ctx, kind.Collection(), siteID, event.OpDeleted, itemID, s.now().UTC())
	s.metrics.CountContentDeleted(ctx, siteID, string(kind))
	logger.From(ctx).Info("content deleted", "site_id", siteID, "kind", kind, "id", itemID)
	return nil
}

func (s *ContentService) deleteItem(ctx context.Context, siteID string, kind content.Kind, itemID string) error {
	item, err := s.store.GetContent(ctx, siteID, itemID)
	if err != nil {
		return fmt.Errorf("get %s %s: %w", kind, itemID, err)
	}
	if item.Kind != kind {
		return fmt.Errorf("%s %s: %w", kind, itemID, domain.ErrNotFound)
	}
	if err := s.store.DeleteContent(ctx, siteID, itemID); err != nil {
		return fmt.Errorf("delete %s %s: %w", kind, itemID, err)
	}
	return nil
}
