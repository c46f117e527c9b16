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
	"github.com/Strob0t/sitecms/internal/domain/request"
	"github.com/Strob0t/sitecms/internal/domain/user"
	"github.com/Strob0t/sitecms/internal/domain/view"
	"github.com/Strob0t/sitecms/internal/logger"
	"github.com/Strob0t/sitecms/internal/port/changefeed"
	"github.com/Strob0t/sitecms/internal/port/database"
)

// Summary holds the admin panel counts of a site.
type Summary struct {
	SiteID   string                 `json:"site_id"`
	Tabs     map[view.Tab]int       `json:"tabs"`
	Requests map[request.Status]int `json:"requests"`
}

// RequestService accepts service requests from the public and moves them
// through New, InProgress and Done.
type RequestService struct {
	store     database.Store
	snapshots *Snapshots
	changes   changeNotifier
	metrics   *otel.Metrics
	now       func() time.Time
}

// NewRequestService creates a request service.
func NewRequestService(store database.Store, feed changefeed.Feed, snapshots *Snapshots, namespace string, metrics *otel.Metrics) *RequestService {
	return &RequestService{
		store:     store,
		snapshots: snapshots,
		changes:   changeNotifier{feed: feed, snapshots: snapshots, ns: namespace},
		metrics:   metrics,
		now:       time.Now,
	}
}

// Submit stores a new request with status New. id may be nil; the creator
// is then recorded as public.
func (s *RequestService) Submit(ctx context.Context, id *user.Identity, siteID string, req request.CreateRequest) (*request.Request, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := Authorize(id, ActionSubmitRequest, siteID); err != nil {
		return nil, err
	}

	r := &request.Request{
		ID:             uuid.NewString(),
		SiteID:         siteID,
		RequesterName:  req.RequesterName,
		RequesterEmail: req.RequesterEmail,
		ServiceType:    req.ServiceType,
		Description:    req.Description,
		Status:         request.StatusNew,
		CreatedAt:      s.now().UTC(),
		CreatedBy:      id.ActorID(),
	}

	ctx, span := otel.StartStoreSpan(ctx, "request.create", siteID)
	err := s.store.CreateRequest(ctx, r)
	otel.EndSpan(span, err)
	if err != nil {
		logger.From(ctx).Error("create request failed", "site_id", siteID, "error", err)
		return nil, fmt.Errorf("create request: %w", err)
	}

	s.changes.notify(ctx, event.CollectionRequests, siteID, event.OpCreated, r.ID, r.CreatedAt)
	s.metrics.CountRequestSubmitted(ctx, siteID, string(r.ServiceType))
	logger.From(ctx).Info("request submitted", "site_id", siteID, "id", r.ID, "service_type", r.ServiceType)
	return r, nil
}

// List returns every request of siteID, newest first.
func (s *RequestService) List(ctx context.Context, id *user.Identity, siteID string) ([]request.Request, error) {
	if err := Authorize(id, ActionReadRequests, siteID); err != nil {
		return nil, err
	}
	snap, err := s.snapshots.Load(ctx, view.Stream{Collection: event.CollectionRequests, SiteID: siteID, Order: view.OrderNewest})
	if err != nil {
		return nil, err
	}
	return snap.Requests, nil
}

// Act applies the named admin action: take moves a New request to
// InProgress, complete moves an InProgress request to Done.
func (s *RequestService) Act(ctx context.Context, id *user.Identity, siteID, requestID string, action request.ActionName) (*request.Request, error) {
	target, err := action.Target()
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, id, siteID, requestID, target)
}

// transition stamps handled_by and handled_at and moves the request to
// target. The write only applies while the stored status may still move to
// target, so a stale racing write can never move a request backwards.
func (s *RequestService) transition(ctx context.Context, id *user.Identity, siteID, requestID string, target request.Status) (*request.Request, error) {
	if id == nil {
		return nil, ErrIdentityNotReady
	}
	if err := Authorize(id, ActionManageRequests, siteID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	ctx, span := otel.StartStoreSpan(ctx, "request.transition", siteID)
	r, err := s.store.UpdateRequestStatus(ctx, siteID, requestID, request.AllowedFrom(target), target, id.UserID, now)
	otel.EndSpan(span, err)
	switch {
	case errors.Is(err, domain.ErrConflict):
		return nil, s.rejected(ctx, siteID, requestID, target)
	case errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("request %s: %w", requestID, err)
	case err != nil:
		logger.From(ctx).Error("update request status failed", "site_id", siteID, "id", requestID, "error", err)
		return nil, fmt.Errorf("update request %s: %w", requestID, err)
	}

	s.changes.notify(ctx, event.CollectionRequests, siteID, event.OpUpdated, requestID, now)
	s.metrics.CountTransition(ctx, siteID, string(target))
	logger.From(ctx).Info("request status changed", "site_id", siteID, "id", requestID, "status", target, "handled_by", id.UserID)
	return r, nil
}

// rejected explains a refused status write from the status now stored.
func (s *RequestService) rejected(ctx context.Context, siteID, requestID string, target request.Status) error {
	if cur, err := s.store.GetRequest(ctx, siteID, requestID); err == nil {
		if terr := request.CheckTransition(cur.Status, target); terr != nil {
			return fmt.Errorf("request %s: %w", requestID, terr)
		}
	}
	return fmt.Errorf("%w: request %s cannot move to %s", domain.ErrInvalidTransition, requestID, target)
}

// Summary returns the tab counts of the admin panel.
func (s *RequestService) Summary(ctx context.Context, id *user.Identity, siteID string) (*Summary, error) {
	if err := Authorize(id, ActionReadRequests, siteID); err != nil {
		return nil, err
	}

	ctx, span := otel.StartStoreSpan(ctx, "summary", siteID)
	sum, err := s.summary(ctx, siteID)
	otel.EndSpan(span, err)
	return sum, err
}

func (s *RequestService) summary(ctx context.Context, siteID string) (*Summary, error) {
	items, err := s.store.CountContent(ctx, siteID)
	if err != nil {
		return nil, fmt.Errorf("count content: %w", err)
	}
	reqs, err := s.store.CountRequests(ctx, siteID)
	if err != nil {
		return nil, fmt.Errorf("count requests: %w", err)
	}

	sum := &Summary{SiteID: siteID, Tabs: make(map[view.Tab]int, len(view.Tabs)), Requests: reqs}
	for _, tab := range view.Tabs {
		if kind, ok := content.KindOf(tab.Collection()); ok {
			sum.Tabs[tab] = items[kind]
			continue
		}
		for _, n := range reqs {
			sum.Tabs[tab] += n
		}
	}
	return sum, nil
}
