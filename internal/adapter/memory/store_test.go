package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Strob0t/sitecms/internal/domain"
	"github.com/Strob0t/sitecms/internal/domain/content"
	"github.com/Strob0t/sitecms/internal/domain/event"
	"github.com/Strob0t/sitecms/internal/domain/request"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newsItem(id, siteID string, at time.Time) *content.Item {
	return &content.Item{ID: id, SiteID: siteID, Kind: content.KindNews, Title: id, Body: "b", CreatedAt: at}
}

func TestStore_ListContentIsTenantScoped(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	_ = s.CreateContent(ctx, newsItem("a1", "alpha", t0))
	_ = s.CreateContent(ctx, newsItem("b1", "beta", t0))
	_ = s.CreateContent(ctx, newsItem("a2", "alpha", t0.Add(time.Hour)))

	got, err := s.ListContent(ctx, "alpha", content.KindNews)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 items, got %d", len(got))
	}
	if got[0].ID != "a2" || got[1].ID != "a1" {
		t.Errorf("expected newest first, got %s, %s", got[0].ID, got[1].ID)
	}
	for _, it := range got {
		if it.SiteID != "alpha" {
			t.Errorf("foreign item %s leaked into alpha", it.ID)
		}
	}
}

func TestStore_ListContentEmptyIsNotNil(t *testing.T) {
	got, err := NewStore().ListContent(context.Background(), "alpha", content.KindPage)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("empty list should be non-nil")
	}
}

func TestStore_DeleteContentOtherSiteIsNotFound(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	_ = s.CreateContent(ctx, newsItem("a1", "alpha", t0))

	if err := s.DeleteContent(ctx, "beta", "a1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.DeleteContent(ctx, "alpha", "a1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetContent(ctx, "alpha", "a1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestStore_ReturnedItemsAreCopies(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	p := 40
	_ = s.CreateContent(ctx, &content.Item{ID: "p1", SiteID: "alpha", Kind: content.KindProject, Progress: &p, CreatedAt: t0})

	got, _ := s.GetContent(ctx, "alpha", "p1")
	*got.Progress = 99

	again, _ := s.GetContent(ctx, "alpha", "p1")
	if *again.Progress != 40 {
		t.Fatalf("stored item mutated through returned copy: %d", *again.Progress)
	}
}

func TestStore_UpdateRequestStatusGuarded(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	_ = s.CreateRequest(ctx, &request.Request{ID: "r1", SiteID: "alpha", Status: request.StatusNew, CreatedAt: t0})

	at := t0.Add(time.Minute)
	got, err := s.UpdateRequestStatus(ctx, "alpha", "r1", request.AllowedFrom(request.StatusInProgress), request.StatusInProgress, "admin-1", at)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != request.StatusInProgress || got.HandledBy != "admin-1" || !got.HandledAt.Equal(at) {
		t.Fatalf("unexpected request: %+v", got)
	}

	// Done is not reachable from New, so a stale "take" cannot undo "complete".
	_, err = s.UpdateRequestStatus(ctx, "alpha", "r1", request.AllowedFrom(request.StatusDone), request.StatusDone, "admin-1", at)
	if err != nil {
		t.Fatal(err)
	}
	_, err = s.UpdateRequestStatus(ctx, "alpha", "r1", request.AllowedFrom(request.StatusInProgress), request.StatusInProgress, "admin-2", at)
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	if _, err := s.UpdateRequestStatus(ctx, "beta", "r1", []request.Status{request.StatusDone}, request.StatusDone, "x", at); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for another site, got %v", err)
	}
}

func TestStore_Counts(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	_ = s.CreateContent(ctx, newsItem("a1", "alpha", t0))
	_ = s.CreateContent(ctx, &content.Item{ID: "p1", SiteID: "alpha", Kind: content.KindPage, CreatedAt: t0})
	_ = s.CreateRequest(ctx, &request.Request{ID: "r1", SiteID: "alpha", Status: request.StatusNew})
	_ = s.CreateRequest(ctx, &request.Request{ID: "r2", SiteID: "beta", Status: request.StatusNew})

	cc, _ := s.CountContent(ctx, "alpha")
	if cc[content.KindNews] != 1 || cc[content.KindPage] != 1 || cc[content.KindProject] != 0 {
		t.Errorf("unexpected content counts: %v", cc)
	}
	rc, _ := s.CountRequests(ctx, "alpha")
	if rc[request.StatusNew] != 1 || rc[request.StatusDone] != 0 {
		t.Errorf("unexpected request counts: %v", rc)
	}
}

func TestFeed_PublishSubscribe(t *testing.T) {
	f := NewFeed()
	ctx := context.Background()

	var got []event.Change
	cancel, err := f.Subscribe(ctx, func(_ context.Context, c event.Change) { got = append(got, c) })
	if err != nil {
		t.Fatal(err)
	}

	ch := event.Change{Namespace: "ns", Collection: event.CollectionNews, SiteID: "alpha", Op: event.OpCreated, DocID: "n1"}
	_ = f.Publish(ctx, ch)
	if len(got) != 1 || got[0] != ch {
		t.Fatalf("unexpected deliveries: %+v", got)
	}

	cancel()
	cancel()
	_ = f.Publish(ctx, ch)
	if len(got) != 1 {
		t.Fatal("handler called after cancel")
	}
	if f.Subscribers() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", f.Subscribers())
	}
}
