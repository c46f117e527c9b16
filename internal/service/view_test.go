package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"go.uber.org/goleak"

	"github.com/Strob0t/sitecms/internal/domain"
	"github.com/Strob0t/sitecms/internal/domain/event"
	"github.com/Strob0t/sitecms/internal/domain/view"
)

// recordingWatcher logs every open and close in order.
type recordingWatcher struct {
	mu     sync.Mutex
	log    []string
	failOn event.Collection
}

type recordingHandle struct {
	w    *recordingWatcher
	name string
	once sync.Once
}

func (h *recordingHandle) Close() {
	h.once.Do(func() { h.w.record("close " + h.name) })
}

func (w *recordingWatcher) Watch(_ context.Context, st view.Stream, _ SnapshotFunc) (Handle, error) {
	if st.Collection == w.failOn {
		return nil, errors.New("watch failed")
	}
	name := fmt.Sprintf("%s/%s", st.SiteID, st.Collection)
	w.record("open " + name)
	return &recordingHandle{w: w, name: name}, nil
}

func (w *recordingWatcher) record(s string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.log = append(w.log, s)
}

func (w *recordingWatcher) take() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := w.log
	w.log = nil
	return out
}

func noPush(view.Stream, *Snapshot, error) {}

func assertLog(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("log = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("log = %v, want %v", got, want)
		}
	}
}

func TestViewRouter_PublicToAdminClosesBeforeOpening(t *testing.T) {
	w := &recordingWatcher{}
	r := NewViewRouter(w, mairieAdmin, "arited-demo", noPush)
	ctx := context.Background()

	if _, err := r.Navigate(ctx, view.State{SiteID: "mairie", Mode: view.ModePublic}); err != nil {
		t.Fatal(err)
	}
	assertLog(t, w.take(), []string{"open mairie/pages", "open mairie/news", "open mairie/projects"})

	st, err := r.Navigate(ctx, view.State{SiteID: "mairie", Mode: view.ModeAdmin, Tab: view.TabRequests})
	if err != nil {
		t.Fatal(err)
	}
	if st.Mode != view.ModeAdmin || st.Tab != view.TabRequests {
		t.Fatalf("state = %+v", st)
	}
	assertLog(t, w.take(), []string{
		"close mairie/pages", "close mairie/news", "close mairie/projects",
		"open mairie/requests",
	})

	r.Close()
	assertLog(t, w.take(), []string{"close mairie/requests"})
}

func TestViewRouter_SiteChangeReleasesOldSite(t *testing.T) {
	w := &recordingWatcher{}
	admin := *mairieAdmin
	admin.Sites = []string{"*"}
	r := NewViewRouter(w, &admin, "arited-demo", noPush)
	ctx := context.Background()

	if _, err := r.Navigate(ctx, view.State{SiteID: "mairie", Mode: view.ModeAdmin}); err != nil {
		t.Fatal(err)
	}
	w.take()
	if _, err := r.Navigate(ctx, view.State{SiteID: "prefecture", Mode: view.ModeAdmin}); err != nil {
		t.Fatal(err)
	}
	assertLog(t, w.take(), []string{"close mairie/news", "open prefecture/news"})
}

func TestViewRouter_AdminIsGated(t *testing.T) {
	w := &recordingWatcher{}
	r := NewViewRouter(w, visitor, "arited-demo", noPush)
	ctx := context.Background()

	if _, err := r.Navigate(ctx, view.State{SiteID: "mairie"}); err != nil {
		t.Fatal(err)
	}
	w.take()

	if _, err := r.Navigate(ctx, view.State{SiteID: "mairie", Mode: view.ModeAdmin}); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if len(w.take()) != 0 {
		t.Error("a denied navigation must keep the current subscriptions")
	}
	if r.State().Mode != view.ModePublic {
		t.Errorf("state = %+v", r.State())
	}
}

func TestViewRouter_WaitsForIdentity(t *testing.T) {
	w := &recordingWatcher{}
	r := NewViewRouter(w, nil, "arited-demo", noPush)

	if _, err := r.Navigate(context.Background(), view.State{}); !errors.Is(err, ErrIdentityNotReady) {
		t.Fatalf("expected ErrIdentityNotReady, got %v", err)
	}
	if len(w.take()) != 0 {
		t.Error("nothing may open before the identity is resolved")
	}
}

func TestViewRouter_NormalizesState(t *testing.T) {
	w := &recordingWatcher{}
	r := NewViewRouter(w, visitor, "arited-demo", noPush)

	st, err := r.Navigate(context.Background(), view.State{SiteID: "**", Mode: "settings", Tab: view.TabRequests})
	if err != nil {
		t.Fatal(err)
	}
	if st != (view.State{SiteID: "arited-demo", Mode: view.ModePublic}) {
		t.Fatalf("state = %+v", st)
	}
}

func TestViewRouter_FailedOpenReleasesPartial(t *testing.T) {
	w := &recordingWatcher{failOn: event.CollectionProjects}
	r := NewViewRouter(w, visitor, "arited-demo", noPush)

	if _, err := r.Navigate(context.Background(), view.State{SiteID: "mairie"}); err == nil {
		t.Fatal("expected error")
	}
	assertLog(t, w.take(), []string{
		"open mairie/pages", "open mairie/news",
		"close mairie/pages", "close mairie/news",
	})
	if st := r.State(); st != (view.State{}) {
		t.Fatalf("state after failed open = %+v, want no view", st)
	}
}

func TestViewRouter_EnterRunsBetweenCloseAndOpen(t *testing.T) {
	w := &recordingWatcher{}
	r := NewViewRouter(w, mairieAdmin, "arited-demo", noPush)
	r.OnEnter(func(st view.State) { w.record("enter " + st.SiteID + "/" + string(st.Mode)) })
	ctx := context.Background()

	if _, err := r.Navigate(ctx, view.State{SiteID: "mairie", Mode: view.ModeAdmin, Tab: view.TabNews}); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Navigate(ctx, view.State{SiteID: "mairie", Mode: view.ModePublic}); err != nil {
		t.Fatal(err)
	}
	assertLog(t, w.take(), []string{
		"enter mairie/admin", "open mairie/news",
		"close mairie/news", "enter mairie/public",
		"open mairie/pages", "open mairie/news", "open mairie/projects",
	})

	// A denied navigation announces nothing.
	denied := NewViewRouter(w, visitor, "arited-demo", noPush)
	denied.OnEnter(func(view.State) { w.record("enter") })
	if _, err := denied.Navigate(ctx, view.State{SiteID: "mairie", Mode: view.ModeAdmin}); err == nil {
		t.Fatal("expected admin entry to be denied")
	}
	assertLog(t, w.take(), nil)
	r.Close()
}

func TestViewRouter_ClosedRouter(t *testing.T) {
	w := &recordingWatcher{}
	r := NewViewRouter(w, visitor, "arited-demo", noPush)
	r.Close()
	r.Close()
	if _, err := r.Navigate(context.Background(), view.State{}); !errors.Is(err, ErrViewClosed) {
		t.Fatalf("expected ErrViewClosed, got %v", err)
	}
}

func TestViewRouter_WithLiveQueries(t *testing.T) {
	env := newTestEnv(t)
	lq := newTestLiveQueries(t, env)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var mu sync.Mutex
	seen := map[event.Collection]int{}
	got := make(chan struct{}, 16)
	r := NewViewRouter(lq, mairieAdmin, "arited-demo", func(st view.Stream, _ *Snapshot, err error) {
		if err != nil {
			return
		}
		mu.Lock()
		seen[st.Collection]++
		mu.Unlock()
		got <- struct{}{}
	})

	if _, err := r.Navigate(context.Background(), view.State{SiteID: "mairie"}); err != nil {
		t.Fatal(err)
	}
	for range 3 {
		<-got
	}
	if lq.Active() != 3 {
		t.Fatalf("active = %d, want 3", lq.Active())
	}

	if _, err := r.Navigate(context.Background(), view.State{SiteID: "mairie", Mode: view.ModeAdmin, Tab: view.TabPages}); err != nil {
		t.Fatal(err)
	}
	<-got
	if lq.Active() != 1 {
		t.Fatalf("active after navigation = %d, want 1", lq.Active())
	}

	r.Close()
	if lq.Active() != 0 {
		t.Fatalf("active after close = %d", lq.Active())
	}
	mu.Lock()
	defer mu.Unlock()
	if seen[event.CollectionPages] != 2 || seen[event.CollectionNews] != 1 || seen[event.CollectionProjects] != 1 {
		t.Errorf("snapshots per stream = %v", seen)
	}
}
