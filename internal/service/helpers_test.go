package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Strob0t/sitecms/internal/adapter/memory"
	"github.com/Strob0t/sitecms/internal/adapter/ristretto"
	"github.com/Strob0t/sitecms/internal/domain/event"
	"github.com/Strob0t/sitecms/internal/domain/user"
	"github.com/Strob0t/sitecms/internal/port/cache"
)

const testNamespace = "default-app-id"

var (
	mairieAdmin = &user.Identity{UserID: "admin-mairie", Role: user.RoleAdmin, Sites: []string{"mairie"}}
	visitor     = &user.Identity{UserID: "anon-1", Role: user.RoleVisitor, Anonymous: true}
)

// testClock returns a fixed time that tests move forward explicitly.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
	return c.t
}

// changeRecorder collects every change published on a feed.
type changeRecorder struct {
	mu      sync.Mutex
	changes []event.Change
}

func (r *changeRecorder) handle(_ context.Context, c event.Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *changeRecorder) all() []event.Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event.Change(nil), r.changes...)
}

type testEnv struct {
	store     *memory.Store
	feed      *memory.Feed
	snapshots *Snapshots
	content   *ContentService
	requests  *RequestService
	clock     *testClock
	recorder  *changeRecorder
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	l1, err := ristretto.New(1)
	if err != nil {
		t.Fatalf("ristretto: %v", err)
	}
	t.Cleanup(l1.Close)
	return newTestEnvWithCache(t, l1)
}

func newTestEnvWithCache(t *testing.T, c cache.Cache) *testEnv {
	t.Helper()
	env := &testEnv{
		store:    memory.NewStore(),
		feed:     memory.NewFeed(),
		clock:    newTestClock(),
		recorder: &changeRecorder{},
	}
	env.snapshots = NewSnapshots(env.store, c, time.Minute, testNamespace, nil)
	env.content = NewContentService(env.store, env.feed, env.snapshots, testNamespace, nil)
	env.content.now = env.clock.Now
	env.requests = NewRequestService(env.store, env.feed, env.snapshots, testNamespace, nil)
	env.requests.now = env.clock.Now

	cancel, err := env.feed.Subscribe(context.Background(), env.recorder.handle)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(cancel)
	return env
}
