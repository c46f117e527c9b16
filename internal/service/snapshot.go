package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Strob0t/sitecms/internal/adapter/otel"
	"github.com/Strob0t/sitecms/internal/domain/content"
	"github.com/Strob0t/sitecms/internal/domain/event"
	"github.com/Strob0t/sitecms/internal/domain/request"
	"github.com/Strob0t/sitecms/internal/domain/view"
	"github.com/Strob0t/sitecms/internal/logger"
	"github.com/Strob0t/sitecms/internal/port/cache"
	"github.com/Strob0t/sitecms/internal/port/database"
)

// Snapshot is the full current result set of one live stream.
type Snapshot struct {
	Stream   view.Stream
	Content  []content.Item
	Requests []request.Request
}

// Items returns the rows of the snapshot for encoding.
func (s *Snapshot) Items() any {
	if s.Stream.Collection == event.CollectionRequests {
		return s.Requests
	}
	return s.Content
}

// Count returns the number of rows.
func (s *Snapshot) Count() int {
	if s.Stream.Collection == event.CollectionRequests {
		return len(s.Requests)
	}
	return len(s.Content)
}

// Snapshots loads stream snapshots from the store through an optional cache.
// Concurrent loads of the same (collection, site) share one store read.
type Snapshots struct {
	store   database.Store
	cache   cache.Cache
	ttl     time.Duration
	ns      string
	metrics *otel.Metrics

	group singleflight.Group

	mu       sync.Mutex
	versions map[string]uint64
}

// NewSnapshots creates a loader. A nil cache disables caching.
func NewSnapshots(store database.Store, c cache.Cache, ttl time.Duration, namespace string, metrics *otel.Metrics) *Snapshots {
	return &Snapshots{
		store:    store,
		cache:    c,
		ttl:      ttl,
		ns:       namespace,
		metrics:  metrics,
		versions: make(map[string]uint64),
	}
}

// Load returns the snapshot of st in the stream's order.
func (s *Snapshots) Load(ctx context.Context, st view.Stream) (*Snapshot, error) {
	key := s.key(st.Collection, st.SiteID)
	// The read is shared by every waiter, so one caller leaving must not
	// cancel it for the others.
	shared := context.WithoutCancel(ctx)
	v, err, _ := s.group.Do(key, func() (any, error) {
		return s.fetch(shared, st.Collection, st.SiteID, key)
	})
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{Stream: st}
	switch rows := v.(type) {
	case []request.Request:
		snap.Requests = append([]request.Request{}, rows...)
	case []content.Item:
		snap.Content = append([]content.Item{}, rows...)
		if st.Order == view.OrderProgress {
			content.SortByProgress(snap.Content)
		}
	}
	return snap, nil
}

// Invalidate drops the cached rows of k. A load already in flight for k
// will not write its result back to the cache.
func (s *Snapshots) Invalidate(ctx context.Context, k event.Key) {
	key := s.key(k.Collection, k.SiteID)
	s.mu.Lock()
	s.versions[key]++
	s.mu.Unlock()
	s.group.Forget(key)

	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, key); err != nil {
		logger.From(ctx).Warn("snapshot cache delete failed", "key", key, "error", err)
	}
}

func (s *Snapshots) key(c event.Collection, siteID string) string {
	return "snap." + s.ns + "." + string(c) + "." + siteID
}

func (s *Snapshots) version(key string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.versions[key]
}

// fetch returns the rows newest first as []content.Item or []request.Request.
func (s *Snapshots) fetch(ctx context.Context, c event.Collection, siteID, key string) (any, error) {
	ctx, span := otel.StartReloadSpan(ctx, string(c), siteID)
	start := time.Now()
	rows, err := s.fetchRows(ctx, c, siteID, key)
	s.metrics.RecordReload(ctx, string(c), time.Since(start).Seconds())
	otel.EndSpan(span, err)
	return rows, err
}

func (s *Snapshots) fetchRows(ctx context.Context, c event.Collection, siteID, key string) (any, error) {
	if s.cache != nil {
		if data, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			if rows, err := decodeRows(c, data); err == nil {
				return rows, nil
			}
		}
	}

	ver := s.version(key)
	var rows any
	if c == event.CollectionRequests {
		list, err := s.store.ListRequests(ctx, siteID)
		if err != nil {
			return nil, fmt.Errorf("list requests: %w", err)
		}
		rows = list
	} else {
		kind, ok := content.KindOf(c)
		if !ok {
			return nil, fmt.Errorf("unknown collection %q", c)
		}
		list, err := s.store.ListContent(ctx, siteID, kind)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", c, err)
		}
		rows = list
	}

	if s.cache != nil && s.version(key) == ver {
		s.writeBack(ctx, key, ver, rows)
	}
	return rows, nil
}

// writeBack writes rows read at version ver to the cache. An invalidation can
// land between the version check and the write; re-checking afterwards and
// dropping the entry keeps rows read before a write from outliving it.
func (s *Snapshots) writeBack(ctx context.Context, key string, ver uint64, rows any) {
	data, err := json.Marshal(rows)
	if err == nil {
		err = s.cache.Set(ctx, key, data, s.ttl)
	}
	if err != nil {
		logger.From(ctx).Warn("snapshot cache set failed", "key", key, "error", err)
		return
	}
	if s.version(key) == ver {
		return
	}
	if err := s.cache.Delete(ctx, key); err != nil {
		logger.From(ctx).Warn("snapshot cache delete failed", "key", key, "error", err)
	}
}

func decodeRows(c event.Collection, data []byte) (any, error) {
	if c == event.CollectionRequests {
		var rows []request.Request
		if err := json.Unmarshal(data, &rows); err != nil {
			return nil, err
		}
		return rows, nil
	}
	var rows []content.Item
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}
