package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/Strob0t/sitecms/internal/adapter/otel"
	"github.com/Strob0t/sitecms/internal/domain"
	"github.com/Strob0t/sitecms/internal/domain/event"
	"github.com/Strob0t/sitecms/internal/domain/view"
	"github.com/Strob0t/sitecms/internal/port/changefeed"
)

// SnapshotFunc receives every snapshot of a stream, or the error that
// prevented loading it. It runs on the subscription goroutine.
type SnapshotFunc func(snap *Snapshot, err error)

// Handle releases a live subscription.
type Handle interface {
	Close()
}

// Watcher opens live subscriptions.
type Watcher interface {
	Watch(ctx context.Context, st view.Stream, fn SnapshotFunc) (Handle, error)
}

// LiveQueries keeps one change feed subscription and fans every change out
// to the live subscriptions of the affected (collection, site).
type LiveQueries struct {
	snapshots *Snapshots
	ns        string
	metrics   *otel.Metrics

	mu     sync.Mutex
	subs   map[event.Key]map[*Subscription]struct{}
	closed bool

	cancelFeed func()
}

// NewLiveQueries subscribes to feed and returns the fan-out.
func NewLiveQueries(ctx context.Context, feed changefeed.Feed, snapshots *Snapshots, namespace string, metrics *otel.Metrics) (*LiveQueries, error) {
	l := &LiveQueries{
		snapshots: snapshots,
		ns:        namespace,
		metrics:   metrics,
		subs:      make(map[event.Key]map[*Subscription]struct{}),
	}
	cancel, err := feed.Subscribe(ctx, l.onChange)
	if err != nil {
		return nil, err
	}
	l.cancelFeed = cancel
	return l, nil
}

// Watch opens a subscription on st. fn receives the current snapshot
// immediately and again after every change touching the stream, until the
// handle is closed. Handles must not be closed from within fn.
func (l *LiveQueries) Watch(ctx context.Context, st view.Stream, fn SnapshotFunc) (Handle, error) {
	if !st.Collection.Valid() {
		return nil, errors.New("unknown collection " + string(st.Collection))
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		stream: st,
		key:    event.Key{Namespace: l.ns, Collection: st.Collection, SiteID: st.SiteID},
		dirty:  make(chan struct{}, 1),
		cancel: cancel,
		done:   make(chan struct{}),
		owner:  l,
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		cancel()
		return nil, domain.ErrUnavailable
	}
	set := l.subs[sub.key]
	if set == nil {
		set = make(map[*Subscription]struct{})
		l.subs[sub.key] = set
	}
	set[sub] = struct{}{}
	l.mu.Unlock()

	l.metrics.SubscriptionOpened(ctx, string(st.Collection))
	go sub.run(ctx, l.snapshots, fn)
	return sub, nil
}

// Active returns the number of open subscriptions.
func (l *LiveQueries) Active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, set := range l.subs {
		n += len(set)
	}
	return n
}

// Close releases the feed subscription and every live subscription.
func (l *LiveQueries) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	var all []*Subscription
	for _, set := range l.subs {
		for sub := range set {
			all = append(all, sub)
		}
	}
	l.mu.Unlock()

	if l.cancelFeed != nil {
		l.cancelFeed()
	}
	for _, sub := range all {
		sub.Close()
	}
}

func (l *LiveQueries) onChange(ctx context.Context, c event.Change) {
	if c.Namespace != l.ns {
		return
	}
	// Changes from other instances have not invalidated this instance's cache.
	l.snapshots.Invalidate(ctx, c.Key())

	l.mu.Lock()
	defer l.mu.Unlock()
	for sub := range l.subs[c.Key()] {
		sub.markDirty()
	}
}

func (l *LiveQueries) remove(sub *Subscription) {
	l.mu.Lock()
	defer l.mu.Unlock()
	set := l.subs[sub.key]
	delete(set, sub)
	if len(set) == 0 {
		delete(l.subs, sub.key)
	}
}

// Subscription is one live stream. Changes arriving while a reload is in
// progress collapse into a single follow-up reload.
type Subscription struct {
	stream view.Stream
	key    event.Key
	dirty  chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	owner  *LiveQueries
}

// Stream returns the watched stream.
func (s *Subscription) Stream() view.Stream { return s.stream }

// Close stops the subscription and waits for its goroutine to exit.
// Calling Close more than once is safe.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.owner.remove(s)
		s.cancel()
		<-s.done
		s.owner.metrics.SubscriptionClosed(context.Background(), string(s.stream.Collection))
	})
}

func (s *Subscription) markDirty() {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

func (s *Subscription) run(ctx context.Context, snapshots *Snapshots, fn SnapshotFunc) {
	defer close(s.done)
	for {
		snap, err := snapshots.Load(ctx, s.stream)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			slog.Warn("live snapshot load failed",
				"collection", s.stream.Collection, "site_id", s.stream.SiteID, "error", err)
		}
		fn(snap, err)

		select {
		case <-ctx.Done():
			return
		case <-s.dirty:
		}
	}
}
