package memory

import (
	"context"
	"sync"

	"github.com/Strob0t/sitecms/internal/domain/event"
	"github.com/Strob0t/sitecms/internal/port/changefeed"
)

// Feed implements changefeed.Feed by calling every handler synchronously
// from Publish. Handlers must not block.
type Feed struct {
	mu       sync.RWMutex
	next     int
	handlers map[int]changefeed.Handler
	closed   bool
}

// NewFeed returns an in-process change feed.
func NewFeed() *Feed {
	return &Feed{handlers: make(map[int]changefeed.Handler)}
}

// Publish delivers c to every current subscriber.
func (f *Feed) Publish(ctx context.Context, c event.Change) error {
	f.mu.RLock()
	hs := make([]changefeed.Handler, 0, len(f.handlers))
	for _, h := range f.handlers {
		hs = append(hs, h)
	}
	f.mu.RUnlock()

	for _, h := range hs {
		h(ctx, c)
	}
	return nil
}

// Subscribe registers handler until the returned cancel is called.
func (f *Feed) Subscribe(_ context.Context, handler changefeed.Handler) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return func() {}, nil
	}
	id := f.next
	f.next++
	f.handlers[id] = handler

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.handlers, id)
			f.mu.Unlock()
		})
	}, nil
}

// Subscribers returns the number of registered handlers.
func (f *Feed) Subscribers() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.handlers)
}

// Close drops every subscriber.
func (f *Feed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	clear(f.handlers)
	return nil
}
