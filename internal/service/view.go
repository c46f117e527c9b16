package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/Strob0t/sitecms/internal/adapter/otel"
	"github.com/Strob0t/sitecms/internal/domain"
	"github.com/Strob0t/sitecms/internal/domain/user"
	"github.com/Strob0t/sitecms/internal/domain/view"
	"github.com/Strob0t/sitecms/internal/logger"
)

// ErrViewClosed is returned when navigating a closed router.
var ErrViewClosed = fmt.Errorf("%w: view closed", domain.ErrUnavailable)

// StreamFunc receives the snapshots of one stream opened by a ViewRouter.
type StreamFunc func(st view.Stream, snap *Snapshot, err error)

// ViewRouter owns the live subscriptions of one session and swaps them on
// every navigation.
type ViewRouter struct {
	watcher     Watcher
	identity    *user.Identity
	defaultSite string
	push        StreamFunc
	enter       func(view.State)

	mu      sync.Mutex
	state   view.State
	handles []Handle
	closed  bool
}

// NewViewRouter creates a router for one session. Nothing is opened until
// the first Navigate.
func NewViewRouter(w Watcher, id *user.Identity, defaultSite string, push StreamFunc) *ViewRouter {
	return &ViewRouter{
		watcher:     w,
		identity:    id,
		defaultSite: defaultSite,
		push:        push,
	}
}

// OnEnter registers fn to run once a navigation is accepted, after the old
// subscriptions are released and before the first new one opens. It must
// be set before the first Navigate.
func (r *ViewRouter) OnEnter(fn func(view.State)) {
	r.enter = fn
}

// State returns the current state.
func (r *ViewRouter) State() view.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Navigate moves the session to next. Every subscription of the current
// state is released before any subscription of next is opened. A denied
// admin entry leaves the current state untouched. If a stream of next
// fails to open, every stream is released and the router is left with no
// view (the zero State) until the next successful Navigate.
func (r *ViewRouter) Navigate(ctx context.Context, next view.State) (view.State, error) {
	next = next.Normalize(r.defaultSite)

	ctx, span := otel.StartNavigateSpan(ctx, next.SiteID, string(next.Mode), string(next.Tab))
	st, err := r.navigate(ctx, next)
	otel.EndSpan(span, err)
	return st, err
}

func (r *ViewRouter) navigate(ctx context.Context, next view.State) (view.State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return r.state, ErrViewClosed
	}
	if r.identity == nil {
		return r.state, ErrIdentityNotReady
	}
	if next.Mode == view.ModeAdmin {
		if err := Authorize(r.identity, ActionEnterAdmin, next.SiteID); err != nil {
			return r.state, err
		}
	}

	r.closeAll()
	if r.enter != nil {
		r.enter(next)
	}

	for _, st := range next.Streams() {
		h, err := r.watcher.Watch(ctx, st, func(snap *Snapshot, err error) {
			r.push(st, snap, err)
		})
		if err != nil {
			r.closeAll()
			r.state = view.State{}
			return r.state, err
		}
		r.handles = append(r.handles, h)
	}
	r.state = next

	logger.From(ctx).Debug("view changed",
		"site_id", next.SiteID, "view", next.Mode, "tab", next.Tab, "streams", len(r.handles))
	return next, nil
}

// Close releases every subscription. The router cannot be navigated again.
func (r *ViewRouter) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.closeAll()
}

func (r *ViewRouter) closeAll() {
	for _, h := range r.handles {
		h.Close()
	}
	r.handles = nil
}
