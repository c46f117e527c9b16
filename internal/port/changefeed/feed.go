// Package changefeed defines the port that carries document change
// notifications from writers to live queries.
package changefeed

import (
	"context"

	"github.com/Strob0t/sitecms/internal/domain/event"
)

// Handler processes a change received from the feed.
type Handler func(ctx context.Context, c event.Change)

// Feed is the port interface for publishing and subscribing to changes.
type Feed interface {
	// Publish announces a change to every subscriber, including those in
	// other processes when the feed is distributed.
	Publish(ctx context.Context, c event.Change) error

	// Subscribe registers a handler for every change published after the
	// call returns. The returned function cancels the subscription.
	Subscribe(ctx context.Context, handler Handler) (cancel func(), err error)

	// Close releases the feed connection.
	Close() error
}
