package service

import (
	"context"
	"time"

	"github.com/Strob0t/sitecms/internal/domain/event"
	"github.com/Strob0t/sitecms/internal/logger"
	"github.com/Strob0t/sitecms/internal/port/changefeed"
)

// changeNotifier invalidates cached snapshots and announces a write on the
// change feed.
type changeNotifier struct {
	feed      changefeed.Feed
	snapshots *Snapshots
	ns        string
}

// notify never fails the write it follows: a publish error is logged and
// live lists on other instances refresh on their next change.
func (n *changeNotifier) notify(ctx context.Context, c event.Collection, siteID string, op event.Op, docID string, at time.Time) {
	ch := event.Change{
		Namespace:  n.ns,
		Collection: c,
		SiteID:     siteID,
		Op:         op,
		DocID:      docID,
		At:         at,
	}
	if n.snapshots != nil {
		n.snapshots.Invalidate(ctx, ch.Key())
	}
	if n.feed == nil {
		return
	}
	if err := n.feed.Publish(ctx, ch); err != nil {
		logger.From(ctx).Error("publish change failed",
			"collection", c, "site_id", siteID, "op", op, "doc_id", docID, "error", err)
	}
}
