package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "sitecms"

// Metrics holds all sitecms metric instruments. A nil *Metrics records nothing.
type Metrics struct {
	ContentCreated      metric.Int64Counter
	ContentDeleted      metric.Int64Counter
	RequestsSubmitted   metric.Int64Counter
	RequestTransitions  metric.Int64Counter
	ActiveSubscriptions metric.Int64UpDownCounter
	SnapshotReloads     metric.Int64Counter
	SnapshotDuration    metric.Float64Histogram
}

// NewMetrics creates all metric instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.ContentCreated, err = meter.Int64Counter("sitecms.content.created",
		metric.WithDescription("Number of content items created"))
	if err != nil {
		return nil, err
	}

	m.ContentDeleted, err = meter.Int64Counter("sitecms.content.deleted",
		metric.WithDescription("Number of content items deleted"))
	if err != nil {
		return nil, err
	}

	m.RequestsSubmitted, err = meter.Int64Counter("sitecms.requests.submitted",
		metric.WithDescription("Number of service requests submitted"))
	if err != nil {
		return nil, err
	}

	m.RequestTransitions, err = meter.Int64Counter("sitecms.requests.transitions",
		metric.WithDescription("Number of service request status changes"))
	if err != nil {
		return nil, err
	}

	m.ActiveSubscriptions, err = meter.Int64UpDownCounter("sitecms.live.subscriptions",
		metric.WithDescription("Number of open live query subscriptions"))
	if err != nil {
		return nil, err
	}

	m.SnapshotReloads, err = meter.Int64Counter("sitecms.live.reloads",
		metric.WithDescription("Number of live query snapshot reloads from the store"))
	if err != nil {
		return nil, err
	}

	m.SnapshotDuration, err = meter.Float64Histogram("sitecms.live.reload.duration_seconds",
		metric.WithDescription("Snapshot reload duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// CountContentCreated records one created item of kind on siteID.
func (m *Metrics) CountContentCreated(ctx context.Context, siteID, kind string) {
	if m == nil {
		return
	}
	m.ContentCreated.Add(ctx, 1, metric.WithAttributes(attribute.String("site.id", siteID), attribute.String("content.kind", kind)))
}

// CountContentDeleted records one deleted item of kind on siteID.
func (m *Metrics) CountContentDeleted(ctx context.Context, siteID, kind string) {
	if m == nil {
		return
	}
	m.ContentDeleted.Add(ctx, 1, metric.WithAttributes(attribute.String("site.id", siteID), attribute.String("content.kind", kind)))
}

// CountRequestSubmitted records one submitted request.
func (m *Metrics) CountRequestSubmitted(ctx context.Context, siteID, serviceType string) {
	if m == nil {
		return
	}
	m.RequestsSubmitted.Add(ctx, 1, metric.WithAttributes(attribute.String("site.id", siteID), attribute.String("request.type", serviceType)))
}

// CountTransition records one status change to status.
func (m *Metrics) CountTransition(ctx context.Context, siteID, status string) {
	if m == nil {
		return
	}
	m.RequestTransitions.Add(ctx, 1, metric.WithAttributes(attribute.String("site.id", siteID), attribute.String("request.status", status)))
}

// SubscriptionOpened increments the open subscription gauge.
func (m *Metrics) SubscriptionOpened(ctx context.Context, collection string) {
	if m == nil {
		return
	}
	m.ActiveSubscriptions.Add(ctx, 1, metric.WithAttributes(attribute.String("collection", collection)))
}

// SubscriptionClosed decrements the open subscription gauge.
func (m *Metrics) SubscriptionClosed(ctx context.Context, collection string) {
	if m == nil {
		return
	}
	m.ActiveSubscriptions.Add(ctx, -1, metric.WithAttributes(attribute.String("collection", collection)))
}

// RecordReload records one snapshot reload and its duration.
func (m *Metrics) RecordReload(ctx context.Context, collection string, seconds float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("collection", collection))
	m.SnapshotReloads.Add(ctx, 1, attrs)
	m.SnapshotDuration.Record(ctx, seconds, attrs)
}
