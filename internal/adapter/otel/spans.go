package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "sitecms"

// StartStoreSpan starts a span for a document store operation.
func StartStoreSpan(ctx context.Context, op, siteID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "store."+op,
		trace.WithAttributes(
			attribute.String("site.id", siteID),
		),
	)
}

// StartReloadSpan starts a span for a live query snapshot reload.
func StartReloadSpan(ctx context.Context, collection, siteID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "live.reload",
		trace.WithAttributes(
			attribute.String("collection", collection),
			attribute.String("site.id", siteID),
		),
	)
}

// StartNavigateSpan starts a span for a view router transition.
func StartNavigateSpan(ctx context.Context, siteID, mode, tab string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "view.navigate",
		trace.WithAttributes(
			attribute.String("site.id", siteID),
			attribute.String("view.mode", mode),
			attribute.String("view.tab", tab),
		),
	)
}

// EndSpan records err on span (if any) and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
