// Package nats implements the change feed port using NATS JetStream, so
// live queries on every instance see writes made by any instance.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/Strob0t/sitecms/internal/config"
	"github.com/Strob0t/sitecms/internal/domain/event"
	"github.com/Strob0t/sitecms/internal/logger"
	"github.com/Strob0t/sitecms/internal/port/changefeed"
)

const (
	headerRequestID = "X-Request-ID"
	streamMaxAge    = time.Hour
)

// Feed implements changefeed.Feed using NATS JetStream.
type Feed struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	stream string
	prefix string
}

// Connect establishes a connection to NATS and ensures the change stream exists.
func Connect(ctx context.Context, cfg config.NATS) (*Feed, error) {
	nc, err := nats.Connect(cfg.URL, nats.Name("sitecms"))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	// Changes are only hints to reload; a short retention is enough.
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     cfg.Stream,
		Subjects: []string{cfg.SubjectPrefix + ".>"},
		MaxAge:   streamMaxAge,
		Storage:  jetstream.MemoryStorage,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream stream create: %w", err)
	}

	slog.Info("nats connected", "url", cfg.URL, "stream", cfg.Stream)
	return &Feed{nc: nc, js: js, stream: cfg.Stream, prefix: cfg.SubjectPrefix}, nil
}

// JetStream exposes the JetStream context for KV buckets.
func (f *Feed) JetStream() jetstream.JetStream {
	return f.js
}

// Publish sends c on its collection/site subject.
func (f *Feed) Publish(ctx context.Context, c event.Change) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}
	msg := &nats.Msg{
		Subject: c.Subject(f.prefix),
		Data:    data,
		Header:  nats.Header{},
	}
	if id := logger.RequestID(ctx); id != "" {
		msg.Header.Set(headerRequestID, id)
	}
	if _, err := f.js.PublishMsg(ctx, msg); err != nil {
		return fmt.Errorf("nats publish %s: %w", msg.Subject, err)
	}
	return nil
}

// Subscribe delivers every change published after the call. Each call gets
// its own ordered ephemeral consumer; nothing is acknowledged or redelivered.
func (f *Feed) Subscribe(ctx context.Context, handler changefeed.Handler) (func(), error) {
	consumer, err := f.js.OrderedConsumer(ctx, f.stream, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{f.prefix + ".>"},
		DeliverPolicy:  jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("nats consumer create: %w", err)
	}

	cons, err := consumer.Consume(func(msg jetstream.Msg) {
		var c event.Change
		if err := json.Unmarshal(msg.Data(), &c); err != nil {
			slog.Error("change decode failed", "subject", msg.Subject(), "error", err)
			return
		}
		// The subject is authoritative for routing.
		if key, err := event.ParseSubject(f.prefix, msg.Subject()); err == nil {
			c.Namespace, c.Collection, c.SiteID = key.Namespace, key.Collection, key.SiteID
		}
		hctx := context.Background()
		if id := msg.Headers().Get(headerRequestID); id != "" {
			hctx = logger.WithRequestID(hctx, id)
		}
		handler(hctx, c)
	})
	if err != nil {
		return nil, fmt.Errorf("nats consume: %w", err)
	}

	return cons.Stop, nil
}

// IsConnected reports whether the NATS connection is up.
func (f *Feed) IsConnected() bool {
	return f.nc.IsConnected()
}

// Close drains the NATS connection.
func (f *Feed) Close() error {
	if err := f.nc.Drain(); err != nil {
		f.nc.Close()
		return fmt.Errorf("nats drain: %w", err)
	}
	return nil
}
