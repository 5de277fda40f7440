// Copyright © 2018 One Concern

package storage

import (
	"context"
	"io"
	"time"

	opentracing "github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	otlog "github.com/opentracing/opentracing-go/log"
	"go.uber.org/zap"
)

// Instrument decorates a payload store with tracing spans and debug logs.
//
// Spans are named "payloads.<op>" and tagged with the payload key. Failed operations
// are tagged as errors, except for missing payloads on Get.
func Instrument(tr opentracing.Tracer, logger *zap.Logger, store Store) Store {
	if tr == nil {
		tr = opentracing.NoopTracer{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &instrumentedStore{
		tr:    tr,
		store: store,
		l:     logger.With(zap.String("storage", store.String())),
	}
}

type instrumentedStore struct {
	store Store
	tr    opentracing.Tracer
	l     *zap.Logger
}

// start opens a span for a payload operation. The returned func closes it with the outcome of the operation.
func (i *instrumentedStore) start(ctx context.Context, op, key string) (opentracing.Span, func(error)) {
	opts := []opentracing.StartSpanOption{opentracing.Tag{Key: "storage", Value: i.store.String()}}
	if parent := opentracing.SpanFromContext(ctx); parent != nil {
		opts = append(opts, opentracing.ChildOf(parent.Context()))
	}
	span := i.tr.StartSpan("payloads."+op, opts...)
	if key != "" {
		span.SetTag("key", key)
	}
	started := time.Now()

	return span, func(err error) {
		if err != nil && err != ErrNotFound {
			ext.Error.Set(span, true)
			span.LogFields(otlog.Error(err))
		}
		span.Finish()
		i.l.Debug("payload "+op,
			zap.String("key", key),
			zap.Duration("elapsed", time.Since(started)),
			zap.Error(err),
		)
	}
}

func (i *instrumentedStore) String() string {
	return i.store.String()
}

func (i *instrumentedStore) Has(ctx context.Context, key string) (found bool, err error) {
	span, done := i.start(ctx, "has", key)
	defer func() { done(err) }()

	found, err = i.store.Has(ctx, key)
	span.SetTag("found", found)
	return found, err
}

func (i *instrumentedStore) Get(ctx context.Context, key string) (rdr io.ReadCloser, err error) {
	_, done := i.start(ctx, "get", key)
	defer func() { done(err) }()

	return i.store.Get(ctx, key)
}

func (i *instrumentedStore) Put(ctx context.Context, key string, source io.Reader, exclusive bool) (err error) {
	span, done := i.start(ctx, "put", key)
	defer func() { done(err) }()

	counter := &countingReader{r: source}
	err = i.store.Put(ctx, key, counter, exclusive)
	span.SetTag("exclusive", exclusive)
	span.SetTag("bytes", counter.n)
	return err
}

func (i *instrumentedStore) Delete(ctx context.Context, key string) (err error) {
	_, done := i.start(ctx, "delete", key)
	defer func() { done(err) }()

	return i.store.Delete(ctx, key)
}

func (i *instrumentedStore) Keys(ctx context.Context) (keys []string, err error) {
	span, done := i.start(ctx, "keys", "")
	defer func() { done(err) }()

	keys, err = i.store.Keys(ctx)
	span.SetTag("count", len(keys))
	return keys, err
}

func (i *instrumentedStore) Clear(ctx context.Context) (err error) {
	_, done := i.start(ctx, "clear", "")
	defer func() { done(err) }()

	return i.store.Clear(ctx)
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
