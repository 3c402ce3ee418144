package otel

import (
	"context"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/taxireg/internal/domain"
)

// TracingObjectStore wraps a domain.ObjectStore with OpenTelemetry tracing.
type TracingObjectStore struct {
	next   domain.ObjectStore
	tracer trace.Tracer
}

// Compile-time check: TracingObjectStore implements domain.ObjectStore.
var _ domain.ObjectStore = (*TracingObjectStore)(nil)

// NewTracingObjectStore creates a tracing decorator around the given store.
func NewTracingObjectStore(next domain.ObjectStore) *TracingObjectStore {
	return &TracingObjectStore{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (s *TracingObjectStore) start(ctx context.Context, op, bucket, key string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "ObjectStore."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("object.bucket", bucket),
			attribute.String("object.key", key),
		),
	)
}

func (s *TracingObjectStore) Head(ctx context.Context, bucket, key string) (domain.ObjectMetadata, error) {
	ctx, span := s.start(ctx, "Head", bucket, key)
	meta, err := s.next.Head(ctx, bucket, key)
	endSpan(span, err)
	return meta, err
}

// Get traces the request only; reading the body happens after the span ends.
func (s *TracingObjectStore) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	ctx, span := s.start(ctx, "Get", bucket, key)
	body, err := s.next.Get(ctx, bucket, key)
	endSpan(span, err)
	return body, err
}

func (s *TracingObjectStore) Put(ctx context.Context, bucket, key string, body []byte, contentType string) error {
	ctx, span := s.start(ctx, "Put", bucket, key)
	span.SetAttributes(attribute.Int("object.size", len(body)))
	err := s.next.Put(ctx, bucket, key, body, contentType)
	endSpan(span, err)
	return err
}

func (s *TracingObjectStore) Delete(ctx context.Context, bucket, key string) error {
	ctx, span := s.start(ctx, "Delete", bucket, key)
	err := s.next.Delete(ctx, bucket, key)
	endSpan(span, err)
	return err
}
