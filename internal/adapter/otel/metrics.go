package otel

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/neomorfeo/taxireg/internal/domain"
)

const meterName = tracerName

// JobMetrics implements domain.RegistrationMetrics with OpenTelemetry counters.
type JobMetrics struct {
	started  metric.Int64Counter
	finished metric.Int64Counter
	changed  metric.Int64Counter
}

// Compile-time check: JobMetrics implements domain.RegistrationMetrics.
var _ domain.RegistrationMetrics = (*JobMetrics)(nil)

// NewJobMetrics creates the registration counters on the given provider.
func NewJobMetrics(provider metric.MeterProvider) (*JobMetrics, error) {
	meter := provider.Meter(meterName)

	started, err := meter.Int64Counter("taxireg.jobs.started",
		metric.WithDescription("Registration jobs started"))
	if err != nil {
		return nil, fmt.Errorf("creating jobs.started counter: %w", err)
	}
	finished, err := meter.Int64Counter("taxireg.jobs.finished",
		metric.WithDescription("Registration jobs that reached a terminal status"))
	if err != nil {
		return nil, fmt.Errorf("creating jobs.finished counter: %w", err)
	}
	changed, err := meter.Int64Counter("taxireg.licences.changed",
		metric.WithDescription("Licences changed by registrations, per operation"))
	if err != nil {
		return nil, fmt.Errorf("creating licences.changed counter: %w", err)
	}

	return &JobMetrics{started: started, finished: finished, changed: changed}, nil
}

func (m *JobMetrics) JobStarted(ctx context.Context, trigger domain.JobTrigger) {
	m.started.Add(ctx, 1, metric.WithAttributes(attribute.String("trigger", string(trigger))))
}

func (m *JobMetrics) JobFinished(ctx context.Context, trigger domain.JobTrigger, status domain.JobStatus) {
	m.finished.Add(ctx, 1, metric.WithAttributes(
		attribute.String("trigger", string(trigger)),
		attribute.String("status", string(status)),
	))
}

func (m *JobMetrics) LicencesChanged(ctx context.Context, operation string, count int) {
	if count <= 0 {
		return
	}
	m.changed.Add(ctx, int64(count), metric.WithAttributes(attribute.String("operation", operation)))
}
