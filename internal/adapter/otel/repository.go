package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/taxireg/internal/domain"
)

const tracerName = "github.com/neomorfeo/taxireg/internal/adapter/otel"

// endSpan records err on the span, if any, and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// TracingLicenceRepository wraps a domain.LicenceRepository with OpenTelemetry tracing.
// Each method creates a span with semantic attributes and records errors.
type TracingLicenceRepository struct {
	next   domain.LicenceRepository
	tracer trace.Tracer
}

// Compile-time check: TracingLicenceRepository implements domain.LicenceRepository.
var _ domain.LicenceRepository = (*TracingLicenceRepository)(nil)

// NewTracingLicenceRepository creates a tracing decorator around the given repository.
func NewTracingLicenceRepository(next domain.LicenceRepository) *TracingLicenceRepository {
	return &TracingLicenceRepository{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (r *TracingLicenceRepository) FindByAuthority(ctx context.Context, authorityID int) ([]domain.Licence, error) {
	ctx, span := r.tracer.Start(ctx, "LicenceRepository.FindByAuthority",
		trace.WithAttributes(attribute.Int("authority.id", authorityID)),
	)

	licences, err := r.next.FindByAuthority(ctx, authorityID)
	if err == nil {
		span.SetAttributes(attribute.Int("result.count", len(licences)))
	}
	endSpan(span, err)
	return licences, err
}

func (r *TracingLicenceRepository) FindByVRM(ctx context.Context, vrm string) ([]domain.Licence, error) {
	ctx, span := r.tracer.Start(ctx, "LicenceRepository.FindByVRM",
		trace.WithAttributes(attribute.String("licence.vrm", vrm)),
	)

	licences, err := r.next.FindByVRM(ctx, vrm)
	if err == nil {
		span.SetAttributes(attribute.Int("result.count", len(licences)))
	}
	endSpan(span, err)
	return licences, err
}

func (r *TracingLicenceRepository) Apply(ctx context.Context, changes []domain.AuthorityChanges) error {
	var deleted, updated, inserted int
	for _, c := range changes {
		deleted += len(c.ToDelete)
		updated += len(c.ToUpdate)
		inserted += len(c.ToInsert)
	}

	ctx, span := r.tracer.Start(ctx, "LicenceRepository.Apply",
		trace.WithAttributes(
			attribute.Int("authority.count", len(changes)),
			attribute.Int("licences.deleted", deleted),
			attribute.Int("licences.updated", updated),
			attribute.Int("licences.inserted", inserted),
		),
	)

	err := r.next.Apply(ctx, changes)
	endSpan(span, err)
	return err
}

// TracingJobRepository wraps a domain.JobRepository with OpenTelemetry tracing.
type TracingJobRepository struct {
	next   domain.JobRepository
	tracer trace.Tracer
}

// Compile-time check: TracingJobRepository implements domain.JobRepository.
var _ domain.JobRepository = (*TracingJobRepository)(nil)

// NewTracingJobRepository creates a tracing decorator around the given repository.
func NewTracingJobRepository(next domain.JobRepository) *TracingJobRepository {
	return &TracingJobRepository{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (r *TracingJobRepository) Insert(ctx context.Context, job domain.RegisterJob) (int, error) {
	ctx, span := r.tracer.Start(ctx, "JobRepository.Insert",
		trace.WithAttributes(
			attribute.String("job.name", job.Name),
			attribute.String("job.trigger", string(job.Trigger)),
			attribute.String("correlation.id", job.CorrelationID),
		),
	)

	id, err := r.next.Insert(ctx, job)
	if err == nil {
		span.SetAttributes(attribute.Int("job.id", id))
	}
	endSpan(span, err)
	return id, err
}

func (r *TracingJobRepository) FindByID(ctx context.Context, id int) (domain.RegisterJob, error) {
	ctx, span := r.tracer.Start(ctx, "JobRepository.FindByID",
		trace.WithAttributes(attribute.Int("job.id", id)),
	)

	job, err := r.next.FindByID(ctx, id)
	endSpan(span, err)
	return job, err
}

func (r *TracingJobRepository) FindByName(ctx context.Context, name string) (domain.RegisterJob, error) {
	ctx, span := r.tracer.Start(ctx, "JobRepository.FindByName",
		trace.WithAttributes(attribute.String("job.name", name)),
	)

	job, err := r.next.FindByName(ctx, name)
	endSpan(span, err)
	return job, err
}

func (r *TracingJobRepository) UpdateStatus(ctx context.Context, id int, status domain.JobStatus) error {
	ctx, span := r.tracer.Start(ctx, "JobRepository.UpdateStatus",
		trace.WithAttributes(
			attribute.Int("job.id", id),
			attribute.String("job.status", string(status)),
		),
	)

	err := r.next.UpdateStatus(ctx, id, status)
	endSpan(span, err)
	return err
}

func (r *TracingJobRepository) LockAuthorities(ctx context.Context, id int, authorityIDs []int) error {
	ctx, span := r.tracer.Start(ctx, "JobRepository.LockAuthorities",
		trace.WithAttributes(
			attribute.Int("job.id", id),
			attribute.IntSlice("authority.ids", authorityIDs),
		),
	)

	err := r.next.LockAuthorities(ctx, id, authorityIDs)
	endSpan(span, err)
	return err
}

func (r *TracingJobRepository) Finish(ctx context.Context, id int, status domain.JobStatus, errs []domain.ValidationError, affectedAuthorityIDs []int) error {
	ctx, span := r.tracer.Start(ctx, "JobRepository.Finish",
		trace.WithAttributes(
			attribute.Int("job.id", id),
			attribute.String("job.status", string(status)),
			attribute.Int("job.error_count", len(errs)),
		),
	)

	err := r.next.Finish(ctx, id, status, errs, affectedAuthorityIDs)
	endSpan(span, err)
	return err
}

func (r *TracingJobRepository) CountActiveJobs(ctx context.Context, authorityIDs []int) (int, error) {
	ctx, span := r.tracer.Start(ctx, "JobRepository.CountActiveJobs",
		trace.WithAttributes(attribute.IntSlice("authority.ids", authorityIDs)),
	)

	count, err := r.next.CountActiveJobs(ctx, authorityIDs)
	if err == nil {
		span.SetAttributes(attribute.Int("result.count", count))
	}
	endSpan(span, err)
	return count, err
}
