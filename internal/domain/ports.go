package domain

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// AuthorityRepository defines read access to licensing authorities and the
// uploader permissions attached to them.
type AuthorityRepository interface {
	FindAll(ctx context.Context) ([]LicensingAuthority, error)
	FindByNames(ctx context.Context, names []string) ([]LicensingAuthority, error)
	FindAllowedToBeModifiedBy(ctx context.Context, uploaderID uuid.UUID) ([]LicensingAuthority, error)
	FindNamesByVRM(ctx context.Context, vrm string) ([]string, error)
}

// AuthorityChanges is the reconciled change set for a single authority.
type AuthorityChanges struct {
	Authority LicensingAuthority
	ToDelete  []Licence
	ToUpdate  []Licence
	ToInsert  []Licence
}

// Empty reports whether applying the changes would be a no-op.
func (c AuthorityChanges) Empty() bool {
	return len(c.ToDelete) == 0 && len(c.ToUpdate) == 0 && len(c.ToInsert) == 0
}

// LicenceRepository defines the persistence contract for licences.
type LicenceRepository interface {
	FindByAuthority(ctx context.Context, authorityID int) ([]Licence, error)
	FindByVRM(ctx context.Context, vrm string) ([]Licence, error)
	// Apply deletes, updates and inserts the given changes, authority by
	// authority, inside a single transaction.
	Apply(ctx context.Context, changes []AuthorityChanges) error
}

// JobRepository defines the persistence contract for registration jobs.
type JobRepository interface {
	Insert(ctx context.Context, job RegisterJob) (int, error)
	FindByID(ctx context.Context, id int) (RegisterJob, error)
	FindByName(ctx context.Context, name string) (RegisterJob, error)
	UpdateStatus(ctx context.Context, id int, status JobStatus) error
	// LockAuthorities records the authorities a running job is about to
	// modify. It fails with *AuthorityUnavailableError when another active
	// job already holds one of them.
	LockAuthorities(ctx context.Context, id int, authorityIDs []int) error
	// Finish writes the terminal status, the error list and the affected
	// authorities in one transaction.
	Finish(ctx context.Context, id int, status JobStatus, errs []ValidationError, affectedAuthorityIDs []int) error
	CountActiveJobs(ctx context.Context, authorityIDs []int) (int, error)
}

// LicenceEventRepository reads the licence change log.
type LicenceEventRepository interface {
	// FindUpTo returns every event that happened on or before the given
	// day, oldest first.
	FindUpTo(ctx context.Context, day time.Time) ([]LicenceEvent, error)
	// FindByVRMUpTo returns the events of one VRM that happened on or
	// before the given day, oldest first.
	FindByVRMUpTo(ctx context.Context, vrm string, day time.Time) ([]LicenceEvent, error)
}

// LicenceHistoryRepository pages through the changes of a single VRM,
// newest first.
type LicenceHistoryRepository interface {
	FindChanges(ctx context.Context, query HistoryQuery) ([]LicenceChange, error)
	CountChanges(ctx context.Context, query HistoryQuery) (int, error)
}

// TransitionValidator checks job status transitions.
type TransitionValidator interface {
	Apply(ctx context.Context, current JobStatus, event JobEvent) (JobStatus, error)
}

// ObjectMetadata is the user metadata attached to a stored object.
type ObjectMetadata map[string]string

// Object metadata keys set by uploaders.
const (
	MetadataUploaderID = "uploader-id"
	MetadataEmail      = "email"
)

// ObjectStore is the bucket/key object storage used for CSV submissions and
// API audit payloads.
type ObjectStore interface {
	Head(ctx context.Context, bucket, key string) (ObjectMetadata, error)
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	Put(ctx context.Context, bucket, key string, body []byte, contentType string) error
	Delete(ctx context.Context, bucket, key string) error
}

// VehicleFileParser reads raw vehicle rows from an uploaded CSV file. Parsing
// stops once maxErrors line errors have been collected.
type VehicleFileParser interface {
	Parse(r io.Reader, maxErrors int) ([]VehicleRow, []ValidationError, error)
}

// CleanupQueue schedules the deferred cleanup of long-running API jobs.
type CleanupQueue interface {
	SendCleanupMessage(ctx context.Context, jobID int, correlationID string, delay time.Duration) error
}

// EmailSender delivers plain emails.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// ComplianceCache is the remote vehicle compliance service cache.
type ComplianceCache interface {
	PurgeCache(ctx context.Context, vrms []string) error
}

// LicenceCache is the local read-through cache of licence lookups.
type LicenceCache interface {
	Get(ctx context.Context, vrm string) (LicenceInfo, bool, error)
	Set(ctx context.Context, info LicenceInfo) error
	Evict(ctx context.Context, vrms []string) error
}

// RegistrationMetrics records registration job counters.
type RegistrationMetrics interface {
	JobStarted(ctx context.Context, trigger JobTrigger)
	JobFinished(ctx context.Context, trigger JobTrigger, status JobStatus)
	LicencesChanged(ctx context.Context, operation string, count int)
}
