package app_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/neomorfeo/taxireg/internal/domain"
)

// --- Mocks ---

type mockAuthorities struct {
	authorities []domain.LicensingAuthority
	permissions map[uuid.UUID][]string
	byVRM       map[string][]string
}

func newMockAuthorities(names ...string) *mockAuthorities {
	m := &mockAuthorities{
		permissions: make(map[uuid.UUID][]string),
		byVRM:       make(map[string][]string),
	}
	for i, n := range names {
		m.authorities = append(m.authorities, domain.LicensingAuthority{ID: i + 1, Name: n})
	}
	return m
}

func (m *mockAuthorities) grant(uploaderID uuid.UUID, names ...string) {
	m.permissions[uploaderID] = append(m.permissions[uploaderID], names...)
}

func (m *mockAuthorities) byName(name string) domain.LicensingAuthority {
	for _, a := range m.authorities {
		if a.Name == name {
			return a
		}
	}
	panic("unknown authority " + name)
}

func (m *mockAuthorities) FindAll(context.Context) ([]domain.LicensingAuthority, error) {
	return m.authorities, nil
}

func (m *mockAuthorities) FindByNames(_ context.Context, names []string) ([]domain.LicensingAuthority, error) {
	var out []domain.LicensingAuthority
	for _, a := range m.authorities {
		for _, n := range names {
			if a.Name == n {
				out = append(out, a)
				break
			}
		}
	}
	return out, nil
}

func (m *mockAuthorities) FindAllowedToBeModifiedBy(ctx context.Context, uploaderID uuid.UUID) ([]domain.LicensingAuthority, error) {
	return m.FindByNames(ctx, m.permissions[uploaderID])
}

func (m *mockAuthorities) FindNamesByVRM(_ context.Context, vrm string) ([]string, error) {
	return m.byVRM[vrm], nil
}

type mockLicences struct {
	mu        sync.Mutex
	stored    map[int][]domain.Licence
	nextID    int
	applied   [][]domain.AuthorityChanges
	applyErr  error
	findCalls int
}

func newMockLicences() *mockLicences {
	return &mockLicences{stored: make(map[int][]domain.Licence), nextID: 1}
}

func (m *mockLicences) seed(licences ...domain.Licence) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range licences {
		l.ID = m.nextID
		m.nextID++
		m.stored[l.LicensingAuthority.ID] = append(m.stored[l.LicensingAuthority.ID], l)
	}
}

func (m *mockLicences) all(authorityID int) []domain.Licence {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]domain.Licence(nil), m.stored[authorityID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *mockLicences) FindByAuthority(_ context.Context, authorityID int) ([]domain.Licence, error) {
	return m.all(authorityID), nil
}

func (m *mockLicences) FindByVRM(_ context.Context, vrm string) ([]domain.Licence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findCalls++
	var out []domain.Licence
	for _, ls := range m.stored {
		for _, l := range ls {
			if l.VRM == vrm {
				out = append(out, l)
			}
		}
	}
	return out, nil
}

// Apply mimics a transaction: nothing changes when applyErr is set.
func (m *mockLicences) Apply(_ context.Context, changes []domain.AuthorityChanges) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.applyErr != nil {
		return m.applyErr
	}
	m.applied = append(m.applied, changes)

	for _, c := range changes {
		id := c.Authority.ID
		deleted := make(map[int]bool)
		for _, l := range c.ToDelete {
			deleted[l.ID] = true
		}
		updated := make(map[int]domain.Licence)
		for _, l := range c.ToUpdate {
			updated[l.ID] = l
		}

		var kept []domain.Licence
		for _, l := range m.stored[id] {
			if deleted[l.ID] {
				continue
			}
			if u, ok := updated[l.ID]; ok {
				l = u
			}
			kept = append(kept, l)
		}
		for _, l := range c.ToInsert {
			l.ID = m.nextID
			m.nextID++
			kept = append(kept, l)
		}
		m.stored[id] = kept
	}
	return nil
}

type mockJobs struct {
	mu     sync.Mutex
	jobs   map[int]domain.RegisterJob
	nextID int
}

func newMockJobs() *mockJobs {
	return &mockJobs{jobs: make(map[int]domain.RegisterJob), nextID: 1}
}

func (m *mockJobs) get(id int) domain.RegisterJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.jobs[id]
}

func (m *mockJobs) Insert(_ context.Context, job domain.RegisterJob) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job.ID = m.nextID
	m.nextID++
	m.jobs[job.ID] = job
	return job.ID, nil
}

func (m *mockJobs) FindByID(_ context.Context, id int) (domain.RegisterJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return domain.RegisterJob{}, domain.ErrJobNotFound
	}
	return job, nil
}

func (m *mockJobs) FindByName(_ context.Context, name string) (domain.RegisterJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, job := range m.jobs {
		if job.Name == name {
			return job, nil
		}
	}
	return domain.RegisterJob{}, domain.ErrJobNotFound
}

func (m *mockJobs) UpdateStatus(_ context.Context, id int, status domain.JobStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job := m.jobs[id]
	job.Status = status
	m.jobs[id] = job
	return nil
}

func (m *mockJobs) countActive(excludeID int, authorityIDs []int) int {
	count := 0
	for _, job := range m.jobs {
		if job.ID == excludeID || !job.Status.IsActive() {
			continue
		}
	outer:
		for _, held := range job.ImpactedAuthorityIDs {
			for _, id := range authorityIDs {
				if held == id {
					count++
					break outer
				}
			}
		}
	}
	return count
}

func (m *mockJobs) LockAuthorities(_ context.Context, id int, authorityIDs []int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.countActive(id, authorityIDs) > 0 {
		return &domain.AuthorityUnavailableError{AuthorityIDs: authorityIDs}
	}
	job := m.jobs[id]
	job.ImpactedAuthorityIDs = authorityIDs
	m.jobs[id] = job
	return nil
}

func (m *mockJobs) Finish(_ context.Context, id int, status domain.JobStatus, errs []domain.ValidationError, affected []int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job := m.jobs[id]
	job.Status = status
	job.Errors = errs
	if affected != nil {
		job.ImpactedAuthorityIDs = affected
	}
	m.jobs[id] = job
	return nil
}

func (m *mockJobs) CountActiveJobs(_ context.Context, authorityIDs []int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.countActive(0, authorityIDs), nil
}

// tableValidator walks domain.JobTransitions directly.
type tableValidator struct{}

func (tableValidator) Apply(_ context.Context, current domain.JobStatus, event domain.JobEvent) (domain.JobStatus, error) {
	for _, t := range domain.JobTransitions {
		if t.Src == current && t.Event == event {
			return t.Dst, nil
		}
	}
	return "", &domain.TransitionError{Event: event, Current: current}
}

type storedObject struct {
	body     []byte
	metadata domain.ObjectMetadata
}

type mockStore struct {
	mu        sync.Mutex
	objects   map[string]storedObject
	deleteErr error
	deleted   []string
}

func newMockStore() *mockStore {
	return &mockStore{objects: make(map[string]storedObject)}
}

func (m *mockStore) put(bucket, key string, body string, metadata domain.ObjectMetadata) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[bucket+"/"+key] = storedObject{body: []byte(body), metadata: metadata}
}

func (m *mockStore) object(bucket, key string) (storedObject, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.objects[bucket+"/"+key]
	return o, ok
}

func (m *mockStore) Head(_ context.Context, bucket, key string) (domain.ObjectMetadata, error) {
	o, ok := m.object(bucket, key)
	if !ok {
		return nil, domain.ErrObjectNotFound
	}
	return o.metadata, nil
}

func (m *mockStore) Get(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	o, ok := m.object(bucket, key)
	if !ok {
		return nil, domain.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(o.body)), nil
}

func (m *mockStore) Put(_ context.Context, bucket, key string, body []byte, _ string) error {
	m.put(bucket, key, string(body), nil)
	return nil
}

func (m *mockStore) Delete(_ context.Context, bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.objects, bucket+"/"+key)
	m.deleted = append(m.deleted, bucket+"/"+key)
	return nil
}

// mockParser returns canned rows and errors whatever the file contains.
type mockParser struct {
	rows []domain.VehicleRow
	errs []domain.ValidationError
}

func (m *mockParser) Parse(r io.Reader, maxErrors int) ([]domain.VehicleRow, []domain.ValidationError, error) {
	if _, err := io.ReadAll(r); err != nil {
		return nil, nil, err
	}
	errs := m.errs
	if len(errs) > maxErrors {
		errs = errs[:maxErrors]
	}
	return append([]domain.VehicleRow(nil), m.rows...), errs, nil
}

type mockCache struct {
	mu       sync.Mutex
	entries  map[string]domain.LicenceInfo
	evicted  []string
	evictErr error
}

func newMockCache() *mockCache {
	return &mockCache{entries: make(map[string]domain.LicenceInfo)}
}

func (m *mockCache) Get(_ context.Context, vrm string) (domain.LicenceInfo, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.entries[vrm]
	return info, ok, nil
}

func (m *mockCache) Set(_ context.Context, info domain.LicenceInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[info.VRM] = info
	return nil
}

func (m *mockCache) Evict(_ context.Context, vrms []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evicted = append(m.evicted, vrms...)
	return m.evictErr
}

type mockCompliance struct {
	mu     sync.Mutex
	purged []string
	err    error
}

func (m *mockCompliance) PurgeCache(_ context.Context, vrms []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purged = append(m.purged, vrms...)
	return m.err
}

type cleanupMessage struct {
	jobID         int
	correlationID string
	delay         time.Duration
}

type mockQueue struct {
	messages []cleanupMessage
}

func (m *mockQueue) SendCleanupMessage(_ context.Context, jobID int, correlationID string, delay time.Duration) error {
	m.messages = append(m.messages, cleanupMessage{jobID: jobID, correlationID: correlationID, delay: delay})
	return nil
}

type sentEmail struct {
	to, subject, body string
}

type mockEmail struct {
	sent []sentEmail
}

func (m *mockEmail) Send(_ context.Context, to, subject, body string) error {
	m.sent = append(m.sent, sentEmail{to: to, subject: subject, body: body})
	return nil
}

// inlineSubmitter runs tasks synchronously so tests can assert on outcomes.
type inlineSubmitter struct {
	err error
}

func (s inlineSubmitter) SubmitDetached(task func(ctx context.Context)) error {
	if s.err != nil {
		return s.err
	}
	task(context.Background())
	return nil
}

var errStorage = errors.New("storage unavailable")
