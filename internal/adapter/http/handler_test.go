package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	adapter "github.com/neomorfeo/taxireg/internal/adapter/http"
	"github.com/neomorfeo/taxireg/internal/adapter/sqlite"
	"github.com/neomorfeo/taxireg/internal/app"
	"github.com/neomorfeo/taxireg/internal/domain"
)

const uploader = "0d7ab5c4-5fff-4935-8c4e-56267c0c9493"

type apiJob struct {
	rows          []domain.VehicleRow
	uploaderID    uuid.UUID
	correlationID string
}

type csvJob struct {
	bucket, key, correlationID string
}

// fakeRegistrar records started jobs and serves jobs by name.
type fakeRegistrar struct {
	apiJobs []apiJob
	csvJobs []csvJob
	jobs    map[string]domain.RegisterJob
	err     error
}

func (f *fakeRegistrar) StartAPIJob(_ context.Context, rows []domain.VehicleRow, uploaderID uuid.UUID, correlationID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.apiJobs = append(f.apiJobs, apiJob{rows: rows, uploaderID: uploaderID, correlationID: correlationID})
	return "20240101_120000_01HZ_API_CALL", nil
}

func (f *fakeRegistrar) StartCSVJob(_ context.Context, bucket, key, correlationID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.csvJobs = append(f.csvJobs, csvJob{bucket: bucket, key: key, correlationID: correlationID})
	return "20240101_120000_01HZ_CSV_FROM_S3_fleet", nil
}

func (f *fakeRegistrar) FindJob(_ context.Context, name string) (domain.RegisterJob, error) {
	job, ok := f.jobs[name]
	if !ok {
		return domain.RegisterJob{}, domain.ErrJobNotFound
	}
	return job, nil
}

// newTestServer creates an httptest.Server backed by in-memory SQLite for
// reporting and lookup, and the given registrar.
func newTestServer(t *testing.T, registrar *fakeRegistrar) (*httptest.Server, *sqlite.Store) {
	t.Helper()

	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	router := chi.NewMux()
	api := humachi.New(router, huma.DefaultConfig("taxireg", "0.1.0"))
	adapter.Register(api, adapter.Services{
		Registrar: registrar,
		Reporter:  app.NewReportingService(store.Events(), store.Authorities()),
		Lookup:    app.NewLookupService(store.Licences(), store.Authorities(), nil),
		History:   app.NewHistoryService(store.Events()),
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return srv, store
}

// doRequest performs an HTTP request with context (avoids noctx linter).
func doRequest(t *testing.T, method, url, body string, headers map[string]string) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, url, reader)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}

	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func apiHeaders(apiKey string) map[string]string {
	return map[string]string{"X-Correlation-ID": "corr-1", "x-api-key": apiKey}
}

// --- Register from API ---

func TestRegisterVehicles_Accepted(t *testing.T) {
	registrar := &fakeRegistrar{}
	srv, _ := newTestServer(t, registrar)

	body := `{"vehicleDetails":[{"vrm":"AB12CDE","start":"2024-01-01","end":"2025-01-01",` +
		`"taxiOrPHV":"taxi","licensingAuthorityName":"Leeds","licensePlateNumber":"PL-1",` +
		`"wheelchairAccessibleVehicle":"true"},{"vrm":"CD34EFG"}]}`
	resp := doRequest(t, http.MethodPost, srv.URL+"/v1/scheme-management/taxiphvdatabase", body, apiHeaders(uploader))
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusAccepted)
	}
	if got := resp.Header.Get("X-Correlation-ID"); got != "corr-1" {
		t.Errorf("X-Correlation-ID = %q, want %q", got, "corr-1")
	}

	var handle adapter.JobHandle
	decode(t, resp, &handle)
	if handle.JobName != "20240101_120000_01HZ_API_CALL" {
		t.Errorf("JobName = %q", handle.JobName)
	}

	if len(registrar.apiJobs) != 1 {
		t.Fatalf("started %d API jobs, want 1", len(registrar.apiJobs))
	}
	job := registrar.apiJobs[0]
	if job.uploaderID.String() != uploader {
		t.Errorf("uploaderID = %s, want %s", job.uploaderID, uploader)
	}
	if job.correlationID != "corr-1" {
		t.Errorf("correlationID = %q, want %q", job.correlationID, "corr-1")
	}
	want := domain.VehicleRow{
		VRM:                    "AB12CDE",
		Start:                  "2024-01-01",
		End:                    "2025-01-01",
		Description:            "taxi",
		LicensingAuthorityName: "Leeds",
		PlateNumber:            "PL-1",
		WheelchairAccessible:   "true",
	}
	if len(job.rows) != 2 || job.rows[0] != want {
		t.Errorf("rows = %+v, want first row %+v", job.rows, want)
	}
	if job.rows[1].VRM != "CD34EFG" || job.rows[1].Start != "" {
		t.Errorf("partial row = %+v", job.rows[1])
	}
}

func TestRegisterVehicles_InvalidAPIKey(t *testing.T) {
	registrar := &fakeRegistrar{}
	srv, _ := newTestServer(t, registrar)

	resp := doRequest(t, http.MethodPost, srv.URL+"/v1/scheme-management/taxiphvdatabase",
		`{"vehicleDetails":[]}`, apiHeaders("not-a-uuid"))
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
	if len(registrar.apiJobs) != 0 {
		t.Error("no job should be started")
	}
}

func TestRegisterVehicles_MissingHeaders(t *testing.T) {
	srv, _ := newTestServer(t, &fakeRegistrar{})

	resp := doRequest(t, http.MethodPost, srv.URL+"/v1/scheme-management/taxiphvdatabase",
		`{"vehicleDetails":[]}`, nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnprocessableEntity)
	}
}

func TestRegisterVehicles_TooManyLicences(t *testing.T) {
	registrar := &fakeRegistrar{err: &domain.PayloadTooLargeError{Max: 1, Actual: 2}}
	srv, _ := newTestServer(t, registrar)

	resp := doRequest(t, http.MethodPost, srv.URL+"/v1/scheme-management/taxiphvdatabase",
		`{"vehicleDetails":[{"vrm":"AB12CDE"},{"vrm":"CD34EFG"}]}`, apiHeaders(uploader))
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnprocessableEntity)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "Max number of vehicles exceeded") {
		t.Errorf("body = %s", body)
	}
}

// --- Register from CSV ---

func TestStartCSVJob_Created(t *testing.T) {
	registrar := &fakeRegistrar{}
	srv, _ := newTestServer(t, registrar)

	resp := doRequest(t, http.MethodPost, srv.URL+"/v1/scheme-management/register-csv-from-s3/jobs",
		`{"s3Bucket":"uploads","filename":"fleet.csv"}`, map[string]string{"X-Correlation-ID": "corr-2"})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	var handle adapter.JobHandle
	decode(t, resp, &handle)
	if handle.JobName != "20240101_120000_01HZ_CSV_FROM_S3_fleet" {
		t.Errorf("JobName = %q", handle.JobName)
	}

	want := []csvJob{{bucket: "uploads", key: "fleet.csv", correlationID: "corr-2"}}
	if fmt.Sprint(registrar.csvJobs) != fmt.Sprint(want) {
		t.Errorf("csvJobs = %+v, want %+v", registrar.csvJobs, want)
	}
}

func TestStartCSVJob_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"missing uploader id", domain.ErrUploaderIDMissing, http.StatusBadRequest},
		{"invalid uploader id", domain.ErrInvalidUploaderID, http.StatusBadRequest},
		{"missing file", &app.ObjectStoreError{Op: "head uploads/fleet.csv", Err: domain.ErrObjectNotFound}, http.StatusNotFound},
		{"storage failure", &app.ObjectStoreError{Op: "head uploads/fleet.csv", Err: fmt.Errorf("timeout")}, http.StatusBadGateway},
		{"name conflict", &domain.JobNameConflictError{Name: "x"}, http.StatusConflict},
		{"unexpected", fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, &fakeRegistrar{err: tt.err})

			resp := doRequest(t, http.MethodPost, srv.URL+"/v1/scheme-management/register-csv-from-s3/jobs",
				`{"s3Bucket":"uploads","filename":"fleet.csv"}`, map[string]string{"X-Correlation-ID": "corr"})
			defer resp.Body.Close()

			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

// --- Job status ---

func TestJobStatus(t *testing.T) {
	registrar := &fakeRegistrar{jobs: map[string]domain.RegisterJob{
		"running": {Name: "running", Status: domain.JobStatusRunning},
		"failed": {
			Name:   "failed",
			Status: domain.JobStatusFailureValidation,
			Errors: []domain.ValidationError{domain.ValueError("AB12CDE", "Invalid start date", 3)},
		},
	}}
	srv, _ := newTestServer(t, registrar)

	t.Run("running", func(t *testing.T) {
		resp := doRequest(t, http.MethodGet, srv.URL+"/v1/scheme-management/register-csv-from-s3/jobs/running", "", nil)
		defer resp.Body.Close()

		var got adapter.JobStatusResponse
		decode(t, resp, &got)
		if got.Status != "RUNNING" || len(got.Errors) != 0 {
			t.Errorf("got %+v", got)
		}
	})

	t.Run("failed with errors", func(t *testing.T) {
		resp := doRequest(t, http.MethodGet, srv.URL+"/v1/scheme-management/register-csv-from-s3/jobs/failed", "", nil)
		defer resp.Body.Close()

		var got adapter.JobStatusResponse
		decode(t, resp, &got)
		want := adapter.ErrorResponse{VRM: "AB12CDE", Title: "Value error", Detail: "Line 3: Invalid start date"}
		if got.Status != "FINISHED_FAILURE_VALIDATION_ERRORS" || len(got.Errors) != 1 || got.Errors[0] != want {
			t.Errorf("got %+v", got)
		}
	})

	t.Run("not found", func(t *testing.T) {
		resp := doRequest(t, http.MethodGet, srv.URL+"/v1/scheme-management/register-csv-from-s3/jobs/missing", "", nil)
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
		}
	})
}

// --- Reporting ---

func seedLicence(t *testing.T, store *sqlite.Store, vrm string, start, end time.Time) {
	t.Helper()
	ctx := context.Background()

	authorities, err := store.Authorities().FindByNames(ctx, []string{"Leeds"})
	if err != nil {
		t.Fatalf("finding authority: %v", err)
	}
	var leeds domain.LicensingAuthority
	if len(authorities) == 1 {
		leeds = authorities[0]
	} else if leeds, err = store.Authorities().Create(ctx, "Leeds"); err != nil {
		t.Fatalf("creating authority: %v", err)
	}

	accessible := true
	licence := domain.Licence{
		UploaderID:           uuid.MustParse(uploader),
		VRM:                  vrm,
		Start:                start,
		End:                  end,
		Description:          "taxi",
		LicensingAuthority:   leeds,
		PlateNumber:          "PL-" + vrm,
		WheelchairAccessible: &accessible,
	}
	err = store.Licences().Apply(ctx, []domain.AuthorityChanges{{Authority: leeds, ToInsert: []domain.Licence{licence}}})
	if err != nil {
		t.Fatalf("inserting licence: %v", err)
	}
}

func TestActiveLicences(t *testing.T) {
	srv, store := newTestServer(t, &fakeRegistrar{})
	today := domain.TruncateToDate(time.Now().UTC())
	seedLicence(t, store, "AB12CDE", today.AddDate(0, -1, 0), today.AddDate(1, 0, 0))

	url := fmt.Sprintf("%s/v1/reporting/active-licences?start=%s&end=%s", srv.URL,
		today.AddDate(0, 0, -1).Format(domain.DateFormat), today.AddDate(0, 0, 1).Format(domain.DateFormat))
	resp := doRequest(t, http.MethodGet, url, "", nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var got []adapter.ActiveLicenceResponse
	decode(t, resp, &got)
	if len(got) != 1 {
		t.Fatalf("got %d licences, want 1", len(got))
	}
	if got[0].VRM != "AB12CDE" || got[0].Status != "INSERT" || got[0].UploaderID != uploader {
		t.Errorf("got %+v", got[0])
	}
	if got[0].WheelchairAccessible == nil || !*got[0].WheelchairAccessible {
		t.Error("wheelchair flag should be true")
	}
}

func TestActiveLicences_BadWindow(t *testing.T) {
	srv, _ := newTestServer(t, &fakeRegistrar{})

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"start after end", "start=2024-02-01&end=2024-01-01", http.StatusBadRequest},
		{"impossible date", "start=2024-13-45&end=2024-12-31", http.StatusBadRequest},
		{"wrong format", "start=01/01/2024&end=2024-12-31", http.StatusUnprocessableEntity},
		{"missing end", "start=2024-01-01", http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doRequest(t, http.MethodGet, srv.URL+"/v1/reporting/active-licences?"+tt.query, "", nil)
			defer resp.Body.Close()

			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

// --- Licence lookup ---

func TestLicenceInfo(t *testing.T) {
	srv, store := newTestServer(t, &fakeRegistrar{})
	today := domain.TruncateToDate(time.Now().UTC())
	seedLicence(t, store, "AB12CDE", today.AddDate(0, -1, 0), today.AddDate(1, 0, 0))

	resp := doRequest(t, http.MethodGet, srv.URL+"/v1/vehicles/ab12cde/licence-info", "", nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var info domain.LicenceInfo
	decode(t, resp, &info)
	if info.VRM != "AB12CDE" || !info.HasAnyOperatingLicenceActive {
		t.Errorf("got %+v", info)
	}
	if info.WheelchairAccessible == nil || !*info.WheelchairAccessible {
		t.Error("wheelchair flag should be true")
	}
	if len(info.LicensingAuthoritiesNames) != 1 || info.LicensingAuthoritiesNames[0] != "Leeds" {
		t.Errorf("authorities = %v", info.LicensingAuthoritiesNames)
	}
}

func TestLicenceInfo_NotFound(t *testing.T) {
	srv, _ := newTestServer(t, &fakeRegistrar{})

	resp := doRequest(t, http.MethodGet, srv.URL+"/v1/vehicles/ZZ99ZZZ/licence-info", "", nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestLicencesInfo_Bulk(t *testing.T) {
	srv, store := newTestServer(t, &fakeRegistrar{})
	today := domain.TruncateToDate(time.Now().UTC())
	seedLicence(t, store, "AB12CDE", today.AddDate(0, -1, 0), today.AddDate(1, 0, 0))
	seedLicence(t, store, "CD34EFG", today.AddDate(-2, 0, 0), today.AddDate(-1, 0, 0))

	body := `{"vrms":["ab12cde","CD34EFG","ZZ99ZZZ"]}`
	resp := doRequest(t, http.MethodPost, srv.URL+"/v1/vehicles/licences-info/search", body, nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var got adapter.BulkLicenceInfoResponse
	decode(t, resp, &got)
	if len(got.LicencesInformation) != 2 {
		t.Fatalf("got %d entries, want 2: %+v", len(got.LicencesInformation), got.LicencesInformation)
	}
	if !got.LicencesInformation["AB12CDE"].HasAnyOperatingLicenceActive {
		t.Error("AB12CDE should be active")
	}
	if info, ok := got.LicencesInformation["CD34EFG"]; !ok || info.HasAnyOperatingLicenceActive {
		t.Errorf("CD34EFG = %+v, want an expired entry", info)
	}
}

func TestLicencesInfo_BulkValidation(t *testing.T) {
	srv, _ := newTestServer(t, &fakeRegistrar{})

	vrms := make([]string, app.MaxBulkLookupVRMs+1)
	for i := range vrms {
		vrms[i] = fmt.Sprintf("%q", fmt.Sprintf("AB%03d", i))
	}

	tests := []struct {
		name string
		body string
		want int
	}{
		{"too short", `{"vrms":["A"]}`, http.StatusBadRequest},
		{"too long", `{"vrms":["ABCDEFGHIJKLMNOP"]}`, http.StatusBadRequest},
		{"too many", `{"vrms":[` + strings.Join(vrms, ",") + `]}`, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doRequest(t, http.MethodPost, srv.URL+"/v1/vehicles/licences-info/search", tt.body, nil)
			defer resp.Body.Close()

			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

// --- Licence history ---

func TestLicenceHistory(t *testing.T) {
	srv, store := newTestServer(t, &fakeRegistrar{})
	today := domain.TruncateToDate(time.Now().UTC())
	seedLicence(t, store, "AB12CDE", today.AddDate(0, -1, 0), today.AddDate(1, 0, 0))

	url := fmt.Sprintf("%s/v1/vehicles/ab12cde/licence-info-historical?startDate=%s&endDate=%s&pageNumber=0&pageSize=10",
		srv.URL, today.AddDate(0, 0, -1).Format(domain.DateFormat), today.Format(domain.DateFormat))
	resp := doRequest(t, http.MethodGet, url, "", nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var got adapter.LicenceHistoryResponse
	decode(t, resp, &got)
	if got.Page != 0 || got.PerPage != 10 || got.PageCount != 1 || got.TotalChangesCount != 1 {
		t.Errorf("paging = %+v", got)
	}
	if len(got.Changes) != 1 {
		t.Fatalf("got %d changes, want 1", len(got.Changes))
	}
	c := got.Changes[0]
	if c.Action != "Created" || c.LicensingAuthorityName != "Leeds" || c.PlateNumber != "PL-AB12CDE" {
		t.Errorf("got %+v", c)
	}
	if c.ModifyDate != today.Format(domain.DateFormat) {
		t.Errorf("modifyDate = %s, want %s", c.ModifyDate, today.Format(domain.DateFormat))
	}
}

func TestLicenceHistory_BadQuery(t *testing.T) {
	srv, _ := newTestServer(t, &fakeRegistrar{})

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"start after end", "startDate=2024-02-01&endDate=2024-01-01&pageNumber=0&pageSize=5", http.StatusBadRequest},
		{"zero page size", "startDate=2024-01-01&endDate=2024-02-01&pageNumber=0&pageSize=0", http.StatusUnprocessableEntity},
		{"negative page", "startDate=2024-01-01&endDate=2024-02-01&pageNumber=-1&pageSize=5", http.StatusUnprocessableEntity},
		{"missing page size", "startDate=2024-01-01&endDate=2024-02-01&pageNumber=0", http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doRequest(t, http.MethodGet, srv.URL+"/v1/vehicles/AB12CDE/licence-info-historical?"+tt.query, "", nil)
			defer resp.Body.Close()

			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

// --- Licensing authorities audit ---

func TestLicensingAuthoritiesAudit(t *testing.T) {
	srv, store := newTestServer(t, &fakeRegistrar{})
	today := domain.TruncateToDate(time.Now().UTC())
	seedLicence(t, store, "AB12CDE", today.AddDate(0, -1, 0), today.AddDate(1, 0, 0))

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"defaults to today", "", []string{"Leeds"}},
		{"before any change", "?date=" + today.AddDate(0, 0, -1).Format(domain.DateFormat), []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doRequest(t, http.MethodGet,
				srv.URL+"/v1/reporting/vehicles/ab12cde/licensing-authorities"+tt.query, "", nil)
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
			}
			var got adapter.AuthoritiesAuditResponse
			decode(t, resp, &got)
			if fmt.Sprint(got.LicensingAuthoritiesNames) != fmt.Sprint(tt.want) {
				t.Errorf("names = %v, want %v", got.LicensingAuthoritiesNames, tt.want)
			}
		})
	}
}

func TestLicensingAuthoritiesAudit_FutureDate(t *testing.T) {
	srv, _ := newTestServer(t, &fakeRegistrar{})
	tomorrow := time.Now().UTC().AddDate(0, 0, 2).Format(domain.DateFormat)

	resp := doRequest(t, http.MethodGet,
		srv.URL+"/v1/reporting/vehicles/AB12CDE/licensing-authorities?date="+tomorrow, "", nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}
