package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/neomorfeo/taxireg/internal/app"
	"github.com/neomorfeo/taxireg/internal/domain"
	"github.com/neomorfeo/taxireg/internal/platform/logger"
)

// Registrar starts registration jobs and reads their state.
type Registrar interface {
	StartAPIJob(ctx context.Context, rows []domain.VehicleRow, uploaderID uuid.UUID, correlationID string) (string, error)
	StartCSVJob(ctx context.Context, bucket, key, correlationID string) (string, error)
	FindJob(ctx context.Context, name string) (domain.RegisterJob, error)
}

// Reporter answers audit queries over the licence change log.
type Reporter interface {
	ActiveLicencesInReportingWindow(ctx context.Context, start, end time.Time) ([]domain.ActiveLicenceInReportingWindow, error)
	LicensingAuthoritiesOfActiveLicences(ctx context.Context, vrm string, day time.Time) ([]string, error)
}

// LicenceLookup answers vehicle licence queries.
type LicenceLookup interface {
	GetLicenceInfo(ctx context.Context, vrm string) (domain.LicenceInfo, error)
	GetLicencesInfo(ctx context.Context, vrms []string) (map[string]domain.LicenceInfo, error)
}

// LicenceHistory pages through a vehicle's licence changes.
type LicenceHistory interface {
	FindChanges(ctx context.Context, query domain.HistoryQuery) (domain.LicenceHistory, error)
}

// Services are the application services exposed over HTTP.
type Services struct {
	Registrar Registrar
	Reporter  Reporter
	Lookup    LicenceLookup
	History   LicenceHistory
}

// ErrorResponse is the API representation of a validation error.
type ErrorResponse struct {
	VRM    string `json:"vrm,omitempty" doc:"Vehicle registration mark the error refers to"`
	Title  string `json:"title" doc:"Error category"`
	Detail string `json:"detail" doc:"Human readable description"`
}

func toErrorResponses(errs []domain.ValidationError) []ErrorResponse {
	resp := make([]ErrorResponse, len(errs))
	for i, e := range errs {
		resp[i] = ErrorResponse{VRM: e.VRM, Title: e.Title(), Detail: e.Detail()}
	}
	return resp
}

// --- Register from API ---

// VehicleDetail is one submitted licence. Every field is optional here; the
// registration job reports missing or malformed values.
type VehicleDetail struct {
	VRM                         string `json:"vrm,omitempty" doc:"Vehicle registration mark"`
	Start                       string `json:"start,omitempty" doc:"Licence start date (YYYY-MM-DD)"`
	End                         string `json:"end,omitempty" doc:"Licence end date (YYYY-MM-DD)"`
	TaxiOrPHV                   string `json:"taxiOrPHV,omitempty" doc:"Taxi or PHV"`
	LicensingAuthorityName      string `json:"licensingAuthorityName,omitempty" doc:"Issuing licensing authority"`
	LicensePlateNumber          string `json:"licensePlateNumber,omitempty" doc:"Licence plate number"`
	WheelchairAccessibleVehicle string `json:"wheelchairAccessibleVehicle,omitempty" doc:"true or false"`
}

func (v VehicleDetail) toRow() domain.VehicleRow {
	return domain.VehicleRow{
		VRM:                    v.VRM,
		Start:                  v.Start,
		End:                    v.End,
		Description:            v.TaxiOrPHV,
		LicensingAuthorityName: v.LicensingAuthorityName,
		PlateNumber:            v.LicensePlateNumber,
		WheelchairAccessible:   v.WheelchairAccessibleVehicle,
	}
}

// RegisterVehiclesInput is an API submission. The API key carries the
// uploader id.
type RegisterVehiclesInput struct {
	CorrelationID string `header:"X-Correlation-ID" required:"true" doc:"Request correlation id"`
	APIKey        string `header:"x-api-key" required:"true" doc:"Uploader id (UUID)"`
	Body          struct {
		VehicleDetails []VehicleDetail `json:"vehicleDetails" doc:"Licences to register"`
	}
}

// JobHandle identifies a started registration job.
type JobHandle struct {
	JobName string `json:"jobName" doc:"Name used to poll the job status"`
}

// RegisterVehiclesOutput echoes the correlation id with the started job.
type RegisterVehiclesOutput struct {
	CorrelationID string `header:"X-Correlation-ID"`
	Body          JobHandle
}

// --- Register from CSV ---

// StartCSVJobInput points at the CSV file to register.
type StartCSVJobInput struct {
	CorrelationID string `header:"X-Correlation-ID" required:"true" doc:"Request correlation id"`
	Body          struct {
		S3Bucket string `json:"s3Bucket" minLength:"1" doc:"Bucket holding the CSV file"`
		Filename string `json:"filename" minLength:"1" doc:"Key of the CSV file"`
	}
}

// StartCSVJobOutput echoes the correlation id with the started job.
type StartCSVJobOutput struct {
	CorrelationID string `header:"X-Correlation-ID"`
	Body          JobHandle
}

// --- Job status ---

// JobStatusInput names the job to poll.
type JobStatusInput struct {
	Name string `path:"name" doc:"Register job name"`
}

// JobStatusResponse is the state of a registration job.
type JobStatusResponse struct {
	Status string          `json:"status" doc:"Job status"`
	Errors []ErrorResponse `json:"errors,omitempty" doc:"Errors recorded by the job"`
}

// JobStatusOutput wraps JobStatusResponse.
type JobStatusOutput struct {
	Body JobStatusResponse
}

// --- Reporting ---

// ActiveLicencesInput is the reporting window, both days inclusive.
type ActiveLicencesInput struct {
	Start string `query:"start" required:"true" pattern:"^\\d{4}-\\d{2}-\\d{2}$" doc:"Window start (YYYY-MM-DD)"`
	End   string `query:"end" required:"true" pattern:"^\\d{4}-\\d{2}-\\d{2}$" doc:"Window end (YYYY-MM-DD)"`
}

// ActiveLicenceResponse is a licence found relevant to a reporting window.
type ActiveLicenceResponse struct {
	VRM                  string `json:"vrm"`
	Status               string `json:"status" doc:"EXISTING, INSERT, UPDATE or DELETE"`
	EventTimestamp       string `json:"eventTimestamp" doc:"When the change happened (ISO 8601)"`
	UploaderID           string `json:"uploaderId"`
	LicensingAuthorityID int    `json:"licensingAuthorityId"`
	PlateNumber          string `json:"licensePlateNumber"`
	Start                string `json:"start"`
	End                  string `json:"end"`
	Description          string `json:"taxiOrPHV"`
	WheelchairAccessible *bool  `json:"wheelchairAccessibleVehicle"`
}

func toActiveLicenceResponse(a domain.ActiveLicenceInReportingWindow) ActiveLicenceResponse {
	e := a.Event
	return ActiveLicenceResponse{
		VRM:                  e.VRM,
		Status:               string(a.Status),
		EventTimestamp:       e.EventTimestamp.UTC().Format("2006-01-02T15:04:05.000Z"),
		UploaderID:           e.UploaderID.String(),
		LicensingAuthorityID: e.LicensingAuthorityID,
		PlateNumber:          e.PlateNumber,
		Start:                e.Start.Format(domain.DateFormat),
		End:                  e.End.Format(domain.DateFormat),
		Description:          e.Description,
		WheelchairAccessible: e.WheelchairAccessible,
	}
}

// ActiveLicencesOutput lists the licences relevant to the window.
type ActiveLicencesOutput struct {
	Body []ActiveLicenceResponse
}

// --- Licensing authorities audit ---

// AuthoritiesAuditInput asks which authorities licensed a vehicle on a day.
type AuthoritiesAuditInput struct {
	VRM  string `path:"vrm" doc:"Vehicle registration mark"`
	Date string `query:"date" pattern:"^\\d{4}-\\d{2}-\\d{2}$" doc:"Day to check (YYYY-MM-DD), today when omitted"`
}

// AuthoritiesAuditResponse lists authority names.
type AuthoritiesAuditResponse struct {
	LicensingAuthoritiesNames []string `json:"licensingAuthoritiesNames"`
}

// AuthoritiesAuditOutput wraps AuthoritiesAuditResponse.
type AuthoritiesAuditOutput struct {
	Body AuthoritiesAuditResponse
}

// --- Licence lookup ---

// LicenceInfoInput names the vehicle to look up.
type LicenceInfoInput struct {
	VRM string `path:"vrm" doc:"Vehicle registration mark"`
}

// LicenceInfoOutput wraps the licence summary.
type LicenceInfoOutput struct {
	Body domain.LicenceInfo
}

// BulkLicenceInfoInput lists the vehicles to look up.
type BulkLicenceInfoInput struct {
	Body struct {
		VRMs []string `json:"vrms" maxItems:"100" doc:"Vehicle registration marks"`
	}
}

// BulkLicenceInfoResponse maps each licensed VRM to its summary. VRMs
// without any licence are absent.
type BulkLicenceInfoResponse struct {
	LicencesInformation map[string]domain.LicenceInfo `json:"licencesInformation"`
}

// BulkLicenceInfoOutput wraps BulkLicenceInfoResponse.
type BulkLicenceInfoOutput struct {
	Body BulkLicenceInfoResponse
}

const (
	minLookupVRMLength = 2
	maxLookupVRMLength = 15
)

// --- Licence history ---

// LicenceHistoryInput selects a page of a vehicle's changes.
type LicenceHistoryInput struct {
	VRM        string `path:"vrm" doc:"Vehicle registration mark"`
	StartDate  string `query:"startDate" required:"true" pattern:"^\\d{4}-\\d{2}-\\d{2}$" doc:"First day (YYYY-MM-DD)"`
	EndDate    string `query:"endDate" required:"true" pattern:"^\\d{4}-\\d{2}-\\d{2}$" doc:"Last day (YYYY-MM-DD)"`
	PageNumber int    `query:"pageNumber" required:"true" minimum:"0" doc:"Zero-based page number"`
	PageSize   int    `query:"pageSize" required:"true" minimum:"1" doc:"Changes per page"`
}

// LicenceChangeResponse is one change in a vehicle's history.
type LicenceChangeResponse struct {
	ModifyDate             string `json:"modifyDate"`
	Action                 string `json:"action" doc:"Created, Updated or Removed"`
	LicensingAuthorityName string `json:"licensingAuthorityName"`
	PlateNumber            string `json:"plateNumber"`
	LicenceStartDate       string `json:"licenceStartDate"`
	LicenceEndDate         string `json:"licenceEndDate"`
	WheelchairAccessible   *bool  `json:"wheelchairAccessible"`
}

// LicenceHistoryResponse is a page of changes.
type LicenceHistoryResponse struct {
	Page              int                     `json:"page"`
	PageCount         int                     `json:"pageCount"`
	PerPage           int                     `json:"perPage"`
	TotalChangesCount int                     `json:"totalChangesCount"`
	Changes           []LicenceChangeResponse `json:"changes"`
}

// LicenceHistoryOutput wraps LicenceHistoryResponse.
type LicenceHistoryOutput struct {
	Body LicenceHistoryResponse
}

func toLicenceHistoryResponse(h domain.LicenceHistory, q domain.HistoryQuery) LicenceHistoryResponse {
	changes := make([]LicenceChangeResponse, len(h.Changes))
	for i, c := range h.Changes {
		changes[i] = LicenceChangeResponse{
			ModifyDate:             c.ModifyDate.Format(domain.DateFormat),
			Action:                 c.Action.Label(),
			LicensingAuthorityName: c.LicensingAuthorityName,
			PlateNumber:            c.PlateNumber,
			LicenceStartDate:       c.Start.Format(domain.DateFormat),
			LicenceEndDate:         c.End.Format(domain.DateFormat),
			WheelchairAccessible:   c.WheelchairAccessible,
		}
	}
	return LicenceHistoryResponse{
		Page:              q.PageNumber,
		PageCount:         h.PageCount(q.PageSize),
		PerPage:           q.PageSize,
		TotalChangesCount: h.TotalChangesCount,
		Changes:           changes,
	}
}

// Register adds all registration, reporting and lookup routes to the Huma API.
func Register(api huma.API, svc Services) {
	huma.Register(api, huma.Operation{
		OperationID:   "register-vehicles",
		Method:        http.MethodPost,
		Path:          "/v1/scheme-management/taxiphvdatabase",
		Summary:       "Register licences submitted in the request body",
		Tags:          []string{"Registration"},
		DefaultStatus: http.StatusAccepted,
	}, func(ctx context.Context, input *RegisterVehiclesInput) (*RegisterVehiclesOutput, error) {
		uploaderID, err := uuid.Parse(input.APIKey)
		if err != nil {
			return nil, huma.Error400BadRequest(domain.ErrInvalidUploaderID.Error())
		}

		rows := make([]domain.VehicleRow, len(input.Body.VehicleDetails))
		for i, v := range input.Body.VehicleDetails {
			rows[i] = v.toRow()
		}

		name, err := svc.Registrar.StartAPIJob(ctx, rows, uploaderID, input.CorrelationID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &RegisterVehiclesOutput{CorrelationID: input.CorrelationID, Body: JobHandle{JobName: name}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "start-csv-job",
		Method:        http.MethodPost,
		Path:          "/v1/scheme-management/register-csv-from-s3/jobs",
		Summary:       "Start registering a CSV file from object storage",
		Tags:          []string{"Registration"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *StartCSVJobInput) (*StartCSVJobOutput, error) {
		name, err := svc.Registrar.StartCSVJob(ctx, input.Body.S3Bucket, input.Body.Filename, input.CorrelationID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &StartCSVJobOutput{CorrelationID: input.CorrelationID, Body: JobHandle{JobName: name}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-job-status",
		Method:      http.MethodGet,
		Path:        "/v1/scheme-management/register-csv-from-s3/jobs/{name}",
		Summary:     "Get the status of a registration job",
		Tags:        []string{"Registration"},
	}, func(ctx context.Context, input *JobStatusInput) (*JobStatusOutput, error) {
		job, err := svc.Registrar.FindJob(ctx, input.Name)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &JobStatusOutput{Body: JobStatusResponse{
			Status: string(job.Status),
			Errors: toErrorResponses(job.Errors),
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "active-licences-in-window",
		Method:      http.MethodGet,
		Path:        "/v1/reporting/active-licences",
		Summary:     "List licences active during a reporting window",
		Tags:        []string{"Reporting"},
	}, func(ctx context.Context, input *ActiveLicencesInput) (*ActiveLicencesOutput, error) {
		start, err := time.Parse(domain.DateFormat, input.Start)
		if err != nil {
			return nil, huma.Error400BadRequest("invalid start date", err)
		}
		end, err := time.Parse(domain.DateFormat, input.End)
		if err != nil {
			return nil, huma.Error400BadRequest("invalid end date", err)
		}

		active, err := svc.Reporter.ActiveLicencesInReportingWindow(ctx, start, end)
		if err != nil {
			return nil, toHumaError(err)
		}

		resp := make([]ActiveLicenceResponse, len(active))
		for i, a := range active {
			resp[i] = toActiveLicenceResponse(a)
		}
		return &ActiveLicencesOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-licence-info",
		Method:      http.MethodGet,
		Path:        "/v1/vehicles/{vrm}/licence-info",
		Summary:     "Get the licence summary of a vehicle",
		Tags:        []string{"Lookup"},
	}, func(ctx context.Context, input *LicenceInfoInput) (*LicenceInfoOutput, error) {
		info, err := svc.Lookup.GetLicenceInfo(ctx, input.VRM)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &LicenceInfoOutput{Body: info}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-licences-info",
		Method:      http.MethodPost,
		Path:        "/v1/vehicles/licences-info/search",
		Summary:     "Get the licence summaries of several vehicles",
		Tags:        []string{"Lookup"},
	}, func(ctx context.Context, input *BulkLicenceInfoInput) (*BulkLicenceInfoOutput, error) {
		for _, vrm := range input.Body.VRMs {
			if n := len(vrm); n < minLookupVRMLength || n > maxLookupVRMLength {
				return nil, huma.Error400BadRequest(fmt.Sprintf(
					"vrm %q must be between %d and %d characters long", vrm, minLookupVRMLength, maxLookupVRMLength))
			}
		}

		infos, err := svc.Lookup.GetLicencesInfo(ctx, input.Body.VRMs)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &BulkLicenceInfoOutput{Body: BulkLicenceInfoResponse{LicencesInformation: infos}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-licence-history",
		Method:      http.MethodGet,
		Path:        "/v1/vehicles/{vrm}/licence-info-historical",
		Summary:     "Page through the licence changes of a vehicle",
		Tags:        []string{"Lookup"},
	}, func(ctx context.Context, input *LicenceHistoryInput) (*LicenceHistoryOutput, error) {
		from, err := time.Parse(domain.DateFormat, input.StartDate)
		if err != nil {
			return nil, huma.Error400BadRequest("invalid startDate", err)
		}
		to, err := time.Parse(domain.DateFormat, input.EndDate)
		if err != nil {
			return nil, huma.Error400BadRequest("invalid endDate", err)
		}

		q := domain.HistoryQuery{
			VRM:        input.VRM,
			From:       from,
			To:         to,
			PageNumber: input.PageNumber,
			PageSize:   input.PageSize,
		}
		history, err := svc.History.FindChanges(ctx, q)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &LicenceHistoryOutput{Body: toLicenceHistoryResponse(history, q)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "licensing-authorities-audit",
		Method:      http.MethodGet,
		Path:        "/v1/reporting/vehicles/{vrm}/licensing-authorities",
		Summary:     "List the authorities that licensed a vehicle on a day",
		Tags:        []string{"Reporting"},
	}, func(ctx context.Context, input *AuthoritiesAuditInput) (*AuthoritiesAuditOutput, error) {
		day := time.Now().UTC()
		if input.Date != "" {
			parsed, err := time.Parse(domain.DateFormat, input.Date)
			if err != nil {
				return nil, huma.Error400BadRequest("invalid date", err)
			}
			day = parsed
		}

		names, err := svc.Reporter.LicensingAuthoritiesOfActiveLicences(ctx, input.VRM, day)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &AuthoritiesAuditOutput{Body: AuthoritiesAuditResponse{LicensingAuthoritiesNames: names}}, nil
	})
}

// toHumaError translates domain errors to Huma HTTP errors.
func toHumaError(err error) error {
	switch {
	case errors.Is(err, domain.ErrJobNotFound):
		return huma.Error404NotFound("register job not found")
	case errors.Is(err, domain.ErrLicenceNotFound):
		return huma.Error404NotFound("no licences found for vehicle")
	case errors.Is(err, domain.ErrObjectNotFound):
		return huma.Error404NotFound("file not found in object storage")
	case errors.Is(err, domain.ErrUploaderIDMissing):
		return huma.Error400BadRequest(`Unable to fetch "uploader-id" metadata from the file`)
	case errors.Is(err, domain.ErrInvalidUploaderID):
		return huma.Error400BadRequest(domain.ErrInvalidUploaderID.Error())
	case errors.Is(err, domain.ErrInvalidWindow):
		return huma.Error400BadRequest(domain.ErrInvalidWindow.Error())
	case errors.Is(err, domain.ErrFutureDate):
		return huma.Error400BadRequest(domain.ErrFutureDate.Error())
	case errors.Is(err, domain.ErrInvalidPage):
		return huma.Error400BadRequest(domain.ErrInvalidPage.Error())
	}

	var tooLarge *domain.PayloadTooLargeError
	if errors.As(err, &tooLarge) {
		return huma.Error422UnprocessableEntity(tooLarge.Error())
	}

	var conflict *domain.JobNameConflictError
	if errors.As(err, &conflict) {
		return huma.Error409Conflict(conflict.Error())
	}

	var storeErr *app.ObjectStoreError
	if errors.As(err, &storeErr) {
		logger.Error("object storage request failed", zap.Error(err))
		return huma.Error502BadGateway("object storage unavailable")
	}

	logger.Error("request failed", zap.Error(err))
	return huma.Error500InternalServerError("internal server error")
}
