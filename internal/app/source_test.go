package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	csvadapter "github.com/neomorfeo/taxireg/internal/adapter/csv"
	"github.com/neomorfeo/taxireg/internal/app"
	"github.com/neomorfeo/taxireg/internal/domain"
)

func TestCSVJobSuffix(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"licences.csv", "licences"},
		{"uploads/2024/fleet.csv", "fleet"},
		{"archive.tar.gz", "archive.tar"},
		{"noext", "noext"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, app.CSVJobSuffix(tt.key), tt.key)
	}
}

func TestReadFileMetadata(t *testing.T) {
	uploaderID := uuid.New()
	store := newMockStore()
	store.put("uploads", "ok.csv", "", domain.ObjectMetadata{
		domain.MetadataUploaderID: " " + uploaderID.String() + " ",
		domain.MetadataEmail:      "owner@example.com",
	})
	store.put("uploads", "no-id.csv", "", domain.ObjectMetadata{domain.MetadataEmail: "owner@example.com"})
	store.put("uploads", "bad-id.csv", "", domain.ObjectMetadata{domain.MetadataUploaderID: "nope"})
	ctx := context.Background()

	meta, err := app.ReadFileMetadata(ctx, store, "uploads", "ok.csv")
	require.NoError(t, err)
	assert.Equal(t, app.FileMetadata{UploaderID: uploaderID, OwnerEmail: "owner@example.com"}, meta)

	_, err = app.ReadFileMetadata(ctx, store, "uploads", "no-id.csv")
	assert.ErrorIs(t, err, domain.ErrUploaderIDMissing)

	_, err = app.ReadFileMetadata(ctx, store, "uploads", "bad-id.csv")
	assert.ErrorIs(t, err, domain.ErrInvalidUploaderID)

	_, err = app.ReadFileMetadata(ctx, store, "uploads", "missing.csv")
	var storeErr *app.ObjectStoreError
	require.True(t, errors.As(err, &storeErr))
	assert.ErrorIs(t, err, domain.ErrObjectNotFound)
}

func TestCSVSource_ParsesStoredFile(t *testing.T) {
	uploaderID := uuid.New()
	store := newMockStore()
	store.put("uploads", "fleet.csv",
		"AB12CDE,2024-01-01,2025-01-01,taxi,Leeds,PL-1,true\n"+
			"bad|line\n"+
			"CD34EFG,2024-01-01,2025-01-01,PHV,York,PL-2,\n",
		domain.ObjectMetadata{domain.MetadataUploaderID: uploaderID.String()})

	source := app.NewCSVSource(store, csvadapter.NewParser(), nil, "uploads", "fleet.csv", 10)
	require.NoError(t, source.BeforeExecute(context.Background(), 1))

	assert.Equal(t, domain.JobTriggerCSVFromS3, source.Trigger())
	assert.Equal(t, uploaderID, source.UploaderID())

	rows := source.LicencesToRegister()
	require.Len(t, rows, 2)
	assert.Equal(t, "AB12CDE", rows[0].VRM)
	assert.Equal(t, 1, rows[0].Line)
	assert.Equal(t, "York", rows[1].LicensingAuthorityName)
	assert.Equal(t, 3, rows[1].Line)

	require.Len(t, source.ParseErrors(), 1)
	assert.Equal(t, 2, source.ParseErrors()[0].Line)
}

func TestAPISource_AfterSuccessStoresAuditPayload(t *testing.T) {
	store := newMockStore()
	rows := []domain.VehicleRow{row("AB12CDE", "Leeds")}
	source := app.NewAPISource(rows, uuid.New(), "corr-1", app.APISettings{AuditBucket: "audit"}, nil, store)

	require.NoError(t, source.AfterSuccess(context.Background(), domain.RegisterJob{Name: "job-1"}))

	obj, ok := store.object("audit", "job-1.json")
	require.True(t, ok)
	var payload app.VehicleDetails
	require.NoError(t, json.Unmarshal(obj.body, &payload))
	require.Len(t, payload.VehicleDetails, 1)
	assert.Equal(t, "AB12CDE", payload.VehicleDetails[0].VRM)
}

func TestAPISource_NoAuditBucket(t *testing.T) {
	store := newMockStore()
	source := app.NewAPISource([]domain.VehicleRow{row("AB12CDE", "Leeds")}, uuid.New(), "corr-1", app.APISettings{}, nil, store)

	require.NoError(t, source.AfterSuccess(context.Background(), domain.RegisterJob{Name: "job-1"}))
	assert.Empty(t, store.objects)
}
