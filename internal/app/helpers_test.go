package app_test

import (
	"time"

	"github.com/google/uuid"

	"github.com/neomorfeo/taxireg/internal/domain"
)

var uploaderID = uuid.MustParse("6314d1d6-706a-40ce-b392-a0e618ab45b8")

func date(s string) time.Time {
	d, err := time.Parse(domain.DateFormat, s)
	if err != nil {
		panic(err)
	}
	return d
}

func flag(b bool) *bool {
	return &b
}

func licence(vrm string, authority domain.LicensingAuthority, description string) domain.Licence {
	return domain.Licence{
		UploaderID:         uploaderID,
		VRM:                vrm,
		Start:              date("2024-01-01"),
		End:                date("2030-12-31"),
		Description:        description,
		LicensingAuthority: authority,
		PlateNumber:        "PL-" + vrm,
	}
}

func row(vrm, authorityName string) domain.VehicleRow {
	return domain.VehicleRow{
		VRM:                    vrm,
		Start:                  "2024-01-01",
		End:                    "2030-12-31",
		Description:            "taxi",
		LicensingAuthorityName: authorityName,
		PlateNumber:            "PL-" + vrm,
		Trigger:                domain.JobTriggerAPICall,
	}
}
