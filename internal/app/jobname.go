package app

import (
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/neomorfeo/taxireg/internal/domain"
)

const jobNameTimeFormat = "20060102_150405"

// generateJobName produces an opaque, unique job handle of the form
// <yyyyMMdd_HHmmss>_<ULID>_<trigger>[_<suffix>].
func generateJobName(now time.Time, trigger domain.JobTrigger, suffix string) string {
	var b strings.Builder
	b.WriteString(now.UTC().Format(jobNameTimeFormat))
	b.WriteByte('_')
	b.WriteString(ulid.Make().String())
	b.WriteByte('_')
	b.WriteString(string(trigger))
	if suffix != "" {
		b.WriteByte('_')
		b.WriteString(suffix)
	}
	return b.String()
}
