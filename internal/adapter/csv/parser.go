package csv

import (
	"bufio"
	stdcsv "encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/neomorfeo/taxireg/internal/domain"
	"github.com/neomorfeo/taxireg/internal/platform/logger"
)

// Line rules of an uploaded licence file.
const (
	MaxLineLength  = 210
	ExpectedFields = 7
)

// Messages reported for lines that cannot be parsed.
const (
	MsgLineTooLong        = "Line is too long"
	MsgInvalidLineFormat  = "Invalid character or empty row detected"
	MsgInvalidFieldsCount = "Record doesn't match the data rule specifications"
)

var allowedCharacters = regexp.MustCompile(`^[\w &,'"\-().*/%!+:;=?@\[\]^{}~]+$`)

const byteOrderMark = "\uFEFF"

// Compile-time check: Parser implements domain.VehicleFileParser.
var _ domain.VehicleFileParser = (*Parser)(nil)

// Parser reads headerless licence files, one vehicle per line:
// vrm,start,end,taxiOrPHV,licensingAuthorityName,licensePlateNumber,wheelchairAccessible
type Parser struct{}

// NewParser creates a licence file parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse reads rows until EOF or until maxErrors line errors were collected.
// Lines that break a rule are reported as value errors and skipped. A
// non-positive maxErrors means no limit.
func (p *Parser) Parse(r io.Reader, maxErrors int) ([]domain.VehicleRow, []domain.ValidationError, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 1024*1024)

	var (
		rows []domain.VehicleRow
		errs []domain.ValidationError
	)
	lineNo := 0
	for (maxErrors <= 0 || len(errs) < maxErrors) && scanner.Scan() {
		lineNo++
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if lineNo == 1 {
			line = strings.TrimPrefix(line, byteOrderMark)
		}

		fields, msg := parseLine(line)
		if msg != "" {
			errs = append(errs, domain.ValueError("", msg, lineNo))
			continue
		}
		rows = append(rows, toRow(fields, lineNo))
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("reading licence file: %w", err)
	}

	if maxErrors > 0 && len(errs) >= maxErrors {
		logger.Info("licence file parsing stopped at error limit",
			zap.Int("max_errors", maxErrors),
			zap.Int("last_line", lineNo),
		)
	}
	return rows, errs, nil
}

// parseLine returns the fields of a line, or the message of the rule it
// breaks.
func parseLine(line string) ([]string, string) {
	if utf8.RuneCountInString(line) > MaxLineLength {
		return nil, MsgLineTooLong
	}
	if !allowedCharacters.MatchString(line) {
		return nil, MsgInvalidLineFormat
	}

	reader := stdcsv.NewReader(strings.NewReader(line))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	fields, err := reader.Read()
	if err != nil {
		return nil, MsgInvalidLineFormat
	}
	if len(fields) != ExpectedFields {
		return nil, MsgInvalidFieldsCount
	}
	return fields, ""
}

func toRow(fields []string, lineNo int) domain.VehicleRow {
	return domain.VehicleRow{
		VRM:                    fields[0],
		Start:                  fields[1],
		End:                    fields[2],
		Description:            fields[3],
		LicensingAuthorityName: fields[4],
		PlateNumber:            fields[5],
		WheelchairAccessible:   fields[6],
		Line:                   lineNo,
		Trigger:                domain.JobTriggerCSVFromS3,
	}
}
