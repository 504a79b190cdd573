// Package importer loads lab device CSV exports. Device formats vary wildly,
// so column detection works from alias lists rather than a fixed header, and
// row-level problems are reported without aborting the batch.
package importer

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/labrec/labrec/internal/domain/catalog"
	"github.com/labrec/labrec/internal/domain/patient"
	"github.com/labrec/labrec/internal/domain/result"
)

// TypeCatalog is the catalog access the importer needs. *catalog.Service
// satisfies it.
type TypeCatalog interface {
	FindTestTypeFold(ctx context.Context, name string) (*catalog.TestType, error)
	CreateTestType(ctx context.Context, t *catalog.TestType) error
}

// PatientStore is the patient access the importer needs. *patient.Service
// satisfies it.
type PatientStore interface {
	Get(ctx context.Context, id string) (*patient.Patient, error)
	Create(ctx context.Context, p *patient.Patient) error
}

// ResultIngestor feeds candidates through the ingestion gate.
// *result.Service satisfies it.
type ResultIngestor interface {
	Ingest(ctx context.Context, c result.Candidate, checkDuplicates bool) (result.Outcome, error)
}

// Importer reads flexible CSVs into the record store.
type Importer struct {
	types    TypeCatalog
	patients PatientStore
	results  ResultIngestor
	log      zerolog.Logger
}

func New(types TypeCatalog, patients PatientStore, results ResultIngestor, log zerolog.Logger) *Importer {
	return &Importer{types: types, patients: patients, results: results, log: log}
}

// columnAliases maps each standard field to header spellings seen in real
// device exports. Matching is case-insensitive; exact matches win over
// substring matches.
var columnAliases = map[string][]string{
	"patient_id": {"patient_id", "patientid", "patient id", "pid", "id", "barcode_id", "barcode id"},
	"age":        {"age", "patient_age", "age_years", "years"},
	"gender":     {"gender", "sex", "patient_gender", "m/f"},
	"test_name":  {"test_name", "testname", "test name", "test_type", "test type", "parameter", "parameters", "analyte", "test"},
	"test_value": {"test_value", "testvalue", "test value", "value", "result", "reading", "measurement", "concentration", "level"},
	"test_date":  {"test_date", "testdate", "test date", "date", "date_time", "date & time", "timestamp", "collection_date"},
	"first_name": {"first_name", "firstname", "first name", "fname", "given_name"},
	"last_name":  {"last_name", "lastname", "last name", "lname", "surname", "family_name"},
	"unit":       {"unit", "units", "measurement_unit", "test_unit"},
	"lab_technician": {"lab_technician", "technician", "operator", "tech", "performed_by"},
	"notes":      {"notes", "comments", "remarks", "observation"},
}

// dateFormats are tried in order; day-first forms come before month-first so
// ambiguous numeric dates resolve consistently.
var dateFormats = []string{
	"2006-01-02",
	"02/01/2006",
	"01/02/2006",
	"02-01-2006",
	"2006/01/02",
	"02.01.2006",
	"2006-01-02 15:04:05",
	"02/01/2006 15:04",
	"2006-01-02 15:04",
	"2-Jan-2006",
	"02-Jan-2006",
	"Jan 2, 2006",
}

const storedDayFormat = "2006-01-02"

// detectColumns maps standard fields to header indexes.
func detectColumns(header []string) map[string]int {
	normalized := make([]string, len(header))
	for i, h := range header {
		normalized[i] = strings.ToLower(strings.TrimSpace(h))
	}

	mapping := map[string]int{}
	for field, aliases := range columnAliases {
		for _, alias := range aliases {
			for i, col := range normalized {
				if col == alias {
					mapping[field] = i
					break
				}
			}
			if _, ok := mapping[field]; ok {
				break
			}
		}
	}
	// Substring fallback for fields no header matched exactly. Fields are
	// visited in a fixed order so two fields competing for the same column
	// resolve the same way on every run.
	for _, field := range fallbackOrder {
		if _, ok := mapping[field]; ok {
			continue
		}
		taken := map[int]bool{}
		for _, idx := range mapping {
			taken[idx] = true
		}
	scan:
		for _, alias := range columnAliases[field] {
			for i, col := range normalized {
				if taken[i] || col == "" {
					continue
				}
				if strings.Contains(col, alias) || strings.Contains(alias, col) {
					mapping[field] = i
					break scan
				}
			}
		}
	}
	return mapping
}

// fallbackOrder fixes the substring pass ordering, essential fields first.
var fallbackOrder = []string{
	"patient_id", "test_name", "test_value", "test_date",
	"first_name", "last_name", "age", "gender",
	"unit", "lab_technician", "notes",
}

// parseDate tries every known device format and normalizes to a day string.
func parseDate(raw string) (string, bool) {
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format(storedDayFormat), true
		}
	}
	return "", false
}

// normalizeGender folds device spellings onto male/female/other.
func normalizeGender(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "m", "male", "man", "1":
		return "male"
	case "f", "female", "woman", "2":
		return "female"
	case "":
		return ""
	default:
		return "other"
	}
}

func cell(record []string, mapping map[string]int, field string) string {
	idx, ok := mapping[field]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

// ImportCSV reads the whole file and ingests every usable row. Rows with a
// missing patient ID, an unreadable value, or an unparseable date are
// counted as errors; unknown patients and test names are created on the fly.
func (imp *Importer) ImportCSV(ctx context.Context, r io.Reader, checkDuplicates bool) (*result.ImportStats, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	mapping := detectColumns(header)
	if _, ok := mapping["patient_id"]; !ok {
		return nil, fmt.Errorf("could not detect a patient id column")
	}
	if _, ok := mapping["test_value"]; !ok {
		return nil, fmt.Errorf("could not detect a test value column")
	}

	stats := &result.ImportStats{}
	today := time.Now().Format(storedDayFormat)
	typeCache := map[string]uuid.UUID{}
	rowNum := 1

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		rowNum++
		if err != nil {
			stats.RecordError("row %d: %v", rowNum, err)
			continue
		}
		if isBlank(record) {
			continue
		}

		patientID := cell(record, mapping, "patient_id")
		if patientID == "" {
			stats.RecordError("row %d: missing patient id", rowNum)
			continue
		}
		rawValue := cell(record, mapping, "test_value")
		value, err := strconv.ParseFloat(rawValue, 64)
		if err != nil {
			stats.RecordError("row %d: unreadable test value %q", rowNum, rawValue)
			continue
		}

		testDate := today
		if rawDate := cell(record, mapping, "test_date"); rawDate != "" {
			day, ok := parseDate(rawDate)
			if !ok {
				stats.RecordError("row %d: unparseable date %q", rowNum, rawDate)
				continue
			}
			testDate = day
		}

		if err := imp.ensurePatient(ctx, patientID, record, mapping, stats); err != nil {
			stats.RecordError("row %d: %v", rowNum, err)
			continue
		}

		testName := cell(record, mapping, "test_name")
		if testName == "" {
			testName = "Unknown Test"
		}
		testTypeID, err := imp.ensureTestType(ctx, testName, cell(record, mapping, "unit"), typeCache, stats)
		if err != nil {
			stats.RecordError("row %d: %v", rowNum, err)
			continue
		}

		candidate := result.Candidate{
			PatientID:  patientID,
			TestTypeID: testTypeID,
			Value:      value,
			TestDate:   testDate,
		}
		if tech := cell(record, mapping, "lab_technician"); tech != "" {
			candidate.LabTechnician = &tech
		}
		if notes := cell(record, mapping, "notes"); notes != "" {
			candidate.Notes = &notes
		}

		out, err := imp.results.Ingest(ctx, candidate, checkDuplicates)
		if err != nil {
			stats.RecordError("row %d: %v", rowNum, err)
			continue
		}
		if !out.Accepted {
			stats.DuplicatesSkipped++
			continue
		}
		stats.Added++
	}

	imp.log.Info().
		Int("added", stats.Added).
		Int("duplicates_skipped", stats.DuplicatesSkipped).
		Int("errored", stats.Errored).
		Int("patients_added", stats.PatientsAdded).
		Int("test_types_added", stats.TestTypesAdded).
		Msg("csv import finished")
	return stats, nil
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// ensurePatient creates a patient record from whatever the row carries when
// none exists yet. Age, when present, approximates a date of birth.
func (imp *Importer) ensurePatient(ctx context.Context, id string, record []string, mapping map[string]int, stats *result.ImportStats) error {
	if _, err := imp.patients.Get(ctx, id); err == nil {
		return nil
	} else if err != patient.ErrNotFound {
		return err
	}

	p := &patient.Patient{
		ID:        id,
		FirstName: cell(record, mapping, "first_name"),
		LastName:  cell(record, mapping, "last_name"),
	}
	if p.FirstName == "" && p.LastName == "" {
		p.LastName = id
	}
	if g := normalizeGender(cell(record, mapping, "gender")); g != "" {
		p.Gender = &g
	}
	if rawAge := cell(record, mapping, "age"); rawAge != "" {
		if age, err := strconv.Atoi(rawAge); err == nil && age > 0 && age <= 150 {
			dob := time.Date(time.Now().Year()-age, 1, 1, 0, 0, 0, 0, time.UTC)
			p.DateOfBirth = &dob
		}
	}
	if err := imp.patients.Create(ctx, p); err != nil {
		return fmt.Errorf("create patient %s: %w", id, err)
	}
	stats.PatientsAdded++
	return nil
}

// ensureTestType resolves a test name case-insensitively, creating an
// unconfigured catalog entry when the name is new. Unconfigured entries
// classify results as undefined until someone sets their ranges.
func (imp *Importer) ensureTestType(ctx context.Context, name, unit string, cache map[string]uuid.UUID, stats *result.ImportStats) (uuid.UUID, error) {
	key := strings.ToLower(name)
	if id, ok := cache[key]; ok {
		return id, nil
	}

	t, err := imp.types.FindTestTypeFold(ctx, name)
	if err == nil {
		cache[key] = t.ID
		return t.ID, nil
	}
	if err != catalog.ErrNotFound {
		return uuid.Nil, err
	}

	created := &catalog.TestType{Name: name}
	if unit != "" {
		created.Unit = &unit
	}
	if err := imp.types.CreateTestType(ctx, created); err != nil {
		return uuid.Nil, fmt.Errorf("create test type %q: %w", name, err)
	}
	stats.TestTypesAdded++
	cache[key] = created.ID
	return created.ID, nil
}
