package result

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/labrec/labrec/internal/domain/ranges"
)

// TestResult maps to the test_results table. TestDate is kept as the string
// the lab system supplied; duplicate detection normalizes it for comparison
// but storage never rewrites it.
type TestResult struct {
	ID            uuid.UUID `db:"id" json:"id"`
	PatientID     string    `db:"patient_id" json:"patient_id"`
	TestTypeID    uuid.UUID `db:"test_type_id" json:"test_type_id"`
	Value         float64   `db:"test_value" json:"value"`
	TestDate      string    `db:"test_date" json:"test_date"`
	LabTechnician *string   `db:"lab_technician" json:"lab_technician,omitempty"`
	Notes         *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// PatientResult is a result joined with its catalog entry for display.
type PatientResult struct {
	TestResult
	TestName string  `db:"test_name" json:"test_name"`
	Unit     *string `db:"unit" json:"unit,omitempty"`
}

// ClassifiedResult is a patient result with its resolved range and status.
type ClassifiedResult struct {
	PatientResult
	Status ranges.Status     `json:"status"`
	Range  ranges.Resolution `json:"range"`
}

// Candidate is a result submitted for ingestion, before it has an identity.
type Candidate struct {
	PatientID     string    `json:"patient_id"`
	TestTypeID    uuid.UUID `json:"test_type_id"`
	Value         float64   `json:"value"`
	TestDate      string    `json:"test_date"`
	LabTechnician *string   `json:"lab_technician,omitempty"`
	Notes         *string   `json:"notes,omitempty"`
}

// Outcome reports what ingestion did with a candidate.
type Outcome struct {
	Accepted bool        `json:"accepted"`
	Reason   string      `json:"reason,omitempty"`
	Result   *TestResult `json:"result,omitempty"`
}

const ReasonDuplicate = "duplicate"

// maxSampledErrors caps how many row errors a batch keeps verbatim. Large
// imports can fail thousands of rows; the count stays exact either way.
const maxSampledErrors = 10

// ImportStats aggregates a batch ingestion run.
type ImportStats struct {
	Added             int      `json:"added"`
	DuplicatesSkipped int      `json:"duplicates_skipped"`
	Errored           int      `json:"errored"`
	PatientsAdded     int      `json:"patients_added,omitempty"`
	TestTypesAdded    int      `json:"test_types_added,omitempty"`
	Errors            []string `json:"errors,omitempty"`
}

// RecordError counts a row failure, keeping the message only while under the
// sample cap.
func (s *ImportStats) RecordError(format string, args ...any) {
	s.Errored++
	if len(s.Errors) < maxSampledErrors {
		s.Errors = append(s.Errors, fmt.Sprintf(format, args...))
	}
}
