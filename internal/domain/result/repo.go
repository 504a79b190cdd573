package result

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a result does not exist.
	ErrNotFound = errors.New("result not found")
	// ErrDuplicate is returned when an insert collides with the uniqueness
	// constraint on (patient, test type, value, date).
	ErrDuplicate = errors.New("duplicate result")
)

// Repository provides access to stored test results.
type Repository interface {
	Insert(ctx context.Context, r *TestResult) error
	GetByID(ctx context.Context, id uuid.UUID) (*TestResult, error)
	// ListByPatient returns a page of results joined with their catalog
	// entries, newest test date first, plus the total count.
	ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*PatientResult, int, error)
	// ListAllByPatient returns every result for a patient, newest first.
	ListAllByPatient(ctx context.Context, patientID string) ([]*PatientResult, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByPatient(ctx context.Context, patientID string) error
	DeleteByTestType(ctx context.Context, testTypeID uuid.UUID) error
	Count(ctx context.Context) (int, error)

	// ExistsExact reports whether a result with the same patient, test type,
	// value, and date string is already stored.
	ExistsExact(ctx context.Context, patientID string, testTypeID uuid.UUID, value float64, testDate string) (bool, error)
	// ExistsBetween reports whether a result with the same patient, test
	// type, and value has a test date lexicographically between the two day
	// strings, inclusive.
	ExistsBetween(ctx context.Context, patientID string, testTypeID uuid.UUID, value float64, startDay, endDay string) (bool, error)
}
