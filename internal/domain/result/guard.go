package result

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DuplicateStore is the slice of the repository the guard queries.
type DuplicateStore interface {
	ExistsExact(ctx context.Context, patientID string, testTypeID uuid.UUID, value float64, testDate string) (bool, error)
	ExistsBetween(ctx context.Context, patientID string, testTypeID uuid.UUID, value float64, startDay, endDay string) (bool, error)
}

// DuplicateGuard detects re-submitted results. Storage failures never block
// ingestion: the guard logs and reports "not a duplicate" so imports can
// proceed, leaving the unique index as the final defense.
type DuplicateGuard struct {
	store DuplicateStore
	log   zerolog.Logger
}

func NewDuplicateGuard(store DuplicateStore, log zerolog.Logger) *DuplicateGuard {
	return &DuplicateGuard{store: store, log: log}
}

const (
	dayFormat      = "2006-01-02"
	dateTimeFormat = "2006-01-02 15:04:05"
)

// normalizeDate parses a result date. It returns the day string used for
// exact comparison, the parsed time, and whether parsing succeeded. An
// unrecognized format is treated as an opaque key and compared verbatim.
func normalizeDate(testDate string) (day string, at time.Time, ok bool) {
	if t, err := time.Parse(dayFormat, testDate); err == nil {
		return testDate, t, true
	}
	if t, err := time.Parse(dateTimeFormat, testDate); err == nil {
		return t.Format(dayFormat), t, true
	}
	return testDate, time.Time{}, false
}

// IsDuplicate reports whether an equivalent result is already stored: either
// an exact match on patient, test type, value, and normalized date, or the
// same value within toleranceMinutes of the given date. Opaque date strings
// only ever match exactly.
func (g *DuplicateGuard) IsDuplicate(ctx context.Context, patientID string, testTypeID uuid.UUID, value float64, testDate string, toleranceMinutes int) (bool, error) {
	day, at, parseable := normalizeDate(testDate)

	exact, err := g.store.ExistsExact(ctx, patientID, testTypeID, value, day)
	if err != nil {
		g.log.Warn().Err(err).
			Str("patient_id", patientID).
			Str("test_type_id", testTypeID.String()).
			Msg("duplicate check failed, allowing result through")
		return false, nil
	}
	if exact {
		return true, nil
	}

	if !parseable || toleranceMinutes <= 0 {
		return false, nil
	}

	tolerance := time.Duration(toleranceMinutes) * time.Minute
	startDay := at.Add(-tolerance).Format(dayFormat)
	endDay := at.Add(tolerance).Format(dayFormat)

	near, err := g.store.ExistsBetween(ctx, patientID, testTypeID, value, startDay, endDay)
	if err != nil {
		g.log.Warn().Err(err).
			Str("patient_id", patientID).
			Str("test_type_id", testTypeID.String()).
			Msg("near-duplicate check failed, allowing result through")
		return false, nil
	}
	return near, nil
}
