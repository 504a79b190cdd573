package catalog

import (
	"time"

	"github.com/google/uuid"
)

// TestType maps to the test_types table. Name is the unique, case-sensitive
// catalog key. Range bounds are nullable: a test type can exist with no
// configuration at all, in which case its results classify as undefined.
type TestType struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Unit         *string   `db:"unit" json:"unit,omitempty"`
	Method       *string   `db:"method" json:"method,omitempty"`
	Category     *string   `db:"category" json:"category,omitempty"`
	Description  *string   `db:"description" json:"description,omitempty"`
	NormalMin    *float64  `db:"normal_min" json:"normal_min,omitempty"`
	NormalMax    *float64  `db:"normal_max" json:"normal_max,omitempty"`
	CriticalLow  *float64  `db:"critical_low" json:"critical_low,omitempty"`
	CriticalHigh *float64  `db:"critical_high" json:"critical_high,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Configured reports whether the test type carries a usable normal band.
func (t *TestType) Configured() bool {
	return t.NormalMin != nil && t.NormalMax != nil
}

// CustomRange maps to the custom_test_ranges table. A custom range narrows a
// test type's base range to a population: an age band, a gender, a named
// condition, or any combination. Deactivated ranges are kept for history but
// never resolved against.
type CustomRange struct {
	ID            uuid.UUID `db:"id" json:"id"`
	TestTypeID    uuid.UUID `db:"test_type_id" json:"test_type_id"`
	Label         string    `db:"label" json:"label"`
	AgeMin        *int      `db:"age_min" json:"age_min,omitempty"`
	AgeMax        *int      `db:"age_max" json:"age_max,omitempty"`
	Gender        *string   `db:"gender" json:"gender,omitempty"`
	ConditionName *string   `db:"condition_name" json:"condition_name,omitempty"`
	NormalMin     *float64  `db:"normal_min" json:"normal_min,omitempty"`
	NormalMax     *float64  `db:"normal_max" json:"normal_max,omitempty"`
	CriticalLow   *float64  `db:"critical_low" json:"critical_low,omitempty"`
	CriticalHigh  *float64  `db:"critical_high" json:"critical_high,omitempty"`
	Active        bool      `db:"is_active" json:"active"`
	Notes         *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Specificity scores how narrowly a custom range targets a population:
// 4 for a named condition, 2 for a gender constraint, 1 for any age bound.
func (r *CustomRange) Specificity() int {
	score := 0
	if r.ConditionName != nil && *r.ConditionName != "" {
		score += 4
	}
	if r.Gender != nil && *r.Gender != "" {
		score += 2
	}
	if r.AgeMin != nil || r.AgeMax != nil {
		score++
	}
	return score
}
