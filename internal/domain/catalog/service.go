package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/labrec/labrec/internal/platform/db"
)

// ResultPurger removes stored results for a test type. The results domain
// provides the implementation; catalog only needs it when a test type is
// deleted so its history goes with it.
type ResultPurger interface {
	DeleteByTestType(ctx context.Context, testTypeID uuid.UUID) error
}

// Service implements catalog operations over the repositories.
type Service struct {
	testTypes TestTypeRepository
	ranges    CustomRangeRepository
	results   ResultPurger
	pool      *pgxpool.Pool
}

// NewService creates a catalog service. pool may be nil in tests; cascading
// deletes then run without a surrounding transaction.
func NewService(testTypes TestTypeRepository, ranges CustomRangeRepository, results ResultPurger, pool *pgxpool.Pool) *Service {
	return &Service{testTypes: testTypes, ranges: ranges, results: results, pool: pool}
}

func (s *Service) CreateTestType(ctx context.Context, t *TestType) error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("test type name is required")
	}
	if err := validateBounds(t.NormalMin, t.NormalMax); err != nil {
		return err
	}
	return s.testTypes.Create(ctx, t)
}

func (s *Service) GetTestType(ctx context.Context, name string) (*TestType, error) {
	return s.testTypes.GetByName(ctx, name)
}

func (s *Service) GetTestTypeByID(ctx context.Context, id uuid.UUID) (*TestType, error) {
	return s.testTypes.GetByID(ctx, id)
}

// FindTestTypeFold looks a test type up ignoring case. Imports use it so
// "hemoglobin" in a CSV matches the catalog entry "Hemoglobin".
func (s *Service) FindTestTypeFold(ctx context.Context, name string) (*TestType, error) {
	return s.testTypes.FindByNameFold(ctx, name)
}

func (s *Service) ListTestTypes(ctx context.Context) ([]*TestType, error) {
	return s.testTypes.List(ctx)
}

func (s *Service) UpdateTestType(ctx context.Context, t *TestType) error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("test type name is required")
	}
	if err := validateBounds(t.NormalMin, t.NormalMax); err != nil {
		return err
	}
	return s.testTypes.Update(ctx, t)
}

// DeleteTestType removes a test type together with every stored result for
// it. Both deletes run in one transaction so a failure leaves the catalog
// untouched.
func (s *Service) DeleteTestType(ctx context.Context, id uuid.UUID) error {
	run := func(ctx context.Context) error {
		if s.results != nil {
			if err := s.results.DeleteByTestType(ctx, id); err != nil {
				return fmt.Errorf("purge results: %w", err)
			}
		}
		return s.testTypes.Delete(ctx, id)
	}
	if s.pool != nil {
		return db.WithTx(ctx, s.pool, run)
	}
	return run(ctx)
}

func (s *Service) ListCustomRanges(ctx context.Context, testTypeID uuid.UUID) ([]*CustomRange, error) {
	return s.ranges.ListActiveByTestType(ctx, testTypeID)
}

func (s *Service) CreateCustomRange(ctx context.Context, cr *CustomRange) error {
	if strings.TrimSpace(cr.Label) == "" {
		return fmt.Errorf("range label is required")
	}
	if _, err := s.testTypes.GetByID(ctx, cr.TestTypeID); err != nil {
		return fmt.Errorf("test type %s: %w", cr.TestTypeID, err)
	}
	if err := validateCustomRange(cr); err != nil {
		return err
	}
	cr.Active = true
	return s.ranges.Create(ctx, cr)
}

func (s *Service) UpdateCustomRange(ctx context.Context, cr *CustomRange) error {
	if strings.TrimSpace(cr.Label) == "" {
		return fmt.Errorf("range label is required")
	}
	if err := validateCustomRange(cr); err != nil {
		return err
	}
	return s.ranges.Update(ctx, cr)
}

// DeactivateCustomRange soft-deletes a range. It stays in storage but is
// excluded from resolution.
func (s *Service) DeactivateCustomRange(ctx context.Context, id uuid.UUID) error {
	return s.ranges.Deactivate(ctx, id)
}

func validateBounds(min, max *float64) error {
	if min != nil && max != nil && *min >= *max {
		return fmt.Errorf("normal_min (%g) must be below normal_max (%g)", *min, *max)
	}
	return nil
}

func validateCustomRange(cr *CustomRange) error {
	if cr.AgeMin != nil && cr.AgeMax != nil && *cr.AgeMin >= *cr.AgeMax {
		return fmt.Errorf("age_min (%d) must be below age_max (%d)", *cr.AgeMin, *cr.AgeMax)
	}
	return validateBounds(cr.NormalMin, cr.NormalMax)
}

// ExportedRange is one row of the JSON range export. Ranges are keyed by
// test name rather than internal ID so an export can be imported into
// another installation.
type ExportedRange struct {
	TestName      string   `json:"test_name"`
	Label         string   `json:"label"`
	AgeMin        *int     `json:"age_min,omitempty"`
	AgeMax        *int     `json:"age_max,omitempty"`
	Gender        *string  `json:"gender,omitempty"`
	ConditionName *string  `json:"condition_name,omitempty"`
	NormalMin     *float64 `json:"normal_min,omitempty"`
	NormalMax     *float64 `json:"normal_max,omitempty"`
	CriticalLow   *float64 `json:"critical_low,omitempty"`
	CriticalHigh  *float64 `json:"critical_high,omitempty"`
	Active        bool     `json:"active"`
	Notes         *string  `json:"notes,omitempty"`
}

// ExportRanges serializes every custom range, active or not, as JSON.
func (s *Service) ExportRanges(ctx context.Context) ([]byte, error) {
	all, err := s.ranges.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	names := map[uuid.UUID]string{}
	out := make([]ExportedRange, 0, len(all))
	for _, cr := range all {
		name, ok := names[cr.TestTypeID]
		if !ok {
			t, err := s.testTypes.GetByID(ctx, cr.TestTypeID)
			if err != nil {
				return nil, err
			}
			name = t.Name
			names[cr.TestTypeID] = name
		}
		out = append(out, ExportedRange{
			TestName:      name,
			Label:         cr.Label,
			AgeMin:        cr.AgeMin,
			AgeMax:        cr.AgeMax,
			Gender:        cr.Gender,
			ConditionName: cr.ConditionName,
			NormalMin:     cr.NormalMin,
			NormalMax:     cr.NormalMax,
			CriticalLow:   cr.CriticalLow,
			CriticalHigh:  cr.CriticalHigh,
			Active:        cr.Active,
			Notes:         cr.Notes,
		})
	}
	return json.MarshalIndent(out, "", "  ")
}

// RangeImportStats summarizes an ImportRanges run.
type RangeImportStats struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// ImportRanges loads ranges from a JSON export. Rows referencing unknown
// test names are skipped and reported, not fatal.
func (s *Service) ImportRanges(ctx context.Context, data []byte) (*RangeImportStats, error) {
	var rows []ExportedRange
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parse range export: %w", err)
	}
	stats := &RangeImportStats{}
	for i, row := range rows {
		t, err := s.testTypes.GetByName(ctx, row.TestName)
		if err != nil {
			stats.Skipped++
			stats.Errors = append(stats.Errors, fmt.Sprintf("row %d: unknown test %q", i+1, row.TestName))
			continue
		}
		cr := &CustomRange{
			TestTypeID:    t.ID,
			Label:         row.Label,
			AgeMin:        row.AgeMin,
			AgeMax:        row.AgeMax,
			Gender:        row.Gender,
			ConditionName: row.ConditionName,
			NormalMin:     row.NormalMin,
			NormalMax:     row.NormalMax,
			CriticalLow:   row.CriticalLow,
			CriticalHigh:  row.CriticalHigh,
			Active:        row.Active,
			Notes:         row.Notes,
		}
		if err := validateCustomRange(cr); err != nil {
			stats.Skipped++
			stats.Errors = append(stats.Errors, fmt.Sprintf("row %d: %v", i+1, err))
			continue
		}
		if err := s.ranges.Create(ctx, cr); err != nil {
			stats.Skipped++
			stats.Errors = append(stats.Errors, fmt.Sprintf("row %d: %v", i+1, err))
			continue
		}
		stats.Imported++
	}
	return stats, nil
}

// Counts returns catalog sizes for the stats endpoint.
func (s *Service) Counts(ctx context.Context) (testTypes, customRanges int, err error) {
	if testTypes, err = s.testTypes.Count(ctx); err != nil {
		return 0, 0, err
	}
	if customRanges, err = s.ranges.Count(ctx); err != nil {
		return 0, 0, err
	}
	return testTypes, customRanges, nil
}
