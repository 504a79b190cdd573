package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a test type or custom range does not exist.
var ErrNotFound = errors.New("not found")

// TestTypeRepository provides access to the test type catalog.
type TestTypeRepository interface {
	Create(ctx context.Context, t *TestType) error
	GetByID(ctx context.Context, id uuid.UUID) (*TestType, error)
	// GetByName performs an exact, case-sensitive lookup.
	GetByName(ctx context.Context, name string) (*TestType, error)
	// FindByNameFold performs a case-insensitive lookup, used for flexible
	// matching during imports.
	FindByNameFold(ctx context.Context, name string) (*TestType, error)
	List(ctx context.Context) ([]*TestType, error)
	Update(ctx context.Context, t *TestType) error
	Delete(ctx context.Context, id uuid.UUID) error
	Count(ctx context.Context) (int, error)
}

// CustomRangeRepository provides access to population-specific range
// overrides.
type CustomRangeRepository interface {
	Create(ctx context.Context, r *CustomRange) error
	GetByID(ctx context.Context, id uuid.UUID) (*CustomRange, error)
	// ListActiveByTestType returns active ranges for a test type ordered by
	// label, for deterministic resolution.
	ListActiveByTestType(ctx context.Context, testTypeID uuid.UUID) ([]*CustomRange, error)
	ListAll(ctx context.Context) ([]*CustomRange, error)
	Update(ctx context.Context, r *CustomRange) error
	Deactivate(ctx context.Context, id uuid.UUID) error
	Count(ctx context.Context) (int, error)
}
