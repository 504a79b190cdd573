package patient

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a patient does not exist.
var ErrNotFound = errors.New("patient not found")

// Repository provides access to patient records.
type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id string) (*Patient, error)
	// List returns a page of patients plus the total count. query, when
	// non-empty, filters by name or ID substring, case-insensitively.
	List(ctx context.Context, query string, limit, offset int) ([]*Patient, int, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}
