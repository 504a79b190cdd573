package patient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/labrec/labrec/internal/platform/db"
)

// ResultPurger removes stored results for a patient when the patient record
// is deleted.
type ResultPurger interface {
	DeleteByPatient(ctx context.Context, patientID string) error
}

// Service implements patient operations.
type Service struct {
	repo    Repository
	results ResultPurger
	pool    *pgxpool.Pool
}

// NewService creates a patient service. pool may be nil in tests.
func NewService(repo Repository, results ResultPurger, pool *pgxpool.Pool) *Service {
	return &Service{repo: repo, results: results, pool: pool}
}

func (s *Service) Create(ctx context.Context, p *Patient) error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("patient id is required")
	}
	if strings.TrimSpace(p.FirstName) == "" && strings.TrimSpace(p.LastName) == "" {
		return fmt.Errorf("patient name is required")
	}
	return s.repo.Create(ctx, p)
}

func (s *Service) Get(ctx context.Context, id string) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, query string, limit, offset int) ([]*Patient, int, error) {
	return s.repo.List(ctx, query, limit, offset)
}

func (s *Service) Update(ctx context.Context, p *Patient) error {
	if strings.TrimSpace(p.FirstName) == "" && strings.TrimSpace(p.LastName) == "" {
		return fmt.Errorf("patient name is required")
	}
	return s.repo.Update(ctx, p)
}

// Delete removes a patient and every result recorded for them, in one
// transaction.
func (s *Service) Delete(ctx context.Context, id string) error {
	run := func(ctx context.Context) error {
		if s.results != nil {
			if err := s.results.DeleteByPatient(ctx, id); err != nil {
				return fmt.Errorf("purge results: %w", err)
			}
		}
		return s.repo.Delete(ctx, id)
	}
	if s.pool != nil {
		return db.WithTx(ctx, s.pool, run)
	}
	return run(ctx)
}

// EnsureExists returns the patient, creating a minimal record when none
// exists yet. Imports call this so result rows never dangle.
func (s *Service) EnsureExists(ctx context.Context, id string) (*Patient, bool, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err == nil {
		return p, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}
	p = &Patient{ID: id, LastName: id}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, false, err
	}
	return p, true, nil
}

// Demographics returns the resolution snapshot for a patient as of now.
func (s *Service) Demographics(ctx context.Context, id string) (*Demographics, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	d := p.DemographicsAt(time.Now())
	return &d, nil
}

// Count returns the number of patients, for the stats endpoint.
func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}
