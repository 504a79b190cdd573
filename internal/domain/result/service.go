package result

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/labrec/labrec/internal/domain/patient"
	"github.com/labrec/labrec/internal/domain/ranges"
	"github.com/labrec/labrec/internal/platform/db"
)

// DemographicsSource supplies the patient snapshot classification works
// from. *patient.Service satisfies it.
type DemographicsSource interface {
	Demographics(ctx context.Context, id string) (*patient.Demographics, error)
}

// RangeResolver resolves the applicable reference range. *ranges.Resolver
// satisfies it.
type RangeResolver interface {
	Resolve(ctx context.Context, testName string, age *int, gender, condition *string) (ranges.Resolution, error)
}

// Service ingests, lists, and classifies test results.
type Service struct {
	repo         Repository
	guard        *DuplicateGuard
	resolver     RangeResolver
	classifier   *ranges.Classifier
	demographics DemographicsSource
	tolerance    int
	pool         *pgxpool.Pool
	log          zerolog.Logger
}

// NewService creates the result service. toleranceMinutes controls the
// near-duplicate window; pool may be nil in tests, in which case ingestion
// runs without a surrounding transaction.
func NewService(repo Repository, guard *DuplicateGuard, resolver RangeResolver, classifier *ranges.Classifier, demographics DemographicsSource, toleranceMinutes int, pool *pgxpool.Pool, log zerolog.Logger) *Service {
	return &Service{
		repo:         repo,
		guard:        guard,
		resolver:     resolver,
		classifier:   classifier,
		demographics: demographics,
		tolerance:    toleranceMinutes,
		pool:         pool,
		log:          log,
	}
}

func (s *Service) validate(c Candidate) error {
	if strings.TrimSpace(c.PatientID) == "" {
		return fmt.Errorf("patient_id is required")
	}
	if c.TestTypeID == uuid.Nil {
		return fmt.Errorf("test_type_id is required")
	}
	if strings.TrimSpace(c.TestDate) == "" {
		return fmt.Errorf("test_date is required")
	}
	return nil
}

// Ingest runs the duplicate check and the insert as one unit. With a pool
// configured both happen inside a transaction, so two concurrent submissions
// of the same result cannot both pass the check; the unique index turns the
// loser's insert into a duplicate outcome rather than an error.
func (s *Service) Ingest(ctx context.Context, c Candidate, checkDuplicates bool) (Outcome, error) {
	if err := s.validate(c); err != nil {
		return Outcome{}, err
	}

	var out Outcome
	run := func(ctx context.Context) error {
		if checkDuplicates {
			dup, err := s.guard.IsDuplicate(ctx, c.PatientID, c.TestTypeID, c.Value, c.TestDate, s.tolerance)
			if err != nil {
				return err
			}
			if dup {
				out = Outcome{Reason: ReasonDuplicate}
				return nil
			}
		}
		res := &TestResult{
			PatientID:     c.PatientID,
			TestTypeID:    c.TestTypeID,
			Value:         c.Value,
			TestDate:      c.TestDate,
			LabTechnician: c.LabTechnician,
			Notes:         c.Notes,
		}
		if err := s.repo.Insert(ctx, res); err != nil {
			if errors.Is(err, ErrDuplicate) {
				out = Outcome{Reason: ReasonDuplicate}
				return nil
			}
			return err
		}
		out = Outcome{Accepted: true, Result: res}
		return nil
	}

	var err error
	if s.pool != nil {
		err = db.WithTx(ctx, s.pool, run)
	} else {
		err = run(ctx)
	}
	if err != nil {
		return Outcome{}, err
	}
	return out, nil
}

// IngestBatch feeds candidates through Ingest one by one and aggregates the
// outcomes. Row failures are counted and sampled, never fatal.
func (s *Service) IngestBatch(ctx context.Context, candidates []Candidate, checkDuplicates bool) ImportStats {
	var stats ImportStats
	for i, c := range candidates {
		out, err := s.Ingest(ctx, c, checkDuplicates)
		if err != nil {
			stats.RecordError("row %d: %v", i+1, err)
			continue
		}
		if !out.Accepted {
			stats.DuplicatesSkipped++
			continue
		}
		stats.Added++
	}
	return stats
}

func (s *Service) ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*PatientResult, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// DeleteByPatient satisfies the patient domain's purger.
func (s *Service) DeleteByPatient(ctx context.Context, patientID string) error {
	return s.repo.DeleteByPatient(ctx, patientID)
}

// DeleteByTestType satisfies the catalog's purger.
func (s *Service) DeleteByTestType(ctx context.Context, testTypeID uuid.UUID) error {
	return s.repo.DeleteByTestType(ctx, testTypeID)
}

// Classified returns every result for the patient with its resolved range
// and status, using the patient's current demographics.
func (s *Service) Classified(ctx context.Context, patientID string) ([]*ClassifiedResult, error) {
	demo, err := s.demographics.Demographics(ctx, patientID)
	if err != nil {
		return nil, err
	}
	results, err := s.repo.ListAllByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}

	out := make([]*ClassifiedResult, 0, len(results))
	for _, pr := range results {
		res, err := s.resolver.Resolve(ctx, pr.TestName, demo.Age, demo.Gender, nil)
		if err != nil {
			return nil, fmt.Errorf("classify %s: %w", pr.TestName, err)
		}
		out = append(out, &ClassifiedResult{
			PatientResult: *pr,
			Status:        s.classifier.Classify(pr.Value, res),
			Range:         res,
		})
	}
	return out, nil
}

// Alerts returns the patient's abnormal results. Results without a usable
// range are excluded; they need configuration, not attention.
func (s *Service) Alerts(ctx context.Context, patientID string) ([]*ClassifiedResult, error) {
	classified, err := s.Classified(ctx, patientID)
	if err != nil {
		return nil, err
	}
	alerts := make([]*ClassifiedResult, 0)
	for _, cr := range classified {
		if cr.Status != ranges.StatusNormal && cr.Status != ranges.StatusUndefined {
			alerts = append(alerts, cr)
		}
	}
	return alerts, nil
}

// Count returns the number of stored results, for the stats endpoint.
func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

// Tolerance exposes the configured duplicate window in minutes.
func (s *Service) Tolerance() int {
	return s.tolerance
}
