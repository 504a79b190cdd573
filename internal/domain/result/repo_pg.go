package result

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/labrec/labrec/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type repoPG struct {
	pool *pgxpool.Pool
}

// NewRepoPG returns a Postgres-backed result repository.
func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const resultCols = `tr.id, tr.patient_id, tr.test_type_id, tr.test_value,
	tr.test_date, tr.lab_technician, tr.notes, tr.created_at`

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func (r *repoPG) Insert(ctx context.Context, res *TestResult) error {
	if res.ID == uuid.Nil {
		res.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO test_results (id, patient_id, test_type_id, test_value,
			test_date, lab_technician, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		res.ID, res.PatientID, res.TestTypeID, res.Value,
		res.TestDate, res.LabTechnician, res.Notes)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*TestResult, error) {
	row := r.conn(ctx).QueryRow(ctx, `
		SELECT `+resultCols+` FROM test_results tr WHERE tr.id = $1`, id)
	var res TestResult
	err := row.Scan(&res.ID, &res.PatientID, &res.TestTypeID, &res.Value,
		&res.TestDate, &res.LabTechnician, &res.Notes, &res.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &res, nil
}

func scanPatientResult(rows pgx.Rows) (*PatientResult, error) {
	var pr PatientResult
	err := rows.Scan(&pr.ID, &pr.PatientID, &pr.TestTypeID, &pr.Value,
		&pr.TestDate, &pr.LabTechnician, &pr.Notes, &pr.CreatedAt,
		&pr.TestName, &pr.Unit)
	if err != nil {
		return nil, err
	}
	return &pr, nil
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*PatientResult, int, error) {
	var total int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM test_results WHERE patient_id = $1`, patientID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count results: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+resultCols+`, tt.name AS test_name, tt.unit
		FROM test_results tr
		JOIN test_types tt ON tt.id = tr.test_type_id
		WHERE tr.patient_id = $1
		ORDER BY tr.test_date DESC, tr.created_at DESC
		LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	out, err := collectPatientResults(rows)
	return out, total, err
}

func (r *repoPG) ListAllByPatient(ctx context.Context, patientID string) ([]*PatientResult, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+resultCols+`, tt.name AS test_name, tt.unit
		FROM test_results tr
		JOIN test_types tt ON tt.id = tr.test_type_id
		WHERE tr.patient_id = $1
		ORDER BY tr.test_date DESC, tr.created_at DESC`, patientID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()
	return collectPatientResults(rows)
}

func collectPatientResults(rows pgx.Rows) ([]*PatientResult, error) {
	var out []*PatientResult
	for rows.Next() {
		pr, err := scanPatientResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, pr)
	}
	return out, rows.Err()
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM test_results WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) DeleteByPatient(ctx context.Context, patientID string) error {
	_, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM test_results WHERE patient_id = $1`, patientID)
	if err != nil {
		return fmt.Errorf("delete results by patient: %w", err)
	}
	return nil
}

func (r *repoPG) DeleteByTestType(ctx context.Context, testTypeID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM test_results WHERE test_type_id = $1`, testTypeID)
	if err != nil {
		return fmt.Errorf("delete results by test type: %w", err)
	}
	return nil
}

func (r *repoPG) Count(ctx context.Context) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM test_results`).Scan(&n)
	return n, err
}

func (r *repoPG) ExistsExact(ctx context.Context, patientID string, testTypeID uuid.UUID, value float64, testDate string) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM test_results
			WHERE patient_id = $1 AND test_type_id = $2
				AND test_value = $3 AND test_date = $4
		)`, patientID, testTypeID, value, testDate).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check exact duplicate: %w", err)
	}
	return exists, nil
}

func (r *repoPG) ExistsBetween(ctx context.Context, patientID string, testTypeID uuid.UUID, value float64, startDay, endDay string) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM test_results
			WHERE patient_id = $1 AND test_type_id = $2
				AND test_value = $3 AND test_date BETWEEN $4 AND $5
		)`, patientID, testTypeID, value, startDay, endDay).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check near duplicate: %w", err)
	}
	return exists, nil
}
