package catalog

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

type testTypeRepoPG struct {
	pool *pgxpool.Pool
}

// NewTestTypeRepoPG returns a Postgres-backed test type repository.
func NewTestTypeRepoPG(pool *pgxpool.Pool) TestTypeRepository {
	return &testTypeRepoPG{pool: pool}
}

func (r *testTypeRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const testTypeCols = `id, name, unit, method, category, description,
	normal_min, normal_max, critical_low, critical_high, created_at`

func scanTestType(row pgx.Row) (*TestType, error) {
	var t TestType
	err := row.Scan(&t.ID, &t.Name, &t.Unit, &t.Method, &t.Category, &t.Description,
		&t.NormalMin, &t.NormalMax, &t.CriticalLow, &t.CriticalHigh, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *testTypeRepoPG) Create(ctx context.Context, t *TestType) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO test_types (id, name, unit, method, category, description,
			normal_min, normal_max, critical_low, critical_high)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		t.ID, t.Name, t.Unit, t.Method, t.Category, t.Description,
		t.NormalMin, t.NormalMax, t.CriticalLow, t.CriticalHigh)
	if err != nil {
		return fmt.Errorf("insert test type: %w", err)
	}
	return nil
}

func (r *testTypeRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*TestType, error) {
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT `+testTypeCols+` FROM test_types WHERE id = $1`, id)
	return scanTestType(row)
}

func (r *testTypeRepoPG) GetByName(ctx context.Context, name string) (*TestType, error) {
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT `+testTypeCols+` FROM test_types WHERE name = $1`, name)
	return scanTestType(row)
}

func (r *testTypeRepoPG) FindByNameFold(ctx context.Context, name string) (*TestType, error) {
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT `+testTypeCols+` FROM test_types WHERE LOWER(name) = LOWER($1)`, name)
	return scanTestType(row)
}

func (r *testTypeRepoPG) List(ctx context.Context) ([]*TestType, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+testTypeCols+` FROM test_types ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list test types: %w", err)
	}
	defer rows.Close()

	var out []*TestType
	for rows.Next() {
		t, err := scanTestType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *testTypeRepoPG) Update(ctx context.Context, t *TestType) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE test_types
		SET name = $2, unit = $3, method = $4, category = $5, description = $6,
			normal_min = $7, normal_max = $8, critical_low = $9, critical_high = $10
		WHERE id = $1`,
		t.ID, t.Name, t.Unit, t.Method, t.Category, t.Description,
		t.NormalMin, t.NormalMax, t.CriticalLow, t.CriticalHigh)
	if err != nil {
		return fmt.Errorf("update test type: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *testTypeRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM test_types WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete test type: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *testTypeRepoPG) Count(ctx context.Context) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM test_types`).Scan(&n)
	return n, err
}

type customRangeRepoPG struct {
	pool *pgxpool.Pool
}

// NewCustomRangeRepoPG returns a Postgres-backed custom range repository.
func NewCustomRangeRepoPG(pool *pgxpool.Pool) CustomRangeRepository {
	return &customRangeRepoPG{pool: pool}
}

func (r *customRangeRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const customRangeCols = `id, test_type_id, label, age_min, age_max, gender,
	condition_name, normal_min, normal_max, critical_low, critical_high,
	is_active, notes, created_at`

func scanCustomRange(row pgx.Row) (*CustomRange, error) {
	var cr CustomRange
	err := row.Scan(&cr.ID, &cr.TestTypeID, &cr.Label, &cr.AgeMin, &cr.AgeMax,
		&cr.Gender, &cr.ConditionName, &cr.NormalMin, &cr.NormalMax,
		&cr.CriticalLow, &cr.CriticalHigh, &cr.Active, &cr.Notes, &cr.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &cr, nil
}

func (r *customRangeRepoPG) Create(ctx context.Context, cr *CustomRange) error {
	if cr.ID == uuid.Nil {
		cr.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO custom_test_ranges (id, test_type_id, label, age_min, age_max,
			gender, condition_name, normal_min, normal_max, critical_low,
			critical_high, is_active, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		cr.ID, cr.TestTypeID, cr.Label, cr.AgeMin, cr.AgeMax, cr.Gender,
		cr.ConditionName, cr.NormalMin, cr.NormalMax, cr.CriticalLow,
		cr.CriticalHigh, cr.Active, cr.Notes)
	if err != nil {
		return fmt.Errorf("insert custom range: %w", err)
	}
	return nil
}

func (r *customRangeRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*CustomRange, error) {
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT `+customRangeCols+` FROM custom_test_ranges WHERE id = $1`, id)
	return scanCustomRange(row)
}

func (r *customRangeRepoPG) ListActiveByTestType(ctx context.Context, testTypeID uuid.UUID) ([]*CustomRange, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+customRangeCols+` FROM custom_test_ranges
		WHERE test_type_id = $1 AND is_active = TRUE
		ORDER BY label`, testTypeID)
	if err != nil {
		return nil, fmt.Errorf("list custom ranges: %w", err)
	}
	defer rows.Close()
	return collectCustomRanges(rows)
}

func (r *customRangeRepoPG) ListAll(ctx context.Context) ([]*CustomRange, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+customRangeCols+` FROM custom_test_ranges
		ORDER BY test_type_id, label`)
	if err != nil {
		return nil, fmt.Errorf("list custom ranges: %w", err)
	}
	defer rows.Close()
	return collectCustomRanges(rows)
}

func collectCustomRanges(rows pgx.Rows) ([]*CustomRange, error) {
	var out []*CustomRange
	for rows.Next() {
		cr, err := scanCustomRange(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cr)
	}
	return out, rows.Err()
}

func (r *customRangeRepoPG) Update(ctx context.Context, cr *CustomRange) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE custom_test_ranges
		SET label = $2, age_min = $3, age_max = $4, gender = $5,
			condition_name = $6, normal_min = $7, normal_max = $8,
			critical_low = $9, critical_high = $10, is_active = $11, notes = $12
		WHERE id = $1`,
		cr.ID, cr.Label, cr.AgeMin, cr.AgeMax, cr.Gender, cr.ConditionName,
		cr.NormalMin, cr.NormalMax, cr.CriticalLow, cr.CriticalHigh,
		cr.Active, cr.Notes)
	if err != nil {
		return fmt.Errorf("update custom range: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *customRangeRepoPG) Deactivate(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE custom_test_ranges SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate custom range: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *customRangeRepoPG) Count(ctx context.Context) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM custom_test_ranges WHERE is_active = TRUE`).Scan(&n)
	return n, err
}
