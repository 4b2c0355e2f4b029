package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/bazaar-ticketing/internal/domain"
)

// ErrDuplicateUnit signals a unit name already used within its kind.
var ErrDuplicateUnit = errors.New("unit name already exists")

// UnitRepository manages departments and markets.
type UnitRepository interface {
	Create(ctx context.Context, unit *domain.OrganizationalUnit) error
	// GetByID looks the id up across both unit kinds and reports the stored kind.
	GetByID(ctx context.Context, id string) (*domain.OrganizationalUnit, error)
	ListByIDs(ctx context.Context, ids []string) ([]domain.OrganizationalUnit, error)
	ListByKind(ctx context.Context, kind domain.UnitKind) ([]domain.OrganizationalUnit, error)
}

type unitRepository struct {
	pool *pgxpool.Pool
}

// NewUnitRepository builds the Postgres-backed repository.
func NewUnitRepository(pool *pgxpool.Pool) UnitRepository {
	return &unitRepository{pool: pool}
}

const unitsUnion = `
        SELECT id::text, name, 'Department' AS kind, created_at, updated_at FROM departments
        UNION ALL
        SELECT id::text, name, 'Market' AS kind, created_at, updated_at FROM markets`

func unitTable(kind domain.UnitKind) (string, error) {
	switch kind {
	case domain.UnitKindDepartment:
		return "departments", nil
	case domain.UnitKindMarket:
		return "markets", nil
	}
	return "", fmt.Errorf("unknown unit kind %q", kind)
}

func (r *unitRepository) Create(ctx context.Context, unit *domain.OrganizationalUnit) error {
	table, err := unitTable(unit.Kind)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
        INSERT INTO %s (name)
        VALUES ($1)
        RETURNING id::text, created_at, updated_at`, table)
	err = r.pool.QueryRow(ctx, query, unit.Name).Scan(&unit.ID, &unit.CreatedAt, &unit.UpdatedAt)
	if isUniqueViolation(err, "") {
		return ErrDuplicateUnit
	}
	return err
}

func (r *unitRepository) GetByID(ctx context.Context, id string) (*domain.OrganizationalUnit, error) {
	query := `SELECT id, name, kind, created_at, updated_at FROM (` + unitsUnion + `) u WHERE id=$1`
	var unit domain.OrganizationalUnit
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&unit.ID,
		&unit.Name,
		&unit.Kind,
		&unit.CreatedAt,
		&unit.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &unit, nil
}

func (r *unitRepository) ListByIDs(ctx context.Context, ids []string) ([]domain.OrganizationalUnit, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT id, name, kind, created_at, updated_at FROM (` + unitsUnion + `) u WHERE id = ANY($1)`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUnits(rows)
}

func (r *unitRepository) ListByKind(ctx context.Context, kind domain.UnitKind) ([]domain.OrganizationalUnit, error) {
	table, err := unitTable(kind)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
        SELECT id::text, name, '%s', created_at, updated_at
        FROM %s ORDER BY name ASC`, kind, table)
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUnits(rows)
}

func scanUnits(rows pgx.Rows) ([]domain.OrganizationalUnit, error) {
	var result []domain.OrganizationalUnit
	for rows.Next() {
		var unit domain.OrganizationalUnit
		if err := rows.Scan(&unit.ID, &unit.Name, &unit.Kind, &unit.CreatedAt, &unit.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, unit)
	}
	return result, rows.Err()
}
