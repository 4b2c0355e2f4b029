package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/bazaar-ticketing/internal/domain"
	"github.com/spec-kit/bazaar-ticketing/internal/repository"
	"github.com/spec-kit/bazaar-ticketing/pkg/util/errorutil"
)

// DirectoryService resolves assignment references to departments and markets.
type DirectoryService struct {
	units repository.UnitRepository
}

// NewDirectoryService constructs the service.
func NewDirectoryService(units repository.UnitRepository) *DirectoryService {
	return &DirectoryService{units: units}
}

// Resolve looks up the unit a reference points to and checks its discriminator.
func (s *DirectoryService) Resolve(ctx context.Context, ref domain.UnitRef) (*domain.OrganizationalUnit, error) {
	if !ref.Kind.Valid() {
		return nil, errorutil.NewValidationError("unknown assignment kind", map[string]any{"kind": ref.Kind})
	}
	if ref.ID == "" {
		return nil, errorutil.NewValidationError("assignment id is required", nil)
	}
	unit, err := s.units.GetByID(ctx, ref.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errorutil.NewNotFound(string(ref.Kind), map[string]any{"id": ref.ID})
		}
		return nil, err
	}
	if unit.Kind != ref.Kind {
		return nil, errorutil.NewKindMismatch(string(ref.Kind), string(unit.Kind), map[string]any{"id": ref.ID})
	}
	return unit, nil
}

// Markets lists every market in display order.
func (s *DirectoryService) Markets(ctx context.Context) ([]domain.OrganizationalUnit, error) {
	return s.units.ListByKind(ctx, domain.UnitKindMarket)
}

// List returns every unit of kind ordered by name.
func (s *DirectoryService) List(ctx context.Context, kind domain.UnitKind) ([]domain.OrganizationalUnit, error) {
	if !kind.Valid() {
		return nil, errorutil.NewValidationError("unknown unit kind", map[string]any{"kind": kind})
	}
	return s.units.ListByKind(ctx, kind)
}

// CreateUnit adds a department or market. Superadmin only.
func (s *DirectoryService) CreateUnit(ctx context.Context, caller *domain.User, name string, kind domain.UnitKind) (*domain.OrganizationalUnit, error) {
	if caller == nil {
		return nil, errorutil.NewUnauthorized("authentication required")
	}
	if !caller.IsSuperAdmin() {
		return nil, errorutil.NewForbidden("superadmin role required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errorutil.NewValidationError("unit name required", map[string]any{"name": "required"})
	}
	if !kind.Valid() {
		return nil, errorutil.NewValidationError("unknown unit kind", map[string]any{"kind": kind})
	}
	unit := &domain.OrganizationalUnit{Name: name, Kind: kind}
	if err := s.units.Create(ctx, unit); err != nil {
		if errors.Is(err, repository.ErrDuplicateUnit) {
			return nil, errorutil.NewConflict("unit already exists", map[string]any{"name": name, "kind": kind})
		}
		return nil, err
	}
	return unit, nil
}

// EnsureDepartments creates any of the named departments that do not exist yet.
func (s *DirectoryService) EnsureDepartments(ctx context.Context, names ...string) ([]domain.OrganizationalUnit, error) {
	existing, err := s.units.ListByKind(ctx, domain.UnitKindDepartment)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]domain.OrganizationalUnit, len(existing))
	for _, unit := range existing {
		byName[unit.Name] = unit
	}
	out := make([]domain.OrganizationalUnit, 0, len(names))
	for _, name := range uniqueStrings(names) {
		if unit, ok := byName[name]; ok {
			out = append(out, unit)
			continue
		}
		unit := &domain.OrganizationalUnit{Name: name, Kind: domain.UnitKindDepartment}
		err := s.units.Create(ctx, unit)
		if errors.Is(err, repository.ErrDuplicateUnit) {
			unit, err = s.departmentByName(ctx, name)
		}
		if err != nil {
			return nil, err
		}
		byName[name] = *unit
		out = append(out, *unit)
	}
	return out, nil
}

// departmentByName reloads a department another writer created first.
func (s *DirectoryService) departmentByName(ctx context.Context, name string) (*domain.OrganizationalUnit, error) {
	units, err := s.units.ListByKind(ctx, domain.UnitKindDepartment)
	if err != nil {
		return nil, err
	}
	for i := range units {
		if units[i].Name == name {
			return &units[i], nil
		}
	}
	return nil, errorutil.NewNotFound("department", map[string]any{"name": name})
}

// Names maps unit ids to names for the given ids. Unknown ids are skipped.
func (s *DirectoryService) Names(ctx context.Context, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	units, err := s.units.ListByIDs(ctx, uniqueStrings(ids))
	if err != nil {
		return nil, err
	}
	for _, unit := range units {
		names[unit.ID] = unit.Name
	}
	return names, nil
}

// InDepartment reports whether the user is assigned to the department with the given name.
func (s *DirectoryService) InDepartment(ctx context.Context, user *domain.User, name string) (bool, error) {
	if user == nil || user.AssignedTo.Kind != domain.UnitKindDepartment || name == "" {
		return false, nil
	}
	unit, err := s.units.GetByID(ctx, user.AssignedTo.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return unit.Kind == domain.UnitKindDepartment && unit.Name == name, nil
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
