package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/bazaar-ticketing/internal/domain"
	"github.com/spec-kit/bazaar-ticketing/internal/repository"
	"github.com/spec-kit/bazaar-ticketing/pkg/util/errorutil"
)

func TestDirectoryService_Resolve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		ref  domain.UnitRef
		code string
	}{
		{name: "market", ref: f.marketA.Ref()},
		{name: "department", ref: f.itDept.Ref()},
		{name: "missing", ref: domain.UnitRef{ID: "nope", Kind: domain.UnitKindMarket}, code: errorutil.CodeNotFound},
		{name: "kind mismatch", ref: domain.UnitRef{ID: f.marketA.ID, Kind: domain.UnitKindDepartment}, code: errorutil.CodeKindMismatch},
		{name: "unknown kind", ref: domain.UnitRef{ID: f.marketA.ID, Kind: "Team"}, code: errorutil.CodeValidation},
		{name: "empty id", ref: domain.UnitRef{Kind: domain.UnitKindMarket}, code: errorutil.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unit, err := f.directory.Resolve(ctx, tt.ref)
			if tt.code != "" {
				require.Error(t, err)
				assert.True(t, errorutil.HasCode(err, tt.code), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.ref, unit.Ref())
		})
	}
}

func TestDirectoryService_InDepartment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ok, err := f.directory.InDepartment(ctx, f.itReviewer, "IT")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.directory.InDepartment(ctx, f.monitor, "IT")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.directory.InDepartment(ctx, f.marketUser, "Market A")
	require.NoError(t, err)
	assert.False(t, ok, "markets are never departments")
}

func TestDirectoryService_CreateUnit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	unit, err := f.directory.CreateUnit(ctx, f.superAdmin, "  Market C ", domain.UnitKindMarket)
	require.NoError(t, err)
	assert.Equal(t, "Market C", unit.Name)
	assert.NotEmpty(t, unit.ID)

	_, err = f.directory.CreateUnit(ctx, f.superAdmin, "Market C", domain.UnitKindMarket)
	assert.True(t, errorutil.HasCode(err, errorutil.CodeConflict), "got %v", err)

	_, err = f.directory.CreateUnit(ctx, f.admin, "Market D", domain.UnitKindMarket)
	assert.True(t, errorutil.HasCode(err, errorutil.CodeForbidden), "got %v", err)

	_, err = f.directory.CreateUnit(ctx, f.superAdmin, "Team", "Team")
	assert.True(t, errorutil.HasCode(err, errorutil.CodeValidation), "got %v", err)

	markets, err := f.directory.List(ctx, domain.UnitKindMarket)
	require.NoError(t, err)
	assert.Len(t, markets, 3)
}

func TestDirectoryService_EnsureDepartments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	units, err := f.directory.EnsureDepartments(ctx, "IT", "Finance", "Finance")
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, f.itDept.ID, units[0].ID)
	assert.Equal(t, "Finance", units[1].Name)

	again, err := f.directory.EnsureDepartments(ctx, "Finance")
	require.NoError(t, err)
	assert.Equal(t, units[1].ID, again[0].ID)
}

// racingUnitRepository lets another writer create the unit first.
type racingUnitRepository struct {
	*repository.MemoryUnitRepository
}

func (r racingUnitRepository) Create(ctx context.Context, unit *domain.OrganizationalUnit) error {
	winner := domain.OrganizationalUnit{Name: unit.Name, Kind: unit.Kind}
	if err := r.MemoryUnitRepository.Create(ctx, &winner); err != nil {
		return err
	}
	return repository.ErrDuplicateUnit
}

func TestDirectoryService_EnsureDepartmentsLosesCreateRace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	directory := NewDirectoryService(racingUnitRepository{f.units})

	units, err := directory.EnsureDepartments(ctx, "Security")
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.NotEmpty(t, units[0].ID)

	stored, err := f.directory.List(ctx, domain.UnitKindDepartment)
	require.NoError(t, err)
	var found bool
	for _, unit := range stored {
		if unit.Name == "Security" {
			found = true
			assert.Equal(t, unit.ID, units[0].ID)
		}
	}
	assert.True(t, found)
}
