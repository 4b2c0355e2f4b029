package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/bazaar-ticketing/internal/cache"
	"github.com/spec-kit/bazaar-ticketing/internal/config"
	"github.com/spec-kit/bazaar-ticketing/internal/domain"
	"github.com/spec-kit/bazaar-ticketing/internal/events"
	"github.com/spec-kit/bazaar-ticketing/internal/repository"
)

// stepClock returns a time that advances by step on every call.
type stepClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func newStepClock(start time.Time, step time.Duration) *stepClock {
	return &stepClock{now: start, step: step}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}

type fixture struct {
	units      *repository.MemoryUnitRepository
	users      *repository.MemoryUserRepository
	tickets    *repository.MemoryTicketRepository
	reports    *repository.MemoryReportRepository
	directory  *DirectoryService
	dispatcher events.Dispatcher
	clock      *stepClock

	itDept         domain.OrganizationalUnit
	monitoringDept domain.OrganizationalUnit
	operationsDept domain.OrganizationalUnit
	marketA        domain.OrganizationalUnit
	marketB        domain.OrganizationalUnit

	marketUser    *domain.User
	otherMarketer *domain.User
	itReviewer    *domain.User
	monitor       *domain.User
	operator      *domain.User
	admin         *domain.User
	superAdmin    *domain.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{
		units:      repository.NewMemoryUnitRepository(),
		users:      repository.NewMemoryUserRepository(),
		tickets:    repository.NewMemoryTicketRepository(),
		reports:    repository.NewMemoryReportRepository(),
		dispatcher: events.NewInMemoryDispatcher(),
		clock:      newStepClock(time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC), time.Minute),
	}
	f.directory = NewDirectoryService(f.units)

	unit := func(name string, kind domain.UnitKind) domain.OrganizationalUnit {
		u := domain.OrganizationalUnit{Name: name, Kind: kind}
		require.NoError(t, f.units.Create(ctx, &u))
		return u
	}
	f.itDept = unit("IT", domain.UnitKindDepartment)
	f.monitoringDept = unit("Monitoring", domain.UnitKindDepartment)
	f.operationsDept = unit("Operations", domain.UnitKindDepartment)
	f.marketA = unit("Market A", domain.UnitKindMarket)
	f.marketB = unit("Market B", domain.UnitKindMarket)

	user := func(name string, role domain.Role, unit domain.OrganizationalUnit) *domain.User {
		u := &domain.User{Name: name, Email: name + "@example.com", Role: role, AssignedTo: unit.Ref()}
		require.NoError(t, f.users.Create(ctx, u))
		return u
	}
	f.marketUser = user("marketer", domain.RoleUser, f.marketA)
	f.otherMarketer = user("other", domain.RoleUser, f.marketB)
	f.itReviewer = user("it", domain.RoleUser, f.itDept)
	f.monitor = user("monitor", domain.RoleUser, f.monitoringDept)
	f.operator = user("operator", domain.RoleUser, f.operationsDept)
	f.admin = user("admin", domain.RoleAdmin, f.itDept)
	f.superAdmin = user("root", domain.RoleSuperAdmin, f.itDept)
	return f
}

func (f *fixture) ticketService(repo repository.TicketRepository) *TicketService {
	if repo == nil {
		repo = f.tickets
	}
	return NewTicketService(TicketDependencies{
		TicketRepo: repo,
		UserRepo:   f.users,
		Directory:  f.directory,
		Dispatcher: f.dispatcher,
		Clock:      f.clock.Now,
	})
}

func (f *fixture) reportService(store cache.Cache) *ReportService {
	return NewReportService(ReportDependencies{
		ReportRepo: f.reports,
		Directory:  f.directory,
		Cache:      store,
		Dispatcher: f.dispatcher,
		Config: config.ReportsConfig{
			ITDepartment:         "IT",
			MonitoringDepartment: "Monitoring",
			OperationsDepartment: "Operations",
			CacheTTLSeconds:      60,
		},
		Clock: f.clock.Now,
	})
}
