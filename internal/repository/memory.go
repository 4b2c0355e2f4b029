package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/bazaar-ticketing/internal/domain"
)

// keyedMutex hands out one lock per key so unrelated keys never contend.
type keyedMutex struct {
	locks sync.Map
}

func (k *keyedMutex) lock(key string) func() {
	value, _ := k.locks.LoadOrStore(key, &sync.Mutex{})
	mu := value.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// MemoryUnitRepository keeps departments and markets in process memory.
type MemoryUnitRepository struct {
	mu    sync.RWMutex
	units map[string]domain.OrganizationalUnit
}

// NewMemoryUnitRepository builds an empty unit store.
func NewMemoryUnitRepository() *MemoryUnitRepository {
	return &MemoryUnitRepository{units: make(map[string]domain.OrganizationalUnit)}
}

func (r *MemoryUnitRepository) Create(_ context.Context, unit *domain.OrganizationalUnit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.units {
		if existing.Kind == unit.Kind && existing.Name == unit.Name {
			return ErrDuplicateUnit
		}
	}
	if unit.ID == "" {
		unit.ID = uuid.NewString()
	}
	now := time.Now()
	unit.CreatedAt, unit.UpdatedAt = now, now
	r.units[unit.ID] = *unit
	return nil
}

func (r *MemoryUnitRepository) GetByID(_ context.Context, id string) (*domain.OrganizationalUnit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	unit, ok := r.units[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &unit, nil
}

func (r *MemoryUnitRepository) ListByIDs(_ context.Context, ids []string) ([]domain.OrganizationalUnit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.OrganizationalUnit
	for _, id := range ids {
		if unit, ok := r.units[id]; ok {
			result = append(result, unit)
		}
	}
	return result, nil
}

func (r *MemoryUnitRepository) ListByKind(_ context.Context, kind domain.UnitKind) ([]domain.OrganizationalUnit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.OrganizationalUnit
	for _, unit := range r.units {
		if unit.Kind == kind {
			result = append(result, unit)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// MemoryUserRepository keeps users in process memory.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]domain.User
}

// NewMemoryUserRepository builds an empty user store.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]domain.User)}
}

func (r *MemoryUserRepository) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now()
	user.CreatedAt, user.UpdatedAt = now, now
	r.users[user.ID] = *user
	return nil
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &user, nil
}

func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.users {
		if strings.EqualFold(user.Email, email) {
			u := user
			return &u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *MemoryUserRepository) ListByIDs(_ context.Context, ids []string) ([]domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.User
	for _, id := range ids {
		if user, ok := r.users[id]; ok {
			result = append(result, user)
		}
	}
	return result, nil
}

// MemoryTicketRepository stores tickets in process memory. Custom ids are
// allocated under the store lock; mutations lock only the ticket they touch.
type MemoryTicketRepository struct {
	mu       sync.RWMutex
	tickets  map[string]*domain.Ticket
	byCustom map[int64]string
	lastID   int64
	ticketMu keyedMutex
}

// NewMemoryTicketRepository builds an empty ticket store.
func NewMemoryTicketRepository() *MemoryTicketRepository {
	return &MemoryTicketRepository{
		tickets:  make(map[string]*domain.Ticket),
		byCustom: make(map[int64]string),
	}
}

func (r *MemoryTicketRepository) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.lastID + 1
	if _, taken := r.byCustom[next]; taken {
		return ErrCustomIDConflict
	}
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	ticket.CustomID = next
	r.lastID = next
	r.tickets[ticket.ID] = ticket.Clone()
	r.byCustom[next] = ticket.ID
	return nil
}

func (r *MemoryTicketRepository) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return ticket.Clone(), nil
}

func (r *MemoryTicketRepository) GetByCustomID(ctx context.Context, customID int64) (*domain.Ticket, error) {
	r.mu.RLock()
	id, ok := r.byCustom[customID]
	r.mu.RUnlock()
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return r.GetByID(ctx, id)
}

func (r *MemoryTicketRepository) List(_ context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	r.mu.RLock()
	var result []domain.Ticket
	for _, ticket := range r.tickets {
		if matchesFilter(ticket, filter) {
			result = append(result, *ticket.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CustomID > result[j].CustomID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []domain.Ticket{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (r *MemoryTicketRepository) Mutate(ctx context.Context, id string, fn TicketMutation) (*domain.Ticket, error) {
	unlock := r.ticketMu.lock(id)
	defer unlock()

	ticket, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(ticket); err != nil {
		return nil, err
	}
	for i := range ticket.Comments {
		if ticket.Comments[i].ID == "" {
			ticket.Comments[i].ID = uuid.NewString()
		}
	}

	r.mu.Lock()
	r.tickets[id] = ticket.Clone()
	r.mu.Unlock()
	return ticket, nil
}

func matchesFilter(ticket *domain.Ticket, filter TicketFilter) bool {
	if filter.CreatedBy != nil && ticket.CreatedBy != *filter.CreatedBy {
		return false
	}
	if filter.AssignedTo != nil && ticket.AssignedTo != *filter.AssignedTo {
		return false
	}
	if len(filter.Statuses) > 0 {
		found := false
		for _, status := range filter.Statuses {
			if ticket.Status == status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.CreatedFrom != nil && ticket.CreatedAt.Before(*filter.CreatedFrom) {
		return false
	}
	if filter.CreatedTo != nil && ticket.CreatedAt.After(*filter.CreatedTo) {
		return false
	}
	return true
}

// MemoryReportRepository stores weekly reports in process memory.
type MemoryReportRepository struct {
	mu       sync.RWMutex
	reports  map[string]*domain.WeeklyReport
	periodMu keyedMutex
}

// NewMemoryReportRepository builds an empty report store.
func NewMemoryReportRepository() *MemoryReportRepository {
	return &MemoryReportRepository{reports: make(map[string]*domain.WeeklyReport)}
}

func (r *MemoryReportRepository) GetByPeriod(_ context.Context, period time.Time) (*domain.WeeklyReport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	report, ok := r.reports[periodKey(period)]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return report.Clone(), nil
}

func (r *MemoryReportRepository) Mutate(_ context.Context, period time.Time, fn ReportMutation) (*domain.WeeklyReport, error) {
	period = period.UTC()
	key := periodKey(period)
	unlock := r.periodMu.lock(key)
	defer unlock()

	r.mu.RLock()
	stored, ok := r.reports[key]
	r.mu.RUnlock()

	var report *domain.WeeklyReport
	if ok {
		report = stored.Clone()
	} else {
		now := time.Now()
		report = &domain.WeeklyReport{Period: period, CreatedAt: now, UpdatedAt: now}
	}
	if err := fn(report); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.reports[key] = report.Clone()
	r.mu.Unlock()
	return report, nil
}

func periodKey(period time.Time) string {
	return period.UTC().Format(time.DateOnly)
}
