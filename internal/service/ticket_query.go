package service

import (
	"context"
	"time"

	"github.com/spec-kit/bazaar-ticketing/internal/domain"
	"github.com/spec-kit/bazaar-ticketing/internal/repository"
	"github.com/spec-kit/bazaar-ticketing/pkg/util/errorutil"
)

// TicketQueryType selects which side of a ticket the caller is on.
type TicketQueryType string

const (
	TicketQueryCreated  TicketQueryType = "created"
	TicketQueryAssigned TicketQueryType = "assigned"
)

// TicketQuery filters the caller's tickets by creation date.
// Both dates are calendar days; EndDate covers the whole day.
type TicketQuery struct {
	StartDate  *time.Time
	EndDate    *time.Time
	TicketType TicketQueryType
	Statuses   []domain.TicketStatus
	Limit      int
	Offset     int
}

// UserSummary is the hydrated view of a user referenced by a ticket.
type UserSummary struct {
	ID             string
	Name           string
	AssignedTo     domain.UnitRef
	AssignedToName string
}

// CommentView is a comment with its author resolved.
type CommentView struct {
	ID          string
	Text        string
	CommentedBy UserSummary
	CreatedAt   time.Time
}

// TicketView is the read model handed to transports and exporters.
type TicketView struct {
	ID                      string
	CustomID                int64
	Title                   string
	Description             string
	AssignedTo              domain.UnitRef
	AssignedToName          string
	Priority                domain.TicketPriority
	Status                  domain.TicketStatus
	CreatedBy               UserSummary
	CreatedAt               time.Time
	InProgressAt            *time.Time
	ResolvedAt              *time.Time
	ClosedAt                *time.Time
	EstimatedResolutionTime *time.Time
	UpdatedAt               time.Time
	Comments                []CommentView
	Images                  []string
	ResolvedIn              *int64
}

// Query lists the caller's created or assigned tickets, newest first.
func (s *TicketService) Query(ctx context.Context, caller *domain.User, query TicketQuery) ([]TicketView, error) {
	if caller == nil {
		return nil, errorutil.NewUnauthorized("authentication required")
	}
	filter, err := buildTicketFilter(caller, query)
	if err != nil {
		return nil, err
	}
	tickets, err := s.tickets.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return s.Hydrate(ctx, tickets)
}

func buildTicketFilter(caller *domain.User, query TicketQuery) (repository.TicketFilter, error) {
	filter := repository.TicketFilter{
		Statuses: query.Statuses,
		Limit:    query.Limit,
		Offset:   query.Offset,
	}
	switch query.TicketType {
	case TicketQueryCreated:
		id := caller.ID
		filter.CreatedBy = &id
	case TicketQueryAssigned:
		if caller.AssignedTo.IsZero() {
			return filter, errorutil.NewValidationError("caller has no assigned unit", nil)
		}
		ref := caller.AssignedTo
		filter.AssignedTo = &ref
	default:
		return filter, errorutil.NewValidationError("unknown ticket type", map[string]any{"ticket_type": query.TicketType})
	}
	for _, status := range query.Statuses {
		if !status.Valid() {
			return filter, errorutil.NewValidationError("unknown status", map[string]any{"status": status})
		}
	}

	if query.StartDate != nil && query.EndDate != nil && startOfDay(*query.StartDate).After(startOfDay(*query.EndDate)) {
		return filter, errorutil.NewInvalidRange("start date is after end date", map[string]any{
			"start_date": query.StartDate.Format(time.DateOnly),
			"end_date":   query.EndDate.Format(time.DateOnly),
		})
	}
	if query.StartDate != nil {
		from := startOfDay(*query.StartDate)
		filter.CreatedFrom = &from
	}
	if query.EndDate != nil {
		to := endOfDay(*query.EndDate)
		filter.CreatedTo = &to
	}
	return filter, nil
}

// Hydrate resolves user and unit names for tickets in bulk.
func (s *TicketService) Hydrate(ctx context.Context, tickets []domain.Ticket) ([]TicketView, error) {
	views := make([]TicketView, 0, len(tickets))
	if len(tickets) == 0 {
		return views, nil
	}

	var userIDs []string
	for i := range tickets {
		userIDs = append(userIDs, tickets[i].CreatedBy)
		for _, c := range tickets[i].Comments {
			userIDs = append(userIDs, c.CommentedBy)
		}
	}
	users, err := s.users.ListByIDs(ctx, uniqueStrings(userIDs))
	if err != nil {
		return nil, err
	}
	byUser := make(map[string]domain.User, len(users))
	unitIDs := make([]string, 0, len(users)+len(tickets))
	for _, user := range users {
		byUser[user.ID] = user
		unitIDs = append(unitIDs, user.AssignedTo.ID)
	}
	for i := range tickets {
		unitIDs = append(unitIDs, tickets[i].AssignedTo.ID)
	}
	unitNames, err := s.directory.Names(ctx, unitIDs)
	if err != nil {
		return nil, err
	}

	summary := func(id string) UserSummary {
		user, ok := byUser[id]
		if !ok {
			return UserSummary{ID: id}
		}
		return UserSummary{
			ID:             user.ID,
			Name:           user.Name,
			AssignedTo:     user.AssignedTo,
			AssignedToName: unitNames[user.AssignedTo.ID],
		}
	}

	for i := range tickets {
		t := &tickets[i]
		view := TicketView{
			ID:                      t.ID,
			CustomID:                t.CustomID,
			Title:                   t.Title,
			Description:             t.Description,
			AssignedTo:              t.AssignedTo,
			AssignedToName:          unitNames[t.AssignedTo.ID],
			Priority:                t.Priority,
			Status:                  t.Status,
			CreatedBy:               summary(t.CreatedBy),
			CreatedAt:               t.CreatedAt,
			InProgressAt:            t.InProgressAt,
			ResolvedAt:              t.ResolvedAt,
			ClosedAt:                t.ClosedAt,
			EstimatedResolutionTime: t.EstimatedResolutionTime,
			UpdatedAt:               t.UpdatedAt,
			Comments:                make([]CommentView, 0, len(t.Comments)),
			Images:                  append([]string{}, t.Images...),
			ResolvedIn:              domain.ResolvedIn(t),
		}
		for _, c := range t.Comments {
			author := summary(c.CommentedBy)
			view.Comments = append(view.Comments, CommentView{
				ID:          c.ID,
				Text:        c.Text,
				CommentedBy: UserSummary{ID: author.ID, Name: author.Name},
				CreatedAt:   c.CreatedAt,
			})
		}
		views = append(views, view)
	}
	return views, nil
}

// View hydrates a single ticket.
func (s *TicketService) View(ctx context.Context, ticket *domain.Ticket) (*TicketView, error) {
	views, err := s.Hydrate(ctx, []domain.Ticket{*ticket})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func endOfDay(t time.Time) time.Time {
	return startOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}
