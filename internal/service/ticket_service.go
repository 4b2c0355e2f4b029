package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/bazaar-ticketing/internal/domain"
	"github.com/spec-kit/bazaar-ticketing/internal/events"
	"github.com/spec-kit/bazaar-ticketing/internal/repository"
	"github.com/spec-kit/bazaar-ticketing/pkg/util/errorutil"
)

const defaultIDMaxRetries = 5

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets    repository.TicketRepository
	users      repository.UserRepository
	directory  *DirectoryService
	dispatcher events.Dispatcher
	maxRetries int
	now        func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo   repository.TicketRepository
	UserRepo     repository.UserRepository
	Directory    *DirectoryService
	Dispatcher   events.Dispatcher
	IDMaxRetries int
	Clock        func() time.Time
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title                   string
	Description             string
	AssignedTo              domain.UnitRef
	Priority                domain.TicketPriority
	EstimatedResolutionTime *time.Time
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	maxRetries := deps.IDMaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultIDMaxRetries
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		users:      deps.UserRepo,
		directory:  deps.Directory,
		dispatcher: deps.Dispatcher,
		maxRetries: maxRetries,
		now:        clock,
	}
}

// Create files a new ticket on behalf of caller and assigns it the next custom id.
func (s *TicketService) Create(ctx context.Context, caller *domain.User, input TicketCreateInput) (*domain.Ticket, error) {
	if caller == nil {
		return nil, errorutil.NewUnauthorized("authentication required")
	}
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	problems := map[string]any{}
	if title == "" {
		problems["title"] = "required"
	}
	if description == "" {
		problems["description"] = "required"
	}
	if !input.Priority.Valid() {
		problems["priority"] = "unknown priority"
	}
	if len(problems) > 0 {
		return nil, errorutil.NewValidationError("invalid ticket", problems)
	}

	unit, err := s.directory.Resolve(ctx, input.AssignedTo)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		now := s.now()
		ticket := &domain.Ticket{
			Title:                   title,
			Description:             description,
			AssignedTo:              unit.Ref(),
			Priority:                input.Priority,
			Status:                  domain.TicketStatusOpen,
			CreatedBy:               caller.ID,
			CreatedAt:               now,
			UpdatedAt:               now,
			EstimatedResolutionTime: input.EstimatedResolutionTime,
		}
		err := s.tickets.Create(ctx, ticket)
		if errors.Is(err, repository.ErrCustomIDConflict) {
			lastErr = err
			continue
		}
		if err != nil {
			return nil, err
		}

		s.publishEvent(ctx, caller, events.Event{
			Type:      events.EventTicketCreated,
			SubjectID: ticket.ID,
			Payload: events.TicketCreatedPayload{
				CustomID:   ticket.CustomID,
				AssignedTo: ticket.AssignedTo,
				Priority:   ticket.Priority,
				Title:      ticket.Title,
			},
		})
		return ticket, nil
	}
	return nil, errorutil.NewAllocationError(s.maxRetries, lastErr)
}

// Get returns a single ticket visible to caller.
func (s *TicketService) Get(ctx context.Context, caller *domain.User, ticketID string) (*domain.Ticket, error) {
	if caller == nil {
		return nil, errorutil.NewUnauthorized("authentication required")
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, ticketError(err, ticketID)
	}
	if !canAccessTicket(caller, ticket) {
		return nil, errorutil.NewForbidden("ticket not visible to caller")
	}
	return ticket, nil
}

// GetByCustomID looks a ticket up by its sequential number. Superadmin only.
func (s *TicketService) GetByCustomID(ctx context.Context, caller *domain.User, customID int64) (*domain.Ticket, error) {
	if caller == nil {
		return nil, errorutil.NewUnauthorized("authentication required")
	}
	if !caller.IsSuperAdmin() {
		return nil, errorutil.NewForbidden("superadmin role required")
	}
	ticket, err := s.tickets.GetByCustomID(ctx, customID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errorutil.NewNotFound("ticket", map[string]any{"custom_id": customID})
		}
		return nil, err
	}
	return ticket, nil
}

// UpdateStatus moves a ticket along its lifecycle.
func (s *TicketService) UpdateStatus(ctx context.Context, caller *domain.User, ticketID string, next domain.TicketStatus) (*domain.Ticket, error) {
	if !next.Valid() {
		return nil, errorutil.NewValidationError("unknown status", map[string]any{"status": next})
	}
	var previous domain.TicketStatus
	ticket, err := s.mutate(ctx, caller, ticketID, canManageTicket, func(t *domain.Ticket) error {
		previous = t.Status
		if err := t.Transition(next, s.now()); err != nil {
			return errorutil.NewInvalidTransition(string(t.Status), string(next))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if previous != next {
		s.publishEvent(ctx, caller, events.Event{
			Type:      events.EventTicketStatusChanged,
			SubjectID: ticket.ID,
			Payload:   events.TicketStatusChangedPayload{OldStatus: previous, NewStatus: next},
		})
	}
	return ticket, nil
}

// SetPriority changes the ticket priority independently of its status.
func (s *TicketService) SetPriority(ctx context.Context, caller *domain.User, ticketID string, priority domain.TicketPriority) (*domain.Ticket, error) {
	if !priority.Valid() {
		return nil, errorutil.NewValidationError("unknown priority", map[string]any{"priority": priority})
	}
	var previous domain.TicketPriority
	ticket, err := s.mutate(ctx, caller, ticketID, canManageTicket, func(t *domain.Ticket) error {
		previous = t.Priority
		t.Priority = priority
		t.Touch(s.now())
		return nil
	})
	if err != nil {
		return nil, err
	}
	if previous != priority {
		s.publishEvent(ctx, caller, events.Event{
			Type:      events.EventTicketPriorityChanged,
			SubjectID: ticket.ID,
			Payload:   events.TicketPriorityChangedPayload{OldPriority: previous, NewPriority: priority},
		})
	}
	return ticket, nil
}

// SetEstimatedResolution records when the ticket is expected to be resolved. Nil clears it.
func (s *TicketService) SetEstimatedResolution(ctx context.Context, caller *domain.User, ticketID string, at *time.Time) (*domain.Ticket, error) {
	ticket, err := s.mutate(ctx, caller, ticketID, canManageTicket, func(t *domain.Ticket) error {
		if at == nil {
			t.EstimatedResolutionTime = nil
		} else {
			estimate := at.UTC()
			t.EstimatedResolutionTime = &estimate
		}
		t.Touch(s.now())
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publishEvent(ctx, caller, events.Event{
		Type:      events.EventTicketEstimateChanged,
		SubjectID: ticket.ID,
		Payload:   events.TicketEstimateChangedPayload{EstimatedResolutionTime: ticket.EstimatedResolutionTime},
	})
	return ticket, nil
}

// AppendComment adds a comment to the end of the ticket's ledger.
func (s *TicketService) AppendComment(ctx context.Context, caller *domain.User, ticketID, text string) (*domain.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errorutil.NewValidationError("comment text required", map[string]any{"text": "required"})
	}
	var index int
	ticket, err := s.mutate(ctx, caller, ticketID, canAccessTicket, func(t *domain.Ticket) error {
		t.AppendComment(domain.Comment{
			Text:        text,
			CommentedBy: caller.ID,
			CreatedAt:   s.now(),
		})
		index = len(t.Comments) - 1
		return nil
	})
	if err != nil {
		return nil, err
	}
	comment := ticket.Comments[index]
	s.publishEvent(ctx, caller, events.Event{
		Type:      events.EventTicketCommentAdded,
		SubjectID: ticket.ID,
		Payload: events.TicketCommentAddedPayload{
			CommentID:   comment.ID,
			BodyPreview: stringPreview(comment.Text, 120),
		},
	})
	return &comment, nil
}

// AddImages records asset references on the ticket. Duplicates are ignored.
func (s *TicketService) AddImages(ctx context.Context, caller *domain.User, ticketID string, refs []string) (*domain.Ticket, error) {
	if len(uniqueStrings(refs)) == 0 {
		return nil, errorutil.NewValidationError("at least one image reference required", nil)
	}
	var added int
	ticket, err := s.mutate(ctx, caller, ticketID, canAccessTicket, func(t *domain.Ticket) error {
		added = t.AddImages(refs, s.now())
		return nil
	})
	if err != nil {
		return nil, err
	}
	if added > 0 {
		s.publishEvent(ctx, caller, events.Event{
			Type:      events.EventTicketImagesAdded,
			SubjectID: ticket.ID,
			Payload:   events.TicketImagesAddedPayload{Added: added, Total: len(ticket.Images)},
		})
	}
	return ticket, nil
}

type ticketGuard func(caller *domain.User, ticket *domain.Ticket) bool

func (s *TicketService) mutate(ctx context.Context, caller *domain.User, ticketID string, allowed ticketGuard, fn repository.TicketMutation) (*domain.Ticket, error) {
	if caller == nil {
		return nil, errorutil.NewUnauthorized("authentication required")
	}
	ticket, err := s.tickets.Mutate(ctx, ticketID, func(t *domain.Ticket) error {
		if !allowed(caller, t) {
			return errorutil.NewForbidden("caller may not modify this ticket")
		}
		return fn(t)
	})
	if err != nil {
		return nil, ticketError(err, ticketID)
	}
	return ticket, nil
}

// canAccessTicket allows the creator, members of the assigned unit and admins.
func canAccessTicket(caller *domain.User, ticket *domain.Ticket) bool {
	return ticket.CreatedBy == caller.ID || canManageTicket(caller, ticket)
}

// canManageTicket allows members of the assigned unit and admins.
func canManageTicket(caller *domain.User, ticket *domain.Ticket) bool {
	if caller.IsAdmin() {
		return true
	}
	return !caller.AssignedTo.IsZero() && caller.AssignedTo == ticket.AssignedTo
}

func ticketError(err error, ticketID string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return errorutil.NewNotFound("ticket", map[string]any{"id": ticketID})
	}
	return err
}

func (s *TicketService) publishEvent(ctx context.Context, caller *domain.User, event events.Event) {
	publish(ctx, s.dispatcher, caller, s.now(), event)
}

func publish(ctx context.Context, dispatcher events.Dispatcher, caller *domain.User, now time.Time, event events.Event) {
	if dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = now
	}
	if caller != nil {
		event.Actor = events.Actor{UserID: caller.ID, Role: caller.Role}
	}
	_ = dispatcher.Publish(ctx, event)
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	if max <= 3 {
		return body[:max]
	}
	return body[:max-3] + "..."
}
