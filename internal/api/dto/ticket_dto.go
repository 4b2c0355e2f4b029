package dto

import (
	"time"

	"github.com/spec-kit/bazaar-ticketing/internal/domain"
	"github.com/spec-kit/bazaar-ticketing/internal/service"
)

// UnitRefRequest names a department or market.
type UnitRefRequest struct {
	ID   string `json:"id" validate:"required"`
	Kind string `json:"kind" validate:"required,oneof=Department Market"`
}

// Ref converts the payload into a domain reference.
func (r UnitRefRequest) Ref() domain.UnitRef {
	return domain.UnitRef{ID: r.ID, Kind: domain.UnitKind(r.Kind)}
}

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title                   string         `json:"title" validate:"required,max=200"`
	Description             string         `json:"description" validate:"required,max=5000"`
	AssignedTo              UnitRefRequest `json:"assigned_to"`
	Priority                string         `json:"priority" validate:"omitempty,oneof=low medium high critical"`
	EstimatedResolutionTime *time.Time     `json:"estimated_resolution_time"`
}

// TicketQueryRequest filters the caller's tickets. Dates are YYYY-MM-DD.
type TicketQueryRequest struct {
	StartDate  string   `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate    string   `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	TicketType string   `json:"ticket_type" validate:"required,oneof=created assigned"`
	Statuses   []string `json:"statuses" validate:"omitempty,dive,oneof=open in-progress resolved closed"`
	Limit      int      `json:"limit" validate:"omitempty,min=1,max=500"`
	Offset     int      `json:"offset" validate:"omitempty,min=0"`
}

// Query converts the payload into a service query. Call after validation.
func (r TicketQueryRequest) Query() service.TicketQuery {
	query := service.TicketQuery{
		TicketType: service.TicketQueryType(r.TicketType),
		Limit:      r.Limit,
		Offset:     r.Offset,
		StartDate:  parseDate(r.StartDate),
		EndDate:    parseDate(r.EndDate),
	}
	for _, status := range r.Statuses {
		query.Statuses = append(query.Statuses, domain.TicketStatus(status))
	}
	return query
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=open in-progress resolved closed"`
}

// UpdatePriorityRequest payload. An empty priority unsets it.
type UpdatePriorityRequest struct {
	Priority string `json:"priority" validate:"omitempty,oneof=low medium high critical"`
}

// UpdateEstimateRequest payload. Null clears the estimate.
type UpdateEstimateRequest struct {
	EstimatedResolutionTime *time.Time `json:"estimated_resolution_time"`
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Text string `json:"text" validate:"required,max=2000"`
}

// ExportTicketsRequest selects tickets for a spreadsheet export.
type ExportTicketsRequest = TicketQueryRequest

// UnitRefResponse is a resolved unit reference.
type UnitRefResponse struct {
	ID   string          `json:"id"`
	Kind domain.UnitKind `json:"kind"`
	Name string          `json:"name,omitempty"`
}

// UserSummaryResponse describes a ticket creator or commenter.
type UserSummaryResponse struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	AssignedTo *UnitRefResponse `json:"assigned_to,omitempty"`
}

// CommentResponse is one ledger entry.
type CommentResponse struct {
	ID          string              `json:"id"`
	Text        string              `json:"text"`
	CommentedBy UserSummaryResponse `json:"commented_by"`
	CreatedAt   time.Time           `json:"created_at"`
}

// TicketResponse is the hydrated ticket.
type TicketResponse struct {
	ID                      string                `json:"id"`
	CustomID                int64                 `json:"custom_id"`
	Title                   string                `json:"title"`
	Description             string                `json:"description"`
	AssignedTo              UnitRefResponse       `json:"assigned_to"`
	Priority                domain.TicketPriority `json:"priority"`
	Status                  domain.TicketStatus   `json:"status"`
	CreatedBy               UserSummaryResponse   `json:"created_by"`
	CreatedAt               time.Time             `json:"created_at"`
	UpdatedAt               time.Time             `json:"updated_at"`
	InProgressAt            *time.Time            `json:"in_progress_at"`
	ResolvedAt              *time.Time            `json:"resolved_at"`
	ClosedAt                *time.Time            `json:"closed_at"`
	EstimatedResolutionTime *time.Time            `json:"estimated_resolution_time"`
	ResolvedIn              *int64                `json:"resolved_in"`
	Comments                []CommentResponse     `json:"comments"`
	Images                  []string              `json:"images"`
}

// NewTicketResponse maps a hydrated view to its wire form.
func NewTicketResponse(view service.TicketView) TicketResponse {
	resp := TicketResponse{
		ID:          view.ID,
		CustomID:    view.CustomID,
		Title:       view.Title,
		Description: view.Description,
		AssignedTo: UnitRefResponse{
			ID:   view.AssignedTo.ID,
			Kind: view.AssignedTo.Kind,
			Name: view.AssignedToName,
		},
		Priority:                view.Priority,
		Status:                  view.Status,
		CreatedBy:               newUserSummary(view.CreatedBy),
		CreatedAt:               view.CreatedAt,
		UpdatedAt:               view.UpdatedAt,
		InProgressAt:            view.InProgressAt,
		ResolvedAt:              view.ResolvedAt,
		ClosedAt:                view.ClosedAt,
		EstimatedResolutionTime: view.EstimatedResolutionTime,
		ResolvedIn:              view.ResolvedIn,
		Comments:                make([]CommentResponse, 0, len(view.Comments)),
		Images:                  view.Images,
	}
	if resp.Images == nil {
		resp.Images = []string{}
	}
	for _, c := range view.Comments {
		resp.Comments = append(resp.Comments, CommentResponse{
			ID:          c.ID,
			Text:        c.Text,
			CommentedBy: newUserSummary(c.CommentedBy),
			CreatedAt:   c.CreatedAt,
		})
	}
	return resp
}

// NewTicketResponses maps a list of views.
func NewTicketResponses(views []service.TicketView) []TicketResponse {
	out := make([]TicketResponse, 0, len(views))
	for _, view := range views {
		out = append(out, NewTicketResponse(view))
	}
	return out
}

// NewCommentResponse maps a freshly appended comment.
func NewCommentResponse(comment *domain.Comment, author *domain.User) CommentResponse {
	return CommentResponse{
		ID:          comment.ID,
		Text:        comment.Text,
		CommentedBy: UserSummaryResponse{ID: author.ID, Name: author.Name},
		CreatedAt:   comment.CreatedAt,
	}
}

func newUserSummary(u service.UserSummary) UserSummaryResponse {
	resp := UserSummaryResponse{ID: u.ID, Name: u.Name}
	if !u.AssignedTo.IsZero() {
		resp.AssignedTo = &UnitRefResponse{ID: u.AssignedTo.ID, Kind: u.AssignedTo.Kind, Name: u.AssignedToName}
	}
	return resp
}

func parseDate(value string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return nil
	}
	return &t
}
