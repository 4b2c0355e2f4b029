package events

import (
	"time"

	"github.com/spec-kit/bazaar-ticketing/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated         EventType = "ticket_created"
	EventTicketStatusChanged   EventType = "ticket_status_changed"
	EventTicketPriorityChanged EventType = "ticket_priority_changed"
	EventTicketEstimateChanged EventType = "ticket_estimate_changed"
	EventTicketCommentAdded    EventType = "ticket_comment_added"
	EventTicketImagesAdded     EventType = "ticket_images_added"
	EventMarketReportSubmitted EventType = "market_report_submitted"
	EventWeeklyReportCleared   EventType = "weekly_report_cleared"
)

// Actor identifies the user behind an event.
type Actor struct {
	UserID string      `json:"user_id"`
	Role   domain.Role `json:"role"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	SubjectID string      `json:"subject_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	CustomID   int64                 `json:"custom_id"`
	AssignedTo domain.UnitRef        `json:"assigned_to"`
	Priority   domain.TicketPriority `json:"priority"`
	Title      string                `json:"title"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// TicketPriorityChangedPayload payload.
type TicketPriorityChangedPayload struct {
	OldPriority domain.TicketPriority `json:"old_priority"`
	NewPriority domain.TicketPriority `json:"new_priority"`
}

// TicketEstimateChangedPayload payload.
type TicketEstimateChangedPayload struct {
	EstimatedResolutionTime *time.Time `json:"estimated_resolution_time"`
}

// TicketCommentAddedPayload payload.
type TicketCommentAddedPayload struct {
	CommentID   string `json:"comment_id"`
	BodyPreview string `json:"body_preview"`
}

// TicketImagesAddedPayload payload.
type TicketImagesAddedPayload struct {
	Added int `json:"added"`
	Total int `json:"total"`
}

// MarketReportSubmittedPayload payload.
type MarketReportSubmittedPayload struct {
	Period   time.Time `json:"period"`
	MarketID string    `json:"market_id"`
}

// WeeklyReportClearedPayload payload.
type WeeklyReportClearedPayload struct {
	Period       time.Time           `json:"period"`
	Role         domain.ReviewerRole `json:"role"`
	FullyCleared bool                `json:"fully_cleared"`
}
