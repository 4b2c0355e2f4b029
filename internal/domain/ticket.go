package domain

import (
	"errors"
	"time"
)

// ErrInvalidStatusTransition is returned when a status change skips or reverses the lifecycle.
var ErrInvalidStatusTransition = errors.New("invalid status transition")

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in-progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

// TicketPriority enumerates urgency. The empty value means unset.
type TicketPriority string

const (
	TicketPriorityUnset    TicketPriority = ""
	TicketPriorityLow      TicketPriority = "low"
	TicketPriorityMedium   TicketPriority = "medium"
	TicketPriorityHigh     TicketPriority = "high"
	TicketPriorityCritical TicketPriority = "critical"
)

// Valid reports whether p is a known priority, including unset.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityUnset, TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityCritical:
		return true
	}
	return false
}

// Comment is an immutable entry in a ticket's comment ledger.
type Comment struct {
	ID          string
	Text        string
	CommentedBy string
	CreatedAt   time.Time
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID                      string
	CustomID                int64
	Title                   string
	Description             string
	AssignedTo              UnitRef
	Priority                TicketPriority
	Status                  TicketStatus
	CreatedBy               string
	CreatedAt               time.Time
	InProgressAt            *time.Time
	ResolvedAt              *time.Time
	ClosedAt                *time.Time
	EstimatedResolutionTime *time.Time
	UpdatedAt               time.Time
	Comments                []Comment
	Images                  []string
}

// allowedTransitions lists, per status, the statuses a ticket may move to.
// Re-entering the current status is always accepted and never restamps.
var allowedTransitions = map[TicketStatus][]TicketStatus{
	TicketStatusOpen:       {TicketStatusInProgress},
	TicketStatusInProgress: {TicketStatusResolved},
	TicketStatusResolved:   {TicketStatusClosed},
	TicketStatusClosed:     {},
}

// CanTransition reports whether current may move to next.
func CanTransition(current, next TicketStatus) bool {
	if !next.Valid() {
		return false
	}
	if current == next {
		return true
	}
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Transition moves the ticket to next and stamps the matching timestamp if it is unset.
func (t *Ticket) Transition(next TicketStatus, now time.Time) error {
	if !CanTransition(t.Status, next) {
		return ErrInvalidStatusTransition
	}
	switch next {
	case TicketStatusInProgress:
		t.InProgressAt = stampOnce(t.InProgressAt, now)
	case TicketStatusResolved:
		t.ResolvedAt = stampOnce(t.ResolvedAt, now)
	case TicketStatusClosed:
		t.ClosedAt = stampOnce(t.ClosedAt, now)
	}
	t.Status = next
	t.Touch(now)
	return nil
}

// AppendComment adds c to the end of the comment ledger.
func (t *Ticket) AppendComment(c Comment) {
	t.Comments = append(t.Comments, c)
	t.Touch(c.CreatedAt)
}

// AddImages unions refs into the image set and returns how many were new.
func (t *Ticket) AddImages(refs []string, now time.Time) int {
	seen := make(map[string]struct{}, len(t.Images))
	for _, ref := range t.Images {
		seen[ref] = struct{}{}
	}
	added := 0
	for _, ref := range refs {
		if ref == "" {
			continue
		}
		if _, ok := seen[ref]; ok {
			continue
		}
		seen[ref] = struct{}{}
		t.Images = append(t.Images, ref)
		added++
	}
	t.Touch(now)
	return added
}

// Touch refreshes UpdatedAt without ever moving it backwards.
func (t *Ticket) Touch(now time.Time) {
	if now.After(t.UpdatedAt) {
		t.UpdatedAt = now
	}
}

// Clone returns a deep copy so callers cannot alias stored state.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	cp := *t
	cp.InProgressAt = cloneTime(t.InProgressAt)
	cp.ResolvedAt = cloneTime(t.ResolvedAt)
	cp.ClosedAt = cloneTime(t.ClosedAt)
	cp.EstimatedResolutionTime = cloneTime(t.EstimatedResolutionTime)
	cp.Comments = append([]Comment(nil), t.Comments...)
	cp.Images = append([]string(nil), t.Images...)
	return &cp
}

func stampOnce(current *time.Time, now time.Time) *time.Time {
	if current != nil {
		return current
	}
	stamped := now
	return &stamped
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}
