package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/bazaar-ticketing/internal/events"
)

// ActivityService writes an audit line for every domain event.
type ActivityService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewActivityService creates the service.
func NewActivityService(dispatcher events.Dispatcher, logger *zap.Logger) *ActivityService {
	return &ActivityService{
		dispatcher: dispatcher,
		logger:     logger.Named("activity"),
	}
}

// RegisterHandlers subscribes to events.
func (a *ActivityService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventTicketCreated, a.handleTicketEvent)
	a.dispatcher.Subscribe(events.EventTicketStatusChanged, a.handleTicketEvent)
	a.dispatcher.Subscribe(events.EventTicketPriorityChanged, a.handleTicketEvent)
	a.dispatcher.Subscribe(events.EventTicketEstimateChanged, a.handleTicketEvent)
	a.dispatcher.Subscribe(events.EventTicketCommentAdded, a.handleTicketEvent)
	a.dispatcher.Subscribe(events.EventTicketImagesAdded, a.handleTicketEvent)
	a.dispatcher.Subscribe(events.EventMarketReportSubmitted, a.handleReportEvent)
	a.dispatcher.Subscribe(events.EventWeeklyReportCleared, a.handleReportEvent)
}

func (a *ActivityService) handleTicketEvent(_ context.Context, event events.Event) error {
	a.logger.Info(string(event.Type), append(eventFields(event), zap.String("ticket_id", event.SubjectID))...)
	return nil
}

func (a *ActivityService) handleReportEvent(_ context.Context, event events.Event) error {
	a.logger.Info(string(event.Type), append(eventFields(event), zap.String("subject_id", event.SubjectID))...)
	return nil
}

func eventFields(event events.Event) []zap.Field {
	return []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("actor_id", event.Actor.UserID),
		zap.String("actor_role", string(event.Actor.Role)),
		zap.Time("at", event.Timestamp),
		zap.Any("payload", event.Payload),
	}
}
