// Package notification turns domain events into sales notifications.
// Domain modules publish events and never talk to mail providers.
package notification

import (
	"context"

	"smartfinder_backend/internal/email"
	"smartfinder_backend/internal/events"
	leadrepo "smartfinder_backend/internal/leads/repository"
	"smartfinder_backend/internal/scheduler"
	"smartfinder_backend/platform/logger"
)

// Module handles all notification-related event subscriptions.
type Module struct {
	sender       email.Sender
	salesAddress string
	scheduler    scheduler.LeadNotificationScheduler
	leads        leadrepo.LeadReader
	log          *logger.Logger
}

// New creates the notification module. scheduler and leads may be nil:
// without a scheduler, notifications are sent from the event handler.
func New(sender email.Sender, salesAddress string, sched scheduler.LeadNotificationScheduler, leads leadrepo.LeadReader, log *logger.Logger) *Module {
	return &Module{
		sender:       sender,
		salesAddress: salesAddress,
		scheduler:    sched,
		leads:        leads,
		log:          log,
	}
}

// RegisterHandlers subscribes the module to the events it reacts to.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.LeadQualified{}.EventName(), events.HandlerFunc(m.handleLeadQualified))
}

func (m *Module) handleLeadQualified(ctx context.Context, event events.Event) error {
	e, ok := event.(events.LeadQualified)
	if !ok {
		return nil
	}
	if m.salesAddress == "" {
		m.log.Debug("lead notification skipped, no sales address", "lead_id", e.LeadID)
		return nil
	}

	payload := scheduler.LeadNotificationPayload{
		LeadID:         e.LeadID.String(),
		Email:          e.Email,
		FirstName:      e.FirstName,
		LastName:       e.LastName,
		Phone:          e.Phone,
		AppInterest:    e.AppInterest,
		Category:       e.Category,
		RestaurantName: e.RestaurantName,
	}

	if m.scheduler != nil {
		err := m.scheduler.ScheduleLeadNotification(ctx, payload)
		if err == nil {
			return nil
		}
		m.log.Warn("lead notification enqueue failed, sending inline", "lead_id", e.LeadID, "error", err)
	}
	return m.DeliverLeadNotification(ctx, payload)
}

// DeliverLeadNotification sends the sales email for payload. The scheduler
// worker calls it for queued tasks.
func (m *Module) DeliverLeadNotification(ctx context.Context, payload scheduler.LeadNotificationPayload) error {
	if m.salesAddress == "" {
		return nil
	}
	return m.sender.SendLeadNotification(ctx, m.salesAddress, email.LeadNotification{
		FirstName:      payload.FirstName,
		LastName:       payload.LastName,
		Email:          payload.Email,
		Phone:          payload.Phone,
		AppInterest:    payload.AppInterest,
		Category:       payload.Category,
		RestaurantName: payload.RestaurantName,
		Interests:      m.otherInterests(ctx, payload),
	})
}

// otherInterests lists the lead's other apps, most recent first. Lookup
// failures only shorten the email.
func (m *Module) otherInterests(ctx context.Context, payload scheduler.LeadNotificationPayload) []string {
	if m.leads == nil {
		return nil
	}
	lead, err := m.leads.GetByEmail(ctx, payload.Email)
	if err != nil {
		m.log.Debug("lead lookup for notification failed", "lead_id", payload.LeadID, "error", err)
		return nil
	}
	interests, err := m.leads.ListInterests(ctx, lead.ID)
	if err != nil {
		m.log.Debug("interest lookup for notification failed", "lead_id", payload.LeadID, "error", err)
		return nil
	}
	var out []string
	for _, it := range interests {
		if it.AppID != payload.AppInterest {
			out = append(out, it.AppID)
		}
	}
	return out
}

var _ scheduler.LeadNotificationHandler = (*Module)(nil)
