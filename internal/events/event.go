// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"smartfinder_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Leads Domain Events
// =============================================================================

// LeadCaptured is published every time the intake endpoint accepts a lead
// body, whether it created a new lead or merged into an existing one.
type LeadCaptured struct {
	BaseEvent
	LeadID      uuid.UUID `json:"leadId"`
	Email       string    `json:"email"`
	AppInterest string    `json:"appInterest,omitempty"`
	Category    string    `json:"category,omitempty"`
	Created     bool      `json:"created"`
}

func (e LeadCaptured) EventName() string { return "leads.lead.captured" }

// LeadQualified is published once a lead carries a name, a phone number
// and an app of interest. Sales is notified from this event.
type LeadQualified struct {
	BaseEvent
	LeadID         uuid.UUID `json:"leadId"`
	Email          string    `json:"email"`
	FirstName      string    `json:"firstName"`
	LastName       string    `json:"lastName,omitempty"`
	Phone          string    `json:"phone"`
	AppInterest    string    `json:"appInterest"`
	Category       string    `json:"category,omitempty"`
	RestaurantName string    `json:"restaurantName,omitempty"`
}

func (e LeadQualified) EventName() string { return "leads.lead.qualified" }
