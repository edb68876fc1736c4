package transport

import (
	"smartfinder_backend/internal/finder/catalog"
	"smartfinder_backend/internal/finder/flow"
)

type StartSessionRequest struct {
	VisitorID string `json:"visitor_id" validate:"omitempty,uuid"`
}

type SessionResponse struct {
	SessionID string     `json:"session_id"`
	VisitorID string     `json:"visitor_id"`
	Reply     flow.Reply `json:"reply"`
}

type EmailRequest struct {
	Email string `json:"email" validate:"max=254"`
}

type AnswerRequest struct {
	Value string `json:"value" validate:"required,max=100"`
}

type SelectAppRequest struct {
	AppID string `json:"app_id" validate:"required,max=100"`
}

type ContextualRequest struct {
	Values map[string]string `json:"values" validate:"max=30,dive,keys,max=64,endkeys,max=500"`
}

type EnrichmentRequest struct {
	FirstName string `json:"firstName" validate:"max=200"`
	LastName  string `json:"lastName" validate:"max=200"`
	Phone     string `json:"phone" validate:"max=50"`
}

// ConfigResponse is the part of the configuration the page needs before the
// first action. The lead endpoint stays server-side.
type ConfigResponse struct {
	Questions []catalog.Question `json:"questions"`
	Settings  catalog.Settings   `json:"settings"`
	Messages  map[string]string  `json:"messages"`
	AppCount  int                `json:"app_count"`
}
