// Package service implements lead intake: merging visitor submissions by
// email, recording app interests and announcing qualified leads.
package service

import (
	"context"
	"strings"

	"smartfinder_backend/internal/events"
	"smartfinder_backend/internal/leads/repository"
	"smartfinder_backend/internal/leads/transport"
	"smartfinder_backend/platform/apperr"
	"smartfinder_backend/platform/logger"
	"smartfinder_backend/platform/phone"
	"smartfinder_backend/platform/sanitize"

	"github.com/google/uuid"
)

const (
	maxNameLength  = 100
	maxTextLength  = sanitize.MaxFieldLength
	maxPhoneLength = 32
)

// Result describes what Capture did.
type Result struct {
	LeadID    uuid.UUID
	Created   bool
	Qualified bool
}

type Service struct {
	repo   repository.LeadsRepository
	bus    events.Bus
	region string
	log    *logger.Logger
}

func New(repo repository.LeadsRepository, bus events.Bus, region string, log *logger.Logger) *Service {
	return &Service{repo: repo, bus: bus, region: region, log: log}
}

// Capture stores one intake body. Fields left empty keep their stored
// values. A lead becomes qualified the first time it has a first name, a
// phone number and an app of interest.
func (s *Service) Capture(ctx context.Context, req transport.IntakeRequest) (Result, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return Result{}, apperr.Validation("email is required")
	}

	params := repository.UpsertParams{
		Email:            email,
		FirstName:        sanitize.Text(req.FirstName, maxNameLength),
		LastName:         sanitize.Text(req.LastName, maxNameLength),
		Phone:            phone.NormalizeE164(sanitize.Text(req.Phone, maxPhoneLength), s.region),
		Category:         sanitize.Text(req.Category, maxNameLength),
		RestaurantName:   sanitize.Text(req.RestaurantName, maxTextLength),
		RestaurantTables: sanitize.Text(req.RestaurantTables, maxTextLength),
		ProductsCount:    sanitize.Text(req.ProductsCount, maxTextLength),
		Modules:          strings.TrimSpace(req.Modules),
		Message:          strings.TrimSpace(req.Message),
	}

	lead, created, err := s.repo.UpsertLead(ctx, params)
	if err != nil {
		s.log.DatabaseError("upsert_lead", err)
		return Result{}, apperr.Wrap(apperr.KindInternal, "failed to store lead", err).WithOp("leads.Capture")
	}

	appID := sanitize.Text(req.AppInterest, maxNameLength)
	if appID != "" {
		if err := s.repo.AddInterest(ctx, lead.ID, appID, params.Category); err != nil {
			s.log.DatabaseError("add_lead_interest", err)
			return Result{}, apperr.Wrap(apperr.KindInternal, "failed to store lead interest", err).WithOp("leads.Capture")
		}
	}

	s.bus.Publish(ctx, events.LeadCaptured{
		BaseEvent:   events.NewBaseEvent(),
		LeadID:      lead.ID,
		Email:       lead.Email,
		AppInterest: appID,
		Category:    params.Category,
		Created:     created,
	})

	result := Result{LeadID: lead.ID, Created: created}
	qualified, err := s.qualify(ctx, lead, appID)
	if err != nil {
		// The lead itself is stored; a later submission retries the stamp.
		s.log.DatabaseError("mark_lead_qualified", err)
		return result, nil
	}
	result.Qualified = qualified
	return result, nil
}

func (s *Service) qualify(ctx context.Context, lead repository.Lead, appID string) (bool, error) {
	if lead.QualifiedAt != nil || lead.FirstName == "" || lead.Phone == "" {
		return false, nil
	}
	if appID == "" {
		interests, err := s.repo.ListInterests(ctx, lead.ID)
		if err != nil {
			return false, err
		}
		if len(interests) == 0 {
			return false, nil
		}
		appID = interests[0].AppID
	}

	first, err := s.repo.MarkQualified(ctx, lead.ID)
	if err != nil || !first {
		return false, err
	}

	s.log.Info("lead qualified", "lead_id", lead.ID, "app_id", appID)
	s.bus.Publish(ctx, events.LeadQualified{
		BaseEvent:      events.NewBaseEvent(),
		LeadID:         lead.ID,
		Email:          lead.Email,
		FirstName:      lead.FirstName,
		LastName:       lead.LastName,
		Phone:          lead.Phone,
		AppInterest:    appID,
		Category:       lead.Category,
		RestaurantName: lead.RestaurantName,
	})
	return true, nil
}
