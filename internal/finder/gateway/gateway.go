package gateway

import (
	"context"
	"encoding/json"

	"smartfinder_backend/internal/finder/catalog"
	"smartfinder_backend/internal/finder/persist"
	"smartfinder_backend/platform/logger"
)

// Lead kinds used in logs.
const (
	KindAccount   = "account"
	KindImmediate = "immediate"
	KindFinal     = "final"
)

// Contextual answer ids that map onto dedicated lead fields.
const (
	FieldRestaurantName = "restaurant_name"
	FieldTables         = "tables"
	FieldProductsCount  = "products_count"
)

// Gateway submits the three lead shapes for one visitor. Immediate leads
// are deduplicated per (email, app) through the visitor's records.
type Gateway struct {
	submitter Submitter
	records   *persist.Records
	log       *logger.Logger
}

// New creates a gateway.
func New(submitter Submitter, records *persist.Records, log *logger.Logger) *Gateway {
	return &Gateway{submitter: submitter, records: records, log: log}
}

// CreateAccount sends the email-only lead.
func (g *Gateway) CreateAccount(ctx context.Context, email string) error {
	_, err := g.submitter.Submit(ctx, Lead{Email: email})
	g.logResult(ctx, KindAccount, email, "", err)
	return err
}

// SubmitImmediate sends the email + app lead unless one already went out
// for the pair within the last 24 hours, in which case skipped is true.
// The marker is only written after a successful call.
func (g *Gateway) SubmitImmediate(ctx context.Context, email string, app catalog.App) (skipped bool, err error) {
	sent, err := g.records.LeadSent(ctx, email, app.ID)
	if err != nil {
		g.log.WithContext(ctx).Warn("lead marker lookup failed", "error", err)
	}
	if sent {
		g.log.WithContext(ctx).Debug("lead_submission_skipped", "kind", KindImmediate, "app_id", app.ID)
		return true, nil
	}

	_, err = g.submitter.Submit(ctx, Lead{Email: email, AppInterest: app.ID, Category: app.Category})
	g.logResult(ctx, KindImmediate, email, app.ID, err)
	if err != nil {
		return false, err
	}
	if err := g.records.MarkLeadSent(ctx, email, app.ID); err != nil {
		g.log.WithContext(ctx).Warn("lead marker write failed", "error", err)
	}
	return false, nil
}

// SubmitFinal sends the complete lead and sets the completion marker on success.
func (g *Gateway) SubmitFinal(ctx context.Context, lead Lead) error {
	_, err := g.submitter.Submit(ctx, lead)
	g.logResult(ctx, KindFinal, lead.Email, lead.AppInterest, err)
	if err != nil {
		return err
	}
	if err := g.records.MarkCompleted(ctx, lead.Email); err != nil {
		g.log.WithContext(ctx).Warn("completion marker write failed", "error", err)
	}
	return nil
}

func (g *Gateway) logResult(ctx context.Context, kind, email, appID string, err error) {
	reason := ""
	if err != nil {
		reason = err.Error()
	}
	g.log.WithContext(ctx).LeadSubmission(kind, email, appID, err == nil, reason)
}

// FinalLead bundles everything collected for the final submission.
func FinalLead(email string, app catalog.App, contextual map[string]string, e persist.Enrichment) Lead {
	lead := Lead{
		Email:            email,
		FirstName:        e.FirstName,
		LastName:         e.LastName,
		Phone:            e.Phone,
		AppInterest:      app.ID,
		Category:         app.Category,
		RestaurantName:   contextual[FieldRestaurantName],
		RestaurantTables: contextual[FieldTables],
		ProductsCount:    contextual[FieldProductsCount],
	}
	if len(app.Modules) > 0 {
		if raw, err := json.Marshal(app.Modules); err == nil {
			lead.Modules = string(raw)
		}
	}
	if len(contextual) > 0 {
		if raw, err := json.Marshal(contextual); err == nil {
			lead.Message = string(raw)
		}
	}
	return lead
}
