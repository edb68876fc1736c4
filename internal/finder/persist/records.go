// Package persist keeps the visitor's partial progress between sessions:
// the last email, lead-sent markers, enrichment fields, contextual answers
// and the completion marker. Every read applies the record's TTL.
package persist

import (
	"context"
	"strings"
	"time"

	"smartfinder_backend/platform/kvstore"
)

// Record lifetimes.
const (
	EmailTTL      = 30 * time.Minute
	LeadSentTTL   = 24 * time.Hour
	EnrichmentTTL = 30 * time.Minute
	// CompletedTTL of zero keeps the completion marker forever.
	CompletedTTL time.Duration = 0
)

const (
	keyEmail         = "last_email"
	keyFirstName     = "last_first_name"
	keyLastName      = "last_last_name"
	keyPhone         = "last_phone"
	keyLeadSent      = "lead_sent:"
	keyContextual    = "last_ctx:"
	keyLeadCompleted = "lead_completed:"
)

// Enrichment is the optional contact data collected after app selection.
type Enrichment struct {
	FirstName string
	LastName  string
	Phone     string
}

// Records reads and writes the progress records of one visitor.
type Records struct {
	store kvstore.Store
}

// New wraps a store already scoped to a single visitor.
func New(store kvstore.Store) *Records {
	return &Records{store: store}
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SaveEmail stores the email with the current time.
func (r *Records) SaveEmail(ctx context.Context, email string) error {
	return r.store.Put(ctx, keyEmail, email)
}

// RecentEmail returns the email saved less than EmailTTL ago.
func (r *Records) RecentEmail(ctx context.Context) (string, bool, error) {
	email, ok, err := r.store.GetFresh(ctx, keyEmail, EmailTTL)
	if err != nil || !ok || email == "" {
		return "", false, err
	}
	return email, true, nil
}

// ForgetEmail removes the saved email.
func (r *Records) ForgetEmail(ctx context.Context) error {
	return r.store.Delete(ctx, keyEmail)
}

// LeadSent reports whether an immediate lead for (email, appID) went out
// less than LeadSentTTL ago.
func (r *Records) LeadSent(ctx context.Context, email, appID string) (bool, error) {
	_, ok, err := r.store.GetFresh(ctx, keyLeadSent+emailKey(email)+":"+appID, LeadSentTTL)
	return ok, err
}

// MarkLeadSent records a successful immediate lead for (email, appID).
func (r *Records) MarkLeadSent(ctx context.Context, email, appID string) error {
	return r.store.Put(ctx, keyLeadSent+emailKey(email)+":"+appID, "1")
}

// SaveEnrichment stores the non-empty enrichment fields.
func (r *Records) SaveEnrichment(ctx context.Context, e Enrichment) error {
	fields := map[string]string{
		keyFirstName: e.FirstName,
		keyLastName:  e.LastName,
		keyPhone:     e.Phone,
	}
	for key, value := range fields {
		if value == "" {
			continue
		}
		if err := r.store.Put(ctx, key, value); err != nil {
			return err
		}
	}
	return nil
}

// RecentEnrichment returns the enrichment fields saved less than
// EnrichmentTTL ago. Missing or stale fields are empty.
func (r *Records) RecentEnrichment(ctx context.Context) (Enrichment, error) {
	var e Enrichment
	targets := []struct {
		key string
		dst *string
	}{
		{keyFirstName, &e.FirstName},
		{keyLastName, &e.LastName},
		{keyPhone, &e.Phone},
	}
	for _, t := range targets {
		value, ok, err := r.store.GetFresh(ctx, t.key, EnrichmentTTL)
		if err != nil {
			return Enrichment{}, err
		}
		if ok {
			*t.dst = value
		}
	}
	return e, nil
}

// CanAutoSubmit reports whether e holds enough to send the final lead
// without asking again.
func (e Enrichment) CanAutoSubmit() bool {
	return e.FirstName != "" && e.Phone != ""
}

// SaveContextual stores the non-empty contextual answers.
func (r *Records) SaveContextual(ctx context.Context, answers map[string]string) error {
	for field, value := range answers {
		if value == "" {
			continue
		}
		if err := r.store.Put(ctx, keyContextual+field, value); err != nil {
			return err
		}
	}
	return nil
}

// RecentContextual returns the fresh saved answers among fields.
func (r *Records) RecentContextual(ctx context.Context, fields []string) (map[string]string, error) {
	out := make(map[string]string)
	for _, field := range fields {
		value, ok, err := r.store.GetFresh(ctx, keyContextual+field, EnrichmentTTL)
		if err != nil {
			return nil, err
		}
		if ok {
			out[field] = value
		}
	}
	return out, nil
}

// Completed reports whether a final lead was already sent for email.
func (r *Records) Completed(ctx context.Context, email string) (bool, error) {
	_, ok, err := r.store.GetFresh(ctx, keyLeadCompleted+emailKey(email), CompletedTTL)
	return ok, err
}

// MarkCompleted sets the completion marker for email.
func (r *Records) MarkCompleted(ctx context.Context, email string) error {
	return r.store.PutPermanent(ctx, keyLeadCompleted+emailKey(email), "1")
}
