package notification

import (
	"context"
	"errors"
	"testing"

	"smartfinder_backend/internal/email"
	"smartfinder_backend/internal/events"
	leadrepo "smartfinder_backend/internal/leads/repository"
	"smartfinder_backend/internal/scheduler"
	"smartfinder_backend/platform/logger"

	"github.com/google/uuid"
)

const testSalesAddress = "sales@example.com"

type testSender struct {
	to    []string
	leads []email.LeadNotification
}

func (s *testSender) SendLeadNotification(_ context.Context, to string, lead email.LeadNotification) error {
	s.to = append(s.to, to)
	s.leads = append(s.leads, lead)
	return nil
}

type testScheduler struct {
	err      error
	payloads []scheduler.LeadNotificationPayload
}

func (s *testScheduler) ScheduleLeadNotification(_ context.Context, p scheduler.LeadNotificationPayload) error {
	s.payloads = append(s.payloads, p)
	return s.err
}

func qualifiedEvent() events.LeadQualified {
	return events.LeadQualified{
		BaseEvent:   events.NewBaseEvent(),
		LeadID:      uuid.New(),
		Email:       "marc@bistro.fr",
		FirstName:   "Marc",
		Phone:       "+33612345678",
		AppInterest: "tablebook",
	}
}

func TestLeadQualifiedIsScheduled(t *testing.T) {
	sender := &testSender{}
	sched := &testScheduler{}
	m := New(sender, testSalesAddress, sched, nil, logger.Discard())

	if err := m.handleLeadQualified(context.Background(), qualifiedEvent()); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(sched.payloads) != 1 || sched.payloads[0].AppInterest != "tablebook" {
		t.Fatalf("unexpected scheduled payloads: %+v", sched.payloads)
	}
	if len(sender.leads) != 0 {
		t.Fatal("scheduled notification must not be sent inline")
	}
}

func TestLeadQualifiedFallsBackToInlineSend(t *testing.T) {
	tests := []struct {
		name  string
		sched scheduler.LeadNotificationScheduler
	}{
		{"no scheduler", nil},
		{"enqueue fails", &testScheduler{err: errors.New("redis down")}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sender := &testSender{}
			m := New(sender, testSalesAddress, tc.sched, nil, logger.Discard())
			if err := m.handleLeadQualified(context.Background(), qualifiedEvent()); err != nil {
				t.Fatalf("handle: %v", err)
			}
			if len(sender.to) != 1 || sender.to[0] != testSalesAddress {
				t.Fatalf("expected one inline send, got %v", sender.to)
			}
		})
	}
}

func TestNoSalesAddressSkips(t *testing.T) {
	sender := &testSender{}
	sched := &testScheduler{}
	m := New(sender, "", sched, nil, logger.Discard())

	if err := m.handleLeadQualified(context.Background(), qualifiedEvent()); err != nil {
		t.Fatal(err)
	}
	if len(sched.payloads) != 0 || len(sender.leads) != 0 {
		t.Fatal("nothing may be sent without a sales address")
	}
}

func TestDeliverListsOtherInterests(t *testing.T) {
	ctx := context.Background()
	repo := leadrepo.NewMemory(nil)
	lead, _, err := repo.UpsertLead(ctx, leadrepo.UpsertParams{Email: "marc@bistro.fr"})
	if err != nil {
		t.Fatal(err)
	}
	for _, app := range []string{"qr-menu", "tablebook"} {
		if err := repo.AddInterest(ctx, lead.ID, app, ""); err != nil {
			t.Fatal(err)
		}
	}

	sender := &testSender{}
	m := New(sender, testSalesAddress, nil, repo, logger.Discard())
	err = m.DeliverLeadNotification(ctx, scheduler.LeadNotificationPayload{
		LeadID:      lead.ID.String(),
		Email:       "marc@bistro.fr",
		AppInterest: "tablebook",
	})
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	got := sender.leads[0].Interests
	if len(got) != 1 || got[0] != "qr-menu" {
		t.Fatalf("unexpected interests: %v", got)
	}
}

func TestSubscribesToBus(t *testing.T) {
	bus := events.NewInMemoryBus(logger.Discard())
	sender := &testSender{}
	New(sender, testSalesAddress, nil, nil, logger.Discard()).RegisterHandlers(bus)

	if err := bus.PublishSync(context.Background(), qualifiedEvent()); err != nil {
		t.Fatal(err)
	}
	if len(sender.leads) != 1 {
		t.Fatalf("expected one notification, got %d", len(sender.leads))
	}
}
