package repository

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory keeps leads in process. It backs development runs without
// DATABASE_URL and the service tests.
type Memory struct {
	mu        sync.Mutex
	leads     map[string]*Lead
	interests map[uuid.UUID]map[string]*Interest
	now       func() time.Time
}

func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{
		leads:     make(map[string]*Lead),
		interests: make(map[uuid.UUID]map[string]*Interest),
		now:       now,
	}
}

func merge(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func (m *Memory) UpsertLead(_ context.Context, params UpsertParams) (Lead, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	lead, ok := m.leads[params.Email]
	if !ok {
		lead = &Lead{ID: uuid.New(), Email: params.Email, CreatedAt: now}
		m.leads[params.Email] = lead
	}
	merge(&lead.FirstName, params.FirstName)
	merge(&lead.LastName, params.LastName)
	merge(&lead.Phone, params.Phone)
	merge(&lead.Category, params.Category)
	merge(&lead.RestaurantName, params.RestaurantName)
	merge(&lead.RestaurantTables, params.RestaurantTables)
	merge(&lead.ProductsCount, params.ProductsCount)
	merge(&lead.Modules, params.Modules)
	merge(&lead.Message, params.Message)
	lead.UpdatedAt = now
	return *lead, !ok, nil
}

func (m *Memory) AddInterest(_ context.Context, leadID uuid.UUID, appID, category string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	byApp, ok := m.interests[leadID]
	if !ok {
		byApp = make(map[string]*Interest)
		m.interests[leadID] = byApp
	}
	it, ok := byApp[appID]
	if !ok {
		it = &Interest{AppID: appID}
		byApp[appID] = it
	}
	it.Hits++
	merge(&it.Category, category)
	it.LastSeenAt = m.now()
	return nil
}

func (m *Memory) MarkQualified(_ context.Context, leadID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, lead := range m.leads {
		if lead.ID != leadID {
			continue
		}
		if lead.QualifiedAt != nil {
			return false, nil
		}
		now := m.now()
		lead.QualifiedAt = &now
		return true, nil
	}
	return false, ErrNotFound
}

func (m *Memory) GetByEmail(_ context.Context, email string) (Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lead, ok := m.leads[email]
	if !ok {
		return Lead{}, ErrNotFound
	}
	return *lead, nil
}

func (m *Memory) ListInterests(_ context.Context, leadID uuid.UUID) ([]Interest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := make([]Interest, 0, len(m.interests[leadID]))
	for _, it := range m.interests[leadID] {
		items = append(items, *it)
	}
	slices.SortFunc(items, func(a, b Interest) int {
		if c := b.LastSeenAt.Compare(a.LastSeenAt); c != 0 {
			return c
		}
		return cmp.Compare(a.AppID, b.AppID)
	})
	return items, nil
}

var _ LeadsRepository = (*Memory)(nil)
