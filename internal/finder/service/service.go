// Package service owns the live Smart Finder sessions. Each session gets its
// own flow controller; progress records are shared per visitor.
package service

import (
	"context"
	"net/http"
	"sync"
	"time"

	"smartfinder_backend/internal/finder/catalog"
	"smartfinder_backend/internal/finder/flow"
	"smartfinder_backend/internal/finder/gateway"
	"smartfinder_backend/internal/finder/persist"
	"smartfinder_backend/internal/finder/transport"
	"smartfinder_backend/platform/apperr"
	"smartfinder_backend/platform/kvstore"
	"smartfinder_backend/platform/logger"

	"github.com/google/uuid"
)

const (
	msgSessionNotFound = "session not found"
	visitorPrefix      = "finder"
)

// Options tune the service.
type Options struct {
	IdleTTL     time.Duration
	CloseDelay  time.Duration
	PhoneRegion string
	LeadClient  *http.Client
	AfterFunc   flow.AfterFunc
	Now         func() time.Time
}

type entry struct {
	ctrl      *flow.Controller
	visitorID string
	lastSeen  time.Time
}

// Service manages sessions.
type Service struct {
	provider catalog.Provider
	store    kvstore.Store
	log      *logger.Logger
	opts     Options

	mu       sync.Mutex
	sessions map[string]*entry
}

// New creates the service.
func New(provider catalog.Provider, store kvstore.Store, log *logger.Logger, opts Options) *Service {
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		provider: provider,
		store:    store,
		log:      log,
		opts:     opts,
		sessions: make(map[string]*entry),
	}
}

// Config returns the public part of the configuration.
func (s *Service) Config(ctx context.Context) (transport.ConfigResponse, error) {
	doc, err := s.provider.Get(ctx)
	if err != nil {
		return transport.ConfigResponse{}, err
	}
	messages := make(map[string]string)
	for _, name := range []string{
		catalog.MsgResults, catalog.MsgScanning, catalog.MsgEmailSent, catalog.MsgFormIntro,
		catalog.MsgSuccess, catalog.MsgEnrichmentSuccess, catalog.MsgEnrichmentIntro, catalog.MsgNetworkError,
	} {
		messages[name] = doc.Message(name)
	}
	return transport.ConfigResponse{
		Questions: doc.Questions,
		Settings:  doc.Settings,
		Messages:  messages,
		AppCount:  doc.Apps.Len(),
	}, nil
}

// Start opens a new session. A configuration that cannot be loaded stops
// the conversation before it begins.
func (s *Service) Start(ctx context.Context, req transport.StartSessionRequest) (transport.SessionResponse, error) {
	doc, err := s.provider.Get(ctx)
	if err != nil {
		return transport.SessionResponse{}, err
	}

	visitorID := req.VisitorID
	if visitorID == "" {
		visitorID = uuid.NewString()
	}
	sessionID := uuid.NewString()

	records := persist.New(kvstore.Namespace(s.store, visitorPrefix+":"+visitorID))
	sessionLog := s.log.WithSessionID(sessionID)
	ctrl := flow.New(flow.Deps{
		SessionID:   sessionID,
		Doc:         doc,
		Records:     records,
		Leads:       gateway.New(gateway.NewClient(doc.API.Endpoint, s.opts.LeadClient), records, sessionLog),
		Log:         sessionLog,
		AfterFunc:   s.opts.AfterFunc,
		CloseDelay:  s.opts.CloseDelay,
		PhoneRegion: s.opts.PhoneRegion,
	})

	s.mu.Lock()
	s.sessions[sessionID] = &entry{ctrl: ctrl, visitorID: visitorID, lastSeen: s.opts.Now()}
	s.mu.Unlock()

	reply := ctrl.Open(ctx)
	s.log.WithContext(ctx).Info("finder session started", "session_id", sessionID, "visitor_id", visitorID)
	return transport.SessionResponse{SessionID: sessionID, VisitorID: visitorID, Reply: reply}, nil
}

// Session returns the controller of an active session.
func (s *Service) Session(sessionID string) (*flow.Controller, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[sessionID]
	if !ok {
		return nil, apperr.NotFound(msgSessionNotFound)
	}
	e.lastSeen = s.opts.Now()
	return e.ctrl, nil
}

// Count returns the number of live sessions.
func (s *Service) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep drops sessions idle for longer than the idle TTL.
func (s *Service) Sweep() int {
	cutoff := s.opts.Now().Add(-s.opts.IdleTTL)
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, e := range s.sessions {
		if e.lastSeen.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Run sweeps idle sessions and stale visitor records until ctx is done.
func (s *Service) Run(ctx context.Context) {
	interval := s.opts.IdleTTL / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.maintain()
		}
	}
}

// maintain drops idle sessions and, for stores that do not expire keys on
// their own, visitor records past the store's retention.
func (s *Service) maintain() {
	if n := s.Sweep(); n > 0 {
		s.log.Debug("finder sessions swept", "removed", n)
	}
	if p, ok := s.store.(kvstore.Pruner); ok {
		if n := p.Prune(); n > 0 {
			s.log.Debug("visitor records pruned", "removed", n)
		}
	}
}
