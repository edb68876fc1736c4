// Package finder provides the Smart Finder bounded context module.
package finder

import (
	"context"
	"net/http"

	"smartfinder_backend/internal/finder/catalog"
	"smartfinder_backend/internal/finder/handler"
	"smartfinder_backend/internal/finder/service"
	apphttp "smartfinder_backend/internal/http"
	"smartfinder_backend/platform/config"
	"smartfinder_backend/platform/kvstore"
	"smartfinder_backend/platform/logger"
	"smartfinder_backend/platform/validator"
)

// Module is the Smart Finder module implementing http.Module.
type Module struct {
	handler  *handler.Handler
	service  *service.Service
	provider catalog.Provider
}

// NewModule wires the configuration provider, the session service and the handler.
func NewModule(cfg config.FinderConfig, store kvstore.Store, val *validator.Validator, log *logger.Logger) *Module {
	leadClient := &http.Client{Timeout: cfg.GetFinderLeadTimeout()}
	provider := catalog.NewSourceProvider(cfg.GetFinderConfigSource(), cfg.GetFinderLeadEndpoint(), leadClient, log)
	return newModule(provider, store, val, log, service.Options{
		IdleTTL:     cfg.GetFinderSessionIdleTTL(),
		CloseDelay:  cfg.GetFinderCloseDelay(),
		PhoneRegion: cfg.GetPhoneDefaultRegion(),
		LeadClient:  leadClient,
	})
}

func newModule(provider catalog.Provider, store kvstore.Store, val *validator.Validator, log *logger.Logger, opts service.Options) *Module {
	svc := service.New(provider, store, log, opts)
	return &Module{
		handler:  handler.New(svc, val),
		service:  svc,
		provider: provider,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "finder"
}

// Service returns the session service.
func (m *Module) Service() *service.Service {
	return m.service
}

// Preload loads the configuration at startup so a broken document shows up
// in the logs before the first visitor. Failure is not fatal; sessions
// report it until a later load succeeds.
func (m *Module) Preload(ctx context.Context) error {
	_, err := m.provider.Get(ctx)
	return err
}

// Run sweeps idle sessions until ctx is done.
func (m *Module) Run(ctx context.Context) {
	m.service.Run(ctx)
}

// RegisterRoutes mounts finder routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.V1.GET("/finder/config", m.handler.GetConfig)

	g := ctx.Limited.Group("/finder/sessions")
	g.POST("", m.handler.StartSession)
	g.GET("/:id", m.handler.GetSession)
	g.POST("/:id/open", m.handler.Open)
	g.POST("/:id/email", m.handler.SubmitEmail)
	g.POST("/:id/answer", m.handler.Answer)
	g.POST("/:id/select", m.handler.SelectApp)
	g.POST("/:id/contextual", m.handler.SubmitContextual)
	g.POST("/:id/contextual/skip", m.handler.SkipContextual)
	g.POST("/:id/enrichment", m.handler.SubmitEnrichment)
	g.POST("/:id/enrichment/skip", m.handler.SkipEnrichment)
	g.POST("/:id/close", m.handler.Close)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
