// Package leads provides the lead intake bounded context module.
package leads

import (
	"smartfinder_backend/internal/events"
	apphttp "smartfinder_backend/internal/http"
	"smartfinder_backend/internal/leads/handler"
	"smartfinder_backend/internal/leads/repository"
	"smartfinder_backend/internal/leads/service"
	"smartfinder_backend/platform/logger"
	"smartfinder_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the leads module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule stores leads in Postgres, or in memory when pool is nil.
func NewModule(pool *pgxpool.Pool, eventBus events.Bus, val *validator.Validator, phoneRegion string, log *logger.Logger) *Module {
	var repo repository.LeadsRepository
	if pool != nil {
		repo = repository.New(pool)
	} else {
		log.Warn("DATABASE_URL not set, leads are kept in memory")
		repo = repository.NewMemory(nil)
	}
	return newModule(repo, eventBus, val, phoneRegion, log)
}

func newModule(repo repository.LeadsRepository, eventBus events.Bus, val *validator.Validator, phoneRegion string, log *logger.Logger) *Module {
	svc := service.New(repo, eventBus, phoneRegion, log)
	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// RegisterRoutes mounts the intake route on the rate-limited group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Limited.POST("/leads", m.handler.Capture)
}

var _ apphttp.Module = (*Module)(nil)
