package roi

import (
	apphttp "smartfinder_backend/internal/http"
	"smartfinder_backend/platform/validator"
)

// Module exposes the calculator over HTTP.
type Module struct {
	handler *Handler
}

func NewModule(val *validator.Validator) *Module {
	return &Module{handler: NewHandler(val)}
}

func (m *Module) Name() string {
	return "roi"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.V1.POST("/roi", m.handler.Calculate)
}

var _ apphttp.Module = (*Module)(nil)
