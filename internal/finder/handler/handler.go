package handler

import (
	"net/http"

	"smartfinder_backend/internal/finder/flow"
	"smartfinder_backend/internal/finder/service"
	"smartfinder_backend/internal/finder/transport"
	"smartfinder_backend/platform/httpkit"
	"smartfinder_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

// Handler handles HTTP requests for the Smart Finder.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// New creates a new finder handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// bind decodes and validates a JSON body. An empty body is accepted.
func (h *Handler) bind(c *gin.Context, req interface{}) bool {
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
			return false
		}
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.Describe(err))
		return false
	}
	return true
}

func (h *Handler) session(c *gin.Context) (*flow.Controller, bool) {
	ctrl, err := h.svc.Session(c.Param("id"))
	if httpkit.HandleError(c, err) {
		return nil, false
	}
	return ctrl, true
}

func respond(c *gin.Context, reply flow.Reply, err error) {
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, reply)
}

// GetConfig returns the questions, settings and messages.
// GET /api/v1/finder/config
func (h *Handler) GetConfig(c *gin.Context) {
	result, err := h.svc.Config(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// StartSession opens a conversation.
// POST /api/v1/finder/sessions
func (h *Handler) StartSession(c *gin.Context) {
	var req transport.StartSessionRequest
	if !h.bind(c, &req) {
		return
	}
	result, err := h.svc.Start(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, result)
}

// GetSession returns the state of a conversation.
// GET /api/v1/finder/sessions/:id
func (h *Handler) GetSession(c *gin.Context) {
	ctrl, ok := h.session(c)
	if !ok {
		return
	}
	httpkit.OK(c, ctrl.Snapshot())
}

// Open restarts a conversation.
// POST /api/v1/finder/sessions/:id/open
func (h *Handler) Open(c *gin.Context) {
	ctrl, ok := h.session(c)
	if !ok {
		return
	}
	httpkit.OK(c, ctrl.Open(c.Request.Context()))
}

// SubmitEmail POST /api/v1/finder/sessions/:id/email
func (h *Handler) SubmitEmail(c *gin.Context) {
	var req transport.EmailRequest
	if !h.bind(c, &req) {
		return
	}
	ctrl, ok := h.session(c)
	if !ok {
		return
	}
	reply, err := ctrl.SubmitEmail(c.Request.Context(), req.Email)
	respond(c, reply, err)
}

// Answer POST /api/v1/finder/sessions/:id/answer
func (h *Handler) Answer(c *gin.Context) {
	var req transport.AnswerRequest
	if !h.bind(c, &req) {
		return
	}
	ctrl, ok := h.session(c)
	if !ok {
		return
	}
	reply, err := ctrl.Answer(c.Request.Context(), req.Value)
	respond(c, reply, err)
}

// SelectApp POST /api/v1/finder/sessions/:id/select
func (h *Handler) SelectApp(c *gin.Context) {
	var req transport.SelectAppRequest
	if !h.bind(c, &req) {
		return
	}
	ctrl, ok := h.session(c)
	if !ok {
		return
	}
	reply, err := ctrl.SelectApp(c.Request.Context(), req.AppID)
	respond(c, reply, err)
}

// SubmitContextual POST /api/v1/finder/sessions/:id/contextual
func (h *Handler) SubmitContextual(c *gin.Context) {
	var req transport.ContextualRequest
	if !h.bind(c, &req) {
		return
	}
	ctrl, ok := h.session(c)
	if !ok {
		return
	}
	reply, err := ctrl.SubmitContextual(c.Request.Context(), req.Values)
	respond(c, reply, err)
}

// SkipContextual POST /api/v1/finder/sessions/:id/contextual/skip
func (h *Handler) SkipContextual(c *gin.Context) {
	ctrl, ok := h.session(c)
	if !ok {
		return
	}
	reply, err := ctrl.SkipContextual(c.Request.Context())
	respond(c, reply, err)
}

// SubmitEnrichment POST /api/v1/finder/sessions/:id/enrichment
func (h *Handler) SubmitEnrichment(c *gin.Context) {
	var req transport.EnrichmentRequest
	if !h.bind(c, &req) {
		return
	}
	ctrl, ok := h.session(c)
	if !ok {
		return
	}
	reply, err := ctrl.SubmitEnrichment(c.Request.Context(), flow.Enrichment{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
	})
	respond(c, reply, err)
}

// SkipEnrichment POST /api/v1/finder/sessions/:id/enrichment/skip
func (h *Handler) SkipEnrichment(c *gin.Context) {
	ctrl, ok := h.session(c)
	if !ok {
		return
	}
	reply, err := ctrl.SkipEnrichment(c.Request.Context())
	respond(c, reply, err)
}

// Close POST /api/v1/finder/sessions/:id/close
func (h *Handler) Close(c *gin.Context) {
	ctrl, ok := h.session(c)
	if !ok {
		return
	}
	httpkit.OK(c, ctrl.Close(c.Request.Context()))
}
