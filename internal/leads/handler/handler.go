package handler

import (
	"net/http"

	"smartfinder_backend/internal/leads/service"
	"smartfinder_backend/internal/leads/transport"
	"smartfinder_backend/platform/apperr"
	"smartfinder_backend/platform/httpkit"
	"smartfinder_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

// Handler serves the public lead intake endpoint. Every answer, failures
// included, uses the {success, message} body callers of a lead API expect.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

const (
	msgInvalidRequest = "Requête invalide"
	msgLeadSaved      = "Merci, votre demande a bien été enregistrée."
	msgLeadFailed     = "Impossible d'enregistrer votre demande pour le moment."
)

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// Capture stores a lead.
// POST /api/v1/leads
func (h *Handler) Capture(c *gin.Context) {
	var req transport.IntakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.JSON(c, http.StatusBadRequest, transport.IntakeResponse{Message: msgInvalidRequest})
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.JSON(c, http.StatusBadRequest, transport.IntakeResponse{Message: validator.Describe(err)})
		return
	}

	result, err := h.svc.Capture(c.Request.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		message := msgLeadFailed
		if apperr.Is(err, apperr.KindValidation) {
			status = http.StatusBadRequest
			message = err.Error()
		}
		_ = c.Error(err)
		httpkit.JSON(c, status, transport.IntakeResponse{Message: message})
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	httpkit.JSON(c, status, transport.IntakeResponse{Success: true, Message: msgLeadSaved})
}
