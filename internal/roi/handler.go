package roi

import (
	"net/http"

	"smartfinder_backend/platform/httpkit"
	"smartfinder_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	val *validator.Validator
}

func NewHandler(val *validator.Validator) *Handler {
	return &Handler{val: val}
}

// Calculate returns the estimate for the posted input.
// POST /api/v1/roi
func (h *Handler) Calculate(c *gin.Context) {
	var in Input
	if err := c.ShouldBindJSON(&in); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}
	if err := h.val.Struct(in); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", validator.Describe(err))
		return
	}
	estimate, err := Calculate(in)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, estimate)
}
