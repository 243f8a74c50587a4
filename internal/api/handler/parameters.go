package handler

import (
	"net/http"

	"github.com/imclimate/acis/internal/acis"
	"github.com/imclimate/acis/internal/api/models"
	"github.com/imclimate/acis/internal/api/response"
)

// ParameterHandler serves the element catalog.
type ParameterHandler struct{}

// NewParameterHandler creates a new ParameterHandler.
func NewParameterHandler() *ParameterHandler {
	return &ParameterHandler{}
}

// ListParameters handles GET /v1/parameters - supported element codes.
func (h *ParameterHandler) ListParameters(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.ParameterList{
		Parameters: acis.SupportedParameters(),
		Defaults:   append([]string(nil), acis.DefaultElements...),
	})
}
