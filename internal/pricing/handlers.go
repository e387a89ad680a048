package pricing

import (
	"net/http"

	"github.com/noah-isme/pcquote-api/internal/common"
)

// Handler exposes the pricing rule endpoints.
type Handler struct {
	service *Service
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service *Service
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service}
}

// Get handles GET /api/v1/pricing-rule.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "pricing service not configured", nil)
		return
	}
	rule, err := h.service.GetRule(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, rule)
}

// Replace handles PUT /api/v1/admin/pricing-rule.
func (h *Handler) Replace(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "pricing service not configured", nil)
		return
	}
	var rule Rule
	if err := common.Decode(r, &rule); err != nil {
		common.WriteError(w, err)
		return
	}
	saved, err := h.service.ReplaceRule(r.Context(), rule)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, saved)
}
