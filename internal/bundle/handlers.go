package bundle

import (
	"context"
	"net/http"

	"github.com/noah-isme/pcquote-api/internal/common"
)

// RecalcEnqueuer schedules a background total recalculation and returns the task id.
type RecalcEnqueuer interface {
	EnqueueRecalculateTotals(ctx context.Context) (string, error)
}

// Handler exposes package endpoints.
type Handler struct {
	service  *Service
	money    common.MoneyFormat
	enqueuer RecalcEnqueuer
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service  *Service
	Money    common.MoneyFormat
	Enqueuer RecalcEnqueuer
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service, money: cfg.Money, enqueuer: cfg.Enqueuer}
}

type displayPrices struct {
	TotalPrice string `json:"totalPrice"`
	SalePrice  string `json:"salePrice"`
}

type viewResponse struct {
	View
	Display displayPrices `json:"display"`
}

func (h *Handler) render(v View) viewResponse {
	return viewResponse{
		View: v,
		Display: displayPrices{
			TotalPrice: h.money.Format(v.TotalPrice),
			SalePrice:  h.money.Format(v.SalePrice),
		},
	}
}

// List handles GET /api/v1/packages.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	result, err := h.service.List(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	data := make([]viewResponse, 0, len(result.Packages))
	for _, p := range result.Packages {
		data = append(data, h.render(h.service.View(r.Context(), p)))
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": data, "source": result.Source})
}

// Get handles GET /api/v1/packages/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	id, err := common.PathID(r, "id")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, h.render(h.service.View(r.Context(), p)))
}

// Create handles POST /api/v1/admin/packages.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var in Input
	if err := common.Decode(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	p, err := h.service.Create(r.Context(), in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, p)
}

// Update handles PUT /api/v1/admin/packages/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	id, err := common.PathID(r, "id")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	var in Input
	if err := common.Decode(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	p, err := h.service.Update(r.Context(), id, in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, p)
}

// Delete handles DELETE /api/v1/admin/packages/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	id, err := common.PathID(r, "id")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		common.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Recalculate handles POST /api/v1/admin/packages/recalculate. With a
// background queue configured the run is enqueued; otherwise it runs inline.
func (h *Handler) Recalculate(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	if h.enqueuer != nil {
		taskID, err := h.enqueuer.EnqueueRecalculateTotals(r.Context())
		if err != nil {
			if !common.IsAppError(err) {
				err = common.Unavailable("could not schedule recalculation", err)
			}
			common.WriteError(w, err)
			return
		}
		common.Data(w, http.StatusAccepted, map[string]string{"taskId": taskID})
		return
	}
	res, err := h.service.RecalculateTotals(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, res)
}

func (h *Handler) ready(w http.ResponseWriter) bool {
	if h == nil || h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "package service not configured", nil)
		return false
	}
	return true
}
