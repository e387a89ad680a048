package quote

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/pcquote-api/internal/catalog"
	"github.com/noah-isme/pcquote-api/internal/common"
)

// Handler exposes the quote builder endpoints.
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

type addRowRequest struct {
	Category string `json:"category"`
	Revision int64  `json:"revision"`
}

type discountRequest struct {
	DiscountedPrice *decimal.Decimal `json:"discountedPrice"`
	Revision        int64            `json:"revision"`
}

// Price handles POST /api/v1/quotes/price.
func (h *Handler) Price(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var in PriceInput
	if err := common.Decode(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	sum, err := h.service.Price(r.Context(), in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, sum)
}

// PackageQuote handles GET /api/v1/packages/{id}/quote.
func (h *Handler) PackageQuote(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	id, err := common.PathID(r, "id")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	sum, err := h.service.PackageQuote(r.Context(), id)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, sum)
}

// Create handles POST /api/v1/quotes. An empty body starts a blank quote.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var in CreateInput
	if r.ContentLength != 0 && r.Body != nil && r.Body != http.NoBody {
		if err := common.Decode(r, &in); err != nil {
			common.WriteError(w, err)
			return
		}
	}
	view, err := h.service.Create(r.Context(), in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, view)
}

// Get handles GET /api/v1/quotes/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	view, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, view)
}

// AddRow handles POST /api/v1/quotes/{id}/rows.
func (h *Handler) AddRow(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var req addRowRequest
	if err := common.Decode(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	category, err := catalog.ParseCategory(req.Category)
	if err != nil {
		common.WriteError(w, common.Validation("category", "category is not recognised"))
		return
	}
	view, err := h.service.AddRow(r.Context(), chi.URLParam(r, "id"), category, req.Revision)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, view)
}

// SetField handles PATCH /api/v1/quotes/{id}/rows/{rowId}.
func (h *Handler) SetField(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var in SetFieldInput
	if err := common.Decode(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	view, err := h.service.SetField(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "rowId"), in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, view)
}

// RemoveRow handles DELETE /api/v1/quotes/{id}/rows/{rowId}?revision=N.
func (h *Handler) RemoveRow(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	revision, err := queryRevision(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	view, err := h.service.RemoveRow(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "rowId"), revision)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, view)
}

// SetDiscount handles PUT /api/v1/quotes/{id}/discount.
func (h *Handler) SetDiscount(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var req discountRequest
	if err := common.Decode(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	view, err := h.service.SetDiscount(r.Context(), chi.URLParam(r, "id"), req.DiscountedPrice, req.Revision)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, view)
}

func queryRevision(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("revision"))
	if raw == "" {
		return 0, nil
	}
	rev, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || rev < 0 {
		return 0, common.Validation("revision", "revision must be a non-negative integer")
	}
	return rev, nil
}

func (h *Handler) ready(w http.ResponseWriter) bool {
	if h == nil || h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "quote service not configured", nil)
		return false
	}
	return true
}
