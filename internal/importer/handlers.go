package importer

import (
	"bytes"
	"errors"
	"mime"
	"net/http"
	"strconv"

	"github.com/noah-isme/pcquote-api/internal/common"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handler exposes catalog import and export.
type Handler struct {
	service  *Service
	maxBytes int64
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service  *Service
	MaxBytes int64
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	limit := cfg.MaxBytes
	if limit <= 0 {
		limit = 5 << 20
	}
	return &Handler{service: cfg.Service, maxBytes: limit}
}

type jsonImport struct {
	Products []RawRow `json:"products"`
}

// Import handles POST /api/v1/admin/catalog/import. A multipart upload with
// a "file" field is read as xlsx; anything else as {"products":[...]}.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(h.maxBytes); err != nil {
			common.WriteError(w, bodyError(err))
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			common.WriteError(w, common.Validation("file", "file is required"))
			return
		}
		defer file.Close()
		res, err := h.service.ImportXLSX(r.Context(), file)
		if err != nil {
			common.WriteError(w, err)
			return
		}
		common.Data(w, http.StatusOK, res)
		return
	}

	var body jsonImport
	if err := common.Decode(r, &body); err != nil {
		common.WriteError(w, bodyError(err))
		return
	}
	for i := range body.Products {
		body.Products[i].Row = i + 1
	}
	res, err := h.service.Import(r.Context(), FormatJSON, body.Products)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, res)
}

// Export handles GET /api/v1/admin/catalog/export.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var buf bytes.Buffer
	if err := h.service.Export(r.Context(), &buf); err != nil {
		common.WriteError(w, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="catalog.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return common.NewAppError(common.CodeBadRequest, "upload is too large", http.StatusRequestEntityTooLarge, err)
	}
	if common.IsAppError(err) {
		return err
	}
	return common.NewAppError(common.CodeBadRequest, "invalid upload", http.StatusBadRequest, err)
}

func (h *Handler) ready(w http.ResponseWriter) bool {
	if h == nil || h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "import service not configured", nil)
		return false
	}
	return true
}
