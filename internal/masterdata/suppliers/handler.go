package suppliers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/sitedesk-erp/sitedesk/internal/masterdata/shared"
	"github.com/sitedesk-erp/sitedesk/internal/money"
	"github.com/sitedesk-erp/sitedesk/internal/platform/httpx"
)

// Handler exposes supplier master data as a JSON API.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/suppliers", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Get("/{id}", h.handleGet)
		r.Put("/{id}", h.handleUpdate)
		r.Get("/{id}/items", h.handleCatalog)
		r.Post("/{id}/items", h.handleAddItem)
		r.Delete("/{id}/items/{itemID}", h.handleRemoveItem)
	})
}

type supplierRequest struct {
	Code     string `json:"code" validate:"required"`
	Name     string `json:"name" validate:"required"`
	Address  string `json:"address"`
	Email    string `json:"email" validate:"omitempty,email"`
	Phone    string `json:"phone"`
	IsActive *bool  `json:"is_active"`
}

type catalogItemRequest struct {
	Description string `json:"description" validate:"required"`
	Unit        string `json:"unit" validate:"required"`
	UnitPrice   string `json:"unit_price" validate:"required"`
	VATType     string `json:"vat_type" validate:"required,oneof=standard zero reverse-charge"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	filters := shared.ListFilters{
		Page:    page,
		Limit:   limit,
		Search:  r.URL.Query().Get("search"),
		SortBy:  r.URL.Query().Get("sort"),
		SortDir: r.URL.Query().Get("dir"),
	}
	if active := r.URL.Query().Get("active"); active != "" {
		v := active == "true"
		filters.IsActive = &v
	}
	list, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.respondErr(w, r, "list suppliers", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"suppliers": list, "total": total})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be numeric")
		return
	}
	supplier, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondErr(w, r, "get supplier", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"supplier": supplier})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var body supplierRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed JSON", err.Error())
		return
	}
	if fields := h.fieldErrors(body); fields != nil {
		httpx.ValidationProblem(w, fields)
		return
	}
	supplier, err := h.service.Create(r.Context(), Supplier{
		Code:    body.Code,
		Name:    body.Name,
		Address: body.Address,
		Email:   body.Email,
		Phone:   body.Phone,
	})
	if err != nil {
		h.respondErr(w, r, "create supplier", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"supplier": supplier})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be numeric")
		return
	}
	var body supplierRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed JSON", err.Error())
		return
	}
	if fields := h.fieldErrors(body); fields != nil {
		httpx.ValidationProblem(w, fields)
		return
	}
	active := true
	if body.IsActive != nil {
		active = *body.IsActive
	}
	err = h.service.Update(r.Context(), id, Supplier{
		Code:     body.Code,
		Name:     body.Name,
		Address:  body.Address,
		Email:    body.Email,
		Phone:    body.Phone,
		IsActive: active,
	})
	if err != nil {
		h.respondErr(w, r, "update supplier", err)
		return
	}
	supplier, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondErr(w, r, "update supplier", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"supplier": supplier})
}

func (h *Handler) handleCatalog(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be numeric")
		return
	}
	items, err := h.service.Catalog(r.Context(), id)
	if err != nil {
		h.respondErr(w, r, "list catalog", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be numeric")
		return
	}
	var body catalogItemRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed JSON", err.Error())
		return
	}
	if fields := h.fieldErrors(body); fields != nil {
		httpx.ValidationProblem(w, fields)
		return
	}
	price, err := decimal.NewFromString(body.UnitPrice)
	if err != nil {
		httpx.ValidationProblem(w, map[string]string{"unit_price": "must be a decimal amount"})
		return
	}
	item, err := h.service.AddCatalogItem(r.Context(), CatalogItem{
		SupplierID:  id,
		Description: body.Description,
		Unit:        body.Unit,
		UnitPrice:   price,
		VATType:     money.VATType(body.VATType),
	})
	if err != nil {
		h.respondErr(w, r, "add catalog item", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"item": item})
}

func (h *Handler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be numeric")
		return
	}
	itemID, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "itemID must be numeric")
		return
	}
	if err := h.service.RemoveCatalogItem(r.Context(), id, itemID); err != nil {
		h.respondErr(w, r, "remove catalog item", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fieldErrors(body any) map[string]string {
	err := h.validate.Struct(body)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"body": err.Error()}
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Namespace()] = "failed " + fe.Tag() + " validation"
	}
	return fields
}

func (h *Handler) respondErr(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrDuplicate):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrInvalidID),
		errors.Is(err, shared.ErrValidation),
		errors.Is(err, shared.ErrRequiredField):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err), slog.String("path", r.URL.Path))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
