package procure

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/sitedesk-erp/sitedesk/internal/money"
	"github.com/sitedesk-erp/sitedesk/internal/platform/httpx"
	"github.com/sitedesk-erp/sitedesk/internal/shared"
)

// Handler exposes the workflow as a JSON API.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers workflow routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/requisitions", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Post("/preview", h.handlePreview)
		r.Get("/{id}", h.handleGet)
		r.Put("/{id}/items", h.handleUpdateItems)
		r.Post("/{id}/decision", h.handleDecision)
	})
	r.Get("/purchase-orders/{id}", h.handleGetPO)
}

type itemRequest struct {
	Description string `json:"description" validate:"required"`
	Quantity    int64  `json:"quantity" validate:"required,gt=0"`
	Unit        string `json:"unit" validate:"required"`
	UnitPrice   string `json:"unit_price" validate:"required"`
	VATType     string `json:"vat_type" validate:"required,oneof=standard zero reverse-charge"`
}

type createRequest struct {
	ProjectID            int64         `json:"project_id" validate:"required,gt=0"`
	SupplierID           int64         `json:"supplier_id" validate:"required,gt=0"`
	DeliveryDate         string        `json:"delivery_date" validate:"required,datetime=2006-01-02"`
	DeliveryAddress      string        `json:"delivery_address" validate:"required"`
	DeliveryInstructions string        `json:"delivery_instructions"`
	Items                []itemRequest `json:"items" validate:"required,min=1,dive"`
}

type decisionRequest struct {
	Action   string `json:"action" validate:"required,oneof=approve reject cancel"`
	PONumber string `json:"po_number"`
	Reason   string `json:"reason"`
}

type itemsRequest struct {
	Items []itemRequest `json:"items" validate:"required,min=1,dive"`
}

type totalsResponse struct {
	Subtotal         string `json:"subtotal"`
	StandardVAT      string `json:"standard_vat"`
	ReverseChargeOut string `json:"reverse_charge_vat_out"`
	ReverseChargeIn  string `json:"reverse_charge_vat_in"`
	ZeroVAT          string `json:"zero_vat"`
	GrandTotal       string `json:"grand_total"`
}

func toTotalsResponse(t money.Totals) totalsResponse {
	return totalsResponse{
		Subtotal:         t.Subtotal.StringFixed(2),
		StandardVAT:      t.VAT.Standard.StringFixed(2),
		ReverseChargeOut: t.VAT.ReverseChargeOut.StringFixed(2),
		ReverseChargeIn:  t.VAT.ReverseChargeIn.StringFixed(2),
		ZeroVAT:          t.VAT.Zero.StringFixed(2),
		GrandTotal:       t.GrandTotal.StringFixed(2),
	}
}

func toItemInputs(reqs []itemRequest) ([]ItemInput, map[string]string) {
	inputs := make([]ItemInput, 0, len(reqs))
	for i, item := range reqs {
		price, err := decimal.NewFromString(item.UnitPrice)
		if err != nil {
			return nil, map[string]string{
				"items[" + strconv.Itoa(i) + "].unit_price": "must be a decimal amount",
			}
		}
		inputs = append(inputs, ItemInput{
			Description: item.Description,
			Quantity:    item.Quantity,
			Unit:        item.Unit,
			UnitPrice:   price,
			VATType:     money.VATType(item.VATType),
		})
	}
	return inputs, nil
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var body createRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed JSON", err.Error())
		return
	}
	if fields := h.fieldErrors(body); fields != nil {
		httpx.ValidationProblem(w, fields)
		return
	}
	items, fields := toItemInputs(body.Items)
	if fields != nil {
		httpx.ValidationProblem(w, fields)
		return
	}
	deliveryDate, _ := time.Parse("2006-01-02", body.DeliveryDate)

	result, err := h.service.CreateRequisition(r.Context(), shared.ActorFromContext(r.Context()), CreateInput{
		ProjectID:            body.ProjectID,
		SupplierID:           body.SupplierID,
		DeliveryDate:         deliveryDate,
		DeliveryAddress:      body.DeliveryAddress,
		DeliveryInstructions: body.DeliveryInstructions,
		Items:                items,
	})
	if err != nil {
		h.respondErr(w, r, "create requisition", err)
		return
	}
	response := map[string]any{
		"requisition": result.Requisition,
		"items":       result.Items,
		"delivered":   result.Delivered,
	}
	if !result.Delivered {
		response["delivery_detail"] = result.DeliveryDetail
	}
	httpx.JSON(w, http.StatusCreated, response)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be numeric")
		return
	}
	req, items, totals, err := h.service.GetRequisition(r.Context(), id)
	if err != nil {
		h.respondErr(w, r, "get requisition", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"requisition": req,
		"items":       items,
		"totals":      toTotalsResponse(totals),
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	projectID, _ := strconv.ParseInt(r.URL.Query().Get("project_id"), 10, 64)
	supplierID, _ := strconv.ParseInt(r.URL.Query().Get("supplier_id"), 10, 64)
	filters := ListFilters{
		Status:     r.URL.Query().Get("status"),
		ProjectID:  projectID,
		SupplierID: supplierID,
		Search:     r.URL.Query().Get("search"),
		SortBy:     r.URL.Query().Get("sort"),
		SortDir:    r.URL.Query().Get("dir"),
	}
	reqs, total, err := h.service.ListRequisitions(r.Context(), limit, offset, filters)
	if err != nil {
		h.respondErr(w, r, "list requisitions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"requisitions": reqs,
		"total":        total,
	})
}

func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	var body itemsRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed JSON", err.Error())
		return
	}
	if fields := h.fieldErrors(body); fields != nil {
		httpx.ValidationProblem(w, fields)
		return
	}
	items, fields := toItemInputs(body.Items)
	if fields != nil {
		httpx.ValidationProblem(w, fields)
		return
	}
	totals, err := h.service.PreviewTotals(items)
	if err != nil {
		h.respondErr(w, r, "preview totals", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"totals": toTotalsResponse(totals)})
}

func (h *Handler) handleUpdateItems(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be numeric")
		return
	}
	var body itemsRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed JSON", err.Error())
		return
	}
	if fields := h.fieldErrors(body); fields != nil {
		httpx.ValidationProblem(w, fields)
		return
	}
	items, fields := toItemInputs(body.Items)
	if fields != nil {
		httpx.ValidationProblem(w, fields)
		return
	}
	req, updated, err := h.service.UpdateItems(r.Context(), id, shared.ActorFromContext(r.Context()), items)
	if err != nil {
		h.respondErr(w, r, "update items", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"requisition": req,
		"items":       updated,
	})
}

func (h *Handler) handleDecision(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be numeric")
		return
	}
	var body decisionRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed JSON", err.Error())
		return
	}
	if fields := h.fieldErrors(body); fields != nil {
		httpx.ValidationProblem(w, fields)
		return
	}
	result, err := h.service.ProcessDecision(r.Context(), id, shared.ActorFromContext(r.Context()), Decision{
		Type:     DecisionType(body.Action),
		PONumber: body.PONumber,
		Reason:   body.Reason,
	})
	if err != nil {
		h.respondErr(w, r, "process decision", err)
		return
	}
	response := map[string]any{
		"requisition": result.Requisition,
		"delivered":   result.Delivered,
	}
	if result.PurchaseOrder != nil {
		response["purchase_order"] = result.PurchaseOrder
	}
	if !result.Delivered {
		response["delivery_detail"] = result.DeliveryDetail
	}
	httpx.JSON(w, http.StatusOK, response)
}

func (h *Handler) handleGetPO(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be numeric")
		return
	}
	po, err := h.service.GetPurchaseOrder(r.Context(), id)
	if err != nil {
		h.respondErr(w, r, "get purchase order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"purchase_order": po})
}

// fieldErrors validates a DTO and flattens validator output to a field map.
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
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrConflict):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrForbidden):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err), slog.String("path", r.URL.Path))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
