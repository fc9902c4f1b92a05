package projects

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sitedesk-erp/sitedesk/internal/masterdata/shared"
	"github.com/sitedesk-erp/sitedesk/internal/platform/httpx"
)

// Handler exposes project master data as a JSON API.
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
	r.Route("/projects", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Get("/{id}", h.handleGet)
		r.Put("/{id}", h.handleUpdate)
	})
}

type projectRequest struct {
	Code        string `json:"code" validate:"required"`
	Name        string `json:"name" validate:"required"`
	SiteAddress string `json:"site_address"`
	IsActive    *bool  `json:"is_active"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	filters := shared.ListFilters{
		Page:   page,
		Limit:  limit,
		Search: r.URL.Query().Get("search"),
	}
	if active := r.URL.Query().Get("active"); active != "" {
		v := active == "true"
		filters.IsActive = &v
	}
	list, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.respondErr(w, r, "list projects", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"projects": list, "total": total})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be numeric")
		return
	}
	project, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondErr(w, r, "get project", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"project": project})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var body projectRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed JSON", err.Error())
		return
	}
	if fields := h.fieldErrors(body); fields != nil {
		httpx.ValidationProblem(w, fields)
		return
	}
	project, err := h.service.Create(r.Context(), Project{
		Code:        body.Code,
		Name:        body.Name,
		SiteAddress: body.SiteAddress,
	})
	if err != nil {
		h.respondErr(w, r, "create project", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"project": project})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be numeric")
		return
	}
	var body projectRequest
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
	err = h.service.Update(r.Context(), id, Project{
		Code:        body.Code,
		Name:        body.Name,
		SiteAddress: body.SiteAddress,
		IsActive:    active,
	})
	if err != nil {
		h.respondErr(w, r, "update project", err)
		return
	}
	project, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondErr(w, r, "update project", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"project": project})
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
	case errors.Is(err, shared.ErrInvalidID),
		errors.Is(err, shared.ErrValidation),
		errors.Is(err, shared.ErrRequiredField):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err), slog.String("path", r.URL.Path))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
