package products

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/delifood/delifood/internal/platform/httpx"
)

// Guard produces permission-checking middleware.
type Guard interface {
	Require(perms ...string) func(http.Handler) http.Handler
}

// Handler exposes the catalogue over JSON.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	taxonomy *Taxonomy
	guard    Guard
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, taxonomy *Taxonomy, guard Guard) *Handler {
	return &Handler{logger: logger, service: service, taxonomy: taxonomy, guard: guard, validate: validator.New()}
}

// MountRoutes registers /products, /categories and /tags. Every route needs
// a user principal.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/products", func(r chi.Router) {
		r.With(h.guard.Require("create:product")).Post("/", h.create)
		r.With(h.guard.Require("list:product")).Get("/", h.list)
		r.With(h.guard.Require("get:product")).Get("/{id}", h.get)
		r.With(h.guard.Require("patch:product")).Patch("/{id}", h.patch)
		r.With(h.guard.Require("delete:product")).Delete("/{id}", h.delete)
		r.With(h.guard.Require("put:product/categories")).Put("/{id}/categories", h.putCategories)
		r.With(h.guard.Require("put:product/tags")).Put("/{id}/tags", h.putTags)
	})
	r.Route("/categories", func(r chi.Router) {
		r.With(h.guard.Require("create:category")).Post("/", h.createCategory)
		r.With(h.guard.Require("list:category")).Get("/", h.listCategories)
		r.With(h.guard.Require("get:category")).Get("/{id}", h.getCategory)
		r.With(h.guard.Require("patch:category")).Patch("/{id}", h.patchCategory)
		r.With(h.guard.Require("delete:category")).Delete("/{id}", h.deleteCategory)
	})
	r.Route("/tags", func(r chi.Router) {
		r.With(h.guard.Require("create:tag")).Post("/", h.createTag)
		r.With(h.guard.Require("list:tag")).Get("/", h.listTags)
		r.With(h.guard.Require("get:tag")).Get("/{id}", h.getTag)
		r.With(h.guard.Require("patch:tag")).Patch("/{id}", h.patchTag)
		r.With(h.guard.Require("delete:tag")).Delete("/{id}", h.deleteTag)
	})
}

type createRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	SKU         string `json:"sku" validate:"required,max=64"`
	Description string `json:"description" validate:"max=2000"`
	Price       int64  `json:"price" validate:"gte=0"`
}

type patchRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=200"`
	SKU         *string `json:"sku" validate:"omitempty,min=1,max=64"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	Price       *int64  `json:"price" validate:"omitempty,gte=0"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.Bind(r, h.validate, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.service.Create(r.Context(), Product{Name: req.Name, SKU: req.SKU, Description: req.Description, Price: req.Price})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if items == nil {
		items = []Product{}
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) patch(w http.ResponseWriter, r *http.Request) {
	var req patchRequest
	if err := httpx.Bind(r, h.validate, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), Patch{
		Name:        req.Name,
		SKU:         req.SKU,
		Description: req.Description,
		Price:       req.Price,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.NoContent(w, http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error("products request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
