package products

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/delifood/delifood/internal/platform/httpx"
)

type categoryRequest struct {
	Name        string `json:"name" validate:"required,min=4,max=100"`
	Description string `json:"description" validate:"max=2000"`
}

type categoryPatchRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=4,max=100"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
}

type tagRequest struct {
	Value string `json:"value" validate:"required,max=64"`
}

type productCategoriesRequest struct {
	Categories []string `json:"categories" validate:"required,dive,required"`
}

type productTagsRequest struct {
	Tags []string `json:"tags" validate:"required,dive,required"`
}

func (h *Handler) createCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := httpx.Bind(r, h.validate, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	c, err := h.taxonomy.CreateCategory(r.Context(), req.Name, req.Description)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	items, err := h.taxonomy.ListCategories(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if items == nil {
		items = []Category{}
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) getCategory(w http.ResponseWriter, r *http.Request) {
	c, err := h.taxonomy.GetCategory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) patchCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryPatchRequest
	if err := httpx.Bind(r, h.validate, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	c, err := h.taxonomy.PatchCategory(r.Context(), chi.URLParam(r, "id"), CategoryPatch{Name: req.Name, Description: req.Description})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) deleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := h.taxonomy.DeleteCategory(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.NoContent(w, http.StatusNoContent)
}

func (h *Handler) createTag(w http.ResponseWriter, r *http.Request) {
	var req tagRequest
	if err := httpx.Bind(r, h.validate, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	t, err := h.taxonomy.CreateTag(r.Context(), req.Value)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, t)
}

func (h *Handler) listTags(w http.ResponseWriter, r *http.Request) {
	items, err := h.taxonomy.ListTags(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if items == nil {
		items = []Tag{}
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) getTag(w http.ResponseWriter, r *http.Request) {
	t, err := h.taxonomy.GetTag(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}

func (h *Handler) patchTag(w http.ResponseWriter, r *http.Request) {
	var req tagRequest
	if err := httpx.Bind(r, h.validate, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	t, err := h.taxonomy.PatchTag(r.Context(), chi.URLParam(r, "id"), req.Value)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}

func (h *Handler) deleteTag(w http.ResponseWriter, r *http.Request) {
	if err := h.taxonomy.DeleteTag(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.NoContent(w, http.StatusNoContent)
}

func (h *Handler) putCategories(w http.ResponseWriter, r *http.Request) {
	var req productCategoriesRequest
	if err := httpx.Bind(r, h.validate, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.taxonomy.PutProductCategories(r.Context(), chi.URLParam(r, "id"), req.Categories)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) putTags(w http.ResponseWriter, r *http.Request) {
	var req productTagsRequest
	if err := httpx.Bind(r, h.validate, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.taxonomy.PutProductTags(r.Context(), chi.URLParam(r, "id"), req.Tags)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}
