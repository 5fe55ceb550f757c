package rbac

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

// Handler exposes permission and role administration over JSON.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	guard    Guard
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard Guard) *Handler {
	return &Handler{logger: logger, service: service, guard: guard, validate: validator.New()}
}

// MountRoutes registers /permissions and /roles.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/permissions", func(r chi.Router) {
		r.With(h.guard.Require("create:permission")).Post("/", h.createPermission)
		r.With(h.guard.Require("list:permission")).Get("/", h.listPermissions)
		r.With(h.guard.Require("get:permission")).Get("/{id}", h.getPermission)
		r.With(h.guard.Require("patch:permission")).Patch("/{id}", h.patchPermission)
		r.With(h.guard.Require("delete:permission")).Delete("/{id}", h.deletePermission)
	})
	r.Route("/roles", func(r chi.Router) {
		r.With(h.guard.Require("create:role")).Post("/", h.createRole)
		r.With(h.guard.Require("list:role")).Get("/", h.listRoles)
		r.With(h.guard.Require("get:role")).Get("/{id}", h.getRole)
		r.With(h.guard.Require("patch:role")).Patch("/{id}", h.patchRole)
		r.With(h.guard.Require("delete:role")).Delete("/{id}", h.deleteRole)
		r.With(h.guard.Require("put:role/permission")).Put("/{id}/permissions", h.putRolePermissions)
	})
}

type permissionRequest struct {
	Name  string `json:"name" validate:"required"`
	Value string `json:"value" validate:"required"`
}

type permissionPatchRequest struct {
	Name  *string `json:"name" validate:"omitempty,min=1"`
	Value *string `json:"value" validate:"omitempty,min=1"`
}

type roleRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

type rolePatchRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1"`
	Description *string `json:"description"`
}

type rolePermissionsRequest struct {
	Permissions []string `json:"permissions" validate:"required,dive,required"`
}

func (h *Handler) createPermission(w http.ResponseWriter, r *http.Request) {
	var req permissionRequest
	if err := httpx.Bind(r, h.validate, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.service.CreatePermission(r.Context(), req.Name, req.Value)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.ListPermissions(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if perms == nil {
		perms = []Permission{}
	}
	httpx.JSON(w, http.StatusOK, perms)
}

func (h *Handler) getPermission(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetPermission(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) patchPermission(w http.ResponseWriter, r *http.Request) {
	var req permissionPatchRequest
	if err := httpx.Bind(r, h.validate, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.service.PatchPermission(r.Context(), chi.URLParam(r, "id"), PermissionPatch{Name: req.Name, Value: req.Value})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) deletePermission(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeletePermission(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.NoContent(w, http.StatusNoContent)
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := httpx.Bind(r, h.validate, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	role, err := h.service.CreateRole(r.Context(), req.Name, req.Description)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, role)
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if roles == nil {
		roles = []Role{}
	}
	httpx.JSON(w, http.StatusOK, roles)
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.GetRole(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) patchRole(w http.ResponseWriter, r *http.Request) {
	var req rolePatchRequest
	if err := httpx.Bind(r, h.validate, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	role, err := h.service.PatchRole(r.Context(), chi.URLParam(r, "id"), RolePatch{Name: req.Name, Description: req.Description})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteRole(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.NoContent(w, http.StatusNoContent)
}

func (h *Handler) putRolePermissions(w http.ResponseWriter, r *http.Request) {
	var req rolePermissionsRequest
	if err := httpx.Bind(r, h.validate, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	view, err := h.service.PutRolePermissions(r.Context(), chi.URLParam(r, "id"), req.Permissions)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error("rbac request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
