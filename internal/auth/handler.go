package auth

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/delifood/delifood/internal/platform/httpx"
)

// Guard produces permission-checking middleware.
type Guard interface {
	Require(perms ...string) func(http.Handler) http.Handler
}

// Handler wires HTTP endpoints for sign-up, sign-in and account administration.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	guard       Guard
	validator   *validator.Validate
	signinLimit int
}

// NewHandler constructs a Handler instance. signinLimit caps sign-in attempts
// per client IP per minute; zero disables the limit.
func NewHandler(logger *slog.Logger, service *Service, guard Guard, signinLimit int) *Handler {
	return &Handler{
		logger:      logger,
		service:     service,
		guard:       guard,
		validator:   validator.New(),
		signinLimit: signinLimit,
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/signup", h.handleSignUp)
	r.Group(func(r chi.Router) {
		if h.signinLimit > 0 {
			r.Use(httprate.LimitByIP(h.signinLimit, time.Minute))
		}
		r.Post("/signin", h.handleSignIn)
	})
	r.Route("/users", func(r chi.Router) {
		r.With(h.guard.Require("create:user")).Post("/", h.createUser)
		r.With(h.guard.Require("list:user")).Get("/", h.listUsers)
		r.With(h.guard.Require("get:user")).Get("/{id}", h.getUser)
		r.With(h.guard.Require("patch:user")).Patch("/{id}", h.patchUser)
		r.With(h.guard.Require("delete:user")).Delete("/{id}", h.deleteUser)
		r.With(h.guard.Require("put:user/role")).Put("/{id}/roles", h.putUserRoles)
	})
}

type credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type createUserRequest struct {
	Email    string   `json:"email" validate:"required,email"`
	Password string   `json:"password" validate:"required,min=8,max=72"`
	Roles    []string `json:"roles" validate:"dive,required"`
}

type patchUserRequest struct {
	Email    *string `json:"email" validate:"omitempty,email"`
	Password *string `json:"password" validate:"omitempty,min=8,max=72"`
}

type userRolesRequest struct {
	Roles []string `json:"roles" validate:"required,dive,required"`
}

func (h *Handler) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	user, err := h.service.SignUp(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, user)
}

func (h *Handler) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	session, err := h.service.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, session)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	user, err := h.service.CreateUser(r.Context(), req.Email, req.Password, req.Roles)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, user)
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if users == nil {
		users = []User{}
	}
	httpx.JSON(w, http.StatusOK, users)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) patchUser(w http.ResponseWriter, r *http.Request) {
	var req patchUserRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	user, err := h.service.PatchUser(r.Context(), chi.URLParam(r, "id"), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteUser(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.NoContent(w, http.StatusNoContent)
}

func (h *Handler) putUserRoles(w http.ResponseWriter, r *http.Request) {
	var req userRolesRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	user, err := h.service.PutUserRoles(r.Context(), chi.URLParam(r, "id"), req.Roles)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error("auth request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
