package cart

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/delifood/delifood/internal/authgate"
	"github.com/delifood/delifood/internal/platform/httpx"
	"github.com/delifood/delifood/internal/shared"
)

// Guard produces permission-checking middleware.
type Guard interface {
	Require(perms ...string) func(http.Handler) http.Handler
}

// Handler exposes the caller's cart.
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

// MountRoutes registers /cart routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/cart", func(r chi.Router) {
		r.With(h.guard.Require("get:cart")).Get("/", h.get)
		r.With(h.guard.Require("create:cart/item")).Post("/item", h.addItem)
		r.With(h.guard.Require("patch:cart/item")).Patch("/item/{id}", h.setQuantity)
		r.With(h.guard.Require("delete:cart/item")).Delete("/item/{id}", h.removeItem)
	})
}

type addItemRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,min=1,max=1000"`
}

type quantityRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1,max=1000"`
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	view, err := h.service.Cart(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req addItemRequest
	if err := httpx.Bind(r, h.validate, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	item, err := h.service.AddItem(r.Context(), userID, req.ProductID, req.Quantity)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
}

func (h *Handler) setQuantity(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req quantityRequest
	if err := httpx.Bind(r, h.validate, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	item, err := h.service.SetQuantity(r.Context(), userID, chi.URLParam(r, "id"), req.Quantity)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.service.RemoveItem(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.NoContent(w, http.StatusNoContent)
}

// callerID returns the user principal's id. Carts belong to users only.
func callerID(r *http.Request) (string, error) {
	p, ok := authgate.PrincipalFromContext(r.Context())
	if !ok {
		return "", fmt.Errorf("no principal: %w", shared.ErrUnauthenticated)
	}
	if p.Kind != authgate.KindUser {
		return "", fmt.Errorf("%s principal has no cart: %w", p.Kind, shared.ErrForbidden)
	}
	return p.ID, nil
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error("cart request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
