package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/EdrumVIOT/Back-End/internal/domain"
	"github.com/EdrumVIOT/Back-End/internal/service"
)

type CartHandler struct {
	carts   *service.CartService
	merger  *service.MergeService
	timeout time.Duration
}

func NewCartHandler(carts *service.CartService, merger *service.MergeService, timeout time.Duration) *CartHandler {
	return &CartHandler{
		carts:   carts,
		merger:  merger,
		timeout: timeout,
	}
}

type AddItemRequestDTO struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	CartID    string `json:"cart_id,omitempty"`
}

type AssignCartRequestDTO struct {
	CartID string `json:"cart_id"`
}

// scopeFrom resolves cart addressing: an authenticated identity always wins;
// otherwise the opaque guest cart id is used, which may be empty (fresh
// guest for AddItem, empty result for reads).
func scopeFrom(ctx context.Context, cartID string) domain.CartScope {
	if id, ok := identityFrom(ctx); ok {
		return domain.OwnedScope(id.UserID)
	}
	return domain.GuestScope(cartID)
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "product_id is required")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	scope := scopeFrom(r.Context(), req.CartID)
	cart, err := h.carts.AddItem(ctx, scope, req.ProductID, req.Quantity)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondData(w, http.StatusOK, cart)
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	scope := scopeFrom(r.Context(), r.URL.Query().Get("cart_id"))
	cart, err := h.carts.GetCart(ctx, scope)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondData(w, http.StatusOK, cart)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID := chi.URLParam(r, "product_id")
	if productID == "" {
		respondError(w, http.StatusBadRequest, "product_id is required")
		return
	}

	scope := scopeFrom(r.Context(), r.URL.Query().Get("cart_id"))
	cart, err := h.carts.RemoveItem(ctx, scope, productID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondData(w, http.StatusOK, cart)
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	scope := scopeFrom(r.Context(), r.URL.Query().Get("cart_id"))
	cart, err := h.carts.Clear(ctx, scope)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondData(w, http.StatusOK, cart)
}

// AssignCart merges a guest cart into the authenticated caller's cart.
func (h *CartHandler) AssignCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := identityFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "missing user authentication")
		return
	}

	var req AssignCartRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.CartID == "" {
		respondError(w, http.StatusBadRequest, "cart_id is required")
		return
	}

	cart, err := h.merger.MergeGuestCart(ctx, id.UserID, req.CartID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondData(w, http.StatusOK, cart)
}
