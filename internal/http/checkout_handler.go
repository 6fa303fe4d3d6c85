package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/EdrumVIOT/Back-End/internal/service"
)

type CheckoutHandler struct {
	checkout *service.CheckoutService
	timeout  time.Duration
}

func NewCheckoutHandler(checkout *service.CheckoutService, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout, timeout: timeout}
}

type GuestOtpRequestDTO struct {
	PhoneNumber string `json:"phone_number"`
}

type GuestOrderRequestDTO struct {
	PhoneNumber string `json:"phone_number"`
	Otp         string `json:"otp,omitempty"`
	CartID      string `json:"cart_id,omitempty"`
	Action      string `json:"action"`
}

type MakeOrderRequestDTO struct {
	CartID string `json:"cart_id,omitempty"`
}

// RequestGuestOtp issues the checkout OTP for a guest's phone number.
func (h *CheckoutHandler) RequestGuestOtp(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req GuestOtpRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.PhoneNumber == "" {
		respondError(w, http.StatusBadRequest, "phone_number is required")
		return
	}

	if err := h.checkout.RequestGuestOtp(ctx, req.PhoneNumber); err != nil {
		respondServiceError(w, err)
		return
	}

	respondMessage(w, http.StatusOK, "OTP sent successfully to phone number")
}

// VerifyGuestOrder multiplexes resend and verify on the action field.
func (h *CheckoutHandler) VerifyGuestOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req GuestOrderRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	receipt, err := h.checkout.VerifyGuestOrder(ctx, service.GuestOrderRequest{
		PhoneNumber: req.PhoneNumber,
		Otp:         req.Otp,
		CartID:      req.CartID,
		Action:      req.Action,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	if receipt == nil {
		respondMessage(w, http.StatusOK, "OTP resent successfully")
		return
	}
	respondData(w, http.StatusOK, receipt)
}

// MakeOrder is the authenticated checkout.
func (h *CheckoutHandler) MakeOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := identityFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "missing user authentication")
		return
	}

	var req MakeOrderRequestDTO
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	receipt, err := h.checkout.MakeOrder(ctx, id.UserID, req.CartID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondData(w, http.StatusOK, receipt)
}
