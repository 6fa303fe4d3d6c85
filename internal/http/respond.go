package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/EdrumVIOT/Back-End/internal/auth"
	"github.com/EdrumVIOT/Back-End/internal/service"
)

// Response is the uniform envelope every endpoint returns.
type Response struct {
	Success bool        `json:"success"`
	Status  int         `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func respondData(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, Response{Success: true, Status: status, Data: data})
}

func respondMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Response{Success: true, Status: status, Message: message})
}

func respondError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Response{Success: false, Status: status, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, body Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

// respondServiceError maps business-rule failures onto status codes the UI
// can act on; anything unrecognized is a generic 503.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidArgument):
		respondError(w, http.StatusBadRequest, "invalid request")
	case errors.Is(err, service.ErrEmptyCart):
		respondError(w, http.StatusBadRequest, "cart is empty or not found")
	case errors.Is(err, service.ErrProductNotFound):
		respondError(w, http.StatusNotFound, "product not found")
	case errors.Is(err, service.ErrCartNotFound):
		respondError(w, http.StatusNotFound, "cart not found")
	case errors.Is(err, service.ErrItemNotFound):
		respondError(w, http.StatusNotFound, "product not found in cart")
	case errors.Is(err, service.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, service.ErrCartOrdered):
		respondError(w, http.StatusConflict, "cart has already been ordered")
	case errors.Is(err, service.ErrRateLimited):
		respondError(w, http.StatusTooManyRequests, "please wait before requesting a new OTP")
	case errors.Is(err, service.ErrOtpExpired):
		respondError(w, http.StatusForbidden, "OTP expired, request a new one")
	case errors.Is(err, service.ErrInvalidOtp):
		respondError(w, http.StatusUnauthorized, "invalid OTP")
	case errors.Is(err, service.ErrForbidden):
		respondError(w, http.StatusForbidden, "insufficient permissions")
	case errors.Is(err, service.ErrDeliveryFailed):
		respondError(w, http.StatusServiceUnavailable, "failed to send OTP")
	case errors.Is(err, auth.ErrInvalidToken):
		respondError(w, http.StatusUnauthorized, "invalid or expired access token")
	default:
		log.Error().Err(err).Msg("unexpected service error")
		respondError(w, http.StatusServiceUnavailable, "service temporarily unavailable")
	}
}
