package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"boostmarket/internal/auth"
	"boostmarket/internal/middleware"
	"boostmarket/internal/services"

	"go.uber.org/zap"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

type serviceError struct {
	target error
	status int
	code   string
}

var serviceErrors = []serviceError{
	{services.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
	{services.ErrInsufficientFunds, http.StatusBadRequest, "insufficient_funds"},
	{services.ErrSameWallet, http.StatusBadRequest, "same_wallet"},
	{services.ErrValidationFailed, http.StatusBadRequest, "validation_failed"},
	{services.ErrInvalidExchangeRequest, http.StatusBadRequest, "invalid_exchange_request"},
	{services.ErrForbidden, http.StatusForbidden, "forbidden"},
	{services.ErrWalletNotFound, http.StatusNotFound, "wallet_not_found"},
	{services.ErrOrderNotFound, http.StatusNotFound, "order_not_found"},
	{services.ErrServiceNotFound, http.StatusNotFound, "service_not_found"},
	{services.ErrQuoteNotFound, http.StatusNotFound, "quote_not_found"},
	{services.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{services.ErrNoWalletAvailable, http.StatusConflict, "no_wallet_available"},
	{services.ErrQuoteExpired, http.StatusConflict, "quote_expired"},
	{services.ErrQuoteConsumed, http.StatusConflict, "quote_consumed"},
	{services.ErrExchangeRateNotSet, http.StatusUnprocessableEntity, "exchange_rate_not_set"},
}

// respondServiceError maps a service sentinel to its status and code. Anything else is logged
// and reported as fallback.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	for _, known := range serviceErrors {
		if errors.Is(err, known.target) {
			respondError(w, known.status, known.code)
			return
		}
	}
	h.logger.Error("request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("code", fallback),
		zap.Error(err),
	)
	respondError(w, http.StatusInternalServerError, fallback)
}

// caller returns the authenticated user, writing a 401 when there is none.
func caller(w http.ResponseWriter, r *http.Request) (string, auth.Role, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok || userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return "", "", false
	}
	role, _ := middleware.RoleFromContext(r.Context())
	return userID, role, true
}
