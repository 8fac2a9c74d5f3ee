package handlers

import (
	"net/http"

	"boostmarket/internal/models"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) ListRates(w http.ResponseWriter, r *http.Request) {
	rates, err := h.conversion.Rates(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err, "unable_to_fetch_rates")
		return
	}
	respondJSON(w, http.StatusOK, rates)
}

type setRateRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	Rate string `json:"rate"`
}

func (h *Handler) SetRate(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := caller(w, r)
	if !ok {
		return
	}
	var req setRateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	from, err := models.ParseCurrency(req.From)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_currency")
		return
	}
	to, err := models.ParseCurrency(req.To)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_currency")
		return
	}
	if from == to {
		respondError(w, http.StatusBadRequest, "same_currency")
		return
	}
	rate, err := parseRate(req.Rate)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_rate")
		return
	}
	stored, err := h.conversion.SetExchangeRate(r.Context(), userID, from, to, rate.String())
	if err != nil {
		h.respondServiceError(w, r, err, "set_rate_failed")
		return
	}
	respondJSON(w, http.StatusOK, stored)
}

func (h *Handler) ListReconciliation(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListReconciliation(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err, "unable_to_fetch_reconciliation")
		return
	}
	respondJSON(w, http.StatusOK, newOrderViews(orders))
}

func (h *Handler) RetryEarnings(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := caller(w, r)
	if !ok {
		return
	}
	order, err := h.orders.RetryEarnings(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, r, err, "retry_earnings_failed")
		return
	}
	respondJSON(w, http.StatusOK, newOrderView(order))
}

func (h *Handler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePage(r.URL.Query())
	entries, err := h.audit.List(r.Context(), limit, offset)
	if err != nil {
		h.respondServiceError(w, r, err, "unable_to_fetch_audit_logs")
		return
	}
	if entries == nil {
		entries = []models.AuditEntry{}
	}
	respondJSON(w, http.StatusOK, entries)
}
