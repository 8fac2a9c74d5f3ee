package handlers

import (
	"errors"
	"net/http"
	"strings"

	"boostmarket/internal/auth"
	"boostmarket/internal/models"
	"boostmarket/internal/services"
	"boostmarket/internal/validator"

	"github.com/go-chi/chi/v5"
)

type createOrderRequest struct {
	ServiceID  string `json:"service_id"`
	Currency   string `json:"currency"`
	RealmID    string `json:"realm_id"`
	SubBalance string `json:"sub_balance"`
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := caller(w, r)
	if !ok {
		return
	}
	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if strings.TrimSpace(req.ServiceID) == "" {
		respondError(w, http.StatusBadRequest, "service_id is required")
		return
	}
	currency, err := models.ParseCurrency(req.Currency)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_currency")
		return
	}
	sub, err := parseSubBalance(req.SubBalance)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_sub_balance")
		return
	}
	purchase := services.PurchaseRequest{
		ServiceID:  strings.TrimSpace(req.ServiceID),
		BuyerID:    userID,
		Currency:   currency,
		SubBalance: sub,
	}
	if realm := strings.TrimSpace(req.RealmID); realm != "" {
		ref := models.GoldRef(realm)
		purchase.Wallet = &ref
	}
	order, err := h.orders.Purchase(r.Context(), purchase)
	if err != nil {
		h.respondServiceError(w, r, err, "purchase_failed")
		return
	}
	respondJSON(w, http.StatusCreated, newOrderView(order))
}

// canSeeAllOrders covers the staff roles that work the review queue.
func canSeeAllOrders(role auth.Role) bool {
	return role == auth.RoleReviewer || role == auth.RoleAdmin
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID, role, ok := caller(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	limit, offset := parsePage(query)
	filter := services.OrderFilter{
		UserID: userID,
		Status: models.OrderStatus(strings.ToLower(query.Get("status"))),
		Limit:  limit,
		Offset: offset,
	}
	if canSeeAllOrders(role) {
		filter.UserID = query.Get("user_id")
	}
	orders, err := h.orders.List(r.Context(), filter)
	if err != nil {
		h.respondServiceError(w, r, err, "unable_to_fetch_orders")
		return
	}
	respondJSON(w, http.StatusOK, newOrderViews(orders))
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	userID, role, ok := caller(w, r)
	if !ok {
		return
	}
	order, err := h.orders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, r, err, "unable_to_fetch_order")
		return
	}
	if !canSeeAllOrders(role) && !services.IsOrderParticipant(order, userID) {
		respondError(w, http.StatusNotFound, "order_not_found")
		return
	}
	respondJSON(w, http.StatusOK, newOrderView(order))
}

type assignOrderRequest struct {
	BoosterID string `json:"booster_id"`
}

// AssignOrder lets a booster claim an order. Admins may assign any booster.
func (h *Handler) AssignOrder(w http.ResponseWriter, r *http.Request) {
	userID, role, ok := caller(w, r)
	if !ok {
		return
	}
	var req assignOrderRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid payload")
			return
		}
	}
	boosterID := userID
	if target := strings.TrimSpace(req.BoosterID); target != "" && target != userID {
		if role != auth.RoleAdmin {
			respondError(w, http.StatusForbidden, "forbidden")
			return
		}
		boosterID = target
	}
	order, err := h.orders.Assign(r.Context(), chi.URLParam(r, "id"), boosterID)
	if err != nil {
		h.respondServiceError(w, r, err, "assign_failed")
		return
	}
	respondJSON(w, http.StatusOK, newOrderView(order))
}

func (h *Handler) StartOrder(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := caller(w, r)
	if !ok {
		return
	}
	order, err := h.orders.Start(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		h.respondServiceError(w, r, err, "start_failed")
		return
	}
	respondJSON(w, http.StatusOK, newOrderView(order))
}

const multipartOverhead = 1 << 20

// SubmitEvidence accepts a multipart form with a "file" part and optional "notes".
func (h *Handler) SubmitEvidence(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := caller(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, validator.MaxEvidenceSize+multipartOverhead)
	if err := r.ParseMultipartForm(multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "evidence_too_large")
			return
		}
		respondError(w, http.StatusBadRequest, "invalid multipart payload")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()
	ref, size, err := evidenceRef(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "unable to read evidence")
		return
	}
	order, err := h.orders.SubmitEvidence(r.Context(), chi.URLParam(r, "id"), services.EvidenceInput{
		UploadedBy: userID,
		File: models.EvidenceFile{
			Name:        header.Filename,
			Size:        size,
			ContentType: header.Header.Get("Content-Type"),
			Ref:         ref,
		},
		Notes: r.FormValue("notes"),
	})
	if err != nil {
		h.respondServiceError(w, r, err, "submit_evidence_failed")
		return
	}
	respondJSON(w, http.StatusOK, newOrderView(order))
}

func (h *Handler) BeginReview(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := caller(w, r)
	if !ok {
		return
	}
	order, err := h.orders.BeginReview(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		h.respondServiceError(w, r, err, "begin_review_failed")
		return
	}
	respondJSON(w, http.StatusOK, newOrderView(order))
}

type reviewRequest struct {
	Approve bool   `json:"approve"`
	Reason  string `json:"reason"`
}

func (h *Handler) ReviewEvidence(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := caller(w, r)
	if !ok {
		return
	}
	var req reviewRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	order, err := h.orders.ReviewEvidence(r.Context(), chi.URLParam(r, "id"), services.ReviewDecision{
		ReviewerID: userID,
		Approve:    req.Approve,
		Reason:     req.Reason,
	})
	if err != nil {
		h.respondServiceError(w, r, err, "review_failed")
		return
	}
	respondJSON(w, http.StatusOK, newOrderView(order))
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	userID, role, ok := caller(w, r)
	if !ok {
		return
	}
	order, err := h.orders.Cancel(r.Context(), services.CancelRequest{
		OrderID: chi.URLParam(r, "id"),
		ActorID: userID,
		AsAdmin: role == auth.RoleAdmin,
	})
	if err != nil {
		h.respondServiceError(w, r, err, "cancel_failed")
		return
	}
	respondJSON(w, http.StatusOK, newOrderView(order))
}
