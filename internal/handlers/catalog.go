package handlers

import (
	"net/http"
	"strings"

	"boostmarket/internal/auth"
	"boostmarket/internal/models"
	"boostmarket/internal/services"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) SearchServices(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	minPrice, err := parseOptionalMinor(query.Get("min_price"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_min_price")
		return
	}
	maxPrice, err := parseOptionalMinor(query.Get("max_price"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_max_price")
		return
	}
	limit, offset := parsePage(query)
	listings, err := h.catalog.Search(r.Context(), services.SearchFilter{
		GameID:        query.Get("game_id"),
		ServiceTypeID: query.Get("service_type_id"),
		WorkspaceType: models.WorkspaceType(strings.ToLower(query.Get("workspace_type"))),
		CreatedBy:     query.Get("created_by"),
		Currency:      models.Currency(strings.ToLower(query.Get("currency"))),
		MinPrice:      minPrice,
		MaxPrice:      maxPrice,
		Query:         query.Get("q"),
		Status:        models.ListingStatus(strings.ToLower(query.Get("status"))),
		Sort:          query.Get("sort"),
		Limit:         limit,
		Offset:        offset,
	})
	if err != nil {
		h.respondServiceError(w, r, err, "search_failed")
		return
	}
	out := make([]listingView, 0, len(listings))
	for _, listing := range listings {
		out = append(out, newListingView(listing))
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handler) GetService(w http.ResponseWriter, r *http.Request) {
	listing, err := h.catalog.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, r, err, "unable_to_fetch_service")
		return
	}
	respondJSON(w, http.StatusOK, newListingView(listing))
}

type createServiceRequest struct {
	GameID           string    `json:"game_id"`
	ServiceTypeID    string    `json:"service_type_id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Prices           priceView `json:"prices"`
	WorkspaceType    string    `json:"workspace_type"`
	WorkspaceOwnerID string    `json:"workspace_owner_id"`
}

func (h *Handler) CreateService(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := caller(w, r)
	if !ok {
		return
	}
	var req createServiceRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	var prices models.Prices
	var err error
	if prices.Gold, err = parseOptionalMinor(req.Prices.Gold); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_price")
		return
	}
	if prices.USD, err = parseOptionalMinor(req.Prices.USD); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_price")
		return
	}
	if prices.Toman, err = parseOptionalMinor(req.Prices.Toman); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_price")
		return
	}
	listing, err := h.catalog.Create(r.Context(), services.CreateListingRequest{
		CreatedBy:        userID,
		GameID:           req.GameID,
		ServiceTypeID:    req.ServiceTypeID,
		Title:            req.Title,
		Description:      req.Description,
		Prices:           prices,
		WorkspaceType:    models.WorkspaceType(strings.ToLower(req.WorkspaceType)),
		WorkspaceOwnerID: strings.TrimSpace(req.WorkspaceOwnerID),
	})
	if err != nil {
		h.respondServiceError(w, r, err, "create_service_failed")
		return
	}
	respondJSON(w, http.StatusCreated, newListingView(listing))
}

type serviceStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) SetServiceStatus(w http.ResponseWriter, r *http.Request) {
	userID, role, ok := caller(w, r)
	if !ok {
		return
	}
	var req serviceStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	listing, err := h.catalog.SetStatus(r.Context(), services.SetStatusRequest{
		ServiceID: chi.URLParam(r, "id"),
		ActorID:   userID,
		Status:    models.ListingStatus(strings.ToLower(strings.TrimSpace(req.Status))),
		AsAdmin:   role == auth.RoleAdmin,
	})
	if err != nil {
		h.respondServiceError(w, r, err, "update_service_failed")
		return
	}
	respondJSON(w, http.StatusOK, newListingView(listing))
}
