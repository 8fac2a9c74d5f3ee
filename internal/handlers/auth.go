package handlers

import (
	"net/http"
	"strings"

	"boostmarket/internal/auth"
)

type issueTokenRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// IssueToken mints a bearer token for a local identity. It is only routed in development.
func (h *Handler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req issueTokenRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	role := auth.RoleClient
	if req.Role != "" {
		parsed, err := auth.ParseRole(req.Role)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_role")
			return
		}
		role = parsed
	}
	token, err := auth.GenerateToken(h.cfg.JWTSecret, userID, role, h.cfg.TokenTTL)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to issue token")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"token": token, "role": string(role)})
}
