package handler

import (
	"encoding/json"
	"net/http"

	"github.com/vendora/payouts/internal/adapter/http/middleware"
	"github.com/vendora/payouts/internal/domain"
	"github.com/vendora/payouts/internal/infrastructure/auth"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	jwtManager *auth.JWTManager
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(jwtManager *auth.JWTManager) *AuthHandler {
	return &AuthHandler{
		jwtManager: jwtManager,
	}
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	Token string   `json:"token"`
	User  UserInfo `json:"user"`
}

// UserInfo represents operator information
type UserInfo struct {
	ID    string      `json:"id"`
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
}

// demoOperator is a statically configured operator identity.
type demoOperator struct {
	id       string
	password string
	role     domain.Role
}

// DEMO ONLY: Hardcoded operators for testing
// In production, validate against a directory with hashed passwords
var demoOperators = map[string]demoOperator{
	"admin@vendora.io":    {id: "op-admin-1", password: "admin123", role: domain.RoleAdmin},
	"operator@vendora.io": {id: "op-operator-1", password: "operator123", role: domain.RoleOperator},
	"viewer@vendora.io":   {id: "op-viewer-1", password: "viewer123", role: domain.RoleViewer},
}

// Login handles operator login (simplified - no password hashing for demo)
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	op, ok := demoOperators[req.Email]
	if !ok || req.Password != op.password {
		writeError(w, http.StatusUnauthorized, "invalid credentials", "")
		return
	}

	// Generate JWT token
	token, err := h.jwtManager.Generate(op.id, req.Email, op.role)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate token", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		Token: token,
		User: UserInfo{
			ID:    op.id,
			Email: req.Email,
			Role:  op.role,
		},
	})
}

// GetCurrentUser returns the current authenticated operator
func (h *AuthHandler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	writeJSON(w, http.StatusOK, UserInfo{
		ID:    claims.UserID,
		Email: claims.Email,
		Role:  claims.Role,
	})
}
