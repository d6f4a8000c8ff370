package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/codequest-dev/codequest/internal/api/middleware"
	"github.com/codequest-dev/codequest/internal/auth"
	"github.com/codequest-dev/codequest/internal/domain"
)

// AuthService is the authentication surface the handler needs.
type AuthService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*domain.User, error)
	Login(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error)
	Logout(ctx context.Context, token string) error
	ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error
}

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	auth AuthService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// RegisterRequest is the request body for registration
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Mobile   string `json:"mobile,omitempty"`
	Password string `json:"password"`
}

// LoginRequest is the request body for login. Identifier may be a
// username or an email address.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// UserResponse is the public representation of a user.
type UserResponse struct {
	ID         string     `json:"id"`
	Username   string     `json:"username"`
	Email      string     `json:"email"`
	Mobile     string     `json:"mobile,omitempty"`
	Level      int        `json:"level"`
	CurrentXP  int        `json:"current_xp"`
	TotalXP    int        `json:"total_xp"`
	Streak     int        `json:"streak"`
	LastActive *time.Time `json:"last_active,omitempty"`
	IsAdmin    bool       `json:"is_admin"`
	CreatedAt  time.Time  `json:"created_at"`
}

// LoginResponse is the response for a successful login.
type LoginResponse struct {
	User      UserResponse `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
}

func toUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:         u.ID.String(),
		Username:   u.Username,
		Email:      u.Email,
		Mobile:     u.Mobile,
		Level:      u.Level,
		CurrentXP:  u.CurrentXP,
		TotalXP:    u.TotalXP,
		Streak:     u.Streak,
		LastActive: u.LastActive,
		IsAdmin:    u.IsAdmin,
		CreatedAt:  u.CreatedAt,
	}
}

// Register handles user registration
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, r, "invalid request body")
		return
	}

	user, err := h.auth.Register(r.Context(), auth.RegisterRequest{
		Username: req.Username,
		Email:    req.Email,
		Mobile:   req.Mobile,
		Password: req.Password,
	})
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusCreated, toUserResponse(user))
}

// Login handles user login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, r, "invalid request body")
		return
	}
	if req.Identifier == "" || req.Password == "" {
		BadRequest(w, r, "identifier and password are required")
		return
	}

	resp, err := h.auth.Login(r.Context(), auth.LoginRequest{
		Identifier: req.Identifier,
		Password:   req.Password,
	})
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, LoginResponse{
		User:      toUserResponse(resp.User),
		Token:     resp.Token,
		ExpiresAt: resp.ExpiresAt,
	})
}

// Logout invalidates the caller's token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := BearerToken(r)
	if token == "" {
		Unauthorized(w, r, "missing bearer token")
		return
	}

	if err := h.auth.Logout(r.Context(), token); err != nil {
		WriteDomainError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		Unauthorized(w, r, "not authenticated")
		return
	}
	WriteJSON(w, http.StatusOK, toUserResponse(user))
}

// ChangePasswordRequest is the request body for a password change.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ChangePassword updates the caller's password after verifying the
// current one.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		Unauthorized(w, r, "not authenticated")
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, r, "invalid request body")
		return
	}

	if err := h.auth.ChangePassword(r.Context(), user.ID, req.CurrentPassword, req.NewPassword); err != nil {
		WriteDomainError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"status": "password changed"})
}

// BearerToken extracts the token from an Authorization: Bearer header.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
