package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shanialy/HRM/internal/core/domain"
	"github.com/shanialy/HRM/internal/core/services"
	"github.com/shanialy/HRM/pkg/logging"
)

type AuthHandler struct {
	userSvc  *services.UserService
	tokenSvc *services.TokenService
}

func NewAuthHandler(u *services.UserService, t *services.TokenService) *AuthHandler {
	return &AuthHandler{userSvc: u, tokenSvc: t}
}

// Login verifies the credential pair and issues the bearer token the
// gateway handshake consumes.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.ErrorContext(r.Context(), "auth handler - bad request")
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	user, err := h.userSvc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			http.Error(w, "invalid email or password", http.StatusUnauthorized)
			return
		}
		log.ErrorContext(r.Context(), "auth handler - login failed", "email", req.Email, "err", err)
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}
	token, err := h.tokenSvc.GenerateToken(user)
	if err != nil {
		log.ErrorContext(r.Context(), "auth handler - generate token failed", "user_id", user.ID, "err", err)
		http.Error(w, "failed to generate token", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"token": token,
		"user":  user.Summary(),
	})
	log.InfoContext(r.Context(), "auth handler - login success", "user_id", user.ID)
}
