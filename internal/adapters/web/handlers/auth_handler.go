package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/jmtrigo/riskmap/internal/adapters/web/middleware"
	"github.com/jmtrigo/riskmap/internal/core/domain"
	"github.com/jmtrigo/riskmap/internal/core/ports"
)

// AuthHandler handles session lifecycle endpoints.
type AuthHandler struct {
	Service ports.AuthService
	Audit   ports.AuditService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(service ports.AuthService, audit ports.AuditService) *AuthHandler {
	return &AuthHandler{Service: service, Audit: audit}
}

func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var creds domain.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		http.Error(w, "Invalid body", http.StatusBadRequest)
		return
	}

	token, err := h.Service.Login(r.Context(), creds)
	if err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "session_token",
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   false, // Set to true behind TLS
		SameSite: http.SameSiteStrictMode,
		MaxAge:   86400, // 24 hours
	})

	if h.Audit != nil {
		h.Audit.Log(r.Context(), domain.ActionLogin, "", creds.Username, "session opened")
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_in", "token": token})
}

func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie("session_token")
	if err == nil {
		h.Service.Logout(r.Context(), cookie.Value)
	}

	http.SetCookie(w, &http.Cookie{
		Name:   "session_token",
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromRequest(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":       user.ID,
		"username": user.Username,
		"role":     user.Role,
	})
}
