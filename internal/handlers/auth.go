package handlers

import (
	"net/http"
	"strings"

	"github.com/diewo77/go-pos/auth"
	"github.com/diewo77/go-pos/httpx"
	"github.com/diewo77/go-pos/internal/logging"
	"github.com/diewo77/go-pos/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AuthHandler struct {
	db       *gorm.DB
	sessions *auth.Sessions
	log      *logging.Logger
}

func NewAuthHandler(db *gorm.DB, sessions *auth.Sessions, log *logging.Logger) *AuthHandler {
	return &AuthHandler{db: db, sessions: sessions, log: log}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token   string `json:"token"`
	UserID  uint   `json:"user_id"`
	Name    string `json:"name"`
	Profile string `json:"profile,omitempty"`
}

// Login checks the credentials and opens a session.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	var user models.User
	if err := h.db.WithContext(r.Context()).Preload("Profile").Where("email = ?", email).First(&user).Error; err != nil {
		httpx.JSONError(w, http.StatusUnauthorized, "invalid_credentials", nil)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil || !user.Active {
		h.log.WithContext(r.Context()).Warn("Login failed", "email", email)
		httpx.JSONError(w, http.StatusUnauthorized, "invalid_credentials", nil)
		return
	}

	resp := loginResponse{
		Token:  h.sessions.CreateSession(w, user.ID),
		UserID: user.ID,
		Name:   user.DisplayName(),
	}
	if user.Profile != nil {
		resp.Profile = user.Profile.Name
	}
	h.log.Audit(r.Context(), "login", "user", user.ID, user.ID, nil)
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.ClearSession(w)
	w.WriteHeader(http.StatusNoContent)
}
