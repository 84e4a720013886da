package api

import (
	"errors"
	"net/http"
	"strings"

	"sitaraServer/crypto"
	"sitaraServer/db"

	"go.uber.org/zap"
)

type registerRequest struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type userLoginRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

func (s *Server) sendToken(w http.ResponseWriter, status int, user *db.User) {
	token, expires, err := s.tokens.Issue(user.ID, user.Phone)
	if err != nil {
		zap.S().Errorf("❌ Failed to issue token: %v", err)
		sendError(w, http.StatusInternalServerError, "Failed to issue token")
		return
	}
	sendJSON(w, status, map[string]interface{}{
		"token":     token,
		"expiresAt": expires,
		"user":      user,
	})
}

// handleRegister handles POST /api/register
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		sendError(w, http.StatusBadRequest, "Name is required")
		return
	}
	phone := db.NormalizePhone(req.Phone)
	if phone == "" {
		sendError(w, http.StatusBadRequest, "Invalid phone number")
		return
	}

	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		sendDomainError(w, r, err)
		return
	}

	user, err := db.CreateUser(r.Context(), name, phone, hash)
	if err != nil {
		sendDomainError(w, r, err)
		return
	}

	db.InvalidateDashboard(r.Context())
	zap.S().Infof("👤 New user registered: %s", user.ID)
	s.sendToken(w, http.StatusCreated, user)
}

// handleUserLogin handles POST /api/login
func (s *Server) handleUserLogin(w http.ResponseWriter, r *http.Request) {
	var req userLoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	phone := db.NormalizePhone(req.Phone)
	if phone == "" || req.Password == "" {
		sendError(w, http.StatusBadRequest, "Phone and password are required")
		return
	}

	user, err := db.GetUserByPhone(r.Context(), phone)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		sendDomainError(w, r, err)
		return
	}
	if user == nil || !crypto.CheckPassword(user.PasswordHash, req.Password) {
		sendError(w, http.StatusUnauthorized, "Invalid phone or password")
		return
	}
	if user.Blocked {
		sendDomainError(w, r, db.ErrUserBlocked)
		return
	}

	s.sendToken(w, http.StatusOK, user)
}

// handleUserMe handles GET /api/me
func (s *Server) handleUserMe(w http.ResponseWriter, r *http.Request) {
	user, err := db.GetUser(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		sendDomainError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]interface{}{"user": user})
}
