package api

import (
	"errors"
	"net/http"
	"strings"

	"sitaraServer/config"
	"sitaraServer/crypto"
	"sitaraServer/db"

	"go.uber.org/zap"
)

type adminLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleAdminLogin handles POST /admin/api/login
func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req adminLoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	username := strings.ToLower(strings.TrimSpace(req.Username))
	if username == "" || req.Password == "" {
		sendError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	ctx := r.Context()
	if db.LoginLocked(ctx, username) {
		sendError(w, http.StatusTooManyRequests, "Too many failed attempts, try again later")
		return
	}

	admin, err := db.GetAdminByUsername(ctx, username)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		sendDomainError(w, r, err)
		return
	}
	if admin == nil || !crypto.CheckPassword(admin.PasswordHash, req.Password) {
		failures := db.RecordLoginFailure(ctx, username)
		zap.S().Warnf("🔒 Failed admin login for %q from %s (%d)", username, clientIP(r), failures)
		sendError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	db.ClearLoginFailures(ctx, username)
	if err := db.TouchAdminLogin(ctx, admin.ID); err != nil {
		zap.S().Warnf("⚠️  Failed to record admin login: %v", err)
	}

	session, _ := s.sessions.Get(r, config.AdminSessionName)
	session.Values[sessionAdminID] = admin.ID
	if err := session.Save(r, w); err != nil {
		sendDomainError(w, r, err)
		return
	}

	zap.S().Infof("🔑 Admin %s logged in from %s", admin.Username, clientIP(r))
	sendJSON(w, http.StatusOK, map[string]interface{}{"admin": admin})
}

// handleAdminLogout handles POST /admin/api/logout
func (s *Server) handleAdminLogout(w http.ResponseWriter, r *http.Request) {
	session, _ := s.sessions.Get(r, config.AdminSessionName)
	delete(session.Values, sessionAdminID)
	session.Options.MaxAge = -1
	if err := session.Save(r, w); err != nil {
		sendDomainError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]interface{}{"message": "Logged out"})
}

// handleAdminMe handles GET /admin/api/me
func (s *Server) handleAdminMe(w http.ResponseWriter, r *http.Request) {
	admin, err := db.GetAdmin(r.Context(), adminIDFrom(r.Context()))
	if err != nil {
		sendDomainError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]interface{}{"admin": admin})
}
