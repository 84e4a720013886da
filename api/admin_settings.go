package api

import (
	"context"
	"net/http"
	"strings"

	"sitaraServer/db"
	"sitaraServer/ws"

	"go.uber.org/zap"
)

type notificationRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	// empty for a broadcast
	UserID string `json:"userId"`
}

// handleGetSettings handles GET /admin/api/settings
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := db.GetSettings(r.Context())
	if err != nil {
		sendDomainError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]interface{}{"settings": settings})
}

// handleSaveSettings handles PUT /admin/api/settings
func (s *Server) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	var settings db.AppSettings
	if !decodeJSON(w, r, &settings) {
		return
	}

	saved, err := db.SaveSettings(r.Context(), settings, adminIDFrom(r.Context()))
	if err != nil {
		sendDomainError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]interface{}{"settings": saved})
}

// handleAdminNotifications handles GET /admin/api/notifications
func (s *Server) handleAdminNotifications(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	list, err := db.ListNotifications(r.Context(), r.URL.Query().Get("user"), limit, offset)
	if err != nil {
		sendDomainError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]interface{}{"notifications": list})
}

// handleSendNotification handles POST /admin/api/notifications. The row is
// stored first; the push is best effort and marks it pushed on success.
func (s *Server) handleSendNotification(w http.ResponseWriter, r *http.Request) {
	var req notificationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Body = strings.TrimSpace(req.Body)
	if req.Title == "" || req.Body == "" {
		sendError(w, http.StatusBadRequest, "Title and body are required")
		return
	}

	n, err := db.CreateNotification(r.Context(), req.Title, req.Body, req.UserID, adminIDFrom(r.Context()))
	if err != nil {
		sendDomainError(w, r, err)
		return
	}

	note := *n
	s.background("notification push", func(ctx context.Context) error {
		data := map[string]string{"type": "notification", "id": note.ID}
		if note.UserID == "" {
			if err := s.pusher.PushAll(ctx, note.Title, note.Body, data); err != nil {
				return err
			}
		} else {
			user, err := db.GetUser(ctx, note.UserID)
			if err != nil {
				return err
			}
			if user.FCMToken == "" {
				return nil
			}
			if err := s.pusher.PushToken(ctx, user.FCMToken, note.Title, note.Body, data); err != nil {
				return err
			}
		}
		return db.MarkNotificationPushed(ctx, note.ID)
	})

	sendJSON(w, http.StatusCreated, map[string]interface{}{"notification": n})
}

// handleExport handles POST /admin/api/export
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if s.exporter == nil || !s.mirror.Enabled() {
		sendError(w, http.StatusServiceUnavailable, "Firestore export is not configured")
		return
	}

	summary, err := s.exporter(r.Context())
	if err != nil {
		sendDomainError(w, r, err)
		return
	}
	zap.S().Infof("📤 Admin %s ran a full export", adminIDFrom(r.Context()))
	sendJSON(w, http.StatusOK, map[string]interface{}{"export": summary})
}

// handleAdminWS handles GET /admin/api/ws
func (s *Server) handleAdminWS(w http.ResponseWriter, r *http.Request) {
	s.hub.ServeWS(w, r, []string{ws.ChannelAdmin, ws.ChannelResults, ws.ChannelMarkets}, ws.ChannelAdmin)
}

// handleClientWS handles GET /api/ws
func (s *Server) handleClientWS(w http.ResponseWriter, r *http.Request) {
	s.hub.ServeWS(w, r, []string{ws.ChannelResults, ws.ChannelMarkets})
}
