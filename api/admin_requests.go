package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"sitaraServer/db"
	"sitaraServer/metrics"
	"sitaraServer/ws"

	"github.com/go-chi/chi/v5"
)

type decisionRequest struct {
	Note string `json:"note"`
}

// decisionFrom reads the approve/reject suffix and the optional note.
func decisionFrom(w http.ResponseWriter, r *http.Request) (db.RequestStatus, string, bool) {
	decision := db.RequestApproved
	if strings.HasSuffix(r.URL.Path, "/reject") {
		decision = db.RequestRejected
	}

	var req decisionRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return "", "", false
	}
	return decision, strings.TrimSpace(req.Note), true
}

func statusFilter(r *http.Request) (db.RequestStatus, error) {
	status := db.RequestStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		return "", fmt.Errorf("%w: unknown status %q", db.ErrInvalid, status)
	}
	return status, nil
}

// notifyUser pushes to one user's device if they registered one.
func (s *Server) notifyUser(userID, title, body string) {
	s.background("user push", func(ctx context.Context) error {
		user, err := db.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		return s.pusher.PushToken(ctx, user.FCMToken, title, body, map[string]string{"type": "wallet"})
	})
}

// handleAdminWithdrawals handles GET /admin/api/withdrawals?status=
func (s *Server) handleAdminWithdrawals(w http.ResponseWriter, r *http.Request) {
	status, err := statusFilter(r)
	if err != nil {
		sendDomainError(w, r, err)
		return
	}

	limit, offset := pagination(r)
	list, err := db.ListWithdrawals(r.Context(), status, r.URL.Query().Get("user"), limit, offset)
	if err != nil {
		sendDomainError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]interface{}{"withdrawals": list})
}

// handleDecideWithdrawal handles POST /admin/api/withdrawals/{id}/approve and /reject
func (s *Server) handleDecideWithdrawal(w http.ResponseWriter, r *http.Request) {
	decision, note, ok := decisionFrom(w, r)
	if !ok {
		return
	}

	wd, err := db.DecideWithdrawal(r.Context(), chi.URLParam(r, "id"), decision, note, adminIDFrom(r.Context()))
	if err != nil {
		sendDomainError(w, r, err)
		return
	}

	metrics.RequestDecisions.WithLabelValues("withdrawal", string(decision)).Inc()
	s.hub.Publish(ws.ChannelAdmin, ws.EventWithdrawalDecided, wd)
	s.walletsChanged(r.Context(), wd.UserID)
	s.notifyUser(wd.UserID, "Withdrawal "+string(decision),
		fmt.Sprintf("Your withdrawal of ₹%s was %s.", wd.Amount.StringFixed(2), decision))

	sendJSON(w, http.StatusOK, map[string]interface{}{"withdrawal": wd})
}

// handleAdminPayments handles GET /admin/api/payments?status=
func (s *Server) handleAdminPayments(w http.ResponseWriter, r *http.Request) {
	status, err := statusFilter(r)
	if err != nil {
		sendDomainError(w, r, err)
		return
	}

	limit, offset := pagination(r)
	list, err := db.ListPayments(r.Context(), status, r.URL.Query().Get("user"), limit, offset)
	if err != nil {
		sendDomainError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]interface{}{"payments": list})
}

// handleDecidePayment handles POST /admin/api/payments/{id}/approve and /reject
func (s *Server) handleDecidePayment(w http.ResponseWriter, r *http.Request) {
	decision, note, ok := decisionFrom(w, r)
	if !ok {
		return
	}

	p, err := db.DecidePayment(r.Context(), chi.URLParam(r, "id"), decision, note, adminIDFrom(r.Context()))
	if err != nil {
		sendDomainError(w, r, err)
		return
	}

	metrics.RequestDecisions.WithLabelValues("payment", string(decision)).Inc()
	s.hub.Publish(ws.ChannelAdmin, ws.EventPaymentDecided, p)
	s.walletsChanged(r.Context(), p.UserID)
	s.notifyUser(p.UserID, "Deposit "+string(decision),
		fmt.Sprintf("Your deposit of ₹%s (UTR %s) was %s.", p.Amount.StringFixed(2), p.UTR, decision))

	sendJSON(w, http.StatusOK, map[string]interface{}{"payment": p})
}
