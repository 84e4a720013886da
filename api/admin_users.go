package api

import (
	"net/http"
	"strings"

	"sitaraServer/db"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type walletAdjustRequest struct {
	// "credit" or "debit"
	Type   string          `json:"type"`
	Amount decimal.Decimal `json:"amount"`
	Note   string          `json:"note"`
}

// handleListUsers handles GET /admin/api/users?q=&page=
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	users, total, err := db.ListUsers(r.Context(), strings.TrimSpace(r.URL.Query().Get("q")), limit, offset)
	if err != nil {
		sendDomainError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]interface{}{
		"users": users,
		"total": total,
		"limit": limit,
	})
}

// handleGetUser handles GET /admin/api/users/{id}
func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, err := db.GetUser(ctx, chi.URLParam(r, "id"))
	if err != nil {
		sendDomainError(w, r, err)
		return
	}

	txs, err := db.ListTransactions(ctx, db.TransactionFilter{UserID: user.ID, Limit: 20})
	if err != nil {
		sendDomainError(w, r, err)
		return
	}
	bets, err := db.ListBets(ctx, db.BetFilter{UserID: user.ID, Limit: 20})
	if err != nil {
		sendDomainError(w, r, err)
		return
	}

	sendJSON(w, http.StatusOK, map[string]interface{}{
		"user":         user,
		"transactions": txs,
		"bets":         bets,
	})
}

// handleBlockUser handles POST /admin/api/users/{id}/block and /unblock
func (s *Server) handleBlockUser(w http.ResponseWriter, r *http.Request) {
	blocked := strings.HasSuffix(r.URL.Path, "/block")
	id := chi.URLParam(r, "id")

	if err := db.SetUserBlocked(r.Context(), id, blocked); err != nil {
		sendDomainError(w, r, err)
		return
	}

	db.InvalidateDashboard(r.Context())
	zap.S().Infof("🚫 Admin %s set user %s blocked=%v", adminIDFrom(r.Context()), id, blocked)
	sendJSON(w, http.StatusOK, map[string]interface{}{"userId": id, "blocked": blocked})
}

// handleAdjustWallet handles POST /admin/api/users/{id}/wallet
func (s *Server) handleAdjustWallet(w http.ResponseWriter, r *http.Request) {
	var req walletAdjustRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !req.Amount.IsPositive() {
		sendError(w, http.StatusBadRequest, "Amount must be positive")
		return
	}

	amount := req.Amount
	switch req.Type {
	case "credit":
	case "debit":
		amount = amount.Neg()
	default:
		sendError(w, http.StatusBadRequest, "Type must be credit or debit")
		return
	}

	id := chi.URLParam(r, "id")
	balance, err := db.AdjustWallet(r.Context(), id, amount, strings.TrimSpace(req.Note), adminIDFrom(r.Context()))
	if err != nil {
		sendDomainError(w, r, err)
		return
	}

	s.walletsChanged(r.Context(), id)
	sendJSON(w, http.StatusOK, map[string]interface{}{"userId": id, "balance": balance})
}

// handleAdminBets handles GET /admin/api/bets?bazaar=&date=&status=&user=
func (s *Server) handleAdminBets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset := pagination(r)

	f := db.BetFilter{
		BazaarID: q.Get("bazaar"),
		Status:   db.BetStatus(q.Get("status")),
		UserID:   q.Get("user"),
		Limit:    limit,
		Offset:   offset,
	}
	if d := q.Get("date"); d != "" {
		date, err := db.ParseDate(d)
		if err != nil {
			sendDomainError(w, r, err)
			return
		}
		f.Date = date
	}

	bets, err := db.ListBets(r.Context(), f)
	if err != nil {
		sendDomainError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]interface{}{"bets": bets})
}

// handleAdminTransactions handles GET /admin/api/transactions?user=&type=
func (s *Server) handleAdminTransactions(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	txs, err := db.ListTransactions(r.Context(), db.TransactionFilter{
		UserID: r.URL.Query().Get("user"),
		Type:   db.TxType(r.URL.Query().Get("type")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		sendDomainError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]interface{}{"transactions": txs})
}

// handleDashboard handles GET /admin/api/dashboard
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := db.GetDashboardStats(r.Context(), s.registry.Today(), s.registry.Location())
	if err != nil {
		sendDomainError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]interface{}{
		"stats":     stats,
		"markets":   s.registry.All(),
		"wsClients": s.hub.ClientCount(),
	})
}
