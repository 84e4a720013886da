package api

import (
	"fmt"
	"net/http"
	"strings"

	"sitaraServer/db"
	"sitaraServer/metrics"
	"sitaraServer/ws"

	"github.com/shopspring/decimal"
)

type placeBetsRequest struct {
	BazaarID string          `json:"bazaarId"`
	Bets     []db.BetRequest `json:"bets"`
}

type withdrawalRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	Method         string          `json:"method"`
	AccountDetails string          `json:"accountDetails"`
}

type paymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Method string          `json:"method"`
	UTR    string          `json:"utr"`
}

type fcmTokenRequest struct {
	Token string `json:"token"`
}

// handlePlaceBets handles POST /api/bets. The market registry decides
// which sessions are still open and which game day the slip belongs to.
func (s *Server) handlePlaceBets(w http.ResponseWriter, r *http.Request) {
	var req placeBetsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	st, ok := s.registry.Get(req.BazaarID)
	if !ok {
		sendDomainError(w, r, db.ErrNotFound)
		return
	}
	for i, b := range req.Bets {
		if !st.Accepts(b.GameType, b.Session) {
			sendDomainError(w, r, fmt.Errorf("%w: bet %d (%s %s) not accepted while market is %s",
				db.ErrMarketClosed, i+1, b.GameType, b.Session, st.Status))
			return
		}
	}

	ctx := r.Context()
	userID := userIDFrom(ctx)
	slip, err := db.PlaceBets(ctx, userID, req.BazaarID, st.GameDate, req.Bets)
	if err != nil {
		sendDomainError(w, r, err)
		return
	}

	for _, b := range slip.Bets {
		metrics.BetsPlaced.WithLabelValues(string(b.GameType)).Inc()
	}
	metrics.BetStake.Add(slip.Total.InexactFloat64())

	s.hub.Publish(ws.ChannelAdmin, ws.EventBetPlaced, map[string]interface{}{
		"userId":   userID,
		"bazaarId": req.BazaarID,
		"date":     st.GameDate,
		"count":    len(slip.Bets),
		"total":    slip.Total,
	})
	s.walletsChanged(ctx, userID)

	sendJSON(w, http.StatusCreated, map[string]interface{}{"slip": slip})
}

// handleUserBets handles GET /api/bets
func (s *Server) handleUserBets(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	q := r.URL.Query()

	f := db.BetFilter{
		UserID:   userIDFrom(r.Context()),
		BazaarID: q.Get("bazaar"),
		Status:   db.BetStatus(q.Get("status")),
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

// handleWallet handles GET /api/wallet
func (s *Server) handleWallet(w http.ResponseWriter, r *http.Request) {
	balance, err := db.GetBalance(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		sendDomainError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]interface{}{"balance": balance})
}

// handleUserTransactions handles GET /api/transactions
func (s *Server) handleUserTransactions(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	txs, err := db.ListTransactions(r.Context(), db.TransactionFilter{
		UserID: userIDFrom(r.Context()),
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

// handleRequestWithdrawal handles POST /api/withdrawals
func (s *Server) handleRequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req withdrawalRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	wd, err := db.RequestWithdrawal(ctx, userIDFrom(ctx), req.Amount, strings.TrimSpace(req.Method), strings.TrimSpace(req.AccountDetails))
	if err != nil {
		sendDomainError(w, r, err)
		return
	}

	s.hub.Publish(ws.ChannelAdmin, ws.EventWithdrawalRequested, wd)
	s.alerter.Alert(fmt.Sprintf("💸 Withdrawal request\nUser: %s\nAmount: ₹%s\nMethod: %s\nDetails: %s",
		wd.UserID, wd.Amount.StringFixed(2), wd.Method, wd.AccountDetails))
	s.walletsChanged(ctx, wd.UserID)

	sendJSON(w, http.StatusCreated, map[string]interface{}{"withdrawal": wd})
}

// handleUserWithdrawals handles GET /api/withdrawals
func (s *Server) handleUserWithdrawals(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	list, err := db.ListWithdrawals(r.Context(), "", userIDFrom(r.Context()), limit, offset)
	if err != nil {
		sendDomainError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]interface{}{"withdrawals": list})
}

// handleSubmitPayment handles POST /api/payments
func (s *Server) handleSubmitPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	p, err := db.SubmitPayment(ctx, userIDFrom(ctx), req.Amount, strings.TrimSpace(req.Method), req.UTR)
	if err != nil {
		sendDomainError(w, r, err)
		return
	}

	s.hub.Publish(ws.ChannelAdmin, ws.EventPaymentSubmitted, p)
	s.alerter.Alert(fmt.Sprintf("💰 Deposit submitted\nUser: %s\nAmount: ₹%s\nMethod: %s\nUTR: %s",
		p.UserID, p.Amount.StringFixed(2), p.Method, p.UTR))
	db.InvalidateDashboard(ctx)

	sendJSON(w, http.StatusCreated, map[string]interface{}{"payment": p})
}

// handleUserPayments handles GET /api/payments
func (s *Server) handleUserPayments(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	list, err := db.ListPayments(r.Context(), "", userIDFrom(r.Context()), limit, offset)
	if err != nil {
		sendDomainError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]interface{}{"payments": list})
}

// handleFCMToken handles POST /api/fcm-token
func (s *Server) handleFCMToken(w http.ResponseWriter, r *http.Request) {
	var req fcmTokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := db.SetFCMToken(r.Context(), userIDFrom(r.Context()), strings.TrimSpace(req.Token)); err != nil {
		sendDomainError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]interface{}{"message": "Token saved"})
}

// handleUserNotifications handles GET /api/notifications
func (s *Server) handleUserNotifications(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	list, err := db.ListNotifications(r.Context(), userIDFrom(r.Context()), limit, offset)
	if err != nil {
		sendDomainError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]interface{}{"notifications": list})
}
