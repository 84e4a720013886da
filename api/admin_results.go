package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"sitaraServer/config"
	"sitaraServer/db"
	"sitaraServer/game"
	"sitaraServer/metrics"
	"sitaraServer/ws"

	"github.com/go-chi/chi/v5"
)

type declareRequest struct {
	BazaarID string `json:"bazaarId"`
	Date     string `json:"date"`
	Panna    string `json:"panna"`
}

// dateRange reads ?date= or ?from=&to=, defaulting to today. Ranges are
// capped at MaxResultRangeDays.
func (s *Server) dateRange(r *http.Request) (from, to string, err error) {
	q := r.URL.Query()
	if d := q.Get("date"); d != "" {
		d, err := db.ParseDate(d)
		return d, d, err
	}

	from, to = q.Get("from"), q.Get("to")
	if to == "" {
		to = s.registry.Today()
	}
	if from == "" {
		from = to
	}
	if from, err = db.ParseDate(from); err != nil {
		return "", "", err
	}
	if to, err = db.ParseDate(to); err != nil {
		return "", "", err
	}
	if from > to {
		return "", "", fmt.Errorf("%w: from is after to", db.ErrInvalid)
	}

	start, _ := time.Parse(config.DateLayout, from)
	end, _ := time.Parse(config.DateLayout, to)
	if end.Sub(start) >= config.MaxResultRangeDays*24*time.Hour {
		return "", "", fmt.Errorf("%w: date range is limited to %d days", db.ErrInvalid, config.MaxResultRangeDays)
	}
	return from, to, nil
}

// gameDate is the bazaar's current game day, which differs from the
// calendar date after midnight for overnight markets.
func (s *Server) gameDate(bazaarID string) string {
	if st, ok := s.registry.Get(bazaarID); ok {
		return st.GameDate
	}
	return s.registry.Today()
}

// walletsChanged refreshes derived views after balances moved.
func (s *Server) walletsChanged(ctx context.Context, userIDs ...string) {
	db.InvalidateDashboard(ctx)
	if !s.mirror.Enabled() || len(userIDs) == 0 {
		return
	}
	ids := append([]string(nil), userIDs...)
	s.background("mirror wallets", func(ctx context.Context) error {
		for _, id := range ids {
			balance, err := db.GetBalance(ctx, id)
			if err != nil {
				return err
			}
			if err := s.mirror.MirrorWallet(ctx, id, balance); err != nil {
				return err
			}
		}
		return nil
	})
}

// handleAdminResults handles GET /admin/api/results
func (s *Server) handleAdminResults(w http.ResponseWriter, r *http.Request) {
	from, to, err := s.dateRange(r)
	if err != nil {
		sendDomainError(w, r, err)
		return
	}

	results, err := db.ListResults(r.Context(), r.URL.Query().Get("bazaar"), from, to)
	if err != nil {
		sendDomainError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]interface{}{"results": results, "from": from, "to": to})
}

// handleDeclare handles POST /admin/api/results/open and /results/close
func (s *Server) handleDeclare(w http.ResponseWriter, r *http.Request) {
	session := game.SessionOpen
	if strings.HasSuffix(r.URL.Path, "/close") {
		session = game.SessionClose
	}

	var req declareRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.BazaarID == "" {
		sendError(w, http.StatusBadRequest, "bazaarId is required")
		return
	}
	if req.Date == "" {
		req.Date = s.gameDate(req.BazaarID)
	}

	start := time.Now()
	decl, err := db.DeclareResult(r.Context(), req.BazaarID, req.Date, session, strings.TrimSpace(req.Panna), adminIDFrom(r.Context()))
	if err != nil {
		sendDomainError(w, r, err)
		return
	}

	metrics.SettlementDuration.Observe(time.Since(start).Seconds())
	metrics.Declarations.WithLabelValues("declare", string(session)).Inc()
	metrics.Payouts.Add(decl.TotalPayout.InexactFloat64())

	s.hub.Publish(ws.ChannelResults, ws.EventResultDeclared, decl.Result)
	s.hub.Publish(ws.ChannelAdmin, ws.EventResultDeclared, decl)
	s.walletsChanged(r.Context(), decl.WinnerIDs...)

	result := *decl.Result
	if s.mirror.Enabled() {
		s.background("mirror result", func(ctx context.Context) error {
			return s.mirror.MirrorResult(ctx, result)
		})
	}
	s.pushDeclaration(result, decl.WinnerIDs)

	sendJSON(w, http.StatusOK, map[string]interface{}{"declaration": decl})
}

// pushDeclaration announces the result to everyone and tells each winner.
func (s *Server) pushDeclaration(result db.Result, winnerIDs []string) {
	data := map[string]string{"type": "result", "bazaarId": result.BazaarID, "date": result.Date}
	title := result.BazaarName + " result"

	s.background("result push", func(ctx context.Context) error {
		if err := s.pusher.PushAll(ctx, title, result.Display, data); err != nil {
			return err
		}
		for _, id := range winnerIDs {
			user, err := db.GetUser(ctx, id)
			if err != nil || user.FCMToken == "" {
				continue
			}
			body := fmt.Sprintf("You won on %s (%s). Winnings are in your wallet.", result.BazaarName, result.Display)
			if err := s.pusher.PushToken(ctx, user.FCMToken, "Congratulations!", body, data); err != nil {
				return err
			}
		}
		return nil
	})
}

// handleRevert handles DELETE /admin/api/results/{bazaarID}/{date}/{session}
func (s *Server) handleRevert(w http.ResponseWriter, r *http.Request) {
	bazaarID := chi.URLParam(r, "bazaarID")
	date := chi.URLParam(r, "date")
	session := game.Session(chi.URLParam(r, "session"))

	rev, err := db.RevertDeclaration(r.Context(), bazaarID, date, session, adminIDFrom(r.Context()))
	if err != nil {
		sendDomainError(w, r, err)
		return
	}

	metrics.Declarations.WithLabelValues("revert", string(session)).Inc()

	s.hub.Publish(ws.ChannelResults, ws.EventResultReverted, rev)
	s.hub.Publish(ws.ChannelAdmin, ws.EventResultReverted, rev)
	s.walletsChanged(r.Context(), rev.AffectedIDs...)

	if s.mirror.Enabled() {
		if rev.Result != nil {
			result := *rev.Result
			s.background("mirror result", func(ctx context.Context) error {
				return s.mirror.MirrorResult(ctx, result)
			})
		} else {
			s.background("mirror result delete", func(ctx context.Context) error {
				return s.mirror.DeleteResult(ctx, rev.BazaarID, rev.Date)
			})
		}
	}

	sendJSON(w, http.StatusOK, map[string]interface{}{"reversal": rev})
}
