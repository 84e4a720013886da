package api

import (
	"net/http"

	"sitaraServer/db"
)

// handleClientBazaars handles GET /api/bazaars. Each active bazaar comes
// with its market status and the result of its current game day.
func (s *Server) handleClientBazaars(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	bazaars, err := db.ListActiveBazaarsCached(ctx)
	if err != nil {
		sendDomainError(w, r, err)
		return
	}

	// overnight markets can still be on yesterday's game day
	resultsByDate := make(map[string]map[string]db.Result)
	views := make([]bazaarView, 0, len(bazaars))
	for _, b := range bazaars {
		v := bazaarView{Bazaar: b, Market: s.marketOf(b.ID)}

		date := s.registry.Today()
		if v.Market != nil {
			date = v.Market.GameDate
		}
		byBazaar, ok := resultsByDate[date]
		if !ok {
			byBazaar, err = db.ResultsByBazaar(ctx, date)
			if err != nil {
				sendDomainError(w, r, err)
				return
			}
			resultsByDate[date] = byBazaar
		}
		if res, ok := byBazaar[b.ID]; ok {
			v.Result = &res
		}

		views = append(views, v)
	}

	sendJSON(w, http.StatusOK, map[string]interface{}{
		"bazaars": views,
		"today":   s.registry.Today(),
	})
}

// handleClientResults handles GET /api/results?date=&bazaar=
func (s *Server) handleClientResults(w http.ResponseWriter, r *http.Request) {
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
	sendJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

// handleRates handles GET /api/rates with the public part of the settings.
func (s *Server) handleRates(w http.ResponseWriter, r *http.Request) {
	settings, err := db.GetSettings(r.Context())
	if err != nil {
		sendDomainError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]interface{}{
		"rates":         settings.Rates,
		"minBet":        settings.MinBet,
		"maxBet":        settings.MaxBet,
		"minDeposit":    settings.MinDeposit,
		"minWithdrawal": settings.MinWithdrawal,
		"supportPhone":  settings.SupportPhone,
		"whatsApp":      settings.WhatsApp,
		"upiId":         settings.UPIID,
		"appVersion":    settings.AppVersion,
		"maintenance":   settings.Maintenance,
		"noticeText":    settings.NoticeText,
	})
}
