package api

import (
	"context"
	"net/http"

	"sitaraServer/db"
	"sitaraServer/scheduler"
	"sitaraServer/state"
	"sitaraServer/ws"

	"github.com/go-chi/chi/v5"
)

// bazaarView is a bazaar with its live market status and, for the board,
// the result of its current game day.
type bazaarView struct {
	db.Bazaar
	Market *state.MarketState `json:"market,omitempty"`
	Result *db.Result         `json:"result,omitempty"`
}

func (s *Server) marketOf(id string) *state.MarketState {
	if st, ok := s.registry.Get(id); ok {
		return &st
	}
	return nil
}

// syncBazaar pushes a written bazaar into the registry, the live feed
// and the mirror.
func (s *Server) syncBazaar(b *db.Bazaar) {
	st := s.registry.Upsert(scheduler.MarketFromBazaar(*b))
	s.hub.Publish(ws.ChannelMarkets, ws.EventMarketStatus, st)

	if s.mirror.Enabled() {
		bz := *b
		s.background("mirror bazaar", func(ctx context.Context) error {
			return s.mirror.MirrorBazaar(ctx, bz)
		})
	}
}

// handleListBazaars handles GET /admin/api/bazaars
func (s *Server) handleListBazaars(w http.ResponseWriter, r *http.Request) {
	bazaars, err := db.ListBazaars(r.Context(), false)
	if err != nil {
		sendDomainError(w, r, err)
		return
	}

	views := make([]bazaarView, 0, len(bazaars))
	for _, b := range bazaars {
		views = append(views, bazaarView{Bazaar: b, Market: s.marketOf(b.ID)})
	}
	sendJSON(w, http.StatusOK, map[string]interface{}{"bazaars": views})
}

// handleGetBazaar handles GET /admin/api/bazaars/{id}
func (s *Server) handleGetBazaar(w http.ResponseWriter, r *http.Request) {
	b, err := db.GetBazaar(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		sendDomainError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]interface{}{
		"bazaar": bazaarView{Bazaar: *b, Market: s.marketOf(b.ID)},
	})
}

// handleCreateBazaar handles POST /admin/api/bazaars
func (s *Server) handleCreateBazaar(w http.ResponseWriter, r *http.Request) {
	var in db.BazaarInput
	if !decodeJSON(w, r, &in) {
		return
	}

	b, err := db.CreateBazaar(r.Context(), in)
	if err != nil {
		sendDomainError(w, r, err)
		return
	}

	s.syncBazaar(b)
	db.InvalidateDashboard(r.Context())
	sendJSON(w, http.StatusCreated, map[string]interface{}{"bazaar": b})
}

// handleUpdateBazaar handles PUT /admin/api/bazaars/{id}
func (s *Server) handleUpdateBazaar(w http.ResponseWriter, r *http.Request) {
	var in db.BazaarInput
	if !decodeJSON(w, r, &in) {
		return
	}

	b, err := db.UpdateBazaar(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		sendDomainError(w, r, err)
		return
	}

	s.syncBazaar(b)
	db.InvalidateDashboard(r.Context())
	sendJSON(w, http.StatusOK, map[string]interface{}{"bazaar": b})
}

// handleDeleteBazaar handles DELETE /admin/api/bazaars/{id}
func (s *Server) handleDeleteBazaar(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := db.DeleteBazaar(r.Context(), id); err != nil {
		sendDomainError(w, r, err)
		return
	}

	s.registry.Remove(id)
	db.InvalidateDashboard(r.Context())
	if s.mirror.Enabled() {
		s.background("mirror bazaar delete", func(ctx context.Context) error {
			return s.mirror.DeleteBazaar(ctx, id)
		})
	}
	sendJSON(w, http.StatusOK, map[string]interface{}{"message": "Bazaar deleted"})
}
