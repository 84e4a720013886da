package api

import (
	"context"
	"net/http"
	"time"

	"sitaraServer/config"
	"sitaraServer/crypto"
	"sitaraServer/db"
	"sitaraServer/export"
	"sitaraServer/metrics"
	"sitaraServer/notify"
	"sitaraServer/state"
	"sitaraServer/ws"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

// Deps are the collaborators the HTTP layer needs
type Deps struct {
	Config   *config.Config
	Registry *state.Registry
	Hub      *ws.Hub
	Pusher   notify.Pusher
	Alerter  notify.Alerter
	Mirror   export.Mirror
	// Exporter runs a full mirror export on demand.
	Exporter func(ctx context.Context) (export.Summary, error)
}

type Server struct {
	cfg      *config.Config
	registry *state.Registry
	hub      *ws.Hub
	pusher   notify.Pusher
	alerter  notify.Alerter
	mirror   export.Mirror
	exporter func(ctx context.Context) (export.Summary, error)

	sessions    *sessions.CookieStore
	tokens      *crypto.TokenIssuer
	authLimiter *ipLimiter

	// background side effects (push, mirror) run with this context
	bgCtx context.Context
}

func NewServer(bgCtx context.Context, d Deps) *Server {
	store := sessions.NewCookieStore([]byte(d.Config.SessionSecret))
	store.Options = &sessions.Options{
		Path:     "/admin",
		MaxAge:   config.AdminSessionMaxAge,
		HttpOnly: true,
		Secure:   d.Config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}

	s := &Server{
		cfg:         d.Config,
		registry:    d.Registry,
		hub:         d.Hub,
		pusher:      d.Pusher,
		alerter:     d.Alerter,
		mirror:      d.Mirror,
		exporter:    d.Exporter,
		sessions:    store,
		tokens:      crypto.NewTokenIssuer(d.Config.JWTSecret, d.Config.JWTTTL),
		authLimiter: newIPLimiter(config.AuthRateInterval, config.AuthRateBurst),
		bgCtx:       bgCtx,
	}
	if s.pusher == nil {
		s.pusher = notify.NopPusher{}
	}
	if s.alerter == nil {
		s.alerter = notify.NopAlerter{}
	}
	if s.mirror == nil {
		s.mirror = export.NopMirror{}
	}

	s.hub.SetSnapshot(ws.ChannelMarkets, func() any { return s.registry.All() })
	s.hub.SetSnapshot(ws.ChannelResults, s.todayResults)
	return s
}

func (s *Server) todayResults() any {
	ctx, cancel := context.WithTimeout(s.bgCtx, 5*time.Second)
	defer cancel()

	today := s.registry.Today()
	results, err := db.ListResults(ctx, "", today, today)
	if err != nil {
		zap.S().Warnf("⚠️  Results snapshot failed: %v", err)
		return []db.Result{}
	}
	return results
}

// Routes builds the HTTP handler
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	// cookies only cross origins the operator listed by name
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: !s.cfg.AllowsAnyOrigin(),
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/admin/api", func(r chi.Router) {
		r.With(s.authLimiter.middleware, middleware.Timeout(config.RequestTimeout)).Post("/login", s.handleAdminLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAdmin)

			// long-lived; no request timeout
			r.Get("/ws", s.handleAdminWS)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(config.RequestTimeout))

				r.Post("/logout", s.handleAdminLogout)
				r.Get("/me", s.handleAdminMe)
				r.Get("/dashboard", s.handleDashboard)

				r.Get("/bazaars", s.handleListBazaars)
				r.Post("/bazaars", s.handleCreateBazaar)
				r.Get("/bazaars/{id}", s.handleGetBazaar)
				r.Put("/bazaars/{id}", s.handleUpdateBazaar)
				r.Delete("/bazaars/{id}", s.handleDeleteBazaar)

				r.Get("/results", s.handleAdminResults)
				r.Post("/results/open", s.handleDeclare)
				r.Post("/results/close", s.handleDeclare)
				r.Delete("/results/{bazaarID}/{date}/{session}", s.handleRevert)

				r.Get("/bets", s.handleAdminBets)

				r.Get("/users", s.handleListUsers)
				r.Get("/users/{id}", s.handleGetUser)
				r.Post("/users/{id}/block", s.handleBlockUser)
				r.Post("/users/{id}/unblock", s.handleBlockUser)
				r.Post("/users/{id}/wallet", s.handleAdjustWallet)

				r.Get("/transactions", s.handleAdminTransactions)

				r.Get("/withdrawals", s.handleAdminWithdrawals)
				r.Post("/withdrawals/{id}/approve", s.handleDecideWithdrawal)
				r.Post("/withdrawals/{id}/reject", s.handleDecideWithdrawal)

				r.Get("/payments", s.handleAdminPayments)
				r.Post("/payments/{id}/approve", s.handleDecidePayment)
				r.Post("/payments/{id}/reject", s.handleDecidePayment)

				r.Get("/settings", s.handleGetSettings)
				r.Put("/settings", s.handleSaveSettings)

				r.Get("/notifications", s.handleAdminNotifications)
				r.Post("/notifications", s.handleSendNotification)
			})

			r.Post("/export", s.handleExport)
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/ws", s.handleClientWS)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(config.RequestTimeout))

			r.With(s.authLimiter.middleware).Post("/register", s.handleRegister)
			r.With(s.authLimiter.middleware).Post("/login", s.handleUserLogin)

			r.Get("/bazaars", s.handleClientBazaars)
			r.Get("/results", s.handleClientResults)
			r.Get("/rates", s.handleRates)

			r.Group(func(r chi.Router) {
				r.Use(s.requireUser)

				r.Get("/me", s.handleUserMe)
				r.Post("/bets", s.handlePlaceBets)
				r.Get("/bets", s.handleUserBets)
				r.Get("/wallet", s.handleWallet)
				r.Get("/transactions", s.handleUserTransactions)
				r.Post("/withdrawals", s.handleRequestWithdrawal)
				r.Get("/withdrawals", s.handleUserWithdrawals)
				r.Post("/payments", s.handleSubmitPayment)
				r.Get("/payments", s.handleUserPayments)
				r.Post("/fcm-token", s.handleFCMToken)
				r.Get("/notifications", s.handleUserNotifications)
			})
		})
	})

	return r
}

// background runs fn detached from the request with its own deadline.
func (s *Server) background(name string, fn func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(s.bgCtx, 30*time.Second)
		defer cancel()
		if err := fn(ctx); err != nil {
			zap.S().Warnf("⚠️  %s failed: %v", name, err)
		}
	}()
}
