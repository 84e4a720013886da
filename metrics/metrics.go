package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sitara_http_requests_total",
		Help: "Total number of HTTP requests.",
	}, []string{"method", "path", "status_code"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sitara_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	BetsPlaced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sitara_bets_placed_total",
		Help: "Bets accepted, by game type.",
	}, []string{"game_type"})

	BetStake = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sitara_bet_stake_total",
		Help: "Sum of accepted bet amounts.",
	})

	Declarations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sitara_result_declarations_total",
		Help: "Result declarations and reversals, by session.",
	}, []string{"action", "session"})

	SettlementDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sitara_settlement_duration_seconds",
		Help:    "Time to declare a result and settle its bets.",
		Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
	})

	Payouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sitara_payout_total",
		Help: "Sum of winnings credited.",
	})

	RequestDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sitara_request_decisions_total",
		Help: "Withdrawal and payment decisions.",
	}, []string{"kind", "decision"})

	WSClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sitara_ws_clients",
		Help: "Connected websocket clients.",
	})

	MarketsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sitara_markets_accepting_bets",
		Help: "Bazaars currently accepting bets.",
	})
)

// Middleware records request count and latency by chi route pattern, so
// path parameters do not explode label cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				path = p
			}
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}
