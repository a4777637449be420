package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/avvvet/pickbox-services/internal/gamesvc/engine"
	"github.com/avvvet/pickbox-services/internal/gamesvc/ledger"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pickbox_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pickbox_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	LedgerCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pickbox_ledger_calls_total",
			Help: "Ledger calls by action and result",
		},
		[]string{"action", "result"},
	)

	GameOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pickbox_game_operations_total",
			Help: "Game operations by kind and outcome",
		},
		[]string{"operation", "outcome"},
	)
)

func Init() {
	prometheus.MustRegister(RequestCounter)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(LedgerCalls)
	prometheus.MustRegister(GameOperations)
}

func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			endpoint = rc.RoutePattern()
		}
		RequestCounter.WithLabelValues(r.Method, endpoint, strconv.Itoa(ww.Status())).Inc()
		RequestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// Outcome labels an operation result for GameOperations.
func Outcome(err error) string {
	var ife *engine.InsufficientFundsError
	var se *engine.ServiceError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, engine.ErrGameExpired):
		return "expired"
	case errors.As(err, &ife):
		return "insufficient_funds"
	case errors.As(err, &se):
		return "service_error"
	}
	return "rejected"
}

// InstrumentLedger counts every withdraw and deposit.
func InstrumentLedger(l engine.Ledger) engine.Ledger {
	return instrumented{l}
}

type instrumented struct {
	next engine.Ledger
}

func (i instrumented) Withdraw(ctx context.Context, tx ledger.Transaction) (string, error) {
	id, err := i.next.Withdraw(ctx, tx)
	LedgerCalls.WithLabelValues("withdraw", ledgerResult(err)).Inc()
	return id, err
}

func (i instrumented) Deposit(ctx context.Context, tx ledger.Transaction) (string, error) {
	id, err := i.next.Deposit(ctx, tx)
	LedgerCalls.WithLabelValues("deposit", ledgerResult(err)).Inc()
	return id, err
}

func ledgerResult(err error) string {
	var ife *ledger.InsufficientFundsError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &ife):
		return "insufficient_funds"
	}
	return "error"
}
