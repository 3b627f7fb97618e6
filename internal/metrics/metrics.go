// Package metrics exposes workflow counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serpwalk_queries_total",
			Help: "Total number of queries processed, by outcome",
		},
		[]string{"outcome"},
	)

	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "serpwalk_query_duration_seconds",
			Help:    "Wall time of a query from provisioning to teardown",
			Buckets: []float64{10, 30, 60, 120, 240, 480},
		},
		[]string{"outcome"},
	)

	QueryAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "serpwalk_query_attempts",
			Help:    "Number of attempts a query needed",
			Buckets: []float64{1, 2, 3, 4, 5},
		},
	)

	ResultsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "serpwalk_results_total",
			Help: "Total number of search results extracted",
		},
	)

	ChallengesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serpwalk_challenges_total",
			Help: "Challenge checks by outcome",
		},
		[]string{"outcome"},
	)

	ProxyAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serpwalk_proxy_attempts_total",
			Help: "Proxy acquisitions by result",
		},
		[]string{"result"},
	)

	BlockedPagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serpwalk_blocked_pages_total",
			Help: "Pages recognised as served by bot protection",
		},
		[]string{"source"},
	)
)

// RecordQuery updates the per-query metrics.
func RecordQuery(failed bool, attempts, results int, d time.Duration) {
	outcome := "ok"
	if failed {
		outcome = "failed"
	}
	QueriesTotal.WithLabelValues(outcome).Inc()
	QueryDuration.WithLabelValues(outcome).Observe(d.Seconds())
	QueryAttempts.Observe(float64(attempts))
	ResultsTotal.Add(float64(results))
}

// RecordChallenge counts a challenge check outcome.
func RecordChallenge(outcome string) {
	ChallengesTotal.WithLabelValues(outcome).Inc()
}

// RecordProxy counts a proxy acquisition.
func RecordProxy(ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	ProxyAttemptsTotal.WithLabelValues(result).Inc()
}

// RecordBlocked counts a page attributed to source.
func RecordBlocked(source string) {
	if source == "" {
		return
	}
	BlockedPagesTotal.WithLabelValues(source).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Server encapsulates an HTTP server for Prometheus metrics.
type Server struct {
	srv *http.Server
}

// Start begins listening on the specified port and exposes /metrics.
func Start(port int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "err", err)
		}
	}()
	logger.Info("metrics server listening", "addr", srv.Addr)

	return &Server{srv: srv}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s == nil || s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
