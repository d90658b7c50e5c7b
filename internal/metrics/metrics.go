// Package metrics exposes Prometheus counters for the scan workflow and the
// HTTP listener that serves them.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const namespace = "skinalyzer"

// Outcome labels.
const (
	IntakeAccepted = "accepted"
	IntakeRejected = "rejected"

	AnalysisSucceeded = "succeeded"
	AnalysisFailed    = "failed"
	AnalysisDiscarded = "discarded"

	ChatAnswered = "answered"
	ChatFallback = "fallback"
)

var (
	intakeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "intake_total",
		Help:      "Images offered for staging, by result.",
	}, []string{"result"})

	analysisTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "analysis_total",
		Help:      "Completed analysis requests, by outcome.",
	}, []string{"outcome"})

	analysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "analysis_duration_seconds",
		Help:      "Time from analysis start to completion.",
		Buckets:   prometheus.ExponentialBuckets(0.25, 2, 8),
	})

	chatTurnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "chat_turns_total",
		Help:      "Completed chat turns, by outcome.",
	}, []string{"outcome"})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_sessions",
		Help:      "Users with a live scan workflow.",
	})
)

func ObserveIntake(result string) {
	intakeTotal.WithLabelValues(result).Inc()
}

func ObserveAnalysis(outcome string, took time.Duration) {
	analysisTotal.WithLabelValues(outcome).Inc()
	if outcome != AnalysisDiscarded {
		analysisDuration.Observe(took.Seconds())
	}
}

func ObserveChatTurn(outcome string) {
	chatTurnsTotal.WithLabelValues(outcome).Inc()
}

func SessionStarted() {
	activeSessions.Inc()
}

func SessionEnded() {
	activeSessions.Dec()
}

// NewRouter serves /metrics and a liveness probe on /healthz.
func NewRouter() http.Handler {
	mux := chi.NewRouter()
	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Serve runs the metrics listener until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("metrics listener started")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("metrics listener shutdown")
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
