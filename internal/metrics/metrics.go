// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

// Package metrics declares orchestrator prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func fqn(name string) string {
	return prometheus.BuildFQName("inscriber", "orchestrator", name)
}

var (
	TransactionsSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: fqn("transactions_submitted_total"),
			Help: "Submitted transactions by flow and step kind",
		},
		[]string{"flow", "step"},
	)

	ConfirmationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    fqn("confirmation_seconds"),
			Help:    "Time between submit and observed confirmation",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"flow"},
	)

	FlowFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: fqn("flow_failures_total"),
			Help: "Failed flows by phase",
		},
		[]string{"flow", "phase"},
	)

	FlowDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    fqn("flow_seconds"),
			Help:    "Flow duration by result status",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"flow", "status"},
	)

	FeesSpent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: fqn("fees_spent_total"),
			Help: "Network and priority fees spent, in base units",
		},
		[]string{"flow"},
	)
)

func init() {
	prometheus.MustRegister(
		TransactionsSubmitted,
		ConfirmationDuration,
		FlowFailures,
		FlowDuration,
		FeesSpent,
	)
}

// ObserveConfirmation records confirmation latency of a transaction submitted at started.
func ObserveConfirmation(flow string, started time.Time) {
	ConfirmationDuration.WithLabelValues(flow).Observe(time.Since(started).Seconds())
}

// ObserveFlow records flow completion.
func ObserveFlow(flow, status string, started time.Time) {
	FlowDuration.WithLabelValues(flow, status).Observe(time.Since(started).Seconds())
}

// ListenAndServe serves /metrics on addr until ctx is done.
func ListenAndServe(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
