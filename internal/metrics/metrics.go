// go-spoolscale
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-spoolscale.
//
// go-spoolscale is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-spoolscale is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-spoolscale; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

// Package metrics exposes the appliance counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "spoolscale"

// Metrics holds the collectors. All methods are safe on a nil *Metrics, so
// components can record unconditionally.
type Metrics struct {
	gatherer     prometheus.Gatherer
	transitions  *prometheus.CounterVec
	commands     *prometheus.CounterVec
	published    *prometheus.CounterVec
	tagReads     *prometheus.CounterVec
	tagWrites    *prometheus.CounterVec
	mode         *prometheus.GaugeVec
	weight       prometheus.Gauge
	parseErrors  prometheus.Counter
	publishError prometheus.Counter
}

// New creates the collectors and registers them with reg. A nil reg uses a
// fresh registry.
func New(reg *prometheus.Registry) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		gatherer: reg,
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mode_transitions_total",
			Help:      "Run mode transitions by target mode.",
		}, []string{"mode"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Accepted inbound commands by action.",
		}, []string{"action"}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_published_total",
			Help:      "Outbound messages by topic kind.",
		}, []string{"kind"}),
		tagReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tag_reads_total",
			Help:      "Tag poll outcomes.",
		}, []string{"result"}),
		tagWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tag_writes_total",
			Help:      "Tag write outcomes.",
		}, []string{"result"}),
		mode: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mode",
			Help:      "1 for the active run mode.",
		}, []string{"mode"}),
		weight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "weight_grams",
			Help:      "Last measured weight.",
		}),
		parseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "command_parse_errors_total",
			Help:      "Inbound messages that could not be decoded.",
		}),
		publishError: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Outbound messages that failed to publish.",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.transitions, m.commands, m.published, m.tagReads, m.tagWrites,
		m.mode, m.weight, m.parseErrors, m.publishError,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}
	return m, nil
}

// Transition records a switch from one mode to another.
func (m *Metrics) Transition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(to).Inc()
	if from != "" {
		m.mode.WithLabelValues(from).Set(0)
	}
	m.mode.WithLabelValues(to).Set(1)
}

func (m *Metrics) Command(action string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(action).Inc()
}

func (m *Metrics) ParseError() {
	if m == nil {
		return
	}
	m.parseErrors.Inc()
}

// Published counts an outbound message, or a failed one when err is set.
func (m *Metrics) Published(kind string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.publishError.Inc()
		return
	}
	m.published.WithLabelValues(kind).Inc()
}

func (m *Metrics) Weight(grams int64) {
	if m == nil {
		return
	}
	m.weight.Set(float64(grams))
}

// TagRead counts a tag poll. result is "ok", "empty" or "error".
func (m *Metrics) TagRead(result string) {
	if m == nil {
		return
	}
	m.tagReads.WithLabelValues(result).Inc()
}

func (m *Metrics) TagWrite(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.tagWrites.WithLabelValues(result).Inc()
}

// Handler serves /metrics and /health.
func (m *Metrics) Handler() http.Handler {
	mux := http.NewServeMux()
	gatherer := prometheus.DefaultGatherer
	if m != nil {
		gatherer = m.gatherer
	}
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}

// Serve runs the metrics server on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics server shutdown: %w", err)
		}
		<-errCh
		return nil
	}
}
