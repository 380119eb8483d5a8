// Tapdeck
// Copyright (c) 2026 The Tapdeck Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Tapdeck.
//
// Tapdeck is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Tapdeck is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Tapdeck.  If not, see <http://www.gnu.org/licenses/>.

// Package metrics holds the Prometheus collectors exposed at /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tapdeck"

type Metrics struct {
	registry     *prometheus.Registry
	scanSessions *prometheus.CounterVec
	observations *prometheus.CounterVec
	writes       *prometheus.CounterVec
	resolves     *prometheus.CounterVec
}

// New registers the collectors on a fresh registry together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		scanSessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scan_sessions_total",
			Help:      "Scan sessions that returned to idle, by reason.",
		}, []string{"reason"}),
		observations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scan_observations_total",
			Help:      "Processed tag reads, by observation kind.",
		}, []string{"kind"}),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "write_outcomes_total",
			Help:      "Tag writes, by outcome.",
		}, []string{"outcome"}),
		resolves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolve_total",
			Help:      "Card resolutions, by result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.scanSessions,
		m.observations,
		m.writes,
		m.resolves,
	)
	return m
}

func (m *Metrics) ScanSessionEnded(reason string) {
	m.scanSessions.WithLabelValues(reason).Inc()
}

func (m *Metrics) Observation(kind string) {
	m.observations.WithLabelValues(kind).Inc()
}

func (m *Metrics) WriteOutcome(outcome string) {
	m.writes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Resolve(result string) {
	m.resolves.WithLabelValues(result).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
