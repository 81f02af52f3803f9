// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the profile service.
//
// # Description
//
// Metrics describe the incident signature each failure mode produces:
//   - Lookup counters by mode and outcome
//   - Cache hit and miss counters
//   - Injected delay histogram by mode
//   - Simulated pool exhaustion counter
//   - Failure mode change counter and active mode gauge
//
// # Integration
//
// Metrics are exposed on GET /metrics through promhttp.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

const (
	metricsNamespace = "mocksre"
	profileSubsystem = "profile"
	modeSubsystem    = "failure_mode"
)

// Lookup outcomes used as the "outcome" label.
const (
	OutcomeFound     = "found"
	OutcomeNotFound  = "not_found"
	OutcomeExhausted = "exhausted"
	OutcomeError     = "error"
)

// ProfileMetrics holds every Prometheus collector for the profile service.
//
// # Fields
//
//   - LookupsTotal: lookups by mode and outcome
//   - LookupDurationSeconds: dispatcher latency by mode
//   - CacheHitsTotal / CacheMissesTotal: none-mode cache behaviour
//   - InjectedDelaySeconds: artificial delay by mode
//   - ExhaustionsTotal: simulated pool exhaustion by mode
//   - ModeChangesTotal: successful mode changes by target mode
//   - ActiveMode: 1 for the active mode, 0 for the rest
type ProfileMetrics struct {
	LookupsTotal          *prometheus.CounterVec
	LookupDurationSeconds *prometheus.HistogramVec
	CacheHitsTotal        prometheus.Counter
	CacheMissesTotal      prometheus.Counter
	InjectedDelaySeconds  *prometheus.HistogramVec
	ExhaustionsTotal      *prometheus.CounterVec
	ModeChangesTotal      *prometheus.CounterVec
	ActiveMode            *prometheus.GaugeVec
}

// DefaultMetrics is registered against the default Prometheus registry.
// Initialized by InitMetrics.
var (
	DefaultMetrics *ProfileMetrics
	initOnce       sync.Once
)

// InitMetrics registers the default metrics instance once.
//
// # Outputs
//
//   - *ProfileMetrics: The process-wide instance.
func InitMetrics() *ProfileMetrics {
	initOnce.Do(func() {
		DefaultMetrics = NewProfileMetrics(prometheus.DefaultRegisterer)
	})
	return DefaultMetrics
}

// NewProfileMetrics creates and registers every collector on reg.
//
// # Description
//
// Tests pass prometheus.NewRegistry() to stay isolated from the default
// registry. A nil reg creates unregistered collectors.
//
// # Inputs
//
//   - reg: Registerer to attach collectors to.
//
// # Outputs
//
//   - *ProfileMetrics: The collectors.
func NewProfileMetrics(reg prometheus.Registerer) *ProfileMetrics {
	factory := promauto.With(reg)
	return &ProfileMetrics{
		LookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: profileSubsystem,
				Name:      "lookups_total",
				Help:      "Profile lookups by failure mode and outcome",
			},
			[]string{"mode", "outcome"},
		),
		LookupDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: profileSubsystem,
				Name:      "lookup_duration_seconds",
				Help:      "Dispatcher latency by failure mode",
				Buckets:   []float64{0.001, 0.005, 0.025, 0.1, 0.5, 1, 1.5, 2, 2.5, 5},
			},
			[]string{"mode"},
		),
		CacheHitsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: profileSubsystem,
			Name:      "cache_hits_total",
			Help:      "Lookups answered from the in-process cache",
		}),
		CacheMissesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: profileSubsystem,
			Name:      "cache_misses_total",
			Help:      "Cache-eligible lookups that went to the store",
		}),
		InjectedDelaySeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: profileSubsystem,
				Name:      "injected_delay_seconds",
				Help:      "Artificial delay injected by failure mode",
				Buckets:   []float64{0.01, 0.1, 0.5, 1, 2, 3},
			},
			[]string{"mode"},
		),
		ExhaustionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: profileSubsystem,
				Name:      "simulated_exhaustions_total",
				Help:      "Simulated connection pool exhaustion failures",
			},
			[]string{"mode"},
		),
		ModeChangesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: modeSubsystem,
				Name:      "changes_total",
				Help:      "Successful failure mode changes by target mode",
			},
			[]string{"mode"},
		),
		ActiveMode: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: modeSubsystem,
				Name:      "active",
				Help:      "1 for the active failure mode, 0 otherwise",
			},
			[]string{"mode"},
		),
	}
}

// =============================================================================
// Helper Methods
// =============================================================================

// RecordLookup counts a lookup and its latency.
func (m *ProfileMetrics) RecordLookup(mode, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.LookupsTotal.WithLabelValues(mode, outcome).Inc()
	m.LookupDurationSeconds.WithLabelValues(mode).Observe(elapsed.Seconds())
}

// RecordCache counts a cache hit or miss.
func (m *ProfileMetrics) RecordCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHitsTotal.Inc()
		return
	}
	m.CacheMissesTotal.Inc()
}

// RecordDelay observes an injected delay.
func (m *ProfileMetrics) RecordDelay(mode string, d time.Duration) {
	if m == nil {
		return
	}
	m.InjectedDelaySeconds.WithLabelValues(mode).Observe(d.Seconds())
}

// RecordExhaustion counts a simulated pool exhaustion.
func (m *ProfileMetrics) RecordExhaustion(mode string) {
	if m == nil {
		return
	}
	m.ExhaustionsTotal.WithLabelValues(mode).Inc()
}

// SetActiveMode flips the ActiveMode gauge to active and zeroes all others.
func (m *ProfileMetrics) SetActiveMode(active string, all []string) {
	if m == nil {
		return
	}
	for _, mode := range all {
		v := 0.0
		if mode == active {
			v = 1
		}
		m.ActiveMode.WithLabelValues(mode).Set(v)
	}
}

// RecordModeChange counts a change and updates the ActiveMode gauge.
func (m *ProfileMetrics) RecordModeChange(to string, all []string) {
	if m == nil {
		return
	}
	m.ModeChangesTotal.WithLabelValues(to).Inc()
	m.SetActiveMode(to, all)
}
