// Package metrics exposes recitation counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rbright/hifz/internal/align"
)

const namespace = "hifz"

// Metrics holds every collector hifz records.
type Metrics struct {
	Segments        *prometheus.CounterVec
	TokensConfirmed *prometheus.CounterVec
	Skipped         prometheus.Counter
	Deferrals       prometheus.Counter
	Restarts        prometheus.Counter
	Sessions        *prometheus.CounterVec
	Progress        prometheus.Gauge

	PublishTotal  *prometheus.CounterVec
	PublishErrors *prometheus.CounterVec
}

// New registers the collectors with reg. A nil reg uses a private registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		Segments: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_total",
			Help:      "Recognizer segments applied, by finality",
		}, []string{"final"}),
		TokensConfirmed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_confirmed_total",
			Help:      "Reference tokens confirmed, by matching rule",
		}, []string{"rule"}),
		Skipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_skipped_total",
			Help:      "Spoken words discarded as noise",
		}),
		Deferrals: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deferrals_total",
			Help:      "Segments that stopped on an incomplete trailing word",
		}),
		Restarts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recognizer_restarts_total",
			Help:      "Recognition streams restarted after an unexpected end",
		}),
		Sessions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Finished listening sessions, by outcome",
		}, []string{"outcome"}),
		Progress: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "progress_ratio",
			Help:      "Confirmed fraction of the active passage",
		}),
		PublishTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Recitation events handed to the publisher, by kind",
		}, []string{"kind"}),
		PublishErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_publish_errors_total",
			Help:      "Recitation events the publisher failed to write, by kind",
		}, []string{"kind"}),
	}
}

// ObserveSegment counts one applied segment.
func (m *Metrics) ObserveSegment(final bool) {
	label := "false"
	if final {
		label = "true"
	}
	m.Segments.WithLabelValues(label).Inc()
}

// ObserveRules counts the rules that decided each confirmed token.
func (m *Metrics) ObserveRules(rules []align.Rule, skipped int, deferred bool) {
	for _, rule := range rules {
		m.TokensConfirmed.WithLabelValues(rule.String()).Inc()
	}
	m.Skipped.Add(float64(skipped))
	if deferred {
		m.Deferrals.Inc()
	}
}

// ObserveRestart counts one recognizer restart.
func (m *Metrics) ObserveRestart() {
	m.Restarts.Inc()
}

// ObserveSession counts a finished session.
func (m *Metrics) ObserveSession(outcome string) {
	m.Sessions.WithLabelValues(outcome).Inc()
}

// SetProgress records the confirmed fraction.
func (m *Metrics) SetProgress(progress float64) {
	m.Progress.Set(progress)
}

// RecordPublish counts one event publish attempt.
func (m *Metrics) RecordPublish(kind string, err error) {
	m.PublishTotal.WithLabelValues(kind).Inc()
	if err != nil {
		m.PublishErrors.WithLabelValues(kind).Inc()
	}
}
