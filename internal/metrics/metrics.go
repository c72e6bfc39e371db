// Package metrics exposes prometheus collectors for the runtime.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the runtime's collectors on a dedicated registry, so tests
// and embedded deployments never collide on the global one.
type Metrics struct {
	registry *prometheus.Registry

	SessionsActive  prometheus.Gauge
	SessionsCreated prometheus.Counter
	SessionsResumed prometheus.Counter

	StepsOpened  *prometheus.CounterVec   // by step type
	StepsClosed  *prometheus.CounterVec   // by step type and final status
	StepDuration *prometheus.HistogramVec // by step type

	Messages    *prometheus.CounterVec // by author
	HookErrors  *prometheus.CounterVec // by hook name
	StopSignals prometheus.Counter
	EmitRetries prometheus.Counter
}

// New creates the collector set and registers it.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chainlit_sessions_active",
			Help: "Number of sessions currently registered",
		}),
		SessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chainlit_sessions_created_total",
			Help: "Total number of sessions created",
		}),
		SessionsResumed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chainlit_sessions_resumed_total",
			Help: "Total number of sessions resumed from history",
		}),
		StepsOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chainlit_steps_opened_total",
			Help: "Total number of steps opened",
		}, []string{"type"}),
		StepsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chainlit_steps_closed_total",
			Help: "Total number of steps closed",
		}, []string{"type", "status"}),
		StepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chainlit_step_duration_seconds",
			Help:    "Duration of closed steps",
			Buckets: prometheus.DefBuckets,
		}, []string{"type"}),
		Messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chainlit_messages_total",
			Help: "Total number of messages appended",
		}, []string{"author"}),
		HookErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chainlit_hook_errors_total",
			Help: "Total number of errors raised by registered hooks",
		}, []string{"hook"}),
		StopSignals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chainlit_stop_signals_total",
			Help: "Total number of stop signals received",
		}),
		EmitRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chainlit_emit_retries_total",
			Help: "Total number of step emission delivery retries",
		}),
	}

	m.registry.MustRegister(
		m.SessionsActive,
		m.SessionsCreated,
		m.SessionsResumed,
		m.StepsOpened,
		m.StepsClosed,
		m.StepDuration,
		m.Messages,
		m.HookErrors,
		m.StopSignals,
		m.EmitRetries,
	)
	return m
}

// Handler serves the registry in prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
