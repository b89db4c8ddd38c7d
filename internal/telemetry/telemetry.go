// Package telemetry is the Prometheus metrics registry instrumenting
// all four subsystems, a direct port of the teacher's metrics
// registry pattern (namespace/subsystem/name/help, one package-level
// promauto metric per concern, plus a helper-update-function per
// metric group).
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Registry = prometheus.NewRegistry()

	OrchestratorAnalyzeDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "investiq",
			Subsystem: "orchestrator",
			Name:      "analyze_duration_seconds",
			Help:      "Wall-clock duration of Orchestrator.Analyze",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"symbol"},
	)

	OrchestratorEngineAbsent = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "investiq",
			Subsystem: "orchestrator",
			Name:      "engine_absent_total",
			Help:      "Count of analyses where an engine's result was absent (timeout or data error)",
		},
		[]string{"engine"},
	)

	RiskRejectionsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "investiq",
			Subsystem: "risk",
			Name:      "rejections_total",
			Help:      "Count of pre_trade_check rejections by reason",
		},
		[]string{"reason"},
	)

	CircuitBreakerHalted = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: "investiq",
			Subsystem: "risk",
			Name:      "circuit_breaker_halted",
			Help:      "1 if the circuit breaker is halted, 0 otherwise",
		},
	)

	AgentTickDuration = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "investiq",
			Subsystem: "agent",
			Name:      "tick_duration_seconds",
			Help:      "Wall-clock duration of one agent tick",
			Buckets:   prometheus.DefBuckets,
		},
	)

	AgentStateTransitions = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "investiq",
			Subsystem: "agent",
			Name:      "state_transitions_total",
			Help:      "Count of agent state machine transitions",
		},
		[]string{"from", "to"},
	)

	BacktestRunDuration = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "investiq",
			Subsystem: "backtest",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of a full backtest run",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	BacktestSharpeRatio = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "investiq",
			Subsystem: "backtest",
			Name:      "sharpe_ratio",
			Help:      "Sharpe ratio of the most recent backtest run",
		},
		[]string{"run_id"},
	)
)

// ObserveAnalyzeDuration records one Orchestrator.Analyze call's wall
// clock time, matching the teacher's helper-function-per-metric idiom.
func ObserveAnalyzeDuration(symbol string, seconds float64) {
	OrchestratorAnalyzeDuration.WithLabelValues(symbol).Observe(seconds)
}

func RecordEngineAbsent(engineName string) {
	OrchestratorEngineAbsent.WithLabelValues(engineName).Inc()
}

func RecordRiskRejection(reason string) {
	RiskRejectionsTotal.WithLabelValues(reason).Inc()
}

func SetCircuitBreakerHalted(halted bool) {
	if halted {
		CircuitBreakerHalted.Set(1)
		return
	}
	CircuitBreakerHalted.Set(0)
}

func RecordStateTransition(from, to string) {
	AgentStateTransitions.WithLabelValues(from, to).Inc()
}
