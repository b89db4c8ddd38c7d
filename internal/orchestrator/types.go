// Package orchestrator implements the Analysis Orchestrator (spec
// §4.2): concurrent multi-engine fan-out, regime-conditioned weighted
// fusion, and calibrated confidence.
package orchestrator

import (
	"context"
	"time"

	"github.com/N0tT1m/invest-iq-sub000/internal/engine"
	"github.com/N0tT1m/invest-iq-sub000/internal/regime"
)

// SignalModelService is the optional capability (spec §6) consumed by
// the orchestrator for calibration/weighting and by the agent for the
// meta-gate. Defined here (the primary consumer) so implementations
// live in their own package without an import cycle.
type SignalModelService interface {
	MetaGate(ctx context.Context, features map[string]float64) (probability float64, err error)
	Calibrate(ctx context.Context, eng engine.Name, rawConfidence float64) (calibrated float64, err error)
	Weights(ctx context.Context, features map[string]float64, r regime.Regime) (map[engine.Name]float64, error)
}

type ConvictionTier string

const (
	High     ConvictionTier = "High"
	Moderate ConvictionTier = "Moderate"
	Low      ConvictionTier = "Low"
)

type Horizon string

const (
	Short  Horizon = "Short"
	Medium Horizon = "Medium"
	Long   Horizon = "Long"
)

type Supplementary struct {
	SmartMoneyScore float64
	InsiderNet      float64
	IVPercentile    float64
	PutCallRatio    float64
	GapDirection    float64
	HasOptionsData  bool
}

// UnifiedAnalysis is the fused per-symbol output (spec §3).
type UnifiedAnalysis struct {
	Symbol           string
	Timestamp        time.Time
	PerEngine        map[engine.Name]engine.Result
	OverallSignal    engine.Signal
	OverallConfidence float64
	Regime           regime.Regime
	WeightsUsed      map[engine.Name]float64
	ConvictionTier   ConvictionTier
	TimeHorizonSignals map[Horizon]engine.Signal
	Supplementary    Supplementary
	Recommendation   string
}

// RegimeDefaultWeights returns the fallback weight vector (spec §4.2
// step 5, "otherwise use regime-default weights"). Bull/low-vol regimes
// lean technical+quant; bear/high-vol regimes lean fundamental+quant
// defensiveness; sideways leans more evenly.
func RegimeDefaultWeights(r regime.Regime) map[engine.Name]float64 {
	switch {
	case r.Trend == regime.Bull && r.Vol != regime.HighVol:
		return map[engine.Name]float64{engine.Technical: 0.40, engine.Fundamental: 0.20, engine.Quant: 0.20, engine.Sentiment: 0.20}
	case r.Trend == regime.Bear:
		return map[engine.Name]float64{engine.Technical: 0.25, engine.Fundamental: 0.30, engine.Quant: 0.30, engine.Sentiment: 0.15}
	case r.Vol == regime.HighVol:
		return map[engine.Name]float64{engine.Technical: 0.30, engine.Fundamental: 0.20, engine.Quant: 0.35, engine.Sentiment: 0.15}
	default:
		return map[engine.Name]float64{engine.Technical: 0.30, engine.Fundamental: 0.25, engine.Quant: 0.25, engine.Sentiment: 0.20}
	}
}
