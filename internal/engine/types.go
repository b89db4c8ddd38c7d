// Package engine implements the four analysis engines (Technical,
// Fundamental, Quant, Sentiment) behind a shared Analyzer capability.
package engine

import (
	"context"

	"github.com/N0tT1m/invest-iq-sub000/internal/apperrors"
	"github.com/N0tT1m/invest-iq-sub000/internal/market"
	"github.com/N0tT1m/invest-iq-sub000/internal/regime"
)

// Signal is the shared [-3, +3] score scale (spec §3).
type Signal int

const (
	StrongSell Signal = -3
	Sell       Signal = -2
	WeakSell   Signal = -1
	Neutral    Signal = 0
	WeakBuy    Signal = 1
	Buy        Signal = 2
	StrongBuy  Signal = 3
)

func (s Signal) String() string {
	switch s {
	case StrongSell:
		return "StrongSell"
	case Sell:
		return "Sell"
	case WeakSell:
		return "WeakSell"
	case WeakBuy:
		return "WeakBuy"
	case Buy:
		return "Buy"
	case StrongBuy:
		return "StrongBuy"
	default:
		return "Neutral"
	}
}

// BucketFromScore maps a continuous fused score back onto the signal
// enum by thresholding, used by the orchestrator's fusion step.
func BucketFromScore(score float64) Signal {
	switch {
	case score >= 2.5:
		return StrongBuy
	case score >= 1.5:
		return Buy
	case score >= 0.5:
		return WeakBuy
	case score <= -2.5:
		return StrongSell
	case score <= -1.5:
		return Sell
	case score <= -0.5:
		return WeakSell
	default:
		return Neutral
	}
}

// Result is one EngineResult (spec §3).
type Result struct {
	Signal             Signal
	RawConfidence      float64
	CalibratedConfidence float64
	Metrics            map[string]float64
	Reason             string
}

// Name identifies which of the four engines produced a Result.
type Name string

const (
	Technical   Name = "technical"
	Fundamental Name = "fundamental"
	Quant       Name = "quant"
	Sentiment   Name = "sentiment"
)

// Input bundles whatever data is present for a single analysis pass.
// Any of Bars/Financials/News may be nil/empty; engines that require a
// field they don't have return InsufficientData/MissingFundamentals.
type Input struct {
	Symbol        string
	Bars          []market.Bar
	Financials    []market.Financials
	News          []market.NewsItem
	BenchmarkBars []market.Bar
	Regime        *regime.Regime
}

// Analyzer is the shared capability every engine implements (spec
// §4.1): pure with respect to its inputs, bounded time budget, and
// engine-absent (not fatal) on insufficient input.
type Analyzer interface {
	Name() Name
	Analyze(ctx context.Context, in Input) (Result, error)
}

func insufficientData(symbol, detail string) error {
	return apperrors.NewDataError(apperrors.InsufficientData, symbol, detail)
}

func missingFundamentals(symbol, detail string) error {
	return apperrors.NewDataError(apperrors.MissingFundamentals, symbol, detail)
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
