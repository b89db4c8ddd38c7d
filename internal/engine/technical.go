package engine

import (
	"context"

	"github.com/N0tT1m/invest-iq-sub000/internal/regime"
)

const minTechnicalBars = 60

type TechnicalEngine struct{}

func NewTechnicalEngine() *TechnicalEngine { return &TechnicalEngine{} }

func (e *TechnicalEngine) Name() Name { return Technical }

// vote is one indicator's directional opinion, -1..+1, weighted by the
// indicator's reliability for the tally below.
type vote struct {
	direction float64
	weight    float64
}

func (e *TechnicalEngine) Analyze(ctx context.Context, in Input) (Result, error) {
	if len(in.Bars) < minTechnicalBars {
		return Result{}, insufficientData(in.Symbol, "need at least 60 bars for technical analysis")
	}

	cs := closes(in.Bars)
	last := cs[len(cs)-1]

	sma20 := sma(cs, 20)
	sma50 := sma(cs, 50)
	var sma200 float64
	if len(cs) >= 200 {
		sma200 = sma(cs, 200)
	}
	emaFast := ema(cs, 12)
	_, _, macdHist := macd(cs)
	rsiLow, rsiHigh := regimeAdaptiveRSIThresholds(in.Regime)
	rsiVal := rsi(cs, 14)
	upperBB, middleBB, lowerBB := bollinger(cs, 20, 2)
	adxVal := adx(in.Bars, 14)
	atrVal := atr(in.Bars, 14)
	vwapVal := vwapOf(in.Bars)
	support, resistance := pivots(in.Bars, 20)
	candleVote := candlePatternScore(in.Bars)
	mtfVote := multiTimeframeConfluence(in.Bars)

	var votes []vote

	// Trend stack: price vs SMA20/50/200.
	if sma20 != 0 {
		votes = append(votes, vote{direction: sign(last - sma20), weight: 1.0})
	}
	if sma50 != 0 {
		votes = append(votes, vote{direction: sign(last - sma50), weight: 1.0})
	}
	if sma200 != 0 {
		votes = append(votes, vote{direction: sign(last - sma200), weight: 1.2})
	}
	if emaFast != 0 {
		votes = append(votes, vote{direction: sign(last - emaFast), weight: 0.8})
	}

	// Momentum: MACD histogram and RSI with regime-adaptive bands.
	votes = append(votes, vote{direction: sign(macdHist), weight: 1.1})
	switch {
	case rsiVal >= rsiHigh:
		votes = append(votes, vote{direction: -1, weight: 1.0})
	case rsiVal <= rsiLow:
		votes = append(votes, vote{direction: 1, weight: 1.0})
	default:
		votes = append(votes, vote{direction: 0, weight: 0.4})
	}

	// Mean reversion: Bollinger band position.
	if upperBB != lowerBB {
		switch {
		case last >= upperBB:
			votes = append(votes, vote{direction: -1, weight: 0.7})
		case last <= lowerBB:
			votes = append(votes, vote{direction: 1, weight: 0.7})
		default:
			votes = append(votes, vote{direction: sign(last - middleBB), weight: 0.3})
		}
	}

	// Trend strength gate: ADX > 25 amplifies the prevailing trend vote.
	if adxVal > 25 {
		votes = append(votes, vote{direction: sign(last - sma20), weight: 0.6})
	}

	// VWAP distance.
	if vwapVal != 0 {
		votes = append(votes, vote{direction: sign(last - vwapVal), weight: 0.6})
	}

	// Support/resistance proximity.
	if resistance != support {
		if last >= resistance {
			votes = append(votes, vote{direction: 1, weight: 0.5})
		} else if last <= support {
			votes = append(votes, vote{direction: -1, weight: 0.5})
		}
	}

	// Candlestick pattern and multi-timeframe confluence.
	if candleVote != 0 {
		votes = append(votes, vote{direction: sign(candleVote), weight: 0.4})
	}
	if mtfVote != 0 {
		votes = append(votes, vote{direction: mtfVote, weight: 0.5})
	}

	score, confidence, agreeing := tally(votes)

	return Result{
		Signal:        BucketFromScore(score),
		RawConfidence: confidence,
		Metrics: map[string]float64{
			"sma20": sma20, "sma50": sma50, "sma200": sma200,
			"rsi14": rsiVal, "macd_hist": macdHist,
			"bb_upper": upperBB, "bb_lower": lowerBB,
			"adx14": adxVal, "atr14": atrVal, "vwap": vwapVal,
			"support": support, "resistance": resistance,
			"agreeing_indicators": float64(agreeing),
			"total_indicators":    float64(len(votes)),
		},
		Reason: "weighted technical indicator tally",
	}, nil
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// tally aggregates votes into a [-3, 3] score and a confidence equal to
// the proportion of indicators agreeing with the final direction,
// clipped to [0, 1] (spec §4.1).
func tally(votes []vote) (score, confidence float64, agreeing int) {
	if len(votes) == 0 {
		return 0, 0, 0
	}
	var weighted, totalWeight float64
	for _, v := range votes {
		weighted += v.direction * v.weight
		totalWeight += v.weight
	}
	if totalWeight == 0 {
		return 0, 0, 0
	}
	normalized := weighted / totalWeight // in [-1, 1]
	score = normalized * 3
	finalDir := sign(normalized)
	for _, v := range votes {
		if finalDir == 0 || sign(v.direction) == finalDir {
			agreeing++
		}
	}
	confidence = clip01(float64(agreeing) / float64(len(votes)))
	return score, confidence, agreeing
}

func regimeAdaptiveRSIThresholds(r *regime.Regime) (low, high float64) {
	if r == nil {
		return 30, 70
	}
	switch r.Trend {
	case regime.Bull:
		return 40, 80
	case regime.Bear:
		return 20, 60
	default:
		return 30, 70
	}
}
