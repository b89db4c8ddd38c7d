package engine

import (
	"context"

	"github.com/N0tT1m/invest-iq-sub000/internal/market"
)

type FundamentalEngine struct{}

func NewFundamentalEngine() *FundamentalEngine { return &FundamentalEngine{} }

func (e *FundamentalEngine) Name() Name { return Fundamental }

func (e *FundamentalEngine) Analyze(ctx context.Context, in Input) (Result, error) {
	if len(in.Financials) == 0 {
		return Result{}, missingFundamentals(in.Symbol, "no quarterly financials available")
	}
	q := in.Financials[0]
	if q.Revenue.IsZero() {
		return Result{}, missingFundamentals(in.Symbol, "revenue is required")
	}
	if q.TotalAssets.IsZero() {
		return Result{}, missingFundamentals(in.Symbol, "balance sheet totals are required")
	}

	netIncome := q.NetIncome.Float64()
	revenue := q.Revenue.Float64()
	totalAssets := q.TotalAssets.Float64()
	totalLiabilities := q.TotalLiabilities.Float64()
	equity := totalAssets - totalLiabilities
	currentAssets := q.CurrentAssets.Float64()
	currentLiabilities := q.CurrentLiabilities.Float64()
	fcf := q.OperatingCashFlow.Float64() - q.CapEx.Float64()

	profitMargin := safeDiv(netIncome, revenue)
	roe := safeDiv(netIncome, equity)
	investedCapital := equity + totalLiabilities - currentLiabilities
	roic := safeDiv(netIncome, investedCapital)
	de := safeDiv(totalLiabilities, equity)
	currentRatio := safeDiv(currentAssets, currentLiabilities)
	fcfYield := safeDiv(fcf, totalAssets)

	piotroski := piotroskiScore(in.Financials)
	altmanZ := altmanZScore(revenue, totalAssets, totalLiabilities, equity, netIncome, currentAssets, currentLiabilities)

	var votes []vote
	votes = append(votes, vote{direction: sign(profitMargin), weight: 1})
	votes = append(votes, vote{direction: sign(roe), weight: 1})
	votes = append(votes, vote{direction: sign(roic), weight: 1})
	if de > 2 {
		votes = append(votes, vote{direction: -1, weight: 0.8})
	} else if de > 0 {
		votes = append(votes, vote{direction: 1, weight: 0.5})
	}
	if currentRatio >= 1.5 {
		votes = append(votes, vote{direction: 1, weight: 0.6})
	} else if currentRatio > 0 && currentRatio < 1.0 {
		votes = append(votes, vote{direction: -1, weight: 0.6})
	}
	votes = append(votes, vote{direction: sign(fcfYield), weight: 0.9})
	votes = append(votes, vote{direction: (piotroski/9.0)*2 - 1, weight: 1})
	switch {
	case altmanZ > 2.99:
		votes = append(votes, vote{direction: 1, weight: 1})
	case altmanZ < 1.81:
		votes = append(votes, vote{direction: -1, weight: 1.2})
	}

	score, confidence, agreeing := tally(votes)

	return Result{
		Signal:        BucketFromScore(score),
		RawConfidence: confidence,
		Metrics: map[string]float64{
			"profit_margin": profitMargin, "roe": roe, "roic": roic,
			"debt_to_equity": de, "current_ratio": currentRatio,
			"fcf_yield": fcfYield, "piotroski_f_score": piotroski,
			"altman_z_score": altmanZ, "agreeing_indicators": float64(agreeing),
		},
		Reason: "fundamental ratio composite",
	}, nil
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

// piotroskiScore implements a simplified 9-point Piotroski F-score.
// The six quarter-over-quarter criteria (ROA, leverage, liquidity,
// share count, margin and turnover improvement) use the
// second-most-recent quarter when present; otherwise those 6 points are
// left unscored (conservative: no credit
// without a comparison baseline).
func piotroskiScore(history []market.Financials) float64 {
	q := history[0]
	var score float64

	netIncome := q.NetIncome.Float64()
	if netIncome > 0 {
		score++
	}
	if q.OperatingCashFlow.Float64() > 0 {
		score++
	}
	if q.OperatingCashFlow.Float64() > netIncome {
		score++
	}

	if len(history) > 1 {
		prev := history[1]
		roaNow := safeDiv(netIncome, q.TotalAssets.Float64())
		roaPrev := safeDiv(prev.NetIncome.Float64(), prev.TotalAssets.Float64())
		if roaNow > roaPrev {
			score++
		}
		levNow := safeDiv(q.TotalLiabilities.Float64(), q.TotalAssets.Float64())
		levPrev := safeDiv(prev.TotalLiabilities.Float64(), prev.TotalAssets.Float64())
		if levNow < levPrev {
			score++
		}
		curNow := safeDiv(q.CurrentAssets.Float64(), q.CurrentLiabilities.Float64())
		curPrev := safeDiv(prev.CurrentAssets.Float64(), prev.CurrentLiabilities.Float64())
		if curNow > curPrev {
			score++
		}
		if q.SharesOutstanding <= prev.SharesOutstanding {
			score++
		}
		marginNow := safeDiv(netIncome, q.Revenue.Float64())
		marginPrev := safeDiv(prev.NetIncome.Float64(), prev.Revenue.Float64())
		if marginNow > marginPrev {
			score++
		}
		turnoverNow := safeDiv(q.Revenue.Float64(), q.TotalAssets.Float64())
		turnoverPrev := safeDiv(prev.Revenue.Float64(), prev.TotalAssets.Float64())
		if turnoverNow > turnoverPrev {
			score++
		}
	}
	return score
}

func altmanZScore(revenue, totalAssets, totalLiabilities, equity, netIncome, currentAssets, currentLiabilities float64) float64 {
	if totalAssets == 0 {
		return 0
	}
	workingCapital := currentAssets - currentLiabilities
	x1 := workingCapital / totalAssets
	x3 := netIncome / totalAssets
	x4 := safeDiv(equity, totalLiabilities)
	x5 := revenue / totalAssets
	return 1.2*x1 + 3.3*x3 + 0.6*x4 + 1.0*x5
}
