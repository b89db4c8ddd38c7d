package engine

import (
	"context"
	"math"
	"sort"
)

const minQuantBars = 60

type QuantEngine struct {
	RiskFreeRate float64 // annualized, e.g. 0.04
}

func NewQuantEngine() *QuantEngine { return &QuantEngine{RiskFreeRate: 0.04} }

func (e *QuantEngine) Name() Name { return Quant }

func (e *QuantEngine) Analyze(ctx context.Context, in Input) (Result, error) {
	if len(in.Bars) < minQuantBars {
		return Result{}, insufficientData(in.Symbol, "need at least 60 bars for quant analysis")
	}

	cs := closes(in.Bars)
	returns := dailyReturns(cs)

	annualVol := stdevF(returns) * math.Sqrt(252)
	meanDaily := meanF(returns)
	annualReturn := meanDaily * 252

	sharpe := 0.0
	if annualVol != 0 {
		sharpe = (annualReturn - e.RiskFreeRate) / annualVol
	}
	sortino := sortinoRatio(returns, e.RiskFreeRate)
	maxDD := maxDrawdown(cs)
	varPct := valueAtRisk(returns, 0.05)
	cvar := conditionalVaR(returns, 0.05)
	hurst := hurstExponent(cs)
	skew := skewness(returns)
	kurt := kurtosis(returns)

	var beta float64
	if len(in.BenchmarkBars) >= len(in.Bars) {
		benchReturns := dailyReturns(closes(in.BenchmarkBars[len(in.BenchmarkBars)-len(cs):]))
		beta = betaOf(returns, benchReturns)
	}

	var votes []vote
	votes = append(votes, vote{direction: sign(sharpe), weight: 1.2})
	votes = append(votes, vote{direction: sign(sortino), weight: 1.0})
	if maxDD < -0.20 {
		votes = append(votes, vote{direction: -1, weight: 1.0})
	} else if maxDD > -0.05 {
		votes = append(votes, vote{direction: 1, weight: 0.4})
	}
	if varPct < -0.03 {
		votes = append(votes, vote{direction: -1, weight: 0.8})
	}
	if hurst > 0.55 {
		// trending regime: amplify the recent-return direction
		votes = append(votes, vote{direction: sign(annualReturn), weight: 0.6})
	} else if hurst < 0.45 {
		// mean-reverting regime: fade the recent-return direction
		votes = append(votes, vote{direction: -sign(annualReturn), weight: 0.4})
	}
	if skew < -1 {
		votes = append(votes, vote{direction: -1, weight: 0.5})
	}

	score, confidence, agreeing := tally(votes)

	return Result{
		Signal:        BucketFromScore(score),
		RawConfidence: confidence,
		Metrics: map[string]float64{
			"annual_volatility": annualVol, "sharpe": sharpe, "sortino": sortino,
			"max_drawdown": maxDD, "var_5pct": varPct, "cvar_5pct": cvar,
			"hurst_exponent": hurst, "skewness": skew, "kurtosis": kurt,
			"beta": beta, "agreeing_indicators": float64(agreeing),
		},
		Reason: "risk/return statistical composite",
	}, nil
}

func dailyReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		out = append(out, (closes[i]-closes[i-1])/closes[i-1])
	}
	return out
}

func meanF(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var s float64
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}

func stdevF(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := meanF(xs)
	var sumSq float64
	for _, x := range xs {
		d := x - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)))
}

func sortinoRatio(returns []float64, riskFreeAnnual float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	rf := riskFreeAnnual / 252
	var sumSqDown float64
	var count int
	for _, r := range returns {
		if r < rf {
			d := r - rf
			sumSqDown += d * d
			count++
		}
	}
	if count == 0 {
		return 0
	}
	downsideDev := math.Sqrt(sumSqDown/float64(count)) * math.Sqrt(252)
	if downsideDev == 0 {
		return 0
	}
	annualReturn := meanF(returns) * 252
	return (annualReturn - riskFreeAnnual) / downsideDev
}

func maxDrawdown(closes []float64) float64 {
	if len(closes) == 0 {
		return 0
	}
	peak := closes[0]
	maxDD := 0.0
	for _, c := range closes {
		if c > peak {
			peak = c
		}
		if peak == 0 {
			continue
		}
		dd := (c - peak) / peak
		if dd < maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// valueAtRisk returns the historical-simulation VaR at the given tail
// probability (e.g. 0.05 for 95% VaR), expressed as a negative return.
func valueAtRisk(returns []float64, tail float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	sorted := append([]float64(nil), returns...)
	sort.Float64s(sorted)
	idx := int(tail * float64(len(sorted)))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func conditionalVaR(returns []float64, tail float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	sorted := append([]float64(nil), returns...)
	sort.Float64s(sorted)
	idx := int(tail * float64(len(sorted)))
	if idx < 1 {
		idx = 1
	}
	return meanF(sorted[:idx])
}

// hurstExponent estimates the Hurst exponent via rescaled-range (R/S)
// analysis over a small set of sub-window lengths.
func hurstExponent(closes []float64) float64 {
	returns := dailyReturns(closes)
	n := len(returns)
	if n < 20 {
		return 0.5
	}
	lags := []int{10, 20, n / 2}
	var logLags, logRS []float64
	for _, lag := range lags {
		if lag < 2 || lag > n {
			continue
		}
		rs := rescaledRange(returns[:lag])
		if rs <= 0 {
			continue
		}
		logLags = append(logLags, math.Log(float64(lag)))
		logRS = append(logRS, math.Log(rs))
	}
	if len(logLags) < 2 {
		return 0.5
	}
	// simple least-squares slope = Hurst exponent
	return slope(logLags, logRS)
}

func rescaledRange(xs []float64) float64 {
	m := meanF(xs)
	var cumulative, maxC, minC float64
	for i, x := range xs {
		cumulative += x - m
		if i == 0 || cumulative > maxC {
			maxC = cumulative
		}
		if i == 0 || cumulative < minC {
			minC = cumulative
		}
	}
	r := maxC - minC
	s := stdevF(xs)
	if s == 0 {
		return 0
	}
	return r / s
}

func slope(xs, ys []float64) float64 {
	n := float64(len(xs))
	mx, my := meanF(xs), meanF(ys)
	var num, den float64
	for i := range xs {
		num += (xs[i] - mx) * (ys[i] - my)
		den += (xs[i] - mx) * (xs[i] - mx)
	}
	if den == 0 {
		return 0.5
	}
	_ = n
	return num / den
}

func skewness(returns []float64) float64 {
	if len(returns) < 3 {
		return 0
	}
	m := meanF(returns)
	s := stdevF(returns)
	if s == 0 {
		return 0
	}
	var sum float64
	for _, r := range returns {
		sum += math.Pow((r-m)/s, 3)
	}
	return sum / float64(len(returns))
}

func kurtosis(returns []float64) float64 {
	if len(returns) < 4 {
		return 0
	}
	m := meanF(returns)
	s := stdevF(returns)
	if s == 0 {
		return 0
	}
	var sum float64
	for _, r := range returns {
		sum += math.Pow((r-m)/s, 4)
	}
	return sum/float64(len(returns)) - 3
}

func betaOf(assetReturns, benchReturns []float64) float64 {
	n := len(assetReturns)
	if n > len(benchReturns) {
		n = len(benchReturns)
	}
	if n < 2 {
		return 0
	}
	a := assetReturns[:n]
	b := benchReturns[:n]
	ma, mb := meanF(a), meanF(b)
	var cov, varB float64
	for i := 0; i < n; i++ {
		cov += (a[i] - ma) * (b[i] - mb)
		varB += (b[i] - mb) * (b[i] - mb)
	}
	if varB == 0 {
		return 0
	}
	return cov / varB
}
