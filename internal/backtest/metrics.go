package backtest

import (
	"math"
	"sort"

	"github.com/N0tT1m/invest-iq-sub000/internal/market"
)

const tradingDaysPerYear = 252

// computeMetrics derives the full metrics suite from a completed
// equity curve and trade list, enriched with a benchmark series for
// alpha/beta/tracking-error.
func computeMetrics(curve []EquityPoint, trades []TradeRecord, benchmarkBars []market.Bar, cfg Config) Result {
	res := Result{EquityCurve: curve, Trades: trades, MonthlyReturns: map[string]float64{}}
	if len(curve) < 2 {
		return res
	}

	dailyReturns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity.Float64()
		if prev == 0 {
			dailyReturns = append(dailyReturns, 0)
			continue
		}
		dailyReturns = append(dailyReturns, (curve[i].Equity.Float64()-prev)/prev)
	}

	start := curve[0].Equity.Float64()
	end := curve[len(curve)-1].Equity.Float64()
	if start > 0 {
		res.TotalReturn = (end - start) / start
	}
	years := float64(len(curve)) / tradingDaysPerYear
	if years > 0 && start > 0 && end > 0 {
		res.CAGR = math.Pow(end/start, 1/years) - 1
	}

	res.Sharpe = sharpeRatio(dailyReturns)
	res.Sortino = sortinoRatio(dailyReturns)

	drawdowns, maxDD, maxDDDays := drawdownSeries(curve)
	res.MaxDrawdown = maxDD
	res.MaxDrawdownDays = maxDDDays
	res.Top5Drawdowns = top5(drawdowns)

	res.ProfitFactor, res.WinRate, res.Expectancy = tradeStats(trades)
	res.TailRatio = tailRatio(dailyReturns)
	res.MonthlyReturns = monthlyReturns(curve)
	res.RollingSharpe = rollingSharpe(dailyReturns, tradingDaysPerYear)

	if len(benchmarkBars) > 1 {
		benchReturns := barReturns(benchmarkBars)
		res.BenchmarkAlpha, res.BenchmarkBeta, res.TrackingError = regressAgainstBenchmark(dailyReturns, benchReturns)
	}

	return res
}

func sharpeRatio(returns []float64) float64 {
	mean, sd := meanStdev(returns)
	if sd == 0 {
		return 0
	}
	return mean / sd * math.Sqrt(tradingDaysPerYear)
}

func sortinoRatio(returns []float64) float64 {
	mean, _ := meanStdev(returns)
	var downside []float64
	for _, r := range returns {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	if len(downside) == 0 {
		return 0
	}
	_, downsideSd := meanStdev(downside)
	if downsideSd == 0 {
		return 0
	}
	return mean / downsideSd * math.Sqrt(tradingDaysPerYear)
}

// drawdownSeries returns every peak-to-trough drawdown magnitude
// (fraction), the single maximum, and the longest recovery in days.
func drawdownSeries(curve []EquityPoint) (drawdowns []float64, maxDD float64, maxDDDays int) {
	peak := curve[0].Equity.Float64()
	peakIdx := 0
	inDrawdown := false
	ddStart := 0

	for i, p := range curve {
		v := p.Equity.Float64()
		if v > peak {
			if inDrawdown {
				dd := (peak - curve[i-1].Equity.Float64()) / peak
				drawdowns = append(drawdowns, dd)
				days := i - ddStart
				if days > maxDDDays {
					maxDDDays = days
				}
				inDrawdown = false
			}
			peak = v
			peakIdx = i
			continue
		}
		if v < peak {
			if !inDrawdown {
				inDrawdown = true
				ddStart = peakIdx
			}
			dd := (peak - v) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	if inDrawdown {
		last := curve[len(curve)-1].Equity.Float64()
		dd := (peak - last) / peak
		drawdowns = append(drawdowns, dd)
		days := len(curve) - 1 - ddStart
		if days > maxDDDays {
			maxDDDays = days
		}
	}
	return drawdowns, maxDD, maxDDDays
}

func top5(drawdowns []float64) []float64 {
	sorted := append([]float64(nil), drawdowns...)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
	if len(sorted) > 5 {
		sorted = sorted[:5]
	}
	return sorted
}

func tradeStats(trades []TradeRecord) (profitFactor, winRate, expectancy float64) {
	if len(trades) == 0 {
		return 0, 0, 0
	}
	var grossProfit, grossLoss float64
	var wins int
	var sum float64
	for _, t := range trades {
		pnl := t.PnL.Float64()
		sum += pnl
		if pnl > 0 {
			grossProfit += pnl
			wins++
		} else {
			grossLoss += -pnl
		}
	}
	winRate = float64(wins) / float64(len(trades))
	expectancy = sum / float64(len(trades))
	if grossLoss == 0 {
		if grossProfit > 0 {
			return math.Inf(1), winRate, expectancy
		}
		return 0, winRate, expectancy
	}
	profitFactor = grossProfit / grossLoss
	return profitFactor, winRate, expectancy
}

// tailRatio is the ratio of the 95th to the 5th percentile of daily
// returns, a measure of right- vs. left-tail magnitude.
func tailRatio(returns []float64) float64 {
	if len(returns) < 20 {
		return 0
	}
	sorted := append([]float64(nil), returns...)
	sort.Float64s(sorted)
	p95 := percentile(sorted, 0.95)
	p5 := percentile(sorted, 0.05)
	if p5 == 0 {
		return 0
	}
	return math.Abs(p95 / p5)
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p * float64(len(sorted)-1))
	return sorted[idx]
}

func monthlyReturns(curve []EquityPoint) map[string]float64 {
	out := map[string]float64{}
	monthStart := map[string]float64{}
	for _, p := range curve {
		key := p.Date.Format("2006-01")
		if _, ok := monthStart[key]; !ok {
			monthStart[key] = p.Equity.Float64()
		}
		out[key] = p.Equity.Float64()
	}
	for key, endVal := range out {
		startVal := monthStart[key]
		if startVal == 0 {
			out[key] = 0
			continue
		}
		out[key] = (endVal - startVal) / startVal
	}
	return out
}

// rollingSharpe computes a trailing-window Sharpe ratio at each point
// once enough history has accumulated.
func rollingSharpe(returns []float64, window int) []float64 {
	if len(returns) < window {
		return nil
	}
	out := make([]float64, 0, len(returns)-window+1)
	for i := window; i <= len(returns); i++ {
		out = append(out, sharpeRatio(returns[i-window:i]))
	}
	return out
}

func barReturns(bars []market.Bar) []float64 {
	out := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		prev := bars[i-1].Close.Float64()
		if prev == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, (bars[i].Close.Float64()-prev)/prev)
	}
	return out
}

// regressAgainstBenchmark runs a simple OLS of strategy returns on
// benchmark returns: beta is the slope, alpha the annualized intercept,
// tracking error the annualized stdev of the residuals.
func regressAgainstBenchmark(strategy, benchmark []float64) (alpha, beta, trackingError float64) {
	n := len(strategy)
	if len(benchmark) < n {
		n = len(benchmark)
	}
	if n < 2 {
		return 0, 0, 0
	}
	strategy = strategy[:n]
	benchmark = benchmark[:n]

	meanS, _ := meanStdev(strategy)
	meanB, _ := meanStdev(benchmark)

	var cov, varB float64
	for i := 0; i < n; i++ {
		ds := strategy[i] - meanS
		db := benchmark[i] - meanB
		cov += ds * db
		varB += db * db
	}
	if varB == 0 {
		return 0, 0, 0
	}
	beta = cov / varB
	dailyAlpha := meanS - beta*meanB
	alpha = dailyAlpha * tradingDaysPerYear

	residuals := make([]float64, n)
	for i := 0; i < n; i++ {
		residuals[i] = strategy[i] - (dailyAlpha + beta*benchmark[i])
	}
	_, residSd := meanStdev(residuals)
	trackingError = residSd * math.Sqrt(tradingDaysPerYear)
	return alpha, beta, trackingError
}
