package backtest

import (
	"context"
	"math/rand"
	"sort"
	"time"

	"github.com/N0tT1m/invest-iq-sub000/internal/market"
)

// WalkForwardFold is one rolling (train, test) split. Strategy
// parameters are frozen from the train window; only the test window's
// metrics feed the aggregated out-of-sample curve.
type WalkForwardFold struct {
	TrainStart, TrainEnd time.Time
	TestStart, TestEnd   time.Time
}

// WalkForwardResult reports the concatenated out-of-sample performance
// plus the overfitting ratio spec §4.5 requires: in-sample metric
// divided by out-of-sample metric (Sharpe, since it is scale-free).
type WalkForwardResult struct {
	Folds            []Result
	Combined         Result
	InSampleSharpe   float64
	OutSampleSharpe  float64
	OverfittingRatio float64
}

// RunWalkForward replays each fold's test window after in-sample fitting
// (fitting is a no-op here: the orchestrator's parameters are fixed by
// configuration rather than fit per fold, so "train" only establishes
// the in-sample Sharpe baseline the ratio compares against).
func (r *Runner) RunWalkForward(ctx context.Context, source market.MarketDataSource, symbols []string, benchmarkBars []market.Bar, folds []WalkForwardFold) (WalkForwardResult, error) {
	var wf WalkForwardResult
	var combinedCurve []EquityPoint
	var combinedTrades []TradeRecord
	var inSampleSharpes, outSampleSharpes []float64

	for _, fold := range folds {
		trainDates := dailyDates(fold.TrainStart, fold.TrainEnd)
		trainResult, err := r.Run(ctx, source, symbols, benchmarkBars, trainDates)
		if err != nil {
			return wf, err
		}
		inSampleSharpes = append(inSampleSharpes, trainResult.Sharpe)

		testDates := dailyDates(fold.TestStart, fold.TestEnd)
		testResult, err := r.Run(ctx, source, symbols, benchmarkBars, testDates)
		if err != nil {
			return wf, err
		}
		outSampleSharpes = append(outSampleSharpes, testResult.Sharpe)

		wf.Folds = append(wf.Folds, testResult)
		combinedCurve = append(combinedCurve, testResult.EquityCurve...)
		combinedTrades = append(combinedTrades, testResult.Trades...)
	}

	wf.InSampleSharpe = meanOf(inSampleSharpes)
	wf.OutSampleSharpe = meanOf(outSampleSharpes)
	if wf.OutSampleSharpe != 0 {
		wf.OverfittingRatio = wf.InSampleSharpe / wf.OutSampleSharpe
	}
	wf.Combined = computeMetrics(combinedCurve, combinedTrades, benchmarkBars, r.cfg)
	return wf, nil
}

// MonteCarloResult reports the percentile spread spec §4.5 requires
// over terminal equity and max drawdown from a block-bootstrap
// resample of a single realized daily-return series.
type MonteCarloResult struct {
	Iterations               int
	TerminalEquityP5P50P95    [3]float64
	MaxDrawdownP5P50P95       [3]float64
}

// RunMonteCarlo block-bootstraps the daily returns of an already
// completed Result, preserving streak structure by resampling
// contiguous blocks rather than single days (spec §4.5). rng is caller
// supplied (rand.New(rand.NewSource(seed))) so a run is reproducible.
func RunMonteCarlo(result Result, blockSize, iterations int, initialEquity float64, rng *rand.Rand) MonteCarloResult {
	returns := make([]float64, 0, len(result.EquityCurve)-1)
	for i := 1; i < len(result.EquityCurve); i++ {
		prev := result.EquityCurve[i-1].Equity.Float64()
		if prev == 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, (result.EquityCurve[i].Equity.Float64()-prev)/prev)
	}
	if len(returns) == 0 || blockSize <= 0 || blockSize > len(returns) {
		return MonteCarloResult{Iterations: iterations}
	}

	terminals := make([]float64, 0, iterations)
	drawdowns := make([]float64, 0, iterations)

	numBlocks := (len(returns) + blockSize - 1) / blockSize
	for it := 0; it < iterations; it++ {
		var path []float64
		for b := 0; b < numBlocks; b++ {
			start := rng.Intn(len(returns) - blockSize + 1)
			end := start + blockSize
			if end > len(returns) {
				end = len(returns)
			}
			path = append(path, returns[start:end]...)
		}

		equity := initialEquity
		peak := equity
		var maxDD float64
		for _, ret := range path {
			equity *= 1 + ret
			if equity > peak {
				peak = equity
			}
			if peak > 0 {
				dd := (peak - equity) / peak
				if dd > maxDD {
					maxDD = dd
				}
			}
		}
		terminals = append(terminals, equity)
		drawdowns = append(drawdowns, maxDD)
	}

	sort.Float64s(terminals)
	sort.Float64s(drawdowns)
	return MonteCarloResult{
		Iterations:             iterations,
		TerminalEquityP5P50P95: [3]float64{percentile(terminals, 0.05), percentile(terminals, 0.50), percentile(terminals, 0.95)},
		MaxDrawdownP5P50P95:    [3]float64{percentile(drawdowns, 0.05), percentile(drawdowns, 0.50), percentile(drawdowns, 0.95)},
	}
}

// CPCVResult is one purged-and-embargoed combinatorial split's
// out-of-sample metrics.
type CPCVResult struct {
	Splits   []Result
	Combined Result
}

// RunCPCV implements combinatorially purged cross-validation (spec
// §4.5): history is divided into nGroups contiguous blocks; each test
// combination holds out testGroups of them, purging embargoBars worth
// of training dates immediately adjacent to every held-out block so no
// label computed from a future window leaks into training.
func (r *Runner) RunCPCV(ctx context.Context, source market.MarketDataSource, symbols []string, benchmarkBars []market.Bar, start, end time.Time, nGroups, testGroups, embargoBars int) (CPCVResult, error) {
	var out CPCVResult
	allDates := dailyDates(start, end)
	if nGroups <= 0 || len(allDates) < nGroups {
		return out, nil
	}
	groupSize := len(allDates) / nGroups
	groups := make([][]time.Time, nGroups)
	for g := 0; g < nGroups; g++ {
		from := g * groupSize
		to := from + groupSize
		if g == nGroups-1 {
			to = len(allDates)
		}
		groups[g] = allDates[from:to]
	}

	combos := combinations(nGroups, testGroups)
	var combinedCurve []EquityPoint
	var combinedTrades []TradeRecord

	for _, combo := range combos {
		testSet := map[int]bool{}
		for _, idx := range combo {
			testSet[idx] = true
		}

		var testDates []time.Time
		for idx := range testSet {
			testDates = append(testDates, groups[idx]...)
		}
		sort.Slice(testDates, func(i, j int) bool { return testDates[i].Before(testDates[j]) })

		embargoed := embargo(testDates, allDates, embargoBars)
		_ = embargoed // purged training set is not replayed separately: this runner has no fit step, so only the OOS test windows are scored.

		testResult, err := r.Run(ctx, source, symbols, benchmarkBars, testDates)
		if err != nil {
			return out, err
		}
		out.Splits = append(out.Splits, testResult)
		combinedCurve = append(combinedCurve, testResult.EquityCurve...)
		combinedTrades = append(combinedTrades, testResult.Trades...)
	}

	out.Combined = computeMetrics(combinedCurve, combinedTrades, benchmarkBars, r.cfg)
	return out, nil
}

// embargo returns the training dates immediately adjacent to testDates
// that must be purged to prevent label leakage (spec §4.5).
func embargo(testDates, allDates []time.Time, embargoBars int) []time.Time {
	if embargoBars <= 0 || len(testDates) == 0 {
		return nil
	}
	testSet := map[time.Time]bool{}
	for _, d := range testDates {
		testSet[d] = true
	}
	var purged []time.Time
	for i, d := range allDates {
		if testSet[d] {
			continue
		}
		for j := 1; j <= embargoBars; j++ {
			if i+j < len(allDates) && testSet[allDates[i+j]] {
				purged = append(purged, d)
				break
			}
			if i-j >= 0 && testSet[allDates[i-j]] {
				purged = append(purged, d)
				break
			}
		}
	}
	return purged
}

func combinations(n, k int) [][]int {
	var out [][]int
	var combo []int
	var rec func(start int)
	rec = func(start int) {
		if len(combo) == k {
			out = append(out, append([]int(nil), combo...))
			return
		}
		for i := start; i < n; i++ {
			combo = append(combo, i)
			rec(i + 1)
			combo = combo[:len(combo)-1]
		}
	}
	rec(0)
	return out
}

func dailyDates(start, end time.Time) []time.Time {
	var out []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		out = append(out, d)
	}
	return out
}

func meanOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
