// Package regime derives the nine-state MarketRegime (spec §3) from a
// benchmark's recent return and realized volatility percentile.
package regime

import (
	"math"
	"sort"

	"github.com/N0tT1m/invest-iq-sub000/internal/market"
)

type Trend string

const (
	Bull     Trend = "Bull"
	Bear     Trend = "Bear"
	Sideways Trend = "Sideways"
)

type VolBucket string

const (
	HighVol   VolBucket = "HighVol"
	LowVol    VolBucket = "LowVol"
	NormalVol VolBucket = "NormalVol"
)

type Regime struct {
	Trend     Trend
	Vol       VolBucket
	Return20d float64
	VolPctile float64
}

// BullThreshold / BearThreshold bound the sideways band for the 20-day
// benchmark return.
const (
	BullThreshold = 0.03
	BearThreshold = -0.03
)

// Derive computes the regime from an ordered benchmark bar sequence
// (oldest first). It needs at least 21 bars for the 20-day return and a
// trailing window of daily returns for the volatility percentile.
func Derive(benchmarkBars []market.Bar) Regime {
	n := len(benchmarkBars)
	if n < 21 {
		return Regime{Trend: Sideways, Vol: NormalVol}
	}

	closes := make([]float64, n)
	for i, b := range benchmarkBars {
		closes[i] = b.Close.Float64()
	}

	ret20 := (closes[n-1] - closes[n-21]) / closes[n-21]

	returns := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		if closes[i-1] == 0 {
			continue
		}
		returns = append(returns, (closes[i]-closes[i-1])/closes[i-1])
	}
	realizedVol := stdev(returns) * math.Sqrt(252)

	// Build a trailing distribution of rolling 20-day realized vol to
	// rank the current value as a percentile.
	window := 20
	var history []float64
	for end := window; end <= len(returns); end++ {
		history = append(history, stdev(returns[end-window:end])*math.Sqrt(252))
	}
	pctile := percentileRank(history, realizedVol)

	trend := Sideways
	switch {
	case ret20 >= BullThreshold:
		trend = Bull
	case ret20 <= BearThreshold:
		trend = Bear
	}

	vol := NormalVol
	switch {
	case pctile >= 0.70:
		vol = HighVol
	case pctile <= 0.30:
		vol = LowVol
	}

	return Regime{Trend: trend, Vol: vol, Return20d: ret20, VolPctile: pctile}
}

func stdev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var mean float64
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	var sumSq float64
	for _, x := range xs {
		d := x - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)))
}

func percentileRank(history []float64, value float64) float64 {
	if len(history) == 0 {
		return 0.5
	}
	sorted := append([]float64(nil), history...)
	sort.Float64s(sorted)
	below := sort.SearchFloat64s(sorted, value)
	return float64(below) / float64(len(sorted))
}
