package backtest

import (
	"fmt"
	"math"
	"time"

	"github.com/N0tT1m/invest-iq-sub000/internal/market"
)

// spikeSigma bounds how many standard deviations a single-bar return
// may exceed before it is flagged as a possible data error.
const spikeSigma = 8.0

// CheckDataQuality runs the pre-replay checks spec §4.5 requires
// (OHLC consistency, zero-volume bars, extreme price spikes, date
// gaps, possible unadjusted splits). Failures are reported, never
// silently tolerated — CheckDataQuality never drops bars itself.
func CheckDataQuality(symbol string, bars []market.Bar) []string {
	var issues []string
	if len(bars) == 0 {
		return issues
	}

	for i, b := range bars {
		if b.Low.GreaterThan(b.Open) || b.Low.GreaterThan(b.Close) || b.Open.GreaterThan(b.High) || b.Close.GreaterThan(b.High) {
			issues = append(issues, fmt.Sprintf("%s: bar %d (%s) fails OHLC consistency", symbol, i, b.Timestamp.Format("2006-01-02")))
		}
		if b.Volume == 0 {
			issues = append(issues, fmt.Sprintf("%s: bar %d (%s) has zero volume", symbol, i, b.Timestamp.Format("2006-01-02")))
		}
	}

	returns := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		prevClose := bars[i-1].Close.Float64()
		if prevClose == 0 {
			continue
		}
		r := (bars[i].Close.Float64() - prevClose) / prevClose
		returns = append(returns, r)

		gap := bars[i].Timestamp.Sub(bars[i-1].Timestamp)
		if gap > 5*24*time.Hour {
			issues = append(issues, fmt.Sprintf("%s: date gap of %v between bar %d and %d", symbol, gap, i-1, i))
		}
	}

	if len(returns) > 5 {
		mean, sd := meanStdev(returns)
		for i, r := range returns {
			if sd > 0 && math.Abs(r-mean) > spikeSigma*sd {
				issues = append(issues, fmt.Sprintf("%s: extreme price spike at bar %d (return %.4f, possible unadjusted split or bad tick)", symbol, i+1, r))
			}
		}
	}

	return issues
}

func meanStdev(xs []float64) (mean, stdev float64) {
	n := float64(len(xs))
	if n == 0 {
		return 0, 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean = sum / n
	var sq float64
	for _, x := range xs {
		d := x - mean
		sq += d * d
	}
	stdev = math.Sqrt(sq / n)
	return mean, stdev
}
