package engine

import (
	"math"

	"github.com/N0tT1m/invest-iq-sub000/internal/market"
)

func closes(bars []market.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close.Float64()
	}
	return out
}

func sma(values []float64, period int) float64 {
	if len(values) < period {
		return 0
	}
	var sum float64
	for i := len(values) - period; i < len(values); i++ {
		sum += values[i]
	}
	return sum / float64(period)
}

func ema(values []float64, period int) float64 {
	if len(values) < period {
		return 0
	}
	var sum float64
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	e := sum / float64(period)
	mult := 2.0 / float64(period+1)
	for i := period; i < len(values); i++ {
		e = (values[i]-e)*mult + e
	}
	return e
}

func macd(values []float64) (line, signal, hist float64) {
	if len(values) < 26 {
		return 0, 0, 0
	}
	line = ema(values, 12) - ema(values, 26)
	// approximate the signal line as an EMA(9) of the trailing MACD line
	macdSeries := make([]float64, 0, len(values)-25)
	for end := 26; end <= len(values); end++ {
		macdSeries = append(macdSeries, ema(values[:end], 12)-ema(values[:end], 26))
	}
	signal = ema(macdSeries, 9)
	hist = line - signal
	return
}

func rsi(values []float64, period int) float64 {
	if len(values) <= period {
		return 50
	}
	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := values[i] - values[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss += -change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	for i := period + 1; i < len(values); i++ {
		change := values[i] - values[i-1]
		if change > 0 {
			avgGain = (avgGain*float64(period-1) + change) / float64(period)
			avgLoss = (avgLoss * float64(period-1)) / float64(period)
		} else {
			avgGain = (avgGain * float64(period-1)) / float64(period)
			avgLoss = (avgLoss*float64(period-1) + (-change)) / float64(period)
		}
	}
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

func atr(bars []market.Bar, period int) float64 {
	if len(bars) <= period {
		return 0
	}
	trs := make([]float64, len(bars))
	for i := 1; i < len(bars); i++ {
		high := bars[i].High.Float64()
		low := bars[i].Low.Float64()
		prevClose := bars[i-1].Close.Float64()
		tr1 := high - low
		tr2 := math.Abs(high - prevClose)
		tr3 := math.Abs(low - prevClose)
		trs[i] = math.Max(tr1, math.Max(tr2, tr3))
	}
	var sum float64
	for i := 1; i <= period; i++ {
		sum += trs[i]
	}
	a := sum / float64(period)
	for i := period + 1; i < len(trs); i++ {
		a = (a*float64(period-1) + trs[i]) / float64(period)
	}
	return a
}

func bollinger(values []float64, period int, stdevMult float64) (upper, middle, lower float64) {
	if len(values) < period {
		return 0, 0, 0
	}
	middle = sma(values, period)
	window := values[len(values)-period:]
	var sumSq float64
	for _, v := range window {
		d := v - middle
		sumSq += d * d
	}
	sd := math.Sqrt(sumSq / float64(period))
	return middle + stdevMult*sd, middle, middle - stdevMult*sd
}

// adx computes a simplified directional index over the given period:
// simple averages of directional movement and true range, returning
// that window's DX (no Wilder smoothing, no averaging of DX).
func adx(bars []market.Bar, period int) float64 {
	if len(bars) <= period+1 {
		return 0
	}
	var plusDM, minusDM, trs []float64
	for i := 1; i < len(bars); i++ {
		upMove := bars[i].High.Float64() - bars[i-1].High.Float64()
		downMove := bars[i-1].Low.Float64() - bars[i].Low.Float64()
		pdm, mdm := 0.0, 0.0
		if upMove > downMove && upMove > 0 {
			pdm = upMove
		}
		if downMove > upMove && downMove > 0 {
			mdm = downMove
		}
		plusDM = append(plusDM, pdm)
		minusDM = append(minusDM, mdm)
		high := bars[i].High.Float64()
		low := bars[i].Low.Float64()
		prevClose := bars[i-1].Close.Float64()
		tr := math.Max(high-low, math.Max(math.Abs(high-prevClose), math.Abs(low-prevClose)))
		trs = append(trs, tr)
	}
	smoothedPlusDM := sma(plusDM, period)
	smoothedMinusDM := sma(minusDM, period)
	smoothedTR := sma(trs, period)
	if smoothedTR == 0 {
		return 0
	}
	plusDI := 100 * smoothedPlusDM / smoothedTR
	minusDI := 100 * smoothedMinusDM / smoothedTR
	if plusDI+minusDI == 0 {
		return 0
	}
	dx := 100 * math.Abs(plusDI-minusDI) / (plusDI + minusDI)
	return dx
}

func vwapOf(bars []market.Bar) float64 {
	var sumTPV, sumVol float64
	for _, b := range bars {
		typical := (b.High.Float64() + b.Low.Float64() + b.Close.Float64()) / 3
		sumTPV += typical * b.Volume
		sumVol += b.Volume
	}
	if sumVol == 0 {
		return 0
	}
	return sumTPV / sumVol
}

// pivots returns the most recent simple support/resistance levels from
// local extrema over a trailing window.
func pivots(bars []market.Bar, window int) (support, resistance float64) {
	if len(bars) == 0 {
		return 0, 0
	}
	if window > len(bars) {
		window = len(bars)
	}
	recent := bars[len(bars)-window:]
	support = recent[0].Low.Float64()
	resistance = recent[0].High.Float64()
	for _, b := range recent {
		if b.Low.Float64() < support {
			support = b.Low.Float64()
		}
		if b.High.Float64() > resistance {
			resistance = b.High.Float64()
		}
	}
	return
}

// candlePatternScore gives a small vote contribution from the two most
// recent bars' candlestick shapes (bullish/bearish engulfing, hammer,
// shooting star).
func candlePatternScore(bars []market.Bar) float64 {
	n := len(bars)
	if n < 2 {
		return 0
	}
	last := bars[n-1]
	prev := bars[n-2]
	lastBody := last.Close.Float64() - last.Open.Float64()
	prevBody := prev.Close.Float64() - prev.Open.Float64()
	score := 0.0

	// Engulfing
	if prevBody < 0 && lastBody > 0 && last.Close.Float64() > prev.Open.Float64() && last.Open.Float64() < prev.Close.Float64() {
		score += 1
	}
	if prevBody > 0 && lastBody < 0 && last.Close.Float64() < prev.Open.Float64() && last.Open.Float64() > prev.Close.Float64() {
		score -= 1
	}

	// Hammer: small body, long lower wick, near the top of the range.
	rangeHL := last.High.Float64() - last.Low.Float64()
	if rangeHL > 0 {
		lowerWick := math.Min(last.Open.Float64(), last.Close.Float64()) - last.Low.Float64()
		upperWick := last.High.Float64() - math.Max(last.Open.Float64(), last.Close.Float64())
		body := math.Abs(lastBody)
		if lowerWick > 2*body && upperWick < body {
			score += 0.5
		}
		if upperWick > 2*body && lowerWick < body {
			score -= 0.5
		}
	}
	return score
}

// multiTimeframeConfluence resamples the daily bar sequence into a
// coarser (e.g. weekly) series and checks whether its short-term trend
// agrees with the daily trend, a simple stand-in for true
// multi-timeframe data.
func multiTimeframeConfluence(bars []market.Bar) float64 {
	if len(bars) < 25 {
		return 0
	}
	dailyTrend := closes(bars)[len(bars)-1] - closes(bars)[len(bars)-6]
	weeklyCloses := make([]float64, 0, len(bars)/5)
	for i := len(bars) % 5; i < len(bars); i += 5 {
		weeklyCloses = append(weeklyCloses, bars[i].Close.Float64())
	}
	if len(weeklyCloses) < 2 {
		return 0
	}
	weeklyTrend := weeklyCloses[len(weeklyCloses)-1] - weeklyCloses[len(weeklyCloses)-2]
	if (dailyTrend > 0) == (weeklyTrend > 0) {
		return 1
	}
	return -1
}
