package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/N0tT1m/invest-iq-sub000/internal/engine"
	"github.com/N0tT1m/invest-iq-sub000/internal/logging"
	"github.com/N0tT1m/invest-iq-sub000/internal/market"
	"github.com/N0tT1m/invest-iq-sub000/internal/regime"
)

var ErrNotEnoughData = errors.New("NotEnoughData")

// UpstreamTimeoutError wraps a partial result: at least one fetch
// timed out but at least one engine still succeeded.
type UpstreamTimeoutError struct {
	Partial UnifiedAnalysis
}

func (e *UpstreamTimeoutError) Error() string { return "UpstreamTimeout" }

const (
	lookbackDays    = 90
	fetchTimeout    = 5 * time.Second
	engineTimeout   = 200 * time.Millisecond
	quarters        = 8
	newsLimit       = 50
	convictionHighConfidence = 0.75
	convictionHighAgree      = 3
	convictionModConfidence  = 0.60
	convictionModAgree       = 2
)

type Orchestrator struct {
	MarketData market.MarketDataSource
	SignalModel SignalModelService // may be nil; falls back to cold-start
	Engines    []engine.Analyzer
	Benchmark  string
	Log        *logging.Logger
}

func New(md market.MarketDataSource, signalModel SignalModelService, log *logging.Logger) *Orchestrator {
	return &Orchestrator{
		MarketData: md,
		SignalModel: signalModel,
		Engines: []engine.Analyzer{
			engine.NewTechnicalEngine(),
			engine.NewFundamentalEngine(),
			engine.NewQuantEngine(),
			engine.NewSentimentEngine(),
		},
		Benchmark: "SPY",
		Log:       log,
	}
}

// Analyze implements spec §4.2's analyze(symbol) operation.
func (o *Orchestrator) Analyze(ctx context.Context, symbol string) (UnifiedAnalysis, error) {
	now := time.Now().UTC()

	bars, financials, news, timedOut := o.concurrentFetch(ctx, symbol, now)

	benchBars, _ := o.MarketData.Bars(ctx, o.Benchmark, market.TimeframeDaily, now.AddDate(0, 0, -400), now)
	reg := regime.Derive(benchBars)

	in := engine.Input{
		Symbol:        symbol,
		Bars:          bars,
		Financials:    financials,
		News:          news,
		BenchmarkBars: benchBars,
		Regime:        &reg,
	}

	results := o.fanOut(ctx, in)
	if len(results) == 0 {
		return UnifiedAnalysis{}, ErrNotEnoughData
	}

	calibrated := o.calibrate(ctx, results)

	features := featuresFrom(calibrated, reg)
	weights, err := o.weights(ctx, features, reg)
	if err != nil {
		o.Log.Warnf("signal model weights() failed for %s, using regime defaults: %v", symbol, err)
		weights = RegimeDefaultWeights(reg)
	}
	weights = normalizeToPresent(weights, calibrated)

	overallScore, overallConfidence := fuse(calibrated, weights)
	tier := convictionTier(overallConfidence, calibrated, overallScore)
	horizons := timeHorizonSignals(calibrated)
	supp := supplementarySignals(bars)

	analysis := UnifiedAnalysis{
		Symbol:             symbol,
		Timestamp:          now,
		PerEngine:          calibrated,
		OverallSignal:      engine.BucketFromScore(overallScore),
		OverallConfidence:  overallConfidence,
		Regime:             reg,
		WeightsUsed:        weights,
		ConvictionTier:      tier,
		TimeHorizonSignals: horizons,
		Supplementary:      supp,
		Recommendation:     recommendationFor(engine.BucketFromScore(overallScore), tier),
	}

	if timedOut {
		return analysis, &UpstreamTimeoutError{Partial: analysis}
	}
	return analysis, nil
}

func (o *Orchestrator) concurrentFetch(ctx context.Context, symbol string, now time.Time) ([]market.Bar, []market.Financials, []market.NewsItem, bool) {
	var wg sync.WaitGroup
	var bars []market.Bar
	var financials []market.Financials
	var news []market.NewsItem
	var timedOut bool
	var mu sync.Mutex

	fetch := func(label string, fn func(ctx context.Context) error) {
		defer wg.Done()
		fctx, cancel := context.WithTimeout(ctx, fetchTimeout)
		defer cancel()
		if err := fn(fctx); err != nil {
			mu.Lock()
			timedOut = true
			mu.Unlock()
			o.Log.Warnf("%s fetch failed for %s, treating stream as absent: %v", label, symbol, err)
		}
	}

	wg.Add(3)
	go fetch("bars", func(fctx context.Context) error {
		b, err := o.MarketData.Bars(fctx, symbol, market.TimeframeDaily, now.AddDate(0, 0, -lookbackDays), now)
		if err != nil {
			return err
		}
		mu.Lock()
		bars = b
		mu.Unlock()
		return nil
	})
	go fetch("financials", func(fctx context.Context) error {
		f, err := o.MarketData.Financials(fctx, symbol, quarters)
		if err != nil {
			return err
		}
		mu.Lock()
		financials = f
		mu.Unlock()
		return nil
	})
	go fetch("news", func(fctx context.Context) error {
		n, err := o.MarketData.News(fctx, symbol, newsLimit, nil)
		if err != nil {
			return err
		}
		mu.Lock()
		news = n
		mu.Unlock()
		return nil
	})
	wg.Wait()

	return bars, financials, news, timedOut
}

func (o *Orchestrator) fanOut(ctx context.Context, in engine.Input) map[engine.Name]engine.Result {
	type out struct {
		name   engine.Name
		result engine.Result
		err    error
	}
	ch := make(chan out, len(o.Engines))
	var wg sync.WaitGroup
	for _, a := range o.Engines {
		wg.Add(1)
		go func(a engine.Analyzer) {
			defer wg.Done()
			ectx, cancel := context.WithTimeout(ctx, engineTimeout)
			defer cancel()
			res, err := a.Analyze(ectx, in)
			ch <- out{name: a.Name(), result: res, err: err}
		}(a)
	}
	wg.Wait()
	close(ch)

	results := make(map[engine.Name]engine.Result)
	for r := range ch {
		if r.err != nil {
			// any engine error, data or otherwise, is engine-absent for
			// this analysis rather than fatal (spec §4.1 engine contract).
			continue
		}
		results[r.name] = r.result
	}
	return results
}

func (o *Orchestrator) calibrate(ctx context.Context, results map[engine.Name]engine.Result) map[engine.Name]engine.Result {
	out := make(map[engine.Name]engine.Result, len(results))
	for name, res := range results {
		calibrated := res.RawConfidence
		if o.SignalModel != nil {
			c, err := o.SignalModel.Calibrate(ctx, name, res.RawConfidence)
			if err == nil {
				calibrated = c
			}
		}
		res.CalibratedConfidence = calibrated
		out[name] = res
	}
	return out
}

func (o *Orchestrator) weights(ctx context.Context, features map[string]float64, r regime.Regime) (map[engine.Name]float64, error) {
	if o.SignalModel == nil {
		return RegimeDefaultWeights(r), nil
	}
	return o.SignalModel.Weights(ctx, features, r)
}

func featuresFrom(results map[engine.Name]engine.Result, r regime.Regime) map[string]float64 {
	f := map[string]float64{"vol_percentile": r.VolPctile, "return_20d": r.Return20d}
	for name, res := range results {
		f[string(name)+"_confidence"] = res.CalibratedConfidence
		f[string(name)+"_signal"] = float64(res.Signal)
	}
	return f
}

// normalizeToPresent restricts weights to engines actually present and
// renormalizes so Σw = 1 (spec §4.2 step 5 / testable property 3).
func normalizeToPresent(weights map[engine.Name]float64, present map[engine.Name]engine.Result) map[engine.Name]float64 {
	out := make(map[engine.Name]float64)
	var total float64
	for name := range present {
		w := weights[name]
		if w <= 0 {
			w = 0.01 // keep every present engine represented even if the model/defaults omit it
		}
		out[name] = w
		total += w
	}
	if total == 0 {
		return out
	}
	for name := range out {
		out[name] /= total
	}
	return out
}

// fuse computes overall_score and overall_confidence (spec §4.2 step 6),
// applying the engine-conflict penalty.
func fuse(results map[engine.Name]engine.Result, weights map[engine.Name]float64) (score, confidence float64) {
	var positives, negatives, totalEngines int
	for name, res := range results {
		score += weights[name] * float64(res.Signal)
		confidence += weights[name] * res.CalibratedConfidence
		switch {
		case res.Signal > engine.Neutral:
			positives++
		case res.Signal < engine.Neutral:
			negatives++
		}
		totalEngines++
	}
	if totalEngines == 0 {
		return 0, 0
	}
	disagreement := 0.0
	minority := positives
	if negatives < minority {
		minority = negatives
	}
	if positives > 0 && negatives > 0 {
		disagreement = float64(minority) / float64(totalEngines)
	}
	conflictPenalty := 1 - (disagreement * 0.3)
	if conflictPenalty < 0.4 {
		conflictPenalty = 0.4
	}
	confidence *= conflictPenalty
	return score, confidence
}

func convictionTier(confidence float64, results map[engine.Name]engine.Result, score float64) ConvictionTier {
	agree := 0
	finalSign := 0
	switch {
	case score > 0:
		finalSign = 1
	case score < 0:
		finalSign = -1
	}
	for _, res := range results {
		s := 0
		switch {
		case res.Signal > engine.Neutral:
			s = 1
		case res.Signal < engine.Neutral:
			s = -1
		}
		if s != 0 && s == finalSign {
			agree++
		}
	}
	switch {
	case confidence >= convictionHighConfidence && agree >= convictionHighAgree:
		return High
	case confidence >= convictionModConfidence && agree >= convictionModAgree:
		return Moderate
	default:
		return Low
	}
}

func timeHorizonSignals(results map[engine.Name]engine.Result) map[Horizon]engine.Signal {
	pick := func(names ...engine.Name) engine.Signal {
		var sum, count int
		for _, n := range names {
			if res, ok := results[n]; ok {
				switch {
				case res.Signal > engine.Neutral:
					sum++
				case res.Signal < engine.Neutral:
					sum--
				}
				count++
			}
		}
		if count == 0 {
			return engine.Neutral
		}
		switch {
		case sum > 0:
			return engine.Buy
		case sum < 0:
			return engine.Sell
		default:
			return engine.Neutral
		}
	}
	return map[Horizon]engine.Signal{
		Short:  pick(engine.Technical),
		Medium: pick(engine.Technical, engine.Sentiment),
		Long:   pick(engine.Fundamental, engine.Quant),
	}
}

func supplementarySignals(bars []market.Bar) Supplementary {
	supp := Supplementary{}
	n := len(bars)
	if n >= 2 {
		last := bars[n-1]
		prev := bars[n-2]
		if prev.Close.Float64() != 0 {
			supp.GapDirection = (last.Open.Float64() - prev.Close.Float64()) / prev.Close.Float64()
		}
	}
	if n >= 20 {
		var volSum float64
		for i := n - 20; i < n; i++ {
			volSum += bars[i].Volume
		}
		avgVol := volSum / 20
		last := bars[n-1]
		if avgVol > 0 {
			supp.SmartMoneyScore = (last.Volume - avgVol) / avgVol * sign(last.Close.Float64()-bars[n-2].Close.Float64())
		}
	}
	return supp
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

func recommendationFor(sig engine.Signal, tier ConvictionTier) string {
	return fmt.Sprintf("%s (%s conviction)", sig.String(), tier)
}
