package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/N0tT1m/invest-iq-sub000/internal/engine"
	"github.com/N0tT1m/invest-iq-sub000/internal/regime"
)

// normalizeToPresent must restrict weights to engines actually present
// in the result set and renormalize so they sum to 1 (testable
// property 3), regardless of what the input weight vector summed to.
func TestNormalizeToPresent_WeightsSumToOne(t *testing.T) {
	weights := map[engine.Name]float64{
		engine.Technical:   0.40,
		engine.Fundamental: 0.20,
		engine.Quant:       0.20,
		engine.Sentiment:   0.20,
	}
	present := map[engine.Name]engine.Result{
		engine.Technical: {Signal: engine.Buy},
		engine.Quant:     {Signal: engine.WeakBuy},
	}

	out := normalizeToPresent(weights, present)

	var total float64
	for _, w := range out {
		total += w
	}
	assert.InDelta(t, 1.0, total, 1e-9)
	assert.Len(t, out, 2)
	assert.Contains(t, out, engine.Technical)
	assert.Contains(t, out, engine.Quant)
}

// An engine present in the result set but missing (or zero) in the
// weight vector still gets a voice rather than being silently dropped.
func TestNormalizeToPresent_PresentEngineWithNoWeightStillCounted(t *testing.T) {
	weights := map[engine.Name]float64{engine.Technical: 1.0}
	present := map[engine.Name]engine.Result{
		engine.Technical: {Signal: engine.Buy},
		engine.Sentiment: {Signal: engine.Sell},
	}

	out := normalizeToPresent(weights, present)

	assert.Len(t, out, 2)
	assert.Greater(t, out[engine.Sentiment], 0.0)
	var total float64
	for _, w := range out {
		total += w
	}
	assert.InDelta(t, 1.0, total, 1e-9)
}

func TestFuse_UnanimousEnginesNoConflictPenalty(t *testing.T) {
	results := map[engine.Name]engine.Result{
		engine.Technical:   {Signal: engine.Buy, CalibratedConfidence: 0.8},
		engine.Fundamental: {Signal: engine.Buy, CalibratedConfidence: 0.8},
	}
	weights := map[engine.Name]float64{engine.Technical: 0.5, engine.Fundamental: 0.5}

	score, confidence := fuse(results, weights)

	assert.InDelta(t, float64(engine.Buy), score, 1e-9)
	assert.InDelta(t, 0.8, confidence, 1e-9) // conflictPenalty == 1, no engines disagree
}

// Opposing-signal engines trigger the conflict penalty, which can only
// ever reduce confidence, never increase it.
func TestFuse_ConflictingEnginesReduceConfidence(t *testing.T) {
	results := map[engine.Name]engine.Result{
		engine.Technical:   {Signal: engine.Buy, CalibratedConfidence: 0.8},
		engine.Fundamental: {Signal: engine.Sell, CalibratedConfidence: 0.8},
	}
	weights := map[engine.Name]float64{engine.Technical: 0.5, engine.Fundamental: 0.5}

	_, confidence := fuse(results, weights)

	assert.Less(t, confidence, 0.8)
	assert.GreaterOrEqual(t, confidence, 0.8*0.4) // conflictPenalty floor is 0.4
}

func TestFuse_EmptyResultsReturnZero(t *testing.T) {
	score, confidence := fuse(map[engine.Name]engine.Result{}, map[engine.Name]float64{})
	assert.Equal(t, 0.0, score)
	assert.Equal(t, 0.0, confidence)
}

func TestRegimeDefaultWeights_AlwaysSumToOne(t *testing.T) {
	cases := []regime.Regime{
		{Trend: regime.Bull, Vol: regime.LowVol},
		{Trend: regime.Bull, Vol: regime.HighVol},
		{Trend: regime.Bear, Vol: regime.NormalVol},
		{Trend: regime.Sideways, Vol: regime.NormalVol},
	}
	for _, r := range cases {
		weights := RegimeDefaultWeights(r)
		var total float64
		for _, w := range weights {
			total += w
		}
		assert.InDelta(t, 1.0, total, 1e-9)
	}
}
