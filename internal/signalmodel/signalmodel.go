// Package signalmodel provides implementations of the optional
// SignalModelService capability (spec §6): an always-available
// cold-start default and an HTTP-backed remote model.
package signalmodel

import (
	"context"

	"github.com/N0tT1m/invest-iq-sub000/internal/engine"
	"github.com/N0tT1m/invest-iq-sub000/internal/orchestrator"
	"github.com/N0tT1m/invest-iq-sub000/internal/regime"
)

// ColdStart is the always-available fallback: meta_gate=0.5,
// calibrate=identity, weights=regime defaults (spec §6).
type ColdStart struct{}

func (ColdStart) MetaGate(ctx context.Context, features map[string]float64) (float64, error) {
	return 0.5, nil
}

func (ColdStart) Calibrate(ctx context.Context, eng engine.Name, rawConfidence float64) (float64, error) {
	return rawConfidence, nil
}

func (ColdStart) Weights(ctx context.Context, features map[string]float64, r regime.Regime) (map[engine.Name]float64, error) {
	return orchestrator.RegimeDefaultWeights(r), nil
}

var _ orchestrator.SignalModelService = ColdStart{}
