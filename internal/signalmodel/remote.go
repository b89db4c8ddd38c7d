package signalmodel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/N0tT1m/invest-iq-sub000/internal/engine"
	"github.com/N0tT1m/invest-iq-sub000/internal/logging"
	"github.com/N0tT1m/invest-iq-sub000/internal/orchestrator"
	"github.com/N0tT1m/invest-iq-sub000/internal/regime"
)

// RemoteModel calls an externally hosted SignalModelService over HTTP.
// The functional-options constructor and masked-key logging mirror the
// teacher's architect client.
type RemoteModel struct {
	baseURL string
	apiKey  string
	client  *http.Client
	log     *logging.Logger
}

type RemoteOption func(*RemoteModel)

func WithBaseURL(url string) RemoteOption { return func(r *RemoteModel) { r.baseURL = url } }
func WithAPIKey(key string) RemoteOption  { return func(r *RemoteModel) { r.apiKey = key } }
func WithHTTPTimeout(d time.Duration) RemoteOption {
	return func(r *RemoteModel) { r.client.Timeout = d }
}

func NewRemoteModel(log *logging.Logger, opts ...RemoteOption) *RemoteModel {
	r := &RemoteModel{client: &http.Client{Timeout: 5 * time.Second}, log: log}
	for _, opt := range opts {
		opt(r)
	}
	if r.apiKey != "" {
		r.log.Infof("signal model configured with API key %s", maskKey(r.apiKey))
	}
	return r
}

func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

func (r *RemoteModel) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("signal model %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (r *RemoteModel) MetaGate(ctx context.Context, features map[string]float64) (float64, error) {
	var out struct {
		Probability float64 `json:"probability"`
	}
	if err := r.post(ctx, "/meta_gate", map[string]any{"features": features}, &out); err != nil {
		return 0.5, err
	}
	return out.Probability, nil
}

func (r *RemoteModel) Calibrate(ctx context.Context, eng engine.Name, rawConfidence float64) (float64, error) {
	var out struct {
		Calibrated float64 `json:"calibrated"`
	}
	body := map[string]any{"engine": string(eng), "raw_confidence": rawConfidence}
	if err := r.post(ctx, "/calibrate", body, &out); err != nil {
		return rawConfidence, err
	}
	return out.Calibrated, nil
}

func (r *RemoteModel) Weights(ctx context.Context, features map[string]float64, reg regime.Regime) (map[engine.Name]float64, error) {
	var out struct {
		Technical   float64 `json:"w_tech"`
		Fundamental float64 `json:"w_fund"`
		Quant       float64 `json:"w_quant"`
		Sentiment   float64 `json:"w_sent"`
	}
	body := map[string]any{"features": features, "regime_trend": reg.Trend, "regime_vol": reg.Vol}
	if err := r.post(ctx, "/weights", body, &out); err != nil {
		return orchestrator.RegimeDefaultWeights(reg), err
	}
	return map[engine.Name]float64{
		engine.Technical:   out.Technical,
		engine.Fundamental: out.Fundamental,
		engine.Quant:       out.Quant,
		engine.Sentiment:   out.Sentiment,
	}, nil
}

var _ orchestrator.SignalModelService = (*RemoteModel)(nil)
