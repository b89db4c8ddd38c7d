package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/N0tT1m/invest-iq-sub000/internal/engine"
	"github.com/N0tT1m/invest-iq-sub000/internal/execution"
	"github.com/N0tT1m/invest-iq-sub000/internal/logging"
	"github.com/N0tT1m/invest-iq-sub000/internal/market"
	"github.com/N0tT1m/invest-iq-sub000/internal/money"
	"github.com/N0tT1m/invest-iq-sub000/internal/orchestrator"
	"github.com/N0tT1m/invest-iq-sub000/internal/regime"
	"github.com/N0tT1m/invest-iq-sub000/internal/risk"
	"github.com/N0tT1m/invest-iq-sub000/internal/telemetry"
)

// Agent is the Autonomous Trading Agent controller.
type Agent struct {
	cfg          Config
	marketData   market.MarketDataSource
	orchestrator *orchestrator.Orchestrator
	signalModel  orchestrator.SignalModelService
	risk         *risk.Manager
	venue        execution.Venue
	watchlist    Watchlist
	persistence  Persistence
	notifier     Notifier
	log          *logging.Logger

	mu        sync.Mutex
	state     State
	running   bool
	stopCh    chan struct{}
	callCount int
}

func New(cfg Config, md market.MarketDataSource, orch *orchestrator.Orchestrator, signalModel orchestrator.SignalModelService, riskMgr *risk.Manager, venue execution.Venue, watchlist Watchlist, persistence Persistence, notifier Notifier, log *logging.Logger) *Agent {
	return &Agent{
		cfg:          cfg,
		marketData:   md,
		orchestrator: orch,
		signalModel:  signalModel,
		risk:         riskMgr,
		venue:        venue,
		watchlist:    watchlist,
		persistence:  persistence,
		notifier:     notifier,
		log:          log,
		state:        Idle,
	}
}

// Run is the scheduled tick loop, grounded on the teacher's Run/ticker
// structure: execute immediately, then on every tick until Stop.
func (a *Agent) Run(ctx context.Context) error {
	a.mu.Lock()
	a.running = true
	a.stopCh = make(chan struct{})
	a.mu.Unlock()

	a.log.Infof("agent started, tick interval %v", a.cfg.TickInterval)

	if err := a.RunOnce(ctx); err != nil {
		a.log.Warnf("tick failed: %v", err)
	}

	ticker := time.NewTicker(a.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := a.RunOnce(ctx); err != nil {
				a.log.Warnf("tick failed: %v", err)
			}
		case <-a.stopCh:
			a.log.Infof("stop signal received, exiting tick loop")
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (a *Agent) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.running {
		return
	}
	a.running = false
	close(a.stopCh)
}

func (a *Agent) setState(ctx context.Context, s State) {
	a.mu.Lock()
	prev := a.state
	a.state = s
	a.mu.Unlock()
	telemetry.RecordStateTransition(string(prev), string(s))
	a.snapshotPortfolio(ctx)
}

// snapshotPortfolio persists the circuit breaker's current view of
// equity and drawdown at every state transition (spec §4.4
// "Persistence"), so a restart after a crash mid-tick resumes with the
// last known halt/drawdown state instead of a fresh one.
func (a *Agent) snapshotPortfolio(ctx context.Context) {
	if a.persistence == nil {
		return
	}
	breaker := a.risk.BreakerState()
	equity := a.accountEquity()
	if err := a.persistence.SnapshotPortfolio(ctx, equity, breaker.PeakEquity, breaker.CurrentDrawdownPct, breaker.ConsecutiveLosses, breaker.Halted, string(breaker.HaltReason)); err != nil {
		a.log.Errorf("portfolio snapshot failed: %v", err)
	}
}

// RunOnce executes one full pass of the state machine (spec §4.4).
// An order still New when awaitFills stops polling is sent a Cancel;
// no order is polled again on a later tick or after a restart.
func (a *Agent) RunOnce(ctx context.Context) error {
	a.callCount++
	start := time.Now()
	defer func() { telemetry.AgentTickDuration.Observe(time.Since(start).Seconds()) }()

	a.setState(ctx, Scanning)
	symbols, err := a.scan()
	if err != nil {
		return fmt.Errorf("agent: scan: %w", err)
	}

	a.setState(ctx, Analyzing)
	analyses := a.analyze(ctx, symbols)

	a.setState(ctx, Gating)
	candidates := a.gate(ctx, analyses)

	a.setState(ctx, Sizing)
	candidates = a.size(candidates)

	a.setState(ctx, Submitting)
	candidates = a.submit(ctx, candidates)

	a.setState(ctx, AwaitingFill)
	a.awaitFills(ctx, candidates)

	a.setState(ctx, Managing)
	a.manage(ctx)

	a.maybeSendDailyReport(ctx)

	a.setState(ctx, Idle)
	return nil
}

// scan assembles the candidate set from the watchlist, top movers, and
// open positions, deduplicated (spec §4.4 step 1).
func (a *Agent) scan() ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	add := func(sym string) {
		if sym == "" || seen[sym] {
			return
		}
		seen[sym] = true
		out = append(out, sym)
	}

	if a.watchlist != nil {
		for _, s := range a.watchlist.ConfiguredSymbols() {
			add(s)
		}
		movers, err := a.watchlist.TopMovers(20)
		if err != nil {
			a.log.Warnf("top movers fetch failed, continuing with configured watchlist only: %v", err)
		}
		for _, s := range movers {
			add(s)
		}
	}
	for _, p := range a.risk.Positions() {
		if p.Status == risk.Active {
			add(p.Symbol)
		}
	}
	return out, nil
}

// analyze fans out Orchestrator.Analyze with bounded parallelism,
// dropping candidates that return ErrNotEnoughData (spec §4.4 step 2).
func (a *Agent) analyze(ctx context.Context, symbols []string) map[string]orchestrator.UnifiedAnalysis {
	results := make(map[string]orchestrator.UnifiedAnalysis)
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, a.cfg.MaxConcurrentScans)

	for _, sym := range symbols {
		wg.Add(1)
		sem <- struct{}{}
		go func(symbol string) {
			defer wg.Done()
			defer func() { <-sem }()

			analysisStart := time.Now()
			analysis, err := a.orchestrator.Analyze(ctx, symbol)
			telemetry.ObserveAnalyzeDuration(symbol, time.Since(analysisStart).Seconds())
			if err != nil {
				if err == orchestrator.ErrNotEnoughData {
					return
				}
				// UpstreamTimeoutError still carries a usable partial
				// analysis (spec §4.2); anything else is dropped.
				if _, ok := err.(*orchestrator.UpstreamTimeoutError); !ok {
					a.log.Warnf("analysis failed for %s: %v", symbol, err)
					return
				}
			}
			mu.Lock()
			results[symbol] = analysis
			mu.Unlock()
		}(sym)
	}
	wg.Wait()
	return results
}

// gate builds TradeProposals for non-neutral signals and applies the
// meta-gate probability threshold when a signal model is configured
// (spec §4.4 step 3).
func (a *Agent) gate(ctx context.Context, analyses map[string]orchestrator.UnifiedAnalysis) []candidate {
	var out []candidate
	for symbol, analysis := range analyses {
		if analysis.OverallSignal == engine.Neutral {
			continue
		}

		side := risk.Buy
		if analysis.OverallSignal < engine.Neutral {
			side = risk.Sell
		}

		lastClose, err := a.lastClose(ctx, symbol)
		if err != nil {
			a.log.Warnf("no price for %s, dropping candidate: %v", symbol, err)
			continue
		}

		proposal := risk.TradeProposal{
			Symbol:               symbol,
			Side:                 side,
			EntryPrice:           lastClose,
			StrategyName:         "orchestrator_fused",
			RawConfidence:        analysis.OverallConfidence,
			CalibratedConfidence: analysis.OverallConfidence,
			Rationale:            analysis.Recommendation,
		}

		if a.signalModel != nil {
			features := map[string]float64{"overall_confidence": analysis.OverallConfidence}
			prob, err := a.signalModel.MetaGate(ctx, features)
			if err == nil {
				threshold := a.cfg.MetaGateThresholdBull
				if analysis.Regime.Trend == regime.Bear {
					threshold = a.cfg.MetaGateThresholdBear
				}
				if prob < threshold {
					continue
				}
				proposal.MetaGateProbability = prob
			}
		}

		out = append(out, candidate{Symbol: symbol, Analysis: analysis, Proposal: proposal})
	}
	return out
}

func (a *Agent) lastClose(ctx context.Context, symbol string) (money.Money, error) {
	bars, err := a.marketData.Bars(ctx, symbol, market.TimeframeDaily, time.Now().AddDate(0, 0, -5), time.Now())
	if err != nil {
		return money.Money{}, err
	}
	if len(bars) == 0 {
		return money.Money{}, fmt.Errorf("no bars for %s", symbol)
	}
	return bars[len(bars)-1].Close, nil
}
