package backtest

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/N0tT1m/invest-iq-sub000/internal/engine"
	"github.com/N0tT1m/invest-iq-sub000/internal/logging"
	"github.com/N0tT1m/invest-iq-sub000/internal/market"
	"github.com/N0tT1m/invest-iq-sub000/internal/money"
	"github.com/N0tT1m/invest-iq-sub000/internal/orchestrator"
	"github.com/N0tT1m/invest-iq-sub000/internal/risk"
)

// openLot is the replay engine's own notion of a held position,
// separate from risk.ActiveRiskPosition since the replay tracks entry
// commission and an opposing exit order's fill price/date for
// TradeRecord construction.
type openLot struct {
	symbol     string
	entryDate  time.Time
	entryPrice money.Money
	shares     money.Shares
	commission money.Money
}

// pendingEntry is a signal decided at day i's close, awaiting
// execution at day i+1's open (spec §4.5's execution model). sizing
// is computed eagerly off day i's close so the decision itself obeys
// point-in-time, but the fill price, slippage, and volume cap are all
// resolved against the bar the signal actually executes against.
type pendingEntry struct {
	symbol     string
	side       risk.Side
	shares     money.Shares
	stopLoss   money.Money
	takeProfit money.Money
	riskAmount money.Money
	proposal   risk.TradeProposal
}

// Runner replays one strategy day by day against a frozen historical
// universe, reusing the same Orchestrator, gating threshold, and Risk
// Manager sizing/stop logic the live agent runs (spec §4.5). Grounded
// on the teacher's absence of a backtest package; the day-by-day
// account/open-lot bookkeeping follows the retrieval pack's backtest
// replay idiom.
type Runner struct {
	cfg      Config
	orch     *orchestrator.Orchestrator
	params   risk.RiskParameters
	sectorOf map[string]string
	risk     *risk.Manager
	log      *logging.Logger
	cash     money.Money
	lots     map[string]openLot
	pending  []pendingEntry
}

func NewRunner(cfg Config, orch *orchestrator.Orchestrator, params risk.RiskParameters, sectorOf map[string]string) *Runner {
	r := &Runner{
		cfg:      cfg,
		orch:     orch,
		params:   params,
		sectorOf: sectorOf,
		log:      logging.New(io.Discard, zerolog.Disabled),
	}
	r.resetState()
	return r
}

// resetState rewinds the runner to a fresh replay: zero positions, cash
// back to initial equity, a new Risk Manager. Run calls this at the
// start of every replay so walk-forward/CPCV folds never leak state
// between independent windows.
func (r *Runner) resetState() {
	r.risk = risk.NewManager(r.params, r.cfg.InitialEquity, nil, nil, r.log, r.sectorOf)
	r.cash = r.cfg.InitialEquity
	r.lots = make(map[string]openLot)
	r.pending = nil
}

// Run replays symbols' daily bars from the first common date through
// the last, producing trades, an equity curve, and the full metrics
// suite. bars must already cover the full window; Run applies the
// point-in-time guarantee itself via market.PointInTime so the
// orchestrator never observes a future bar.
func (r *Runner) Run(ctx context.Context, source market.MarketDataSource, symbols []string, benchmarkBars []market.Bar, dates []time.Time) (Result, error) {
	r.resetState()

	if len(dates) == 0 {
		return Result{}, fmt.Errorf("backtest: empty date range")
	}

	var issues []string
	barsBySymbol := make(map[string][]market.Bar)
	for _, sym := range symbols {
		bars, err := source.Bars(ctx, sym, market.TimeframeDaily, dates[0].AddDate(-1, 0, 0), dates[len(dates)-1])
		if err != nil {
			return Result{}, fmt.Errorf("backtest: fetch bars for %s: %w", sym, err)
		}
		barsBySymbol[sym] = bars
		issues = append(issues, CheckDataQuality(sym, bars)...)
	}

	var trades []TradeRecord
	var curve []EquityPoint

	liveMarketData := r.orch.MarketData
	defer func() { r.orch.MarketData = liveMarketData }()

	for _, day := range dates {
		r.orch.MarketData = market.NewPointInTime(source, day)

		// Execute yesterday's close-of-day signals against today's open
		// first (spec §4.5: "a signal generated at close of day i
		// executes at day i+1's open"), before management or new
		// decisioning touches today's bar.
		r.executePending(day, barsBySymbol)

		trades = append(trades, r.manage(day, barsBySymbol)...)

		var candidates []orchestrator.UnifiedAnalysis
		for _, sym := range symbols {
			analysis, err := r.orch.Analyze(ctx, sym)
			if err != nil {
				continue
			}
			candidates = append(candidates, analysis)
		}

		for _, analysis := range candidates {
			if analysis.OverallSignal == engine.Neutral {
				continue
			}
			if _, held := r.lots[analysis.Symbol]; held {
				continue
			}
			if r.hasPending(analysis.Symbol) {
				continue
			}
			bar, ok := barOn(barsBySymbol[analysis.Symbol], day)
			if !ok {
				continue
			}
			side := risk.Buy
			if analysis.OverallSignal < engine.Neutral {
				side = risk.Sell
			}

			var atrPtr *float64
			if tech, ok := analysis.PerEngine["technical"]; ok {
				if v, ok := tech.Metrics["atr14"]; ok && v > 0 {
					atrPtr = &v
				}
			}
			params := r.risk.Params()
			stop, take := risk.ComputeStops(bar.Close, side, params, atrPtr)
			equity := r.equity(day, barsBySymbol)
			shares := risk.PositionSize(equity, bar.Close, stop, params)
			if shares.IsZero() {
				continue
			}
			shares = r.clampToLeverage(shares, bar.Close, equity)
			if shares.IsZero() {
				continue
			}
			riskPerShare := bar.Close.Sub(stop).Abs()
			proposal := risk.TradeProposal{
				Symbol:               analysis.Symbol,
				Side:                 side,
				Shares:               shares,
				EntryPrice:           bar.Close,
				StopLoss:             stop,
				TakeProfit:           take,
				StrategyName:         "orchestrator_fused",
				RawConfidence:        analysis.OverallConfidence,
				CalibratedConfidence: analysis.OverallConfidence,
				RiskAmount:           riskPerShare.Mul(shares.Float64()),
			}
			decision := r.risk.PreTradeCheck(proposal, equity)
			if !decision.Accepted {
				continue
			}

			r.pending = append(r.pending, pendingEntry{
				symbol:     analysis.Symbol,
				side:       side,
				shares:     shares,
				stopLoss:   stop,
				takeProfit: take,
				riskAmount: decision.Proposal.RiskAmount,
				proposal:   decision.Proposal,
			})
		}

		dailyRate := r.cfg.CashSweepAnnualRate / 365.0
		if r.cash.Float64() > 0 {
			r.cash = r.cash.Add(r.cash.Mul(dailyRate))
		}

		curve = append(curve, EquityPoint{Date: day, Equity: r.equity(day, barsBySymbol)})
	}

	for sym, lot := range r.lots {
		bars := barsBySymbol[sym]
		if len(bars) == 0 {
			continue
		}
		last := bars[len(bars)-1]
		trades = append(trades, r.closeLot(lot, last.Close, last.Timestamp))
	}

	result := computeMetrics(curve, trades, benchmarkBars, r.cfg)
	result.DataQualityIssues = issues
	return result, nil
}

func (r *Runner) hasPending(symbol string) bool {
	for _, p := range r.pending {
		if p.symbol == symbol {
			return true
		}
	}
	return false
}

// executePending fills every signal decided at the prior day's close
// against today's bar: directional slippage off the open, a volume
// participation cap (excess size is unfilled and not re-queued, spec
// §4.5), and gap-through is left to the subsequent manage() call since
// the position's stop/take only exist once OnFill has run.
func (r *Runner) executePending(day time.Time, barsBySymbol map[string][]market.Bar) {
	if len(r.pending) == 0 {
		return
	}
	due := r.pending
	r.pending = nil

	params := r.risk.Params()
	for _, p := range due {
		bar, ok := barOn(barsBySymbol[p.symbol], day)
		if !ok {
			// no bar to fill against within the replay window; the
			// signal is dropped rather than re-queued indefinitely.
			continue
		}

		fillShares := p.shares
		maxFillable := bar.Volume * r.cfg.VolumeParticipationPct
		if maxFillable > 0 && fillShares.Float64() > maxFillable {
			fillShares = money.SharesFromFloat(maxFillable)
		}
		if fillShares.IsZero() {
			continue
		}

		fillPrice, commission := r.simulateFill(bar, p.side, fillShares.Float64())
		r.risk.OnFill(p.symbol, p.side, fillPrice, fillShares, p.stopLoss, p.takeProfit, p.riskAmount, params.TrailingStopEnabled)
		r.cash = r.cash.Sub(fillPrice.Mul(fillShares.Float64())).Sub(commission)
		r.lots[p.symbol] = openLot{symbol: p.symbol, entryDate: day, entryPrice: fillPrice, shares: fillShares, commission: commission}
	}
}

// manage runs stop/trailing detection against each open lot's bar for
// the day and returns a closed TradeRecord for every StopEvent fired.
func (r *Runner) manage(day time.Time, barsBySymbol map[string][]market.Bar) []TradeRecord {
	var closed []TradeRecord
	for sym, lot := range r.lots {
		bar, ok := barOn(barsBySymbol[sym], day)
		if !ok {
			continue
		}
		event := r.risk.Tick(sym, bar.Open, bar.High, bar.Low, bar.Close, day)
		if event == nil {
			continue
		}
		exitPrice := event.TriggeredAt
		r.cash = r.cash.Add(exitPrice.Mul(lot.shares.Float64()))
		delete(r.lots, sym)
		closed = append(closed, r.closeLot(lot, exitPrice, day))
	}
	return closed
}

// closeLot builds the TradeRecord for a closed lot: manage() uses it for
// stop/target exits and Run for the end-of-window mark-to-market close.
func (r *Runner) closeLot(lot openLot, exitPrice money.Money, exitDate time.Time) TradeRecord {
	pnl := exitPrice.Sub(lot.entryPrice).Mul(lot.shares.Float64()).Sub(lot.commission)
	return TradeRecord{
		Symbol:     lot.symbol,
		EntryDate:  lot.entryDate,
		ExitDate:   exitDate,
		EntryPrice: lot.entryPrice,
		ExitPrice:  exitPrice,
		Shares:     lot.shares,
		PnL:        pnl,
		Commission: lot.commission,
	}
}

// simulateFill applies directional slippage off the bar's open and the
// commission tiers (spec §4.5): a signal decided at the prior close
// fills at this bar's open, moved against the trader by SlippageBps;
// commission is per-share bounded to [CommissionMin, CommissionMax].
func (r *Runner) simulateFill(bar market.Bar, side risk.Side, shares float64) (fillPrice, commission money.Money) {
	slip := r.cfg.SlippageBps / 10000.0
	if side == risk.Buy {
		fillPrice = money.MoneyFromFloat(bar.Open.Float64() * (1 + slip))
	} else {
		fillPrice = money.MoneyFromFloat(bar.Open.Float64() * (1 - slip))
	}
	return fillPrice, r.commissionFor(shares)
}

func (r *Runner) commissionFor(shares float64) money.Money {
	c := r.cfg.CommissionPerShare.Mul(shares)
	if c.LessThan(r.cfg.CommissionMin) {
		return r.cfg.CommissionMin
	}
	if c.GreaterThan(r.cfg.CommissionMax) {
		return r.cfg.CommissionMax
	}
	return c
}

// clampToLeverage enforces spec §4.5's gross exposure cap: total
// notional across open lots, still-pending fills, and this candidate
// must not exceed equity * LeverageCap. Shares are trimmed down to fit
// rather than the trade being rejected outright, mirroring how
// VolumeParticipationPct trims rather than rejects in executePending.
func (r *Runner) clampToLeverage(shares money.Shares, price, equity money.Money) money.Shares {
	if r.cfg.LeverageCap <= 0 {
		return shares
	}
	capNotional := equity.Float64() * r.cfg.LeverageCap
	used := 0.0
	for _, lot := range r.lots {
		used += lot.entryPrice.Float64() * lot.shares.Float64()
	}
	for _, p := range r.pending {
		used += p.proposal.EntryPrice.Float64() * p.shares.Float64()
	}
	room := capNotional - used
	if room <= 0 {
		return money.SharesFromFloat(0)
	}
	notional := price.Float64() * shares.Float64()
	if notional <= room {
		return shares
	}
	trimmed := room / price.Float64()
	if trimmed <= 0 {
		return money.SharesFromFloat(0)
	}
	return money.SharesFromFloat(trimmed)
}

// equity marks cash plus every open lot to the day's close.
func (r *Runner) equity(day time.Time, barsBySymbol map[string][]market.Bar) money.Money {
	total := r.cash
	for sym, lot := range r.lots {
		bar, ok := barOn(barsBySymbol[sym], day)
		if !ok {
			continue
		}
		total = total.Add(bar.Close.Mul(lot.shares.Float64()))
	}
	return total
}

func barOn(bars []market.Bar, day time.Time) (market.Bar, bool) {
	for _, b := range bars {
		if b.Timestamp.Year() == day.Year() && b.Timestamp.YearDay() == day.YearDay() {
			return b, true
		}
	}
	return market.Bar{}, false
}
