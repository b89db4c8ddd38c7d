package agent

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/N0tT1m/invest-iq-sub000/internal/execution"
	"github.com/N0tT1m/invest-iq-sub000/internal/money"
	"github.com/N0tT1m/invest-iq-sub000/internal/risk"
	"github.com/N0tT1m/invest-iq-sub000/internal/telemetry"
)

// accountEquity is supplied by the risk manager's own bookkeeping; the
// agent treats the Risk Manager as the single source of truth for
// current equity rather than tracking a second copy.
func (a *Agent) accountEquity() money.Money {
	b := a.risk.BreakerState()
	return b.PeakEquity.Add(b.IntradayRealizedPnL)
}

// size computes shares/risk_amount via the Risk Manager and runs
// pre_trade_check, dropping rejected proposals (spec §4.4 step 4).
func (a *Agent) size(candidates []candidate) []candidate {
	equity := a.accountEquity()
	params := a.risk.Params()

	var out []candidate
	for _, c := range candidates {
		atr := c.Analysis.PerEngine // technical engine metrics may carry an ATR value
		var atrPtr *float64
		if tech, ok := atr["technical"]; ok {
			if v, ok := tech.Metrics["atr14"]; ok && v > 0 {
				atrPtr = &v
			}
		}

		stop, take := risk.ComputeStops(c.Proposal.EntryPrice, c.Proposal.Side, params, atrPtr)
		shares := risk.PositionSize(equity, c.Proposal.EntryPrice, stop, params)
		if shares.IsZero() {
			continue
		}

		c.Proposal.Shares = shares
		c.Proposal.StopLoss = stop
		c.Proposal.TakeProfit = take
		riskPerShare := c.Proposal.EntryPrice.Sub(stop).Abs()
		c.Proposal.RiskAmount = riskPerShare.Mul(shares.Float64())

		decision := a.risk.PreTradeCheck(c.Proposal, equity)
		if !decision.Accepted {
			telemetry.RecordRiskRejection(decision.Reason)
			continue
		}
		c.Decision = decision
		c.Proposal = decision.Proposal
		out = append(out, c)
	}
	return out
}

// submit builds an OrderTicket with the spec §6 idempotency key and
// submits it to the venue; duplicate keys are a no-op at the venue
// layer (spec §4.4 step 5).
func (a *Agent) submit(ctx context.Context, candidates []candidate) []candidate {
	var out []candidate
	for _, c := range candidates {
		key := IdempotencyKey(c.Proposal.Symbol, c.Proposal.Side, c.Proposal.Shares, time.Now().UTC(), c.Proposal.StrategyName)
		ticket := risk.OrderTicket{Proposal: c.Proposal, IdempotencyKey: key, CreatedAt: time.Now().UTC()}

		order := execution.Order{
			Symbol:         c.Proposal.Symbol,
			Side:           string(c.Proposal.Side),
			Shares:         c.Proposal.Shares,
			IdempotencyKey: key,
		}
		fill, err := a.venue.Submit(ctx, order)
		if err != nil {
			a.log.Warnf("submit failed for %s: %v", c.Symbol, err)
			continue
		}
		c.Ticket = ticket
		c.Fill = fill
		out = append(out, c)
	}
	return out
}

// awaitFills polls until each order is Filled/PartiallyFilled/Canceled
// or the order timeout expires, then commits the fill to the Risk
// Manager (spec §4.4 step 6). Partial fills create a position sized to
// the filled quantity; the remainder is canceled.
func (a *Agent) awaitFills(ctx context.Context, candidates []candidate) {
	for _, c := range candidates {
		fill := c.Fill
		deadline := time.Now().Add(a.cfg.OrderTimeout)
		for fill.Status == execution.StatusNew && time.Now().Before(deadline) {
			time.Sleep(500 * time.Millisecond)
			f, err := a.venue.OrderStatus(ctx, fill.VenueOrderID)
			if err != nil {
				a.log.Warnf("order status poll failed for %s: %v", c.Symbol, err)
				break
			}
			fill = f
		}
		if fill.Status == execution.StatusNew {
			if err := a.venue.Cancel(ctx, fill.VenueOrderID); err != nil {
				a.log.Warnf("cancel failed for timed-out order %s: %v", c.Symbol, err)
			}
			continue
		}
		if fill.Status != execution.StatusFilled && fill.Status != execution.StatusPartial {
			continue
		}
		if fill.Status == execution.StatusPartial {
			if err := a.venue.Cancel(ctx, fill.VenueOrderID); err != nil {
				a.log.Warnf("cancel of unfilled remainder failed for %s: %v", c.Symbol, err)
			}
		}

		a.risk.OnFill(c.Symbol, c.Proposal.Side, fill.FilledPrice, fill.FilledShares, c.Proposal.StopLoss, c.Proposal.TakeProfit, c.Proposal.RiskAmount, a.risk.Params().TrailingStopEnabled)

		if a.persistence != nil {
			tradeID := uuid.NewString()
			err := a.persistence.RecordFill(ctx, tradeID, c.Symbol, string(c.Proposal.Side), fill.FilledShares, fill.FilledPrice, c.Proposal.StrategyName, fill.VenueOrderID, c.Ticket.IdempotencyKey, time.Now().UTC())
			if err != nil {
				a.log.Warnf("record fill failed for %s: %v", c.Symbol, err)
			}
		}
	}
}

// manage runs tick() against every open position's latest quote (used
// as the bar's open, high, low and close),
// submitting an opposing close order on any StopEvent (spec §4.4 step 7).
func (a *Agent) manage(ctx context.Context) {
	for _, pos := range a.risk.Positions() {
		quote, err := a.marketData.Quote(ctx, pos.Symbol)
		if err != nil {
			a.log.Warnf("quote fetch failed for %s during manage: %v", pos.Symbol, err)
			continue
		}
		event := a.risk.Tick(pos.Symbol, quote.Price, quote.Price, quote.Price, quote.Price, quote.Timestamp)
		if event == nil {
			continue
		}

		closeSide := risk.Sell
		if pos.Side == risk.Sell {
			closeSide = risk.Buy
		}
		key := IdempotencyKey(pos.Symbol, closeSide, pos.Shares, time.Now().UTC(), "position_close")
		order := execution.Order{Symbol: pos.Symbol, Side: string(closeSide), Shares: pos.Shares, IdempotencyKey: key}
		if _, err := a.venue.Submit(ctx, order); err != nil {
			a.log.Warnf("opposing close order failed for %s: %v", pos.Symbol, err)
		}
	}
}

func (a *Agent) maybeSendDailyReport(ctx context.Context) {
	now := time.Now()
	if now.Hour() != a.cfg.DailyReportCutoffHour || now.Minute() < a.cfg.DailyReportCutoffMinute {
		return
	}
	date := now.Format("2006-01-02")
	if a.persistence == nil {
		return
	}
	sent, err := a.persistence.TryRecordDailyReport(ctx, date)
	if err != nil {
		a.log.Errorf("daily report dedup check failed: %v", err)
		return
	}
	if !sent {
		return
	}
	if a.notifier == nil {
		return
	}

	breaker := a.risk.BreakerState()
	openPositions := 0
	for _, p := range a.risk.Positions() {
		if p.Status == risk.Active {
			openPositions++
		}
	}
	report := DailyReport{
		Date:          date,
		RealizedPnL:   breaker.IntradayRealizedPnL.Float64(),
		OpenPositions: openPositions,
		Halted:        breaker.Halted,
	}
	if err := a.notifier.Notify(report); err != nil {
		a.log.Errorf("daily report notify failed: %v", err)
	}
}
