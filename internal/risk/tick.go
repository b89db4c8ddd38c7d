package risk

import (
	"time"

	"github.com/N0tT1m/invest-iq-sub000/internal/money"
)

// Tick implements spec §4.3's tick(symbol, bar) operation: trailing-stop
// ratchet, then gap-through stop/target detection against the bar's
// open, high, and low. Returns a StopEvent if the position closed.
func (m *Manager) Tick(symbol string, open, high, low, close money.Money, ts time.Time) *StopEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.positions[symbol]
	if !ok || pos.Status != Active {
		return nil
	}

	if pos.TrailingEnabled {
		m.applyTrailing(pos, high, low)
	}

	event := m.detectGapThrough(pos, open, high, low, ts)
	if event != nil {
		pos.Status = statusFor(event.Kind)
		closedAt := ts
		pos.ClosedAt = &closedAt
		m.releaseExposure(pos, close)
		m.recordFillOutcome(pos, event, event.TriggeredAt)
		m.auditf("PositionClosed", map[string]any{"symbol": symbol, "kind": string(event.Kind), "price": event.TriggeredAt.String()})
	}
	return event
}

// applyTrailing ratchets the stop toward the most favorable price seen.
// Long positions track MaxPriceSeen and trail below it; short positions
// mirror-symmetrically track MinPriceSeen and trail above it (Open
// Question #4 decision).
func (m *Manager) applyTrailing(pos *ActiveRiskPosition, high, low money.Money) {
	pct := m.params.TrailingStopPct / 100.0
	if pos.Side == Buy {
		if high.GreaterThan(pos.MaxPriceSeen) {
			pos.MaxPriceSeen = high
		}
		candidate := money.MoneyFromFloat(pos.MaxPriceSeen.Float64() * (1 - pct))
		if candidate.GreaterThan(pos.StopLoss) {
			pos.StopLoss = candidate
		}
	} else {
		if pos.MinPriceSeen.IsZero() || low.LessThan(pos.MinPriceSeen) {
			pos.MinPriceSeen = low
		}
		candidate := money.MoneyFromFloat(pos.MinPriceSeen.Float64() * (1 + pct))
		if candidate.LessThan(pos.StopLoss) {
			pos.StopLoss = candidate
		}
	}
}

// detectGapThrough checks the bar's open first (a gap past the level
// fires at the open price, not the stale stop/target level), then the
// intrabar high/low.
func (m *Manager) detectGapThrough(pos *ActiveRiskPosition, open, high, low money.Money, ts time.Time) *StopEvent {
	if pos.Side == Buy {
		if open.LessThanOrEqual(pos.StopLoss) {
			return &StopEvent{Symbol: pos.Symbol, Kind: StopLossEvent, TriggeredAt: open, Timestamp: ts}
		}
		if open.GreaterThanOrEqual(pos.TakeProfit) {
			return &StopEvent{Symbol: pos.Symbol, Kind: TakeProfitEvent, TriggeredAt: open, Timestamp: ts}
		}
		if low.LessThanOrEqual(pos.StopLoss) {
			return &StopEvent{Symbol: pos.Symbol, Kind: StopLossEvent, TriggeredAt: pos.StopLoss, Timestamp: ts}
		}
		if high.GreaterThanOrEqual(pos.TakeProfit) {
			return &StopEvent{Symbol: pos.Symbol, Kind: TakeProfitEvent, TriggeredAt: pos.TakeProfit, Timestamp: ts}
		}
	} else {
		if open.GreaterThanOrEqual(pos.StopLoss) {
			return &StopEvent{Symbol: pos.Symbol, Kind: StopLossEvent, TriggeredAt: open, Timestamp: ts}
		}
		if open.LessThanOrEqual(pos.TakeProfit) {
			return &StopEvent{Symbol: pos.Symbol, Kind: TakeProfitEvent, TriggeredAt: open, Timestamp: ts}
		}
		if high.GreaterThanOrEqual(pos.StopLoss) {
			return &StopEvent{Symbol: pos.Symbol, Kind: StopLossEvent, TriggeredAt: pos.StopLoss, Timestamp: ts}
		}
		if low.LessThanOrEqual(pos.TakeProfit) {
			return &StopEvent{Symbol: pos.Symbol, Kind: TakeProfitEvent, TriggeredAt: pos.TakeProfit, Timestamp: ts}
		}
	}
	return nil
}

func statusFor(kind StopEventKind) PositionStatus {
	if kind == StopLossEvent {
		return StoppedOut
	}
	return TargetHit
}

func (m *Manager) releaseExposure(pos *ActiveRiskPosition, exitPrice money.Money) {
	notional := pos.EntryPrice.Mul(pos.Shares.Float64())
	m.grossExposure = m.grossExposure.Sub(notional)
	if m.grossExposure.IsNegative() {
		m.grossExposure = money.Money{}
	}
	if sector := m.sectorOf[pos.Symbol]; sector != "" {
		remaining := m.sectorExposure[sector].Sub(notional)
		if remaining.IsNegative() {
			remaining = money.Money{}
		}
		m.sectorExposure[sector] = remaining
	}
}

// recordFillOutcome updates circuit breaker counters from a closed
// trade's realized P&L, then re-evaluates daily-loss and drawdown
// halts (spec §4.3's circuit breaker update step).
func (m *Manager) recordFillOutcome(pos *ActiveRiskPosition, event *StopEvent, exitPrice money.Money) {
	var pnl money.Money
	if pos.Side == Buy {
		pnl = exitPrice.Sub(pos.EntryPrice).Mul(pos.Shares.Float64())
	} else {
		pnl = pos.EntryPrice.Sub(exitPrice).Mul(pos.Shares.Float64())
	}

	if pnl.IsNegative() {
		m.breaker.ConsecutiveLosses++
	} else {
		m.breaker.ConsecutiveLosses = 0
	}
	m.breaker.IntradayRealizedPnL = m.breaker.IntradayRealizedPnL.Add(pnl)

	equity := m.breaker.PeakEquity.Add(m.breaker.IntradayRealizedPnL)
	if equity.GreaterThan(m.breaker.PeakEquity) {
		m.breaker.PeakEquity = equity
	}
	if m.breaker.PeakEquity.Float64() > 0 {
		m.breaker.CurrentDrawdownPct = (m.breaker.PeakEquity.Float64() - equity.Float64()) / m.breaker.PeakEquity.Float64() * 100
	}

	if m.breaker.PeakEquity.Float64() > 0 {
		dailyLossPct := -m.breaker.IntradayRealizedPnL.Float64() / m.breaker.PeakEquity.Float64() * 100
		if dailyLossPct >= m.params.DailyLossHaltPct {
			m.tripHalt(DailyLossHalt)
		}
	}
	if m.breaker.CurrentDrawdownPct >= m.params.DrawdownHaltPct {
		m.tripHalt(DrawdownHaltReason)
	}
}

func (m *Manager) tripHalt(reason HaltReason) {
	if m.breaker.Halted {
		return
	}
	now := time.Now().UTC()
	m.breaker.Halted = true
	m.breaker.HaltReason = reason
	m.breaker.LastHaltTime = &now
	m.auditf("CircuitBreakerTripped", map[string]any{"reason": string(reason)})
}

// ResetDaily clears the intraday realized P&L counter (spec §4.3); it
// does not clear an existing halt.
func (m *Manager) ResetDaily() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.breaker.IntradayRealizedPnL = money.Money{}
}
