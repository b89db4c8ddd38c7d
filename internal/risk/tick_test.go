package risk

import (
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/N0tT1m/invest-iq-sub000/internal/logging"
	"github.com/N0tT1m/invest-iq-sub000/internal/money"
)

func managerWithLongPosition(t *testing.T, trailing bool) *Manager {
	t.Helper()
	m := NewManager(DefaultRiskParameters(), money.MoneyFromFloat(100000), nil, nil, logging.New(io.Discard, zerolog.Disabled), nil)
	m.OnFill("AAPL", Buy, money.MoneyFromFloat(100), money.SharesFromFloat(10), money.MoneyFromFloat(95), money.MoneyFromFloat(120), money.MoneyFromFloat(50), trailing)
	return m
}

// S4: the prior day's close leaves the stop at 95, but the next bar
// gaps straight through it; the fill must happen at the bar's open
// (93), not the stale stop price.
func TestTick_GapThroughStopFillsAtOpen(t *testing.T) {
	m := managerWithLongPosition(t, false)

	event := m.Tick("AAPL", money.MoneyFromFloat(93), money.MoneyFromFloat(94), money.MoneyFromFloat(92), money.MoneyFromFloat(93), time.Now())

	assert.NotNil(t, event)
	assert.Equal(t, StopLossEvent, event.Kind)
	assert.Equal(t, 93.0, event.TriggeredAt.Float64())
}

// An intrabar touch (no gap) fires at the stop's own level.
func TestTick_IntrabarStopFillsAtStopLevel(t *testing.T) {
	m := managerWithLongPosition(t, false)

	event := m.Tick("AAPL", money.MoneyFromFloat(99), money.MoneyFromFloat(100), money.MoneyFromFloat(94), money.MoneyFromFloat(96), time.Now())

	assert.NotNil(t, event)
	assert.Equal(t, StopLossEvent, event.Kind)
	assert.Equal(t, 95.0, event.TriggeredAt.Float64())
}

func TestTick_NoEventWhenPriceStaysInRange(t *testing.T) {
	m := managerWithLongPosition(t, false)

	event := m.Tick("AAPL", money.MoneyFromFloat(101), money.MoneyFromFloat(103), money.MoneyFromFloat(100), money.MoneyFromFloat(102), time.Now())

	assert.Nil(t, event)
}

// Trailing-stop ratchet, long side: a new high raises MaxPriceSeen and
// the stop trails TrailingStopPct below it, but only ever upward.
func TestTick_TrailingStopRatchetsUpOnly_Long(t *testing.T) {
	m := managerWithLongPosition(t, true)

	// High 110 trails the stop up to 110*0.97 = 106.7, still below the
	// bar's own open (109) and low (108), so no stop fires on the same bar.
	m.Tick("AAPL", money.MoneyFromFloat(109), money.MoneyFromFloat(110), money.MoneyFromFloat(108), money.MoneyFromFloat(109), time.Now())
	pos := m.Positions()[0]
	assert.InDelta(t, 110*(1-0.03), pos.StopLoss.Float64(), 1e-6)

	// A subsequent bar with a lower high must not lower the stop back down.
	m.Tick("AAPL", money.MoneyFromFloat(107), money.MoneyFromFloat(108), money.MoneyFromFloat(106.8), money.MoneyFromFloat(107), time.Now())
	pos = m.Positions()[0]
	assert.InDelta(t, 110*(1-0.03), pos.StopLoss.Float64(), 1e-6)
}

// Open Question #4: short positions trail mirror-symmetrically off
// the lowest price seen, ratcheting the stop down, never back up.
func TestTick_TrailingStopRatchetsDownOnly_Short(t *testing.T) {
	m := NewManager(DefaultRiskParameters(), money.MoneyFromFloat(100000), nil, nil, logging.New(io.Discard, zerolog.Disabled), nil)
	m.OnFill("AAPL", Sell, money.MoneyFromFloat(100), money.SharesFromFloat(10), money.MoneyFromFloat(105), money.MoneyFromFloat(80), money.MoneyFromFloat(50), true)

	// Low 90 trails the stop down to 90*1.03 = 92.7; the rest of the bar
	// stays below that level so no gap-through fires on the same bar.
	m.Tick("AAPL", money.MoneyFromFloat(91), money.MoneyFromFloat(92), money.MoneyFromFloat(90), money.MoneyFromFloat(91), time.Now())
	pos := m.Positions()[0]
	assert.InDelta(t, 90*(1+0.03), pos.StopLoss.Float64(), 1e-6)

	// A subsequent bar with a higher low (90.5, not a new low) must not
	// ratchet the stop back up.
	m.Tick("AAPL", money.MoneyFromFloat(91), money.MoneyFromFloat(92.5), money.MoneyFromFloat(90.5), money.MoneyFromFloat(91), time.Now())
	pos = m.Positions()[0]
	assert.InDelta(t, 90*(1+0.03), pos.StopLoss.Float64(), 1e-6)
}

func TestTick_NoOpOnceClosed(t *testing.T) {
	m := managerWithLongPosition(t, false)
	first := m.Tick("AAPL", money.MoneyFromFloat(93), money.MoneyFromFloat(94), money.MoneyFromFloat(92), money.MoneyFromFloat(93), time.Now())
	assert.NotNil(t, first)

	second := m.Tick("AAPL", money.MoneyFromFloat(93), money.MoneyFromFloat(94), money.MoneyFromFloat(92), money.MoneyFromFloat(93), time.Now())
	assert.Nil(t, second)
}
