package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/N0tT1m/invest-iq-sub000/internal/market"
	"github.com/N0tT1m/invest-iq-sub000/internal/money"
	"github.com/N0tT1m/invest-iq-sub000/internal/risk"
)

func newTestRunner(cfg Config) *Runner {
	r := NewRunner(cfg, nil, risk.DefaultRiskParameters(), nil)
	return r
}

func TestSimulateFill_BuySlipsPriceUp(t *testing.T) {
	r := newTestRunner(DefaultConfig())
	bar := market.Bar{Open: money.MoneyFromFloat(100)}

	fillPrice, commission := r.simulateFill(bar, risk.Buy, 100)

	assert.Greater(t, fillPrice.Float64(), 100.0) // slippage moves the fill against the buyer
	assert.True(t, commission.GreaterThan(money.Money{}))
}

func TestSimulateFill_SellSlipsPriceDown(t *testing.T) {
	r := newTestRunner(DefaultConfig())
	bar := market.Bar{Open: money.MoneyFromFloat(100)}

	fillPrice, _ := r.simulateFill(bar, risk.Sell, 100)

	assert.Less(t, fillPrice.Float64(), 100.0)
}

func TestCommissionFor_ClampsToMinAndMax(t *testing.T) {
	cfg := DefaultConfig()
	r := newTestRunner(cfg)

	assert.Equal(t, cfg.CommissionMin.Float64(), r.commissionFor(1).Float64())    // tiny order hits the floor
	assert.Equal(t, cfg.CommissionMax.Float64(), r.commissionFor(100000).Float64()) // huge order hits the ceiling
}

// Spec §4.5: a signal decided at day i's close only fills against day
// i+1's open, via executePending, never immediately.
func TestExecutePending_FillsAgainstTheNextBarsOpen(t *testing.T) {
	r := newTestRunner(DefaultConfig())
	day := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := map[string][]market.Bar{
		"AAPL": {{Timestamp: day, Open: money.MoneyFromFloat(101), High: money.MoneyFromFloat(102), Low: money.MoneyFromFloat(100), Close: money.MoneyFromFloat(101.5), Volume: 1_000_000}},
	}
	r.pending = []pendingEntry{{
		symbol: "AAPL", side: risk.Buy, shares: money.SharesFromFloat(100),
		stopLoss: money.MoneyFromFloat(95), takeProfit: money.MoneyFromFloat(115),
		riskAmount: money.MoneyFromFloat(500),
		proposal:   risk.TradeProposal{Symbol: "AAPL", Side: risk.Buy, EntryPrice: money.MoneyFromFloat(100), Shares: money.SharesFromFloat(100)},
	}}
	cashBefore := r.cash

	r.executePending(day, bars)

	assert.Empty(t, r.pending)
	lot, held := r.lots["AAPL"]
	assert.True(t, held)
	assert.InDelta(t, 101*(1+DefaultConfig().SlippageBps/10000.0), lot.entryPrice.Float64(), 1e-6)
	assert.True(t, r.cash.LessThan(cashBefore)) // cash debited for the fill plus commission
}

// Excess size beyond the volume participation cap is dropped, never
// re-queued for a later bar.
func TestExecutePending_ClampsToVolumeParticipationAndDropsExcess(t *testing.T) {
	cfg := DefaultConfig()
	cfg.VolumeParticipationPct = 0.10
	r := newTestRunner(cfg)
	day := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := map[string][]market.Bar{
		"AAPL": {{Timestamp: day, Open: money.MoneyFromFloat(100), Volume: 1000}}, // max fillable = 100 shares
	}
	r.pending = []pendingEntry{{
		symbol: "AAPL", side: risk.Buy, shares: money.SharesFromFloat(500),
		stopLoss: money.MoneyFromFloat(90), takeProfit: money.MoneyFromFloat(130),
		riskAmount: money.MoneyFromFloat(500),
		proposal:   risk.TradeProposal{Symbol: "AAPL", Side: risk.Buy, EntryPrice: money.MoneyFromFloat(100), Shares: money.SharesFromFloat(500)},
	}}

	r.executePending(day, bars)

	lot := r.lots["AAPL"]
	assert.Equal(t, 100.0, lot.shares.Float64())
}

func TestExecutePending_DropsSignalWithNoBarToFillAgainst(t *testing.T) {
	r := newTestRunner(DefaultConfig())
	day := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	r.pending = []pendingEntry{{symbol: "AAPL", side: risk.Buy, shares: money.SharesFromFloat(10)}}

	r.executePending(day, map[string][]market.Bar{})

	_, held := r.lots["AAPL"]
	assert.False(t, held)
}

func TestHasPending(t *testing.T) {
	r := newTestRunner(DefaultConfig())
	assert.False(t, r.hasPending("AAPL"))
	r.pending = append(r.pending, pendingEntry{symbol: "AAPL"})
	assert.True(t, r.hasPending("AAPL"))
	assert.False(t, r.hasPending("MSFT"))
}

// clampToLeverage trims new size to whatever gross-exposure room
// remains under equity*LeverageCap rather than rejecting the trade.
func TestClampToLeverage_TrimsToRemainingRoom(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LeverageCap = 1.0
	r := newTestRunner(cfg)
	equity := money.MoneyFromFloat(100000)
	r.lots["MSFT"] = openLot{symbol: "MSFT", entryPrice: money.MoneyFromFloat(100), shares: money.SharesFromFloat(900)} // 90,000 notional used

	shares := r.clampToLeverage(money.SharesFromFloat(200), money.MoneyFromFloat(100), equity) // would add 20,000, only 10,000 of room left

	assert.Equal(t, 100.0, shares.Float64())
}

func TestClampToLeverage_NoCapConfiguredPassesThrough(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LeverageCap = 0
	r := newTestRunner(cfg)

	shares := r.clampToLeverage(money.SharesFromFloat(10000), money.MoneyFromFloat(100), money.MoneyFromFloat(1000))

	assert.Equal(t, 10000.0, shares.Float64())
}

func TestClampToLeverage_NoRoomReturnsZero(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LeverageCap = 1.0
	r := newTestRunner(cfg)
	equity := money.MoneyFromFloat(100000)
	r.lots["MSFT"] = openLot{symbol: "MSFT", entryPrice: money.MoneyFromFloat(100), shares: money.SharesFromFloat(1000)} // fully at cap

	shares := r.clampToLeverage(money.SharesFromFloat(10), money.MoneyFromFloat(100), equity)

	assert.True(t, shares.IsZero())
}

func TestBarOn_MatchesByCalendarDay(t *testing.T) {
	day := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	bars := []market.Bar{
		{Timestamp: day.AddDate(0, 0, -1)},
		{Timestamp: day.Add(14 * time.Hour), Close: money.MoneyFromFloat(42)}, // same calendar day, different hour
	}

	bar, ok := barOn(bars, day)

	assert.True(t, ok)
	assert.Equal(t, 42.0, bar.Close.Float64())
}

func TestBarOn_NoMatchReturnsFalse(t *testing.T) {
	_, ok := barOn(nil, time.Now())
	assert.False(t, ok)
}
