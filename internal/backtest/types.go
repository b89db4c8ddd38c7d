// Package backtest replays historical bars against the same engines,
// orchestrator, gating, and risk rules used live (spec §4.5). Grounded
// on the teacher's absence of a backtest package, enriched from the
// retrieval pack's day-by-day replay idiom (account state, risk limits
// manager, per-ticker current/previous bar tracking).
package backtest

import (
	"time"

	"github.com/N0tT1m/invest-iq-sub000/internal/money"
)

// Config carries every execution-model tunable named in spec §4.5.
type Config struct {
	SlippageBps          float64 // default 5
	VolumeParticipationPct float64 // default 0.10, fraction of bar volume fillable
	CommissionPerShare   money.Money
	CommissionMin        money.Money
	CommissionMax        money.Money
	LeverageCap          float64 // gross exposure <= equity * LeverageCap
	CashSweepAnnualRate  float64 // idle cash daily interest, annualized
	LimitOrderExpiryBars int     // default 0 (market orders only)
	InitialEquity        money.Money
}

func DefaultConfig() Config {
	return Config{
		SlippageBps:            5,
		VolumeParticipationPct: 0.10,
		CommissionPerShare:     money.MoneyFromFloat(0.005),
		CommissionMin:          money.MoneyFromFloat(1.00),
		CommissionMax:          money.MoneyFromFloat(10.00),
		LeverageCap:            1.0,
		CashSweepAnnualRate:    0.02,
		InitialEquity:          money.MoneyFromFloat(100000),
	}
}

// TradeRecord is one closed round-trip trade, the unit the metrics
// suite aggregates over.
type TradeRecord struct {
	Symbol     string
	EntryDate  time.Time
	ExitDate   time.Time
	EntryPrice money.Money
	ExitPrice  money.Money
	Shares     money.Shares
	PnL        money.Money
	Commission money.Money
}

// EquityPoint is one day's mark-to-market equity, the series every
// metric derives from.
type EquityPoint struct {
	Date   time.Time
	Equity money.Money
}

// Result bundles the full metrics suite named in spec §4.5.
type Result struct {
	EquityCurve    []EquityPoint
	Trades         []TradeRecord
	TotalReturn    float64
	CAGR           float64
	Sharpe         float64
	Sortino        float64
	MaxDrawdown    float64
	MaxDrawdownDays int
	ProfitFactor   float64
	WinRate        float64
	Expectancy     float64
	TailRatio      float64
	Top5Drawdowns  []float64
	MonthlyReturns map[string]float64
	RollingSharpe  []float64
	BenchmarkAlpha float64
	BenchmarkBeta  float64
	TrackingError  float64
	DataQualityIssues []string
}
