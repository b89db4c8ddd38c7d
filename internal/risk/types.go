// Package risk implements the Risk Manager (spec §4.3): the
// authoritative source of pre-trade sizing, stop/take computation,
// portfolio invariants, and circuit breakers.
package risk

import (
	"time"

	"github.com/N0tT1m/invest-iq-sub000/internal/money"
)

// Side is a trade direction.
type Side string

const (
	Buy  Side = "Buy"
	Sell Side = "Sell"
)

// RiskParameters mirrors spec §3's defaults exactly.
type RiskParameters struct {
	MaxRiskPerTradePct    float64 // default 2
	MaxPortfolioRiskPct   float64 // default 10
	MaxPositionSizePct    float64 // default 20
	DefaultStopLossPct    float64 // default 5
	DefaultTakeProfitPct  float64 // default 10
	TrailingStopEnabled   bool    // default false
	TrailingStopPct       float64 // default 3
	MinConfidenceThreshold float64 // default 0.70
	MinWinRateThreshold   float64 // default 0.55
	MaxSectorConcentration float64 // default 0.30
	MaxGrossExposure      float64 // default 0.80
	DailyLossHaltPct      float64 // default 3.0
	DrawdownHaltPct       float64 // default 10.0, "configured drawdown halt"
	RewardRiskFloor       float64 // default 1.5
	MaxOpenPositions      int
	MinWinRateSamples     int // Open Question #2: "win_rate unknown" threshold, default 20
	ATRStopMultiplier     float64
	ATRTakeMultiplier     float64
}

func DefaultRiskParameters() RiskParameters {
	return RiskParameters{
		MaxRiskPerTradePct:     2,
		MaxPortfolioRiskPct:    10,
		MaxPositionSizePct:     20,
		DefaultStopLossPct:     5,
		DefaultTakeProfitPct:   10,
		TrailingStopEnabled:    false,
		TrailingStopPct:        3,
		MinConfidenceThreshold: 0.70,
		MinWinRateThreshold:    0.55,
		MaxSectorConcentration: 0.30,
		MaxGrossExposure:       0.80,
		DailyLossHaltPct:       3.0,
		DrawdownHaltPct:        10.0,
		RewardRiskFloor:        1.5,
		MaxOpenPositions:       10,
		MinWinRateSamples:      20,
		ATRStopMultiplier:      2.0,
		ATRTakeMultiplier:      3.0,
	}
}

type PositionStatus string

const (
	Active      PositionStatus = "Active"
	StoppedOut  PositionStatus = "StoppedOut"
	TargetHit   PositionStatus = "TargetHit"
	ManualClose PositionStatus = "ManualClose"
)

// ActiveRiskPosition tracks one open position (spec §3). Invariant: at
// most one Active row per symbol; MaxPriceSeen monotonically
// non-decreasing while Active.
type ActiveRiskPosition struct {
	Symbol          string
	Shares          money.Shares
	EntryPrice      money.Money
	EntryTime       time.Time
	StopLoss        money.Money
	TakeProfit      money.Money
	TrailingEnabled bool
	MaxPriceSeen    money.Money
	MinPriceSeen    money.Money // tracked for short-position mirror-symmetric trailing
	Side            Side
	RiskAmount      money.Money
	Status          PositionStatus
	ClosedAt        *time.Time
}

// TradeProposal is immutable once created (spec §3).
type TradeProposal struct {
	Symbol               string
	Side                 Side
	Shares               money.Shares
	EntryPrice           money.Money
	StopLoss             money.Money
	TakeProfit           money.Money
	StrategyName         string
	RawConfidence        float64
	CalibratedConfidence float64
	MetaGateProbability  float64
	Rationale            string
	RiskAmount           money.Money
	Sector               string
}

// OrderTicket derives from a TradeProposal, carrying a unique
// idempotency key (spec §3, §6).
type OrderTicket struct {
	Proposal       TradeProposal
	IdempotencyKey string
	CreatedAt      time.Time
}

type HaltReason string

const (
	NoHalt            HaltReason = ""
	DailyLossHalt     HaltReason = "DailyLossHalt"
	DrawdownHaltReason HaltReason = "DrawdownHalt"
	ManualHalt        HaltReason = "ManualHalt"
)

// CircuitBreakerState (spec §3).
type CircuitBreakerState struct {
	ConsecutiveLosses   int
	IntradayRealizedPnL money.Money
	PeakEquity          money.Money
	CurrentDrawdownPct  float64
	Halted              bool
	HaltReason          HaltReason
	LastHaltTime        *time.Time
	SafeMode            bool // invariant-violation safe mode, distinct from ordinary halts
	SafeModeDetail      string
}

type StopEventKind string

const (
	StopLossEvent     StopEventKind = "StopLoss"
	TakeProfitEvent   StopEventKind = "TakeProfit"
	TrailingStopEvent StopEventKind = "TrailingStop"
)

// StopEvent is emitted by tick() when a quote crosses a stop/target
// level (spec §4.3).
type StopEvent struct {
	Symbol      string
	Kind        StopEventKind
	TriggeredAt money.Money // price at which the event fires; gap-through uses the bar's open
	Timestamp   time.Time
}

// Accept/Reject result of pre_trade_check.
type Decision struct {
	Accepted bool
	Reason   string
	Proposal TradeProposal // annotated with final sized shares/risk on Accept
}
