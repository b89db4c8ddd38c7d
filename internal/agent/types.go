// Package agent implements the Autonomous Trading Agent (spec §4.4): a
// long-running controller with a scheduled tick, grounded on the
// teacher's Run/runCycle loop in trader/auto_trader.go.
package agent

import (
	"context"
	"time"

	"github.com/N0tT1m/invest-iq-sub000/internal/execution"
	"github.com/N0tT1m/invest-iq-sub000/internal/money"
	"github.com/N0tT1m/invest-iq-sub000/internal/orchestrator"
	"github.com/N0tT1m/invest-iq-sub000/internal/risk"
)

type State string

const (
	Idle         State = "Idle"
	Scanning     State = "Scanning"
	Analyzing    State = "Analyzing"
	Gating       State = "Gating"
	Sizing       State = "Sizing"
	Submitting   State = "Submitting"
	AwaitingFill State = "AwaitingFill"
	Managing     State = "Managing"
)

// Config carries the agent's tunables (internal/config populates this
// from environment at startup).
type Config struct {
	TickInterval       time.Duration // default 300s
	MaxConcurrentScans int           // default 8
	OrderTimeout       time.Duration // default 30s
	MetaGateThresholdBull float64    // default 0.55
	MetaGateThresholdBear float64    // default 0.60
	DailyReportCutoffHour   int      // local exchange hour, e.g. 16
	DailyReportCutoffMinute int      // e.g. 5
	PaperTrading       bool
}

func DefaultConfig() Config {
	return Config{
		TickInterval:            300 * time.Second,
		MaxConcurrentScans:      8,
		OrderTimeout:            30 * time.Second,
		MetaGateThresholdBull:   0.55,
		MetaGateThresholdBear:   0.60,
		DailyReportCutoffHour:   16,
		DailyReportCutoffMinute: 5,
		PaperTrading:            true,
	}
}

// Watchlist supplies the configured symbol universe and top movers
// that seed each tick's Scanning step.
type Watchlist interface {
	ConfiguredSymbols() []string
	TopMovers(limit int) ([]string, error)
}

// Persistence is the subset of the Ledger capability the agent writes
// to at every state transition (spec §4.4 "Persistence"), so a
// crash-and-restart resumes from the trade log and portfolio snapshot
// table rather than in-memory state alone.
type Persistence interface {
	TryRecordDailyReport(ctx context.Context, date string) (bool, error)
	RecordFill(ctx context.Context, tradeID, symbol, side string, shares, price money.Money, strategy, venueOrderID, idemKey string, filledAt time.Time) error
	SnapshotPortfolio(ctx context.Context, equity, peakEquity money.Money, drawdownPct float64, consecutiveLosses int, halted bool, haltReason string) error
}

// Notifier is the daily-report sink.
type Notifier interface {
	Notify(report DailyReport) error
}

type DailyReport struct {
	Date          string
	RealizedPnL   float64
	TradeCount    int
	WinRate       float64
	OpenPositions int
	Halted        bool
}

// candidate is one symbol carried through Scanning -> Managing.
type candidate struct {
	Symbol   string
	Analysis orchestrator.UnifiedAnalysis
	Proposal risk.TradeProposal
	Decision risk.Decision
	Ticket   risk.OrderTicket
	Fill     execution.Fill
}
