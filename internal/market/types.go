// Package market defines the MarketDataSource capability and its data
// types. Concrete vendor adapters are out of scope for the core (spec
// §1); this package owns the interface boundary, a rate-limited cache
// wrapper, and the point-in-time guard used by the backtest engine.
package market

import (
	"context"
	"time"

	"github.com/N0tT1m/invest-iq-sub000/internal/money"
)

// Bar is one OHLCV+VWAP observation. Immutable once recorded.
type Bar struct {
	Timestamp time.Time
	Open      money.Money
	High      money.Money
	Low       money.Money
	Close     money.Money
	Volume    float64
	VWAP      money.Money
}

type Sector string

// Ticker identifies a tradable symbol with optional classification.
type Ticker struct {
	Symbol   string
	Sector   Sector
	Industry string
	MarketCap float64
}

// Financials is one quarterly fundamentals record.
type Financials struct {
	FiscalQuarter      string
	EffectiveDate      time.Time
	Revenue            money.Money
	NetIncome          money.Money
	TotalAssets        money.Money
	TotalLiabilities   money.Money
	CurrentAssets      money.Money
	CurrentLiabilities money.Money
	OperatingCashFlow  money.Money
	CapEx              money.Money
	SharesOutstanding  float64
}

// NewsItem is one article/press item relevant to a symbol.
type NewsItem struct {
	Title     string
	Body      string
	Timestamp time.Time
	Source    string
}

// Quote is the latest trade price observation.
type Quote struct {
	Symbol    string
	Price     money.Money
	Timestamp time.Time
}

type Timeframe string

const (
	TimeframeDaily  Timeframe = "1d"
	TimeframeHourly Timeframe = "1h"
	TimeframeMinute Timeframe = "1m"
)

// MarketDataSource is the required external capability (spec §6).
type MarketDataSource interface {
	Bars(ctx context.Context, symbol string, tf Timeframe, from, to time.Time) ([]Bar, error)
	Financials(ctx context.Context, symbol string, nQuarters int) ([]Financials, error)
	News(ctx context.Context, symbol string, limit int, since *time.Time) ([]NewsItem, error)
	Quote(ctx context.Context, symbol string) (Quote, error)
	Search(ctx context.Context, query string, limit int) ([]Ticker, error)
}
