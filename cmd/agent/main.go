// Command agent is the composition root: load config, construct every
// capability, and run the Autonomous Trading Agent's tick loop until a
// shutdown signal arrives. Grounded on the teacher's NewAutoTrader
// constructor wiring (trader/auto_trader.go) — config in, concrete
// collaborators out, no HTTP server bootstrap (spec §1 Non-goals).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/sirupsen/logrus"

	"github.com/N0tT1m/invest-iq-sub000/internal/agent"
	"github.com/N0tT1m/invest-iq-sub000/internal/audit"
	"github.com/N0tT1m/invest-iq-sub000/internal/config"
	"github.com/N0tT1m/invest-iq-sub000/internal/execution"
	"github.com/N0tT1m/invest-iq-sub000/internal/execution/binance"
	"github.com/N0tT1m/invest-iq-sub000/internal/execution/hyperliquid"
	"github.com/N0tT1m/invest-iq-sub000/internal/execution/paper"
	"github.com/N0tT1m/invest-iq-sub000/internal/ledger"
	"github.com/N0tT1m/invest-iq-sub000/internal/logging"
	"github.com/N0tT1m/invest-iq-sub000/internal/market"
	"github.com/N0tT1m/invest-iq-sub000/internal/money"
	"github.com/N0tT1m/invest-iq-sub000/internal/operator"
	"github.com/N0tT1m/invest-iq-sub000/internal/orchestrator"
	"github.com/N0tT1m/invest-iq-sub000/internal/risk"
	"github.com/N0tT1m/invest-iq-sub000/internal/signalmodel"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := logging.New(os.Stdout, level)
	logging.SetDefault(log)

	led, err := ledger.Open(cfg.LedgerDSN)
	if err != nil {
		log.Errorf("ledger open: %v", err)
		os.Exit(1)
	}
	defer led.Close()

	auditSink := logrus.New()
	auditSink.SetFormatter(&logrus.JSONFormatter{})
	auditLog := audit.New(auditSink)

	riskMgr := risk.NewManager(cfg.Risk, money.MoneyFromFloat(100000), nil, auditLog, log, cfg.SectorOf)

	venue, err := buildVenue(cfg, led, log)
	if err != nil {
		log.Errorf("execution venue: %v", err)
		os.Exit(1)
	}

	md := &unconfiguredMarketData{}
	orch := orchestrator.New(md, buildSignalModel(cfg, log), log)

	opSurface := operator.New(riskMgr, cfg.OperatorTOTPSecret, cfg.JWTSigningKey, cfg.Agent.PaperTrading)
	if cfg.LiveApproved {
		opSurface.SetPaper(false)
	}
	a := agent.New(cfg.Agent, md, orch, buildSignalModel(cfg, log), riskMgr, venue, &staticWatchlist{}, led, noopNotifier{}, log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Infof("invest-iq agent starting: venue=%s paper=%v live_approved=%v", venue.Name(), cfg.Agent.PaperTrading, cfg.LiveApproved)
	if err := a.Run(ctx); err != nil && ctx.Err() == nil {
		log.Errorf("agent run: %v", err)
		os.Exit(1)
	}
	log.Infof("invest-iq agent stopped")
}

// reserverSetter is satisfied by every concrete venue adapter's
// SetReserver method; buildVenue uses it to wire the ledger's
// idempotency table in regardless of which adapter was selected, so no
// adapter is left relying solely on venue-side dedup (spec §6).
type reserverSetter interface {
	SetReserver(execution.IdempotencyReserver)
}

func buildVenue(cfg config.Config, led *ledger.Ledger, log *logging.Logger) (execution.Venue, error) {
	var venue execution.Venue
	switch cfg.Venue {
	case config.VenueBinance:
		venue = binance.New(cfg.BinanceAPIKey, cfg.BinanceAPISecret, log)
	case config.VenueHyperliquid:
		v, err := hyperliquid.New(cfg.HyperliquidPrivateKey, cfg.HyperliquidWalletAddr, cfg.HyperliquidTestnet, log)
		if err != nil {
			return nil, err
		}
		venue = v
	default:
		venue = paper.New(func(ctx context.Context, symbol string) (money.Money, error) {
			return money.MoneyFromFloat(0), fmt.Errorf("paper venue: no price source configured for %s", symbol)
		})
	}
	if rs, ok := venue.(reserverSetter); ok {
		rs.SetReserver(led)
	}
	return venue, nil
}

func buildSignalModel(cfg config.Config, log *logging.Logger) orchestrator.SignalModelService {
	if cfg.SignalModelURL == "" {
		return signalmodel.ColdStart{}
	}
	return signalmodel.NewRemoteModel(log, signalmodel.WithBaseURL(cfg.SignalModelURL), signalmodel.WithHTTPTimeout(3*time.Second))
}

// unconfiguredMarketData is the out-of-the-box placeholder for the
// MarketDataSource capability (spec §1 — vendor adapters are external
// collaborators, out of scope for this core). Every call fails fast so
// a misconfigured deployment is loud rather than silently idle; a real
// deployment replaces this with a concrete vendor adapter satisfying
// market.MarketDataSource.
type unconfiguredMarketData struct{}

func (unconfiguredMarketData) Bars(ctx context.Context, symbol string, tf market.Timeframe, from, to time.Time) ([]market.Bar, error) {
	return nil, fmt.Errorf("market data: no MarketDataSource configured")
}
func (unconfiguredMarketData) Financials(ctx context.Context, symbol string, nQuarters int) ([]market.Financials, error) {
	return nil, fmt.Errorf("market data: no MarketDataSource configured")
}
func (unconfiguredMarketData) News(ctx context.Context, symbol string, limit int, since *time.Time) ([]market.NewsItem, error) {
	return nil, fmt.Errorf("market data: no MarketDataSource configured")
}
func (unconfiguredMarketData) Quote(ctx context.Context, symbol string) (market.Quote, error) {
	return market.Quote{}, fmt.Errorf("market data: no MarketDataSource configured")
}
func (unconfiguredMarketData) Search(ctx context.Context, query string, limit int) ([]market.Ticker, error) {
	return nil, fmt.Errorf("market data: no MarketDataSource configured")
}

// staticWatchlist seeds scans from nothing but the risk manager's open
// positions until an operator-configured watchlist source is wired in.
type staticWatchlist struct{}

func (staticWatchlist) ConfiguredSymbols() []string { return nil }
func (staticWatchlist) TopMovers(limit int) ([]string, error) { return nil, nil }

type noopNotifier struct{}

func (noopNotifier) Notify(report agent.DailyReport) error { return nil }
