// Package config loads and validates startup configuration from the
// environment (with .env support, the teacher's idiom for the same
// ALPACA_API_KEY-style variables in market/api_client.go). Any
// validation failure here means the process refuses to start (spec
// §7).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/N0tT1m/invest-iq-sub000/internal/agent"
	"github.com/N0tT1m/invest-iq-sub000/internal/risk"
)

// Venue selects which execution.Venue adapter cmd/agent constructs.
type Venue string

const (
	VenuePaper       Venue = "paper"
	VenueBinance     Venue = "binance"
	VenueHyperliquid Venue = "hyperliquid"
)

// Config is every startup-time tunable named in SPEC_FULL.md §10.2.
type Config struct {
	Risk  risk.RiskParameters
	Agent agent.Config

	Venue Venue

	LedgerDSN string

	SignalModelURL string // empty disables the optional SignalModelService

	LiveApproved     bool
	OperatorTOTPSecret string
	JWTSigningKey    []byte

	BinanceAPIKey    string
	BinanceAPISecret string

	HyperliquidPrivateKey  string
	HyperliquidWalletAddr  string
	HyperliquidTestnet     bool

	MarketDataRateLimitPerSecond float64
	MarketDataBurst             int

	LogLevel string

	SectorOf map[string]string
}

// Load reads .env (if present, silently ignored if not) then the
// process environment, and validates the result. A non-nil error means
// the caller must not start.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Risk:  risk.DefaultRiskParameters(),
		Agent: agent.DefaultConfig(),
		Venue: VenuePaper,
		LedgerDSN: "invest-iq.db",
		MarketDataRateLimitPerSecond: 5,
		MarketDataBurst:              10,
		LogLevel:                     "info",
		SectorOf:                     map[string]string{},
	}

	if v := os.Getenv("RISK_MAX_RISK_PER_TRADE_PCT"); v != "" {
		f, err := parseFloat("RISK_MAX_RISK_PER_TRADE_PCT", v)
		if err != nil {
			return cfg, err
		}
		cfg.Risk.MaxRiskPerTradePct = f
	}
	if v := os.Getenv("RISK_MAX_PORTFOLIO_RISK_PCT"); v != "" {
		f, err := parseFloat("RISK_MAX_PORTFOLIO_RISK_PCT", v)
		if err != nil {
			return cfg, err
		}
		cfg.Risk.MaxPortfolioRiskPct = f
	}
	if v := os.Getenv("RISK_MAX_POSITION_SIZE_PCT"); v != "" {
		f, err := parseFloat("RISK_MAX_POSITION_SIZE_PCT", v)
		if err != nil {
			return cfg, err
		}
		cfg.Risk.MaxPositionSizePct = f
	}
	if v := os.Getenv("RISK_MAX_OPEN_POSITIONS"); v != "" {
		n, err := parseInt("RISK_MAX_OPEN_POSITIONS", v)
		if err != nil {
			return cfg, err
		}
		cfg.Risk.MaxOpenPositions = n
	}
	if v := os.Getenv("RISK_TRAILING_STOP_ENABLED"); v != "" {
		cfg.Risk.TrailingStopEnabled = strings.EqualFold(v, "true")
	}
	if v := os.Getenv("RISK_DAILY_LOSS_HALT_PCT"); v != "" {
		f, err := parseFloat("RISK_DAILY_LOSS_HALT_PCT", v)
		if err != nil {
			return cfg, err
		}
		cfg.Risk.DailyLossHaltPct = f
	}
	if v := os.Getenv("RISK_DRAWDOWN_HALT_PCT"); v != "" {
		f, err := parseFloat("RISK_DRAWDOWN_HALT_PCT", v)
		if err != nil {
			return cfg, err
		}
		cfg.Risk.DrawdownHaltPct = f
	}

	if v := os.Getenv("AGENT_TICK_INTERVAL_SECONDS"); v != "" {
		n, err := parseInt("AGENT_TICK_INTERVAL_SECONDS", v)
		if err != nil {
			return cfg, err
		}
		cfg.Agent.TickInterval = time.Duration(n) * time.Second
	}
	if v := os.Getenv("AGENT_MAX_CONCURRENT_SCANS"); v != "" {
		n, err := parseInt("AGENT_MAX_CONCURRENT_SCANS", v)
		if err != nil {
			return cfg, err
		}
		cfg.Agent.MaxConcurrentScans = n
	}
	if v := os.Getenv("AGENT_ORDER_TIMEOUT_SECONDS"); v != "" {
		n, err := parseInt("AGENT_ORDER_TIMEOUT_SECONDS", v)
		if err != nil {
			return cfg, err
		}
		cfg.Agent.OrderTimeout = time.Duration(n) * time.Second
	}
	if v := os.Getenv("AGENT_PAPER_TRADING"); v != "" {
		cfg.Agent.PaperTrading = strings.EqualFold(v, "true")
	}

	if v := os.Getenv("EXECUTION_VENUE"); v != "" {
		cfg.Venue = Venue(v)
	}
	if v := os.Getenv("LEDGER_DSN"); v != "" {
		cfg.LedgerDSN = v
	}
	if v := os.Getenv("SIGNAL_MODEL_URL"); v != "" {
		cfg.SignalModelURL = v
	}

	cfg.LiveApproved = strings.EqualFold(os.Getenv("LIVE_APPROVED"), "true")
	cfg.OperatorTOTPSecret = os.Getenv("OPERATOR_TOTP_SECRET")
	cfg.JWTSigningKey = []byte(os.Getenv("JWT_SIGNING_KEY"))

	cfg.BinanceAPIKey = os.Getenv("BINANCE_API_KEY")
	cfg.BinanceAPISecret = os.Getenv("BINANCE_API_SECRET")

	cfg.HyperliquidPrivateKey = os.Getenv("HYPERLIQUID_PRIVATE_KEY")
	cfg.HyperliquidWalletAddr = os.Getenv("HYPERLIQUID_WALLET_ADDR")
	cfg.HyperliquidTestnet = strings.EqualFold(os.Getenv("HYPERLIQUID_TESTNET"), "true")

	if v := os.Getenv("MARKET_DATA_RATE_LIMIT_PER_SECOND"); v != "" {
		f, err := parseFloat("MARKET_DATA_RATE_LIMIT_PER_SECOND", v)
		if err != nil {
			return cfg, err
		}
		cfg.MarketDataRateLimitPerSecond = f
	}
	if v := os.Getenv("MARKET_DATA_BURST"); v != "" {
		n, err := parseInt("MARKET_DATA_BURST", v)
		if err != nil {
			return cfg, err
		}
		cfg.MarketDataBurst = n
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("SECTOR_MAP"); v != "" {
		sectorOf, err := parseSectorMap(v)
		if err != nil {
			return cfg, err
		}
		cfg.SectorOf = sectorOf
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// validate implements spec §7's "Configuration errors caught at
// startup". A live venue without fully-set credentials, or live
// approval without a JWT signing key, must never reach the tick loop.
func (c Config) validate() error {
	switch c.Venue {
	case VenuePaper, VenueBinance, VenueHyperliquid:
	default:
		return fmt.Errorf("config: unknown EXECUTION_VENUE %q", c.Venue)
	}
	if c.Venue == VenueBinance && (c.BinanceAPIKey == "" || c.BinanceAPISecret == "") {
		return fmt.Errorf("config: EXECUTION_VENUE=binance requires BINANCE_API_KEY and BINANCE_API_SECRET")
	}
	if c.Venue == VenueHyperliquid && (c.HyperliquidPrivateKey == "" || c.HyperliquidWalletAddr == "") {
		return fmt.Errorf("config: EXECUTION_VENUE=hyperliquid requires HYPERLIQUID_PRIVATE_KEY and HYPERLIQUID_WALLET_ADDR")
	}
	if c.LiveApproved && len(c.JWTSigningKey) == 0 {
		return fmt.Errorf("config: LIVE_APPROVED=true requires JWT_SIGNING_KEY")
	}
	if c.LiveApproved && c.OperatorTOTPSecret == "" {
		return fmt.Errorf("config: LIVE_APPROVED=true requires OPERATOR_TOTP_SECRET")
	}
	if c.Risk.MaxRiskPerTradePct <= 0 || c.Risk.MaxRiskPerTradePct > 100 {
		return fmt.Errorf("config: RISK_MAX_RISK_PER_TRADE_PCT must be in (0,100]")
	}
	if c.Risk.MaxOpenPositions <= 0 {
		return fmt.Errorf("config: RISK_MAX_OPEN_POSITIONS must be positive")
	}
	if c.Agent.TickInterval <= 0 {
		return fmt.Errorf("config: AGENT_TICK_INTERVAL_SECONDS must be positive")
	}
	if c.Agent.MaxConcurrentScans <= 0 {
		return fmt.Errorf("config: AGENT_MAX_CONCURRENT_SCANS must be positive")
	}
	if c.LedgerDSN == "" {
		return fmt.Errorf("config: LEDGER_DSN must not be empty")
	}
	return nil
}

func parseFloat(name, v string) (float64, error) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", name, err)
	}
	return f, nil
}

func parseInt(name, v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", name, err)
	}
	return n, nil
}

// parseSectorMap parses "AAPL:Technology,XOM:Energy" (Open Question
// #3's operator-configured symbol->sector mapping).
func parseSectorMap(v string) (map[string]string, error) {
	out := map[string]string{}
	for _, pair := range strings.Split(v, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, ":", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("config: SECTOR_MAP entry %q must be SYMBOL:Sector", pair)
		}
		out[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
	}
	return out, nil
}
