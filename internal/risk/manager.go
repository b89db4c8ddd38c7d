package risk

import (
	"fmt"
	"sync"
	"time"

	"github.com/N0tT1m/invest-iq-sub000/internal/apperrors"
	"github.com/N0tT1m/invest-iq-sub000/internal/logging"
	"github.com/N0tT1m/invest-iq-sub000/internal/money"
)

// Auditor is the narrow append-only sink the Risk Manager writes state
// transitions to (spec §4.3's hash-chained audit log). Defined here,
// the consumer, so internal/audit implements it without an import
// cycle.
type Auditor interface {
	Append(eventType string, payload map[string]any) error
}

// WinRateProvider supplies a strategy's historical win rate and sample
// count for the pre_trade_check win-rate floor (spec §4.3 item 3).
type WinRateProvider interface {
	WinRate(strategy string) (rate float64, samples int, ok bool)
}

// Manager is the Risk Manager. All state mutations are serialized under
// mu (the single logical lock, spec §5); reads return snapshot copies
// taken under mu.
type Manager struct {
	mu         sync.Mutex
	params     RiskParameters
	positions  map[string]*ActiveRiskPosition // keyed by symbol; at most one Active per key
	breaker    CircuitBreakerState
	sectorExposure map[string]money.Money
	grossExposure  money.Money
	winRates   WinRateProvider
	audit      Auditor
	log        *logging.Logger
	sectorOf   map[string]string // operator-configured canonical symbol->sector mapping (Open Question #3)
}

func NewManager(params RiskParameters, startingEquity money.Money, winRates WinRateProvider, audit Auditor, log *logging.Logger, sectorOf map[string]string) *Manager {
	return &Manager{
		params:    params,
		positions: make(map[string]*ActiveRiskPosition),
		breaker: CircuitBreakerState{
			PeakEquity: startingEquity,
		},
		sectorExposure: make(map[string]money.Money),
		winRates:       winRates,
		audit:          audit,
		log:            log,
		sectorOf:       sectorOf,
	}
}

func (m *Manager) auditf(eventType string, payload map[string]any) {
	if m.audit == nil {
		return
	}
	if err := m.audit.Append(eventType, payload); err != nil {
		m.log.Errorf("audit append failed for %s: %v", eventType, err)
	}
}

// PreTradeCheck implements spec §4.3's pre_trade_check operation.
func (m *Manager) PreTradeCheck(proposal TradeProposal, accountEquity money.Money) Decision {
	m.mu.Lock()
	defer m.mu.Unlock()

	reject := func(kind apperrors.RiskRejectionKind, detail string) Decision {
		m.auditf("RiskRejected", map[string]any{"symbol": proposal.Symbol, "reason": string(kind), "detail": detail})
		return Decision{Accepted: false, Reason: detail}
	}

	if m.breaker.SafeMode {
		return reject(apperrors.Halted, "agent is in safe mode pending operator acknowledgement of an invariant violation")
	}
	if m.breaker.Halted {
		return reject(apperrors.Halted, fmt.Sprintf("circuit breaker halted: %s", m.breaker.HaltReason))
	}
	if proposal.CalibratedConfidence < m.params.MinConfidenceThreshold {
		return reject(apperrors.LowConfidence, fmt.Sprintf("calibrated confidence %.2f below threshold %.2f", proposal.CalibratedConfidence, m.params.MinConfidenceThreshold))
	}
	if rate, samples, ok := m.winRateFor(proposal.StrategyName); ok {
		if samples >= m.params.MinWinRateSamples && rate < m.params.MinWinRateThreshold {
			return reject(apperrors.LowWinRate, fmt.Sprintf("win rate %.2f below threshold %.2f over %d samples", rate, m.params.MinWinRateThreshold, samples))
		}
	}
	// Open Question #2: win_rate unknown (no provider, or too few
	// samples) is NOT a gating reason — falls through as a pass.

	if proposal.RiskAmount.GreaterThan(accountEquity.Mul(m.params.MaxRiskPerTradePct / 100.0)) {
		return reject(apperrors.ExceedsTradeRisk, "proposal risk amount exceeds per-trade risk budget")
	}

	notional := proposal.EntryPrice.Mul(proposal.Shares.Float64())
	if m.grossExposure.Add(notional).GreaterThan(accountEquity.Mul(m.params.MaxGrossExposure)) {
		return reject(apperrors.ExceedsPortfolioRisk, "trade would exceed max gross exposure")
	}

	sector := m.sectorOf[proposal.Symbol]
	if sector != "" {
		existing := m.sectorExposure[sector]
		if existing.Add(notional).GreaterThan(accountEquity.Mul(m.params.MaxSectorConcentration)) {
			return reject(apperrors.SectorConcentration, fmt.Sprintf("sector %q concentration would exceed limit", sector))
		}
	}

	openCount := 0
	for _, p := range m.positions {
		if p.Status == Active {
			openCount++
		}
	}
	if openCount >= m.params.MaxOpenPositions {
		return reject(apperrors.PositionsCapped, fmt.Sprintf("open position count %d at cap %d", openCount, m.params.MaxOpenPositions))
	}

	if existing, ok := m.positions[proposal.Symbol]; ok && existing.Status == Active {
		return reject(apperrors.DuplicatePosition, "an active position for this symbol already exists")
	}

	if m.breaker.ConsecutiveLosses >= 3 {
		proposal.Shares = proposal.Shares.Mul(0.5)
		proposal.RiskAmount = proposal.RiskAmount.Mul(0.5)
	}

	m.auditf("RiskAccepted", map[string]any{"symbol": proposal.Symbol, "shares": proposal.Shares.String(), "risk_amount": proposal.RiskAmount.String()})
	return Decision{Accepted: true, Proposal: proposal}
}

func (m *Manager) winRateFor(strategy string) (float64, int, bool) {
	if m.winRates == nil {
		return 0, 0, false
	}
	return m.winRates.WinRate(strategy)
}

// OnFill implements spec §4.3's on_fill operation.
func (m *Manager) OnFill(symbol string, side Side, fillPrice money.Money, fillQty money.Shares, stopLoss, takeProfit money.Money, riskAmount money.Money, trailingEnabled bool) *ActiveRiskPosition {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos := &ActiveRiskPosition{
		Symbol:          symbol,
		Shares:          fillQty,
		EntryPrice:      fillPrice,
		EntryTime:       time.Now().UTC(),
		StopLoss:        stopLoss,
		TakeProfit:      takeProfit,
		TrailingEnabled: trailingEnabled,
		MaxPriceSeen:    fillPrice,
		MinPriceSeen:    fillPrice,
		Side:            side,
		RiskAmount:      riskAmount,
		Status:          Active,
	}
	m.positions[symbol] = pos

	notional := fillPrice.Mul(fillQty.Float64())
	m.grossExposure = m.grossExposure.Add(notional)
	if sector := m.sectorOf[symbol]; sector != "" {
		m.sectorExposure[sector] = m.sectorExposure[sector].Add(notional)
	}

	m.auditf("PositionOpened", map[string]any{"symbol": symbol, "side": string(side), "shares": fillQty.String(), "entry_price": fillPrice.String()})
	return pos
}

// Positions returns a snapshot copy of all positions, taken under mu.
func (m *Manager) Positions() []ActiveRiskPosition {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ActiveRiskPosition, 0, len(m.positions))
	for _, p := range m.positions {
		out = append(out, *p)
	}
	return out
}

func (m *Manager) BreakerState() CircuitBreakerState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.breaker
}

func (m *Manager) Params() RiskParameters {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.params
}

func (m *Manager) UpdateRiskParams(partial func(*RiskParameters)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	partial(&m.params)
	m.auditf("RiskParamsUpdated", map[string]any{})
}

// ManualHalt and ClearHalt implement the Operator surface's halt
// controls (spec §6). Per the Open Questions decision recorded in
// DESIGN.md, halt clears ONLY via explicit operator action.
func (m *Manager) ManualHalt(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	m.breaker.Halted = true
	m.breaker.HaltReason = ManualHalt
	m.breaker.LastHaltTime = &now
	m.auditf("ManualHalt", map[string]any{"reason": reason})
}

func (m *Manager) ClearHalt() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.breaker.Halted = false
	m.breaker.HaltReason = NoHalt
	m.auditf("HaltCleared", map[string]any{})
}

// AcknowledgeSafeMode clears safe mode. Requires the operator to name
// the violation being acknowledged, per spec §7's "operator
// intervention" requirement for invariant violations.
func (m *Manager) AcknowledgeSafeMode(acknowledgedDetail string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.breaker.SafeModeDetail != acknowledgedDetail {
		return
	}
	m.breaker.SafeMode = false
	m.breaker.SafeModeDetail = ""
	m.auditf("SafeModeCleared", map[string]any{"detail": acknowledgedDetail})
}

func (m *Manager) EnterSafeMode(detail string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.breaker.SafeMode = true
	m.breaker.SafeModeDetail = detail
	m.auditf("SafeModeEntered", map[string]any{"detail": detail})
}
