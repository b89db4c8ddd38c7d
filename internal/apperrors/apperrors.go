// Package apperrors defines the typed error taxonomy from the error
// handling design: data errors, transport errors, risk-gate rejections,
// execution errors, and invariant violations. Callers branch on class
// with errors.As rather than string matching.
package apperrors

import "fmt"

type DataErrorKind string

const (
	InsufficientData   DataErrorKind = "InsufficientData"
	MissingFundamentals DataErrorKind = "MissingFundamentals"
	StaleQuote         DataErrorKind = "StaleQuote"
)

type DataError struct {
	Kind   DataErrorKind
	Symbol string
	Detail string
}

func (e *DataError) Error() string {
	return fmt.Sprintf("data error %s for %s: %s", e.Kind, e.Symbol, e.Detail)
}

func NewDataError(kind DataErrorKind, symbol, detail string) *DataError {
	return &DataError{Kind: kind, Symbol: symbol, Detail: detail}
}

type TransportErrorKind string

const (
	Timeout     TransportErrorKind = "Timeout"
	RateLimited TransportErrorKind = "RateLimited"
	Upstream    TransportErrorKind = "Upstream"
)

type TransportError struct {
	Kind TransportErrorKind
	Err  error
}

func (e *TransportError) Error() string { return fmt.Sprintf("transport error %s: %v", e.Kind, e.Err) }
func (e *TransportError) Unwrap() error  { return e.Err }

func NewTransportError(kind TransportErrorKind, err error) *TransportError {
	return &TransportError{Kind: kind, Err: err}
}

type RiskRejectionKind string

const (
	LowConfidence        RiskRejectionKind = "LowConfidence"
	LowWinRate           RiskRejectionKind = "LowWinRate"
	ExceedsTradeRisk     RiskRejectionKind = "ExceedsTradeRisk"
	ExceedsPortfolioRisk RiskRejectionKind = "ExceedsPortfolioRisk"
	SectorConcentration  RiskRejectionKind = "SectorConcentration"
	PositionsCapped      RiskRejectionKind = "PositionsCapped"
	DuplicatePosition    RiskRejectionKind = "DuplicatePosition"
	Halted               RiskRejectionKind = "Halted"
)

type RiskRejection struct {
	Kind   RiskRejectionKind
	Detail string
}

func (e *RiskRejection) Error() string { return fmt.Sprintf("risk rejection %s: %s", e.Kind, e.Detail) }

func NewRiskRejection(kind RiskRejectionKind, detail string) *RiskRejection {
	return &RiskRejection{Kind: kind, Detail: detail}
}

type ExecutionErrorKind string

const (
	OrderRejected          ExecutionErrorKind = "OrderRejected"
	InsufficientBuyingPower ExecutionErrorKind = "InsufficientBuyingPower"
	VenueUnavailable       ExecutionErrorKind = "VenueUnavailable"
)

type ExecutionError struct {
	Kind ExecutionErrorKind
	Err  error
}

func (e *ExecutionError) Error() string { return fmt.Sprintf("execution error %s: %v", e.Kind, e.Err) }
func (e *ExecutionError) Unwrap() error  { return e.Err }

func NewExecutionError(kind ExecutionErrorKind, err error) *ExecutionError {
	return &ExecutionError{Kind: kind, Err: err}
}

type InvariantViolationKind string

const (
	DuplicateIdempotencyKey   InvariantViolationKind = "DuplicateIdempotencyKey"
	InconsistentPositionState InvariantViolationKind = "InconsistentPositionState"
	AuditChainBreak           InvariantViolationKind = "AuditChainBreak"
)

// InvariantViolation is fatal to the current tick and trips agent safe mode.
type InvariantViolation struct {
	Kind   InvariantViolationKind
	Detail string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violation %s: %s", e.Kind, e.Detail)
}

func NewInvariantViolation(kind InvariantViolationKind, detail string) *InvariantViolation {
	return &InvariantViolation{Kind: kind, Detail: detail}
}
