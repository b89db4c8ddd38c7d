// Package execution defines the ExecutionVenue capability (spec §6)
// and selects a concrete adapter by configuration, mirroring the
// teacher's exchange-switch dispatch in NewAutoTrader.
package execution

import (
	"context"
	"fmt"

	"github.com/N0tT1m/invest-iq-sub000/internal/money"
)

type OrderStatus string

const (
	StatusNew      OrderStatus = "New"
	StatusFilled   OrderStatus = "Filled"
	StatusPartial  OrderStatus = "PartiallyFilled"
	StatusRejected OrderStatus = "Rejected"
	StatusCanceled OrderStatus = "Canceled"
)

// Order is the venue-facing request built from a risk.OrderTicket.
type Order struct {
	Symbol         string
	Side           string // "Buy" | "Sell"
	Shares         money.Shares
	IdempotencyKey string
}

// Fill is the venue's response to submit.
type Fill struct {
	VenueOrderID string
	Status       OrderStatus
	FilledShares money.Shares
	FilledPrice  money.Money
}

// Venue is the ExecutionVenue capability (spec §6): submit MUST be
// idempotent on the order's idempotency key.
type Venue interface {
	Submit(ctx context.Context, order Order) (Fill, error)
	OrderStatus(ctx context.Context, venueOrderID string) (Fill, error)
	Cancel(ctx context.Context, venueOrderID string) error
	Name() string
}

// IdempotencyReserver is the narrow ledger dependency every real venue
// adapter consults before placing an order, never relying solely on
// venue-side dedup (SPEC_FULL.md §11.3). reserved is false when the
// key was already claimed and unexpired — Submit MUST treat that as a
// no-op, not a duplicate order. VenueOrderIDFor/RecordVenueOrderID let
// a duplicate Submit answer with the original venue order id even
// across a process restart, which an in-memory-only dedup map cannot.
type IdempotencyReserver interface {
	ReserveIdempotencyKeySimple(ctx context.Context, key string) (reserved bool, err error)
	VenueOrderIDFor(ctx context.Context, key string) (venueOrderID string, found bool, err error)
	RecordVenueOrderID(ctx context.Context, key, venueOrderID string) error
}

// ReserveOrReturnExisting is the shared dedup wrapper every real venue
// adapter's Submit runs placeFn through. When reserver is nil (no
// ledger configured, e.g. in unit tests) it just calls placeFn. When a
// reserver is configured: a fresh key runs placeFn and persists the
// resulting venue order id; a key already claimed and recorded returns
// that order id without calling placeFn at all (spec §6/testable
// property 7 — "exactly one venue order" across any number of
// resubmissions, including ones after a crash). A key claimed but
// never recorded (the process crashed between reserving and
// recording) falls through to placeFn and relies on the venue's own
// client-order-id dedup as the crash-recovery backstop.
func ReserveOrReturnExisting(ctx context.Context, reserver IdempotencyReserver, key string, placeFn func(ctx context.Context) (Fill, error)) (Fill, error) {
	if reserver == nil {
		return placeFn(ctx)
	}

	reserved, err := reserver.ReserveIdempotencyKeySimple(ctx, key)
	if err != nil {
		return Fill{}, fmt.Errorf("execution: idempotency reservation: %w", err)
	}
	if !reserved {
		venueOrderID, found, err := reserver.VenueOrderIDFor(ctx, key)
		if err != nil {
			return Fill{}, fmt.Errorf("execution: idempotency lookup: %w", err)
		}
		if found {
			return Fill{VenueOrderID: venueOrderID, Status: StatusFilled}, nil
		}
	}

	fill, err := placeFn(ctx)
	if err != nil {
		return Fill{}, err
	}
	if err := reserver.RecordVenueOrderID(ctx, key, fill.VenueOrderID); err != nil {
		return Fill{}, fmt.Errorf("execution: persisting venue order id: %w", err)
	}
	return fill, nil
}

// Concrete adapters live in their own subpackages (paper, binance,
// hyperliquid) — cmd/agent's composition root performs the
// config-switch dispatch described in SPEC_FULL.md §11.3 over them
// directly, since each adapter pulls in a distinct, heavy third-party
// SDK that this capability interface itself should not depend on.
