// Package paper is the in-memory fill simulator, the default and test
// venue: cmd/agent selects it whenever Config.Venue names neither
// binance nor hyperliquid. The paper_trading setting does not choose
// the venue.
package paper

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/N0tT1m/invest-iq-sub000/internal/execution"
	"github.com/N0tT1m/invest-iq-sub000/internal/money"
)

// PriceSource supplies the fill price for a symbol, typically the
// market data capability's latest quote.
type PriceSource func(ctx context.Context, symbol string) (money.Money, error)

type Venue struct {
	mu       sync.Mutex
	prices   PriceSource
	seen     map[string]execution.Fill // idempotency key -> fill, in-process fast path
	orders   map[string]execution.Fill // venue order id -> fill
	reserver execution.IdempotencyReserver
}

func New(prices PriceSource) *Venue {
	return &Venue{
		prices: prices,
		seen:   make(map[string]execution.Fill),
		orders: make(map[string]execution.Fill),
	}
}

// SetReserver wires the ledger's idempotency table into Submit so a
// duplicate order survives a process restart, not just the in-memory
// seen map (spec §4.4's crash-and-restart persistence requirement).
func (v *Venue) SetReserver(r execution.IdempotencyReserver) { v.reserver = r }

func (v *Venue) Name() string { return "paper" }

func (v *Venue) Submit(ctx context.Context, order execution.Order) (execution.Fill, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if fill, ok := v.seen[order.IdempotencyKey]; ok {
		return fill, nil
	}

	fill, err := execution.ReserveOrReturnExisting(ctx, v.reserver, order.IdempotencyKey, func(ctx context.Context) (execution.Fill, error) {
		price, err := v.prices(ctx, order.Symbol)
		if err != nil {
			return execution.Fill{}, fmt.Errorf("paper: price lookup for %s: %w", order.Symbol, err)
		}
		f := execution.Fill{
			VenueOrderID: uuid.NewString(),
			Status:       execution.StatusFilled,
			FilledShares: order.Shares,
			FilledPrice:  price,
		}
		v.orders[f.VenueOrderID] = f
		return f, nil
	})
	if err != nil {
		return execution.Fill{}, err
	}
	v.seen[order.IdempotencyKey] = fill
	return fill, nil
}

func (v *Venue) OrderStatus(ctx context.Context, venueOrderID string) (execution.Fill, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fill, ok := v.orders[venueOrderID]
	if !ok {
		return execution.Fill{}, fmt.Errorf("paper: unknown order %s", venueOrderID)
	}
	return fill, nil
}

func (v *Venue) Cancel(ctx context.Context, venueOrderID string) error {
	// fills are synchronous in the simulator; nothing to cancel once submitted.
	return nil
}

var _ execution.Venue = (*Venue)(nil)
