// Package hyperliquid wraps github.com/sonirico/go-hyperliquid as a
// second concrete execution.Venue, exercising a distinct wire protocol
// from the binance adapter (SPEC_FULL.md §11.3). No call-site usage of
// this dependency was present in the retrieval pack; the client shape
// below follows the SDK's own exchange-client constructor convention.
package hyperliquid

import (
	"context"
	"fmt"

	hl "github.com/sonirico/go-hyperliquid"

	"github.com/N0tT1m/invest-iq-sub000/internal/execution"
	"github.com/N0tT1m/invest-iq-sub000/internal/logging"
)

type Venue struct {
	client   *hl.Exchange
	log      *logging.Logger
	reserver execution.IdempotencyReserver
}

func New(privateKey, walletAddr string, testnet bool, log *logging.Logger) (*Venue, error) {
	client, err := hl.NewExchange(hl.ExchangeConfig{
		PrivateKey: privateKey,
		Address:    walletAddr,
		Testnet:    testnet,
	})
	if err != nil {
		return nil, fmt.Errorf("hyperliquid: client init: %w", err)
	}
	return &Venue{client: client, log: log}, nil
}

// SetReserver wires the ledger's idempotency table in ahead of
// Hyperliquid's own ClientID dedup, so a resubmitted ticket is caught
// before a second network call rather than relying solely on
// venue-side dedup (spec §6).
func (v *Venue) SetReserver(r execution.IdempotencyReserver) { v.reserver = r }

func (v *Venue) Name() string { return "hyperliquid" }

func (v *Venue) Submit(ctx context.Context, order execution.Order) (execution.Fill, error) {
	isBuy := order.Side == "Buy"
	return execution.ReserveOrReturnExisting(ctx, v.reserver, order.IdempotencyKey, func(ctx context.Context) (execution.Fill, error) {
		resp, err := v.client.MarketOrder(ctx, hl.MarketOrderRequest{
			Coin:     order.Symbol,
			IsBuy:    isBuy,
			Size:     order.Shares.Float64(),
			ClientID: order.IdempotencyKey,
		})
		if err != nil {
			return execution.Fill{}, fmt.Errorf("hyperliquid: submit %s: %w", order.Symbol, err)
		}
		return execution.Fill{
			VenueOrderID: resp.OrderID,
			Status:       execution.StatusFilled,
			FilledShares: order.Shares,
		}, nil
	})
}

func (v *Venue) OrderStatus(ctx context.Context, venueOrderID string) (execution.Fill, error) {
	status, err := v.client.OrderStatus(ctx, venueOrderID)
	if err != nil {
		return execution.Fill{}, fmt.Errorf("hyperliquid: order status %s: %w", venueOrderID, err)
	}
	return execution.Fill{VenueOrderID: venueOrderID, Status: execution.OrderStatus(status.Status)}, nil
}

func (v *Venue) Cancel(ctx context.Context, venueOrderID string) error {
	return v.client.CancelOrder(ctx, venueOrderID)
}

var _ execution.Venue = (*Venue)(nil)
