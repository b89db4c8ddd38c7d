// Package binance wraps github.com/adshao/go-binance/v2's futures
// client as an execution.Venue, grounded on the corpus's futures
// order-builder call shape (NewCreateOrderService().Symbol().Side()...).
package binance

import (
	"context"
	"fmt"

	"github.com/adshao/go-binance/v2/futures"

	"github.com/N0tT1m/invest-iq-sub000/internal/execution"
	"github.com/N0tT1m/invest-iq-sub000/internal/logging"
	"github.com/N0tT1m/invest-iq-sub000/internal/money"
)

type Venue struct {
	client   *futures.Client
	log      *logging.Logger
	reserver execution.IdempotencyReserver
}

func New(apiKey, apiSecret string, log *logging.Logger) *Venue {
	return &Venue{client: futures.NewClient(apiKey, apiSecret), log: log}
}

// SetReserver wires the ledger's idempotency table in ahead of
// Binance's own NewClientOrderID dedup, so a resubmitted ticket is
// caught before a second network call rather than relying solely on
// venue-side dedup (spec §6).
func (v *Venue) SetReserver(r execution.IdempotencyReserver) { v.reserver = r }

func (v *Venue) Name() string { return "binance" }

func (v *Venue) Submit(ctx context.Context, order execution.Order) (execution.Fill, error) {
	side := futures.SideTypeBuy
	if order.Side == "Sell" {
		side = futures.SideTypeSell
	}

	return execution.ReserveOrReturnExisting(ctx, v.reserver, order.IdempotencyKey, func(ctx context.Context) (execution.Fill, error) {
		resp, err := v.client.NewCreateOrderService().
			Symbol(order.Symbol).
			Side(side).
			Type(futures.OrderTypeMarket).
			Quantity(order.Shares.String()).
			NewClientOrderID(order.IdempotencyKey).
			Do(ctx)
		if err != nil {
			return execution.Fill{}, fmt.Errorf("binance: submit %s: %w", order.Symbol, err)
		}
		return fillFromOrder(resp.OrderID, string(resp.Status), order.Shares), nil
	})
}

func (v *Venue) OrderStatus(ctx context.Context, venueOrderID string) (execution.Fill, error) {
	return execution.Fill{}, fmt.Errorf("binance: order status lookup requires symbol; use Submit's returned fill")
}

func (v *Venue) Cancel(ctx context.Context, venueOrderID string) error {
	return fmt.Errorf("binance: cancel requires symbol context, not supported via venue order id alone")
}

func fillFromOrder(orderID int64, status string, requestedShares money.Shares) execution.Fill {
	s := execution.StatusNew
	switch status {
	case "FILLED":
		s = execution.StatusFilled
	case "PARTIALLY_FILLED":
		s = execution.StatusPartial
	case "REJECTED", "EXPIRED":
		s = execution.StatusRejected
	case "CANCELED":
		s = execution.StatusCanceled
	}
	return execution.Fill{VenueOrderID: fmt.Sprintf("%d", orderID), Status: s, FilledShares: requestedShares}
}

var _ execution.Venue = (*Venue)(nil)
