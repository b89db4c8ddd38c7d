package paper

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/N0tT1m/invest-iq-sub000/internal/execution"
	"github.com/N0tT1m/invest-iq-sub000/internal/money"
)

func fixedPrice(p float64) PriceSource {
	return func(ctx context.Context, symbol string) (money.Money, error) {
		return money.MoneyFromFloat(p), nil
	}
}

func TestSubmit_FillsAtTheQuotedPrice(t *testing.T) {
	v := New(fixedPrice(150.25))

	fill, err := v.Submit(context.Background(), execution.Order{
		Symbol: "AAPL", Side: "Buy", Shares: money.SharesFromFloat(10), IdempotencyKey: "k1",
	})

	assert.NoError(t, err)
	assert.Equal(t, execution.StatusFilled, fill.Status)
	assert.Equal(t, 150.25, fill.FilledPrice.Float64())
	assert.Equal(t, 10.0, fill.FilledShares.Float64())
	assert.NotEmpty(t, fill.VenueOrderID)
}

// Submit MUST be idempotent on the order's idempotency key: a second
// call with the same key returns the original fill rather than
// executing a duplicate order (spec §6).
func TestSubmit_DuplicateIdempotencyKeyReturnsSameFill(t *testing.T) {
	calls := 0
	prices := PriceSource(func(ctx context.Context, symbol string) (money.Money, error) {
		calls++
		return money.MoneyFromFloat(100), nil
	})
	v := New(prices)

	first, err := v.Submit(context.Background(), execution.Order{Symbol: "AAPL", Side: "Buy", Shares: money.SharesFromFloat(5), IdempotencyKey: "dup"})
	assert.NoError(t, err)

	second, err := v.Submit(context.Background(), execution.Order{Symbol: "AAPL", Side: "Buy", Shares: money.SharesFromFloat(999), IdempotencyKey: "dup"})
	assert.NoError(t, err)

	assert.Equal(t, first.VenueOrderID, second.VenueOrderID)
	assert.Equal(t, first.FilledShares.Float64(), second.FilledShares.Float64())
	assert.Equal(t, 1, calls) // the price source is never consulted twice for the same key
}

func TestSubmit_PropagatesPriceSourceErrors(t *testing.T) {
	v := New(func(ctx context.Context, symbol string) (money.Money, error) {
		return money.Money{}, errors.New("quote unavailable")
	})

	_, err := v.Submit(context.Background(), execution.Order{Symbol: "AAPL", Side: "Buy", Shares: money.SharesFromFloat(1), IdempotencyKey: "k"})
	assert.Error(t, err)
}

func TestOrderStatus_RoundTripsAFilledOrder(t *testing.T) {
	v := New(fixedPrice(50))
	fill, err := v.Submit(context.Background(), execution.Order{Symbol: "MSFT", Side: "Sell", Shares: money.SharesFromFloat(3), IdempotencyKey: "k2"})
	assert.NoError(t, err)

	status, err := v.OrderStatus(context.Background(), fill.VenueOrderID)
	assert.NoError(t, err)
	assert.Equal(t, fill, status)
}

func TestOrderStatus_UnknownOrderErrors(t *testing.T) {
	v := New(fixedPrice(50))
	_, err := v.OrderStatus(context.Background(), "never-submitted")
	assert.Error(t, err)
}

func TestCancel_IsANoOp(t *testing.T) {
	v := New(fixedPrice(50))
	assert.NoError(t, v.Cancel(context.Background(), "whatever"))
}

func TestName(t *testing.T) {
	assert.Equal(t, "paper", New(fixedPrice(1)).Name())
}
