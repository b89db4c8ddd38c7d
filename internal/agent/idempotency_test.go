package agent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/N0tT1m/invest-iq-sub000/internal/money"
	"github.com/N0tT1m/invest-iq-sub000/internal/risk"
)

func TestIdempotencyKey_DeterministicForIdenticalInputs(t *testing.T) {
	ts := time.Date(2026, 3, 4, 9, 31, 17, 0, time.UTC)
	shares := money.SharesFromFloat(100)

	a := IdempotencyKey("AAPL", risk.Buy, shares, ts, "orchestrator_fused")
	b := IdempotencyKey("AAPL", risk.Buy, shares, ts, "orchestrator_fused")

	assert.Equal(t, a, b)
}

// Two timestamps within the same minute collide, since the key
// truncates to the minute (spec §6).
func TestIdempotencyKey_CollidesWithinTheSameMinute(t *testing.T) {
	shares := money.SharesFromFloat(100)
	t1 := time.Date(2026, 3, 4, 9, 31, 0, 0, time.UTC)
	t2 := time.Date(2026, 3, 4, 9, 31, 59, 0, time.UTC)

	a := IdempotencyKey("AAPL", risk.Buy, shares, t1, "orchestrator_fused")
	b := IdempotencyKey("AAPL", risk.Buy, shares, t2, "orchestrator_fused")

	assert.Equal(t, a, b)
}

func TestIdempotencyKey_DiffersAcrossMinuteBoundary(t *testing.T) {
	shares := money.SharesFromFloat(100)
	t1 := time.Date(2026, 3, 4, 9, 31, 59, 0, time.UTC)
	t2 := time.Date(2026, 3, 4, 9, 32, 0, 0, time.UTC)

	a := IdempotencyKey("AAPL", risk.Buy, shares, t1, "orchestrator_fused")
	b := IdempotencyKey("AAPL", risk.Buy, shares, t2, "orchestrator_fused")

	assert.NotEqual(t, a, b)
}

func TestIdempotencyKey_DiffersOnSide(t *testing.T) {
	ts := time.Now().UTC()
	shares := money.SharesFromFloat(100)

	buy := IdempotencyKey("AAPL", risk.Buy, shares, ts, "orchestrator_fused")
	sell := IdempotencyKey("AAPL", risk.Sell, shares, ts, "orchestrator_fused")

	assert.NotEqual(t, buy, sell)
}

// Shares are rounded to 6dp before hashing, so two quantities that only
// differ beyond the sixth decimal place collide by design.
func TestIdempotencyKey_RoundsSharesTo6dp(t *testing.T) {
	ts := time.Now().UTC()

	a := IdempotencyKey("AAPL", risk.Buy, money.SharesFromFloat(100.0000001), ts, "orchestrator_fused")
	b := IdempotencyKey("AAPL", risk.Buy, money.SharesFromFloat(100.0000002), ts, "orchestrator_fused")

	assert.Equal(t, a, b)
}

func TestIdempotencyKey_DiffersOnStrategy(t *testing.T) {
	ts := time.Now().UTC()
	shares := money.SharesFromFloat(100)

	a := IdempotencyKey("AAPL", risk.Buy, shares, ts, "orchestrator_fused")
	b := IdempotencyKey("AAPL", risk.Buy, shares, ts, "manual_override")

	assert.NotEqual(t, a, b)
}
