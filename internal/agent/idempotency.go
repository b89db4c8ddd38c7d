package agent

import (
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/N0tT1m/invest-iq-sub000/internal/money"
	"github.com/N0tT1m/invest-iq-sub000/internal/risk"
)

// IdempotencyKey computes the stable hash described in spec §6:
// H(symbol | side | quantity rounded to 6dp | minute-truncated
// timestamp | strategy). Two OrderTickets for the same symbol, side,
// quantity, strategy, and minute collide on this key by design.
func IdempotencyKey(symbol string, side risk.Side, shares money.Shares, ts time.Time, strategy string) string {
	minuteEpoch := ts.Truncate(time.Minute).Unix()
	raw := fmt.Sprintf("%s|%s|%s|%d|%s", symbol, side, shares.RoundTo6dp(), minuteEpoch, strategy)
	h := blake2b.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}
