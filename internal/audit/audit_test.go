package audit

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
)

func newTestLog() *Log {
	sink, _ := test.NewNullLogger()
	sink.SetLevel(logrus.InfoLevel)
	return New(sink)
}

func TestAppend_ChainsFromGenesis(t *testing.T) {
	l := newTestLog()

	assert.NoError(t, l.Append("RiskAccepted", map[string]any{"symbol": "AAPL"}))
	records := l.Records()

	assert.Len(t, records, 1)
	assert.Equal(t, GenesisHash, records[0].PrevHash)
	assert.NotEmpty(t, records[0].NewHash)
}

func TestAppend_EachRecordLinksToThePrevious(t *testing.T) {
	l := newTestLog()

	assert.NoError(t, l.Append("RiskAccepted", map[string]any{"symbol": "AAPL"}))
	assert.NoError(t, l.Append("PositionOpened", map[string]any{"symbol": "AAPL", "shares": "100"}))
	assert.NoError(t, l.Append("PositionClosed", map[string]any{"symbol": "AAPL", "kind": "StopLoss"}))

	records := l.Records()
	assert.Len(t, records, 3)
	assert.Equal(t, records[0].NewHash, records[1].PrevHash)
	assert.Equal(t, records[1].NewHash, records[2].PrevHash)
}

// ChainValid re-derives every hash; an untampered chain must verify.
func TestChainValid_AcceptsAnUntamperedChain(t *testing.T) {
	l := newTestLog()
	for i := 0; i < 5; i++ {
		assert.NoError(t, l.Append("CircuitBreakerTripped", map[string]any{"i": i}))
	}

	assert.True(t, ChainValid(l.Records()))
}

// A single mutated payload after the fact must invalidate the chain
// from that record forward (the AuditChainBreak invariant).
func TestChainValid_DetectsATamperedPayload(t *testing.T) {
	l := newTestLog()
	assert.NoError(t, l.Append("RiskAccepted", map[string]any{"symbol": "AAPL"}))
	assert.NoError(t, l.Append("PositionOpened", map[string]any{"symbol": "AAPL"}))

	records := l.Records()
	records[0].Payload = `{"symbol":"TAMPERED"}`

	assert.False(t, ChainValid(records))
}

func TestChainValid_DetectsABrokenLink(t *testing.T) {
	l := newTestLog()
	assert.NoError(t, l.Append("RiskAccepted", map[string]any{"symbol": "AAPL"}))
	assert.NoError(t, l.Append("PositionOpened", map[string]any{"symbol": "AAPL"}))

	records := l.Records()
	records[1].PrevHash = "not-the-real-prev-hash"

	assert.False(t, ChainValid(records))
}

func TestChainValid_EmptyChainIsValid(t *testing.T) {
	assert.True(t, ChainValid(nil))
}
