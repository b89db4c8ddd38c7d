// Package audit implements the hash-chained, tamper-evident record log
// required by spec §6: each record's new_hash commits to the previous
// record's hash, its own timestamp, event type, and canonical JSON
// payload.
package audit

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/blake2b"
)

// Record is one entry in the chain.
type Record struct {
	PrevHash  string `json:"prev_hash"`
	Timestamp string `json:"timestamp_utc_iso8601"`
	EventType string `json:"event_type"`
	Payload   string `json:"payload_json_canonical"`
	NewHash   string `json:"new_hash"`
}

// GenesisHash seeds the chain before any record exists.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000"

// Log is an append-only hash chain. Writes are serialized under mu so
// new_hash always commits to the true previous record, even under
// concurrent callers.
type Log struct {
	mu       sync.Mutex
	lastHash string
	sink     *logrus.Logger
	records  []Record // in-memory mirror for ChainValid/tests; the sink is the durable copy
}

// New builds a Log writing JSON-formatted records to sink via logrus, the
// distinct audit stream described alongside internal/logging.
func New(sink *logrus.Logger) *Log {
	sink.SetFormatter(&logrus.JSONFormatter{})
	return &Log{lastHash: GenesisHash, sink: sink}
}

// Append implements risk.Auditor (and the agent/ledger's equivalent
// narrow interfaces) so callers across packages can depend on this
// without importing internal/audit directly.
func (l *Log) Append(eventType string, payload map[string]any) error {
	canonical, err := canonicalJSON(payload)
	if err != nil {
		return fmt.Errorf("audit: marshal payload: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	ts := time.Now().UTC().Format(time.RFC3339Nano)
	newHash := chainHash(l.lastHash, ts, eventType, canonical)

	rec := Record{
		PrevHash:  l.lastHash,
		Timestamp: ts,
		EventType: eventType,
		Payload:   canonical,
		NewHash:   newHash,
	}
	l.records = append(l.records, rec)
	l.lastHash = newHash

	l.sink.WithFields(logrus.Fields{
		"prev_hash":  rec.PrevHash,
		"event_type": rec.EventType,
		"payload":    rec.Payload,
		"new_hash":   rec.NewHash,
	}).Info("audit")
	return nil
}

// canonicalJSON produces a deterministic serialization: keys sorted,
// no whitespace. encoding/json already sorts map keys on marshal.
func canonicalJSON(payload map[string]any) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func chainHash(prevHash, timestamp, eventType, payload string) string {
	h := blake2b.Sum256([]byte(prevHash + timestamp + eventType + payload))
	return hex.EncodeToString(h[:])
}

// Records returns a snapshot copy of every record appended so far, for
// chain-integrity verification (testable property 10).
func (l *Log) Records() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

// ChainValid re-derives every new_hash and checks prev_hash linkage,
// detecting the AuditChainBreak invariant violation.
func ChainValid(records []Record) bool {
	prev := GenesisHash
	for _, r := range records {
		if r.PrevHash != prev {
			return false
		}
		if chainHash(r.PrevHash, r.Timestamp, r.EventType, r.Payload) != r.NewHash {
			return false
		}
		prev = r.NewHash
	}
	return true
}
