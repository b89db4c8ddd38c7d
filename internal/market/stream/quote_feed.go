// Package stream implements a push-quote subscription over
// gorilla/websocket that feeds the Risk Manager's tick(quote_updates)
// operation, generalizing the single-symbol pattern used throughout the
// teacher corpus into a per-symbol registry.
package stream

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/N0tT1m/invest-iq-sub000/internal/logging"
	"github.com/N0tT1m/invest-iq-sub000/internal/market"
	"github.com/N0tT1m/invest-iq-sub000/internal/money"
)

// QuoteFeed maintains a single websocket connection and fans out
// decoded quotes to per-symbol subscribers.
type QuoteFeed struct {
	url    string
	log    *logging.Logger
	mu     sync.RWMutex
	subs   map[string][]chan market.Quote
	dialer *websocket.Dialer
}

func NewQuoteFeed(url string, log *logging.Logger) *QuoteFeed {
	return &QuoteFeed{
		url:    url,
		log:    log,
		subs:   make(map[string][]chan market.Quote),
		dialer: websocket.DefaultDialer,
	}
}

// Subscribe returns a channel delivering quotes for symbol until ctx is
// canceled. The channel is buffered so a slow consumer does not stall
// the read loop; a full buffer drops the oldest pending quote.
func (f *QuoteFeed) Subscribe(ctx context.Context, symbol string) <-chan market.Quote {
	ch := make(chan market.Quote, 16)
	f.mu.Lock()
	f.subs[symbol] = append(f.subs[symbol], ch)
	f.mu.Unlock()
	go func() {
		<-ctx.Done()
		f.unsubscribe(symbol, ch)
	}()
	return ch
}

func (f *QuoteFeed) unsubscribe(symbol string, target chan market.Quote) {
	f.mu.Lock()
	defer f.mu.Unlock()
	subs := f.subs[symbol]
	for i, ch := range subs {
		if ch == target {
			f.subs[symbol] = append(subs[:i], subs[i+1:]...)
			close(target)
			break
		}
	}
}

type wireQuote struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	TsUnix int64   `json:"ts"`
}

// Run dials the feed and dispatches incoming quotes until ctx is
// canceled; a failed dial is retried with backoff and a lost connection
// is redialed.
func (f *QuoteFeed) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		conn, _, err := f.dialer.DialContext(ctx, f.url, nil)
		if err != nil {
			f.log.Warnf("quote feed dial failed: %v, retrying in %s", err, backoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second
		f.readLoop(ctx, conn)
	}
}

func (f *QuoteFeed) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()
	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		conn.Close()
		close(done)
	}()
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			f.log.Warnf("quote feed read error: %v", err)
			return
		}
		var wq wireQuote
		if err := json.Unmarshal(payload, &wq); err != nil {
			continue
		}
		q := market.Quote{
			Symbol:    wq.Symbol,
			Price:     money.MoneyFromFloat(wq.Price),
			Timestamp: time.Unix(wq.TsUnix, 0).UTC(),
		}
		f.dispatch(q)
	}
}

func (f *QuoteFeed) dispatch(q market.Quote) {
	f.mu.RLock()
	subs := append([]chan market.Quote(nil), f.subs[q.Symbol]...)
	f.mu.RUnlock()
	for _, ch := range subs {
		select {
		case ch <- q:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- q:
			default:
			}
		}
	}
}
