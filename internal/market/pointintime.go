package market

import (
	"context"
	"fmt"
	"time"
)

// PointInTime wraps a MarketDataSource (normally a fixed historical
// slice held by the backtest engine) so no call can observe data whose
// effective timestamp is after asOf. Bars clamps `to` to asOf and drops
// any later bar, and Financials and News drop items dated after asOf;
// those three truncate silently and return no error. Only Quote panics,
// when the quote's timestamp is after asOf.
type PointInTime struct {
	inner MarketDataSource
	asOf  time.Time
}

func NewPointInTime(inner MarketDataSource, asOf time.Time) *PointInTime {
	return &PointInTime{inner: inner, asOf: asOf}
}

func (p *PointInTime) guard(effective time.Time, what string) {
	if effective.After(p.asOf) {
		panic(fmt.Sprintf("point-in-time violation: %s effective %s is after asOf %s", what, effective, p.asOf))
	}
}

func (p *PointInTime) Bars(ctx context.Context, symbol string, tf Timeframe, from, to time.Time) ([]Bar, error) {
	if to.After(p.asOf) {
		to = p.asOf
	}
	bars, err := p.inner.Bars(ctx, symbol, tf, from, to)
	if err != nil {
		return nil, err
	}
	out := make([]Bar, 0, len(bars))
	for _, b := range bars {
		if b.Timestamp.After(p.asOf) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (p *PointInTime) Financials(ctx context.Context, symbol string, nQuarters int) ([]Financials, error) {
	all, err := p.inner.Financials(ctx, symbol, nQuarters)
	if err != nil {
		return nil, err
	}
	out := make([]Financials, 0, len(all))
	for _, f := range all {
		if f.EffectiveDate.After(p.asOf) {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

func (p *PointInTime) News(ctx context.Context, symbol string, limit int, since *time.Time) ([]NewsItem, error) {
	all, err := p.inner.News(ctx, symbol, limit, since)
	if err != nil {
		return nil, err
	}
	out := make([]NewsItem, 0, len(all))
	for _, n := range all {
		if n.Timestamp.After(p.asOf) {
			continue
		}
		out = append(out, n)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (p *PointInTime) Quote(ctx context.Context, symbol string) (Quote, error) {
	q, err := p.inner.Quote(ctx, symbol)
	if err != nil {
		return Quote{}, err
	}
	p.guard(q.Timestamp, "quote")
	return q, nil
}

func (p *PointInTime) Search(ctx context.Context, query string, limit int) ([]Ticker, error) {
	return p.inner.Search(ctx, query, limit)
}
