package market

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/N0tT1m/invest-iq-sub000/internal/apperrors"
)

// RateLimited wraps a MarketDataSource with a requests-per-minute token
// bucket (spec §5 "Rate limiting"). Excess requests either wait or
// fail-fast, per FailFast.
type RateLimited struct {
	inner    MarketDataSource
	limiter  *rate.Limiter
	failFast bool
}

func NewRateLimited(inner MarketDataSource, requestsPerMinute int, failFast bool) *RateLimited {
	perSecond := rate.Limit(float64(requestsPerMinute) / 60.0)
	return &RateLimited{
		inner:    inner,
		limiter:  rate.NewLimiter(perSecond, requestsPerMinute),
		failFast: failFast,
	}
}

func (r *RateLimited) wait(ctx context.Context) error {
	if r.failFast {
		if !r.limiter.Allow() {
			return apperrors.NewTransportError(apperrors.RateLimited, context.DeadlineExceeded)
		}
		return nil
	}
	return r.limiter.Wait(ctx)
}

func (r *RateLimited) Bars(ctx context.Context, symbol string, tf Timeframe, from, to time.Time) ([]Bar, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.Bars(ctx, symbol, tf, from, to)
}

func (r *RateLimited) Financials(ctx context.Context, symbol string, nQuarters int) ([]Financials, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.Financials(ctx, symbol, nQuarters)
}

func (r *RateLimited) News(ctx context.Context, symbol string, limit int, since *time.Time) ([]NewsItem, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.News(ctx, symbol, limit, since)
}

func (r *RateLimited) Quote(ctx context.Context, symbol string) (Quote, error) {
	if err := r.wait(ctx); err != nil {
		return Quote{}, err
	}
	return r.inner.Quote(ctx, symbol)
}

func (r *RateLimited) Search(ctx context.Context, query string, limit int) ([]Ticker, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.Search(ctx, query, limit)
}
