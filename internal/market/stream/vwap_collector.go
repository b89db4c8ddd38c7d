package stream

import (
	"sync"
	"time"
)

// minuteBar is a single 1-minute aggregate used for the intraday VWAP
// and momentum supplementary signals the orchestrator computes from
// streamed quotes. Shape mirrors the teacher's single-symbol VWAP
// collector, generalized into a per-symbol registry below.
type minuteBar struct {
	typicalPrice float64
	volume       float64
}

// VWAPCollector accumulates per-symbol intraday bars and derives VWAP,
// slope, and momentum, the same rolling-window metrics the orchestrator
// folds into UnifiedAnalysis.supplementary.
type VWAPCollector struct {
	mu        sync.RWMutex
	bars      []minuteBar
	openPrice float64
	lastReset time.Time
}

func NewVWAPCollector() *VWAPCollector {
	return &VWAPCollector{bars: make([]minuteBar, 0, 390), lastReset: time.Now()}
}

func (c *VWAPCollector) AddBar(high, low, close, volume float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	typical := (high + low + close) / 3
	if len(c.bars) == 0 {
		c.openPrice = close
	}
	c.bars = append(c.bars, minuteBar{typicalPrice: typical, volume: volume})
}

func (c *VWAPCollector) VWAP() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vwapLocked(len(c.bars))
}

func (c *VWAPCollector) vwapLocked(n int) float64 {
	if n > len(c.bars) {
		n = len(c.bars)
	}
	var sumTPV, sumVol float64
	for i := 0; i < n; i++ {
		sumTPV += c.bars[i].typicalPrice * c.bars[i].volume
		sumVol += c.bars[i].volume
	}
	if sumVol == 0 {
		return 0
	}
	return sumTPV / sumVol
}

// Slope returns the percentage change of VWAP from its first 10 bars to
// its current value; positive indicates an upward-trending VWAP.
func (c *VWAPCollector) Slope() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.bars) < 10 {
		return 0
	}
	early := c.vwapLocked(10)
	if early == 0 {
		return 0
	}
	now := c.vwapLocked(len(c.bars))
	return (now - early) / early * 100
}

// Momentum returns the fractional move from the day's opening price
// (0.01 = 1%; unlike Slope, not multiplied by 100).
func (c *VWAPCollector) Momentum(currentPrice float64) float64 {
	c.mu.RLock()
	open := c.openPrice
	c.mu.RUnlock()
	if open == 0 {
		return 0
	}
	return (currentPrice - open) / open
}

func (c *VWAPCollector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bars = make([]minuteBar, 0, 390)
	c.openPrice = 0
	c.lastReset = time.Now()
}

// Registry is a per-symbol VWAPCollector set, single-writer-per-key and
// concurrent-read per spec §5's cache discipline.
type Registry struct {
	mu         sync.RWMutex
	collectors map[string]*VWAPCollector
}

func NewRegistry() *Registry {
	return &Registry{collectors: make(map[string]*VWAPCollector)}
}

func (r *Registry) For(symbol string) *VWAPCollector {
	r.mu.RLock()
	c, ok := r.collectors[symbol]
	r.mu.RUnlock()
	if ok {
		return c
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok = r.collectors[symbol]; ok {
		return c
	}
	c = NewVWAPCollector()
	r.collectors[symbol] = c
	return c
}
