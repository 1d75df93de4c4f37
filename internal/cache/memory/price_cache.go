// Package memory provides an in-process price cache, used when Redis is not
// configured and in tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/clapogame/clapobot/internal/domain"
)

type entry struct {
	price float64
	ts    time.Time
}

// PriceCache is a mutex-protected map implementing domain.PriceCache.
// Entries older than the staleness window are treated as absent.
type PriceCache struct {
	mu  sync.RWMutex
	ttl time.Duration
	m   map[string]entry
	now func() time.Time
}

// NewPriceCache creates a PriceCache. ttl zero means entries never go stale.
func NewPriceCache(ttl time.Duration) *PriceCache {
	return &PriceCache{
		ttl: ttl,
		m:   make(map[string]entry),
		now: time.Now,
	}
}

func (pc *PriceCache) SetPrice(ctx context.Context, symbol string, price float64, ts time.Time) error {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.m[symbol] = entry{price: price, ts: ts}
	return nil
}

func (pc *PriceCache) GetPrice(ctx context.Context, symbol string) (float64, time.Time, error) {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	e, ok := pc.m[symbol]
	if !ok || pc.stale(e) {
		return 0, time.Time{}, domain.ErrNotFound
	}
	return e.price, e.ts, nil
}

func (pc *PriceCache) GetPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	result := make(map[string]float64, len(symbols))
	for _, sym := range symbols {
		if e, ok := pc.m[sym]; ok && !pc.stale(e) {
			result[sym] = e.price
		}
	}
	return result, nil
}

func (pc *PriceCache) stale(e entry) bool {
	return pc.ttl > 0 && pc.now().Sub(e.ts) > pc.ttl
}

// Compile-time interface check.
var _ domain.PriceCache = (*PriceCache)(nil)
