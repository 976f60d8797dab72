// Package marketdata provides the two external collaborators the back-office
// core consumes: the last-traded-price lookup and the trading session gate.
package marketdata

import (
	"sync"

	"github.com/shopspring/decimal"
)

// PriceSource answers last-traded-price lookups. The second return is false
// when no price is known for the code; callers decide whether that skips the
// row (reconciliation) or leaves the field zero (price refresh).
type PriceSource interface {
	PriceOf(stockCode string) (decimal.Decimal, bool)
}

// Cache is an in-memory last-traded-price store fed by whatever market feed
// the deployment wires in.
type Cache struct {
	mu     sync.RWMutex
	prices map[string]decimal.Decimal
}

func NewCache() *Cache {
	return &Cache{prices: make(map[string]decimal.Decimal)}
}

// PriceOf implements PriceSource.
func (c *Cache) PriceOf(stockCode string) (decimal.Decimal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.prices[stockCode]
	return p, ok
}

// Set records the last traded price for a stock code.
func (c *Cache) Set(stockCode string, price decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prices[stockCode] = price
}

// Forget drops the cached price for a stock code.
func (c *Cache) Forget(stockCode string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.prices, stockCode)
}

// Snapshot returns a copy of every cached price.
func (c *Cache) Snapshot() map[string]decimal.Decimal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]decimal.Decimal, len(c.prices))
	for code, p := range c.prices {
		out[code] = p
	}
	return out
}
