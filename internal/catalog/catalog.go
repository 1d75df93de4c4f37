// Package catalog holds the static asset catalog: the tradable assets a
// portfolio may pick from, with their draft costs and tiers. The catalog is
// immutable reference data shared by both players of every match.
package catalog

import (
	"sort"

	"github.com/clapogame/clapobot/internal/domain"
)

// Catalog is an immutable set of assets indexed by symbol.
type Catalog struct {
	bySymbol map[string]domain.Asset
	ordered  []domain.Asset
}

// New builds a catalog from the given assets.
func New(assets []domain.Asset) *Catalog {
	c := &Catalog{
		bySymbol: make(map[string]domain.Asset, len(assets)),
		ordered:  make([]domain.Asset, len(assets)),
	}
	copy(c.ordered, assets)
	for _, a := range assets {
		c.bySymbol[a.Symbol] = a
	}
	sort.Slice(c.ordered, func(i, j int) bool {
		if c.ordered[i].Cost != c.ordered[j].Cost {
			return c.ordered[i].Cost > c.ordered[j].Cost
		}
		return c.ordered[i].Symbol < c.ordered[j].Symbol
	})
	return c
}

// Default returns the standard 18-asset catalog.
func Default() *Catalog {
	return New(defaultAssets)
}

// Get returns the asset for a symbol.
func (c *Catalog) Get(symbol string) (domain.Asset, bool) {
	a, ok := c.bySymbol[symbol]
	return a, ok
}

// Has reports whether the symbol exists in the catalog.
func (c *Catalog) Has(symbol string) bool {
	_, ok := c.bySymbol[symbol]
	return ok
}

// Cost returns the draft cost of the symbol, or 0 when unknown.
func (c *Catalog) Cost(symbol string) int {
	return c.bySymbol[symbol].Cost
}

// Assets returns all assets ordered by descending cost.
func (c *Catalog) Assets() []domain.Asset {
	out := make([]domain.Asset, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// Symbols returns every catalog symbol ordered by descending cost.
func (c *Catalog) Symbols() []string {
	out := make([]string, len(c.ordered))
	for i, a := range c.ordered {
		out[i] = a.Symbol
	}
	return out
}

// Len returns the number of assets in the catalog.
func (c *Catalog) Len() int {
	return len(c.ordered)
}

var defaultAssets = []domain.Asset{
	{Symbol: "BTC", Name: "Bitcoin", Cost: 30, Tier: domain.TierA},
	{Symbol: "ETH", Name: "Ethereum", Cost: 25, Tier: domain.TierA},
	{Symbol: "SOL", Name: "Solana", Cost: 18, Tier: domain.TierA},
	{Symbol: "BNB", Name: "BNB", Cost: 16, Tier: domain.TierB},
	{Symbol: "AVAX", Name: "Avalanche", Cost: 12, Tier: domain.TierB},
	{Symbol: "XRP", Name: "Ripple", Cost: 12, Tier: domain.TierB},
	{Symbol: "ADA", Name: "Cardano", Cost: 10, Tier: domain.TierC},
	{Symbol: "MATIC", Name: "Polygon", Cost: 10, Tier: domain.TierC},
	{Symbol: "NEAR", Name: "NEAR Protocol", Cost: 10, Tier: domain.TierC},
	{Symbol: "DOT", Name: "Polkadot", Cost: 10, Tier: domain.TierC},
	{Symbol: "DOGE", Name: "Dogecoin", Cost: 9, Tier: domain.TierD},
	{Symbol: "APT", Name: "Aptos", Cost: 9, Tier: domain.TierD},
	{Symbol: "TRX", Name: "Tron", Cost: 8, Tier: domain.TierD},
	{Symbol: "SUI", Name: "Sui", Cost: 8, Tier: domain.TierD},
	{Symbol: "ASTAR", Name: "Astar", Cost: 7, Tier: domain.TierE},
	{Symbol: "SHIB", Name: "Shiba Inu", Cost: 6, Tier: domain.TierE},
	{Symbol: "PEPE", Name: "Pepe", Cost: 5, Tier: domain.TierE},
	{Symbol: "HYPE", Name: "Hype", Cost: 5, Tier: domain.TierE},
}
