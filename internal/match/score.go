package match

import (
	"context"
	"fmt"
	"time"

	"github.com/clapogame/clapobot/internal/domain"
)

// AssetScore is the live contribution of one portfolio asset.
type AssetScore struct {
	Symbol    string
	Role      domain.Role
	Open      float64
	Latest    float64
	ChangePct float64
	Points    float64
}

// Score is a provisional local score for one player's portfolio. It is a
// display aid only; settlement math happens on the ledger at reveal.
type Score struct {
	Total  float64
	Assets []AssetScore
	AsOf   time.Time
}

// Scorer computes provisional scores from cached oracle prices.
type Scorer struct {
	prices domain.PriceCache
}

// NewScorer builds a Scorer over the given price cache.
func NewScorer(prices domain.PriceCache) *Scorer {
	return &Scorer{prices: prices}
}

// OpenPrices captures the prices in effect at the start of the window, to be
// held as the baseline for the whole match.
func (s *Scorer) OpenPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	open, err := s.prices.GetPrices(ctx, symbols)
	if err != nil {
		return nil, fmt.Errorf("match: open prices: %w", err)
	}
	for _, sym := range symbols {
		if open[sym] == 0 {
			return nil, fmt.Errorf("match: no open price for %s", sym)
		}
	}
	return open, nil
}

// Live scores the selection against the latest cached prices. Each asset
// contributes its percentage move since open, scaled by the role multiplier.
func (s *Scorer) Live(ctx context.Context, sel domain.Selection, open map[string]float64) (Score, error) {
	latest, err := s.prices.GetPrices(ctx, sel.Symbols)
	if err != nil {
		return Score{}, fmt.Errorf("match: latest prices: %w", err)
	}

	score := Score{
		Assets: make([]AssetScore, 0, len(sel.Symbols)),
		AsOf:   time.Now(),
	}
	for i, sym := range sel.Symbols {
		o, l := open[sym], latest[sym]
		as := AssetScore{Symbol: sym, Role: sel.Roles[i], Open: o, Latest: l}
		if o > 0 && l > 0 {
			as.ChangePct = (l - o) / o * 100
			as.Points = as.ChangePct * sel.Roles[i].Multiplier()
		}
		score.Assets = append(score.Assets, as)
		score.Total += as.Points
	}
	return score, nil
}
