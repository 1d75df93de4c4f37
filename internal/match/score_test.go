package match

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clapogame/clapobot/internal/cache/memory"
	"github.com/clapogame/clapobot/internal/domain"
)

func seedPrices(t *testing.T, pc *memory.PriceCache, prices map[string]float64) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()
	for sym, p := range prices {
		require.NoError(t, pc.SetPrice(ctx, sym, p, now))
	}
}

func TestOpenPricesRequiresEveryAsset(t *testing.T) {
	ctx := context.Background()
	pc := memory.NewPriceCache(0)
	scorer := NewScorer(pc)

	seedPrices(t, pc, map[string]float64{"BTC": 50000, "ETH": 3000})

	open, err := scorer.OpenPrices(ctx, []string{"BTC", "ETH"})
	require.NoError(t, err)
	assert.Equal(t, 50000.0, open["BTC"])

	_, err = scorer.OpenPrices(ctx, []string{"BTC", "ETH", "ADA"})
	assert.Error(t, err, "missing open price must fail the capture")
}

func TestLiveAppliesRoleMultipliers(t *testing.T) {
	ctx := context.Background()
	pc := memory.NewPriceCache(0)
	scorer := NewScorer(pc)

	sel := domain.Selection{
		Symbols: []string{"BTC", "ETH", "ADA"},
		Roles:   []domain.Role{domain.RoleLeader, domain.RoleCoLeader, domain.RoleRegular},
	}
	open := map[string]float64{"BTC": 100, "ETH": 200, "ADA": 2}

	// BTC +2%, ETH -1%, ADA +5%.
	seedPrices(t, pc, map[string]float64{"BTC": 102, "ETH": 198, "ADA": 2.1})

	score, err := scorer.Live(ctx, sel, open)
	require.NoError(t, err)
	require.Len(t, score.Assets, 3)

	assert.InDelta(t, 2.0, score.Assets[0].ChangePct, 1e-9)
	assert.InDelta(t, 4.0, score.Assets[0].Points, 1e-9, "leader doubles the move")
	assert.InDelta(t, -1.5, score.Assets[1].Points, 1e-9, "co-leader scales by 1.5")
	assert.InDelta(t, 5.0, score.Assets[2].Points, 1e-9, "regular counts the raw move")
	assert.InDelta(t, 4.0-1.5+5.0, score.Total, 1e-9)
}

func TestLiveSkipsAssetsWithoutPrices(t *testing.T) {
	ctx := context.Background()
	pc := memory.NewPriceCache(0)
	scorer := NewScorer(pc)

	sel := domain.Selection{
		Symbols: []string{"BTC", "ETH"},
		Roles:   []domain.Role{domain.RoleLeader, domain.RoleRegular},
	}
	open := map[string]float64{"BTC": 100, "ETH": 200}

	// Only BTC has a live price; ETH contributes zero points.
	seedPrices(t, pc, map[string]float64{"BTC": 101})

	score, err := scorer.Live(ctx, sel, open)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, score.Total, 1e-9)
	assert.Zero(t, score.Assets[1].Points)
}
