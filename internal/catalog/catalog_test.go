package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()
	assert.Equal(t, 18, c.Len())

	btc, ok := c.Get("BTC")
	require.True(t, ok)
	assert.Equal(t, 30, btc.Cost)
	assert.Equal(t, 5, c.Cost("HYPE"))

	assert.True(t, c.Has("PEPE"))
	assert.False(t, c.Has("WAT"))
	assert.Zero(t, c.Cost("WAT"))
}

func TestAssetsOrderedByCost(t *testing.T) {
	assets := Default().Assets()
	require.NotEmpty(t, assets)

	for i := 1; i < len(assets); i++ {
		prev, cur := assets[i-1], assets[i]
		ordered := prev.Cost > cur.Cost ||
			(prev.Cost == cur.Cost && prev.Symbol < cur.Symbol)
		assert.True(t, ordered, "%s before %s", prev.Symbol, cur.Symbol)
	}
	assert.Equal(t, "BTC", assets[0].Symbol)
}

func TestSymbolsMatchAssets(t *testing.T) {
	c := Default()
	symbols := c.Symbols()
	assets := c.Assets()
	require.Len(t, symbols, len(assets))
	for i, a := range assets {
		assert.Equal(t, a.Symbol, symbols[i])
	}
}
