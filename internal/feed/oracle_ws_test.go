package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleMessageParsesTick(t *testing.T) {
	var got []Tick
	w := NewWSClient("ws://oracle.example.test/ws", func(tick Tick) {
		got = append(got, tick)
	})

	w.handleMessage([]byte(`{"type":"tick","symbol":"BTC","price":50123.45,"ts":1700000000000}`))

	require.Len(t, got, 1)
	assert.Equal(t, "BTC", got[0].Symbol)
	assert.Equal(t, 50123.45, got[0].Price)
	assert.Equal(t, time.UnixMilli(1700000000000), got[0].Time)
}

func TestHandleMessageDropsJunk(t *testing.T) {
	var got []Tick
	w := NewWSClient("ws://oracle.example.test/ws", func(tick Tick) {
		got = append(got, tick)
	})

	cases := []string{
		`not json at all`,
		`{"type":"heartbeat"}`,
		`{"type":"tick","symbol":"","price":1,"ts":1}`,
		`{"type":"tick","symbol":"BTC","price":0,"ts":1}`,
		`{"type":"tick","symbol":"BTC","price":-5,"ts":1}`,
	}
	for _, raw := range cases {
		w.handleMessage([]byte(raw))
	}
	assert.Empty(t, got)
}
