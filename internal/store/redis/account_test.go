package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"confluence-engine/internal/model"
)

func TestDecodeAccount(t *testing.T) {
	snap, err := decodeAccount([]byte(`{"balance":117.47,"positions":[{"symbol":"BTCUSDT","side":"long","size":0.01,"entry_price":100000,"leverage":50}]}`))
	require.NoError(t, err)
	assert.Equal(t, 117.47, snap.Balance)
	require.Len(t, snap.Positions, 1)
	assert.Equal(t, model.SideLong, snap.Positions[0].Side)
	assert.InDelta(t, 1000, snap.Positions[0].Notional(), 1e-9)

	_, err = decodeAccount([]byte(`{"balance":`))
	assert.Error(t, err)

	_, err = decodeAccount([]byte(`{"balance":10,"positions":[{"size":1}]}`))
	assert.Error(t, err)
}
