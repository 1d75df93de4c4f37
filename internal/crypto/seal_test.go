package crypto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpenRoundTrip(t *testing.T) {
	plaintext := []byte(`{"symbols":["BTC","ETH"],"salt":"clapo-1-a"}`)

	sealed, err := Seal(plaintext, "hunter2")
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "BTC", "plaintext must not leak into the blob")

	opened, err := Open(sealed, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestSealProducesFreshBlobs(t *testing.T) {
	sealed1, err := Seal([]byte("payload"), "pass")
	require.NoError(t, err)
	sealed2, err := Seal([]byte("payload"), "pass")
	require.NoError(t, err)
	assert.NotEqual(t, sealed1, sealed2, "salt and nonce are random per seal")
}

func TestOpenWrongPassphrase(t *testing.T) {
	sealed, err := Seal([]byte("payload"), "correct")
	require.NoError(t, err)

	_, err = Open(sealed, "incorrect")
	assert.Error(t, err)
}

func TestOpenRejectsUnknownVersion(t *testing.T) {
	sealed, err := Seal([]byte("payload"), "pass")
	require.NoError(t, err)

	var blob map[string]any
	require.NoError(t, json.Unmarshal(sealed, &blob))
	blob["version"] = 99
	tampered, err := json.Marshal(blob)
	require.NoError(t, err)

	_, err = Open(tampered, "pass")
	assert.ErrorContains(t, err, "unsupported version")
}

func TestEmptyPassphrase(t *testing.T) {
	_, err := Seal([]byte("payload"), "")
	assert.Error(t, err)
	_, err = Open([]byte("{}"), "")
	assert.Error(t, err)
}
