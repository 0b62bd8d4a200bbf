package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pyusdDevnetMint = "CXk2AMBfi3TwaEL2468s6zP8xq9NxTXjp9gjMgzeUynM"

func TestTryPubkeyFromBase58(t *testing.T) {
	pk, err := TryPubkeyFromBase58(pyusdDevnetMint)
	require.NoError(t, err)
	assert.Equal(t, pyusdDevnetMint, pk.String())
	assert.False(t, pk.IsZero())

	_, err = TryPubkeyFromBase58("not-base58-0OIl")
	assert.Error(t, err)

	_, err = TryPubkeyFromBase58("3mJr7AoUXx2Wqd") // 合法 base58，长度不足 32 字节
	assert.Error(t, err)
}

func TestPubkey_JSONRoundTripsAsBase58(t *testing.T) {
	in := struct {
		Mint Pubkey `json:"mint"`
	}{Mint: PubkeyFromBase58(pyusdDevnetMint)}

	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"mint":"`+pyusdDevnetMint+`"}`, string(data))

	var out struct {
		Mint Pubkey `json:"mint"`
	}
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in.Mint, out.Mint)
}

func TestPubkey_CommonBridge(t *testing.T) {
	pk := PubkeyFromBase58(pyusdDevnetMint)
	assert.Equal(t, pk, PubkeyFromCommon(pk.ToCommon()))
	assert.Equal(t, pyusdDevnetMint, pk.ToCommon().ToBase58())
}
