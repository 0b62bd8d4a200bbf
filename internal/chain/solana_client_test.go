package chain

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"grant-settlement-sol/internal/types"
)

// newRPCServer 按 method 返回预置的 JSON-RPC 响应体（不含 jsonrpc/id 外层）
func newRPCServer(t *testing.T, replies map[string]string) *SolanaClient {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		method := gjson.GetBytes(body, "method").String()

		reply, ok := replies[method]
		if !ok {
			t.Errorf("unexpected rpc method %q", method)
			reply = `"error":{"code":-32601,"message":"Method not found"}`
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,` + reply + `}`))
	}))
	t.Cleanup(srv.Close)
	return NewSolanaClient(SolanaClientOption{Endpoint: srv.URL})
}

func TestSolanaClient_GetBlockHeight(t *testing.T) {
	c := newRPCServer(t, map[string]string{
		"getBlockHeight": `"result":281475`,
	})

	h, err := c.GetBlockHeight(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(281475), h)
}

func TestSolanaClient_GetBlockHeightRPCError(t *testing.T) {
	c := newRPCServer(t, map[string]string{
		"getBlockHeight": `"error":{"code":-32005,"message":"Node is behind by 42 slots"}`,
	})

	_, err := c.GetBlockHeight(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.True(t, IsTransient(err))
}

func TestSolanaClient_GetLatestBlockhash(t *testing.T) {
	c := newRPCServer(t, map[string]string{
		"getLatestBlockhash": `"result":{"context":{"slot":2792},"value":{"blockhash":"EkSnNWid2cvwEVnVx9aBqawnmiCNiDgp3gUdkDPTKN1N","lastValidBlockHeight":3090}}`,
	})

	cp, err := c.GetLatestBlockhash(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "EkSnNWid2cvwEVnVx9aBqawnmiCNiDgp3gUdkDPTKN1N", cp.Blockhash)
	assert.Equal(t, uint64(3090), cp.LastValidBlockHeight)
}

func TestSolanaClient_GetBalance(t *testing.T) {
	c := newRPCServer(t, map[string]string{
		"getBalance": `"result":{"context":{"slot":1},"value":1500000000}`,
	})

	lamports, err := c.GetBalance(context.Background(), types.PubkeyFromBase58("9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1_500_000_000), lamports)
}
