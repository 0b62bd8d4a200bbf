package settlement

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"grant-settlement-sol/internal/chain"
)

func TestFromChain(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		want      error
		retryable bool
	}{
		{"unavailable", unavailable("getBalance"), ErrNetwork, true},
		{"blockhash", fmt.Errorf("sendTransaction: %w", chain.ErrBlockhashNotFound), ErrExpired, true},
		{"insufficient", fmt.Errorf("sendTransaction: %w", chain.ErrInsufficientFunds), ErrInsufficientBalance, false},
		{"not found", fmt.Errorf("getTokenAccountBalance: %w", chain.ErrAccountNotFound), ErrAccountNotFound, false},
		{"rpc", fmt.Errorf("sendTransaction: %w", &chain.RPCError{Code: -32002, Message: "invalid account data"}), ErrRejected, false},
		{"cancelled", fmt.Errorf("rate limiter: %w", context.Canceled), context.Canceled, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := fromChain("op", tc.err)
			assert.ErrorIs(t, got, tc.want)
			assert.Equal(t, tc.retryable, IsRetryable(got))
		})
	}
}

func TestFromOnChainErr(t *testing.T) {
	assert.ErrorIs(t, fromOnChainErr("sig", "map[InstructionError:[0 map[Custom:1]]]"), ErrInsufficientBalance)
	assert.ErrorIs(t, fromOnChainErr("sig", "map[InstructionError:[0 map[Custom:18]]]"), ErrRejected)
	assert.ErrorIs(t, fromOnChainErr("sig", "custom program error: 0x12"), ErrRejected)
}
