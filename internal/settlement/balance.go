package settlement

import (
	"context"
	"fmt"

	"grant-settlement-sol/internal/consts"
	"grant-settlement-sol/internal/types"
)

// Balance 查询 token account 余额（最小单位）。账户不存在返回 ErrAccountNotFound，而不是 0。
func (e *Engine) Balance(ctx context.Context, account types.Pubkey) (Amount, error) {
	amount, err := e.client.GetTokenAccountBalance(ctx, account)
	if err != nil {
		return 0, fromChain("getTokenAccountBalance", err)
	}
	return Amount(amount), nil
}

// checkMint 校验 mint 的所属程序与精度，通过后缓存
func (e *Engine) checkMint(ctx context.Context, mint types.Pubkey) error {
	e.mintMu.RLock()
	_, ok := e.mintsReady[mint]
	e.mintMu.RUnlock()
	if ok {
		return nil
	}

	info, err := e.client.GetAccountInfo(ctx, mint)
	if err != nil {
		return fromChain("getAccountInfo", err)
	}
	if info == nil {
		return &RejectedError{Reason: fmt.Sprintf("mint %s does not exist", mint)}
	}
	if info.Owner != e.tokenProgram {
		return &RejectedError{Reason: fmt.Sprintf("mint %s is owned by %s, expected %s", mint, info.Owner, e.tokenProgram)}
	}
	if len(info.Data) <= consts.MintDecimalsOffset {
		return &RejectedError{Reason: fmt.Sprintf("mint %s has malformed data (%d bytes)", mint, len(info.Data))}
	}
	if got := info.Data[consts.MintDecimalsOffset]; got != e.decimals {
		return &RejectedError{Reason: fmt.Sprintf("mint %s has %d decimals, configured %d", mint, got, e.decimals)}
	}

	e.mintMu.Lock()
	e.mintsReady[mint] = struct{}{}
	e.mintMu.Unlock()
	return nil
}
