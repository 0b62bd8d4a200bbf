package settlement

import (
	"context"

	"grant-settlement-sol/internal/chain/instruction"
	"grant-settlement-sol/internal/types"
)

// Resolve 推导 (owner, mint) 的规范 token account，纯计算，不访问网络
func (e *Engine) Resolve(owner, mint types.Pubkey) (types.Pubkey, error) {
	return instruction.FindAssociatedTokenAddress(owner, mint, e.tokenProgram)
}

// Exists 查询账户是否存在。查询失败时返回错误，不会假定账户不存在。
func (e *Engine) Exists(ctx context.Context, account types.Pubkey) (bool, error) {
	info, err := e.client.GetAccountInfo(ctx, account)
	if err != nil {
		return false, fromChain("getAccountInfo", err)
	}
	return info != nil, nil
}
