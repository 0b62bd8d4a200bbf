package settlement

import (
	"context"
	"fmt"

	sdktypes "github.com/blocto/solana-go-sdk/types"

	"grant-settlement-sol/internal/chain/instruction"
	"grant-settlement-sol/internal/pkg/logger"
	"grant-settlement-sol/internal/types"
)

// Provision 为 owner 创建 (owner, mint) 的规范 token account，payer 支付租金与手续费。
// 幂等：账户已存在时直接返回；指令本身使用 CreateIdempotent，并发创建也不会失败。
// 失败返回 ErrExpired 时，重试必须重新调用 Provision（新 checkpoint），不能重发旧交易。
func (e *Engine) Provision(ctx context.Context, owner, mint types.Pubkey, payer sdktypes.Account) (types.Pubkey, error) {
	ata, err := e.Resolve(owner, mint)
	if err != nil {
		return types.Pubkey{}, err
	}

	exists, err := e.Exists(ctx, ata)
	if err != nil {
		return types.Pubkey{}, err
	}
	if exists {
		logger.Debugf("[Provision] token account %s for owner %s already exists", ata, owner)
		return ata, nil
	}

	if err := e.checkMint(ctx, mint); err != nil {
		return types.Pubkey{}, err
	}

	ix, err := instruction.CreateIdempotent(instruction.CreateIdempotentParam{
		Funder:       types.PubkeyFromCommon(payer.PublicKey),
		Owner:        owner,
		Mint:         mint,
		TokenAccount: ata,
		TokenProgram: e.tokenProgram,
	})
	if err != nil {
		return types.Pubkey{}, fmt.Errorf("build create account instruction: %w", err)
	}

	res, err := e.submit(ctx, payer, []sdktypes.Instruction{ix}, nil)
	if err != nil {
		return types.Pubkey{}, fmt.Errorf("provision %s: %w", ata, err)
	}
	logger.Infof("[Provision] created token account %s for owner %s, sig=%s, slot=%d", ata, owner, res.Signature, res.Slot)
	return ata, nil
}
