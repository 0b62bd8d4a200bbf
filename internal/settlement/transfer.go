package settlement

import (
	"context"
	"fmt"
	"time"

	sdktypes "github.com/blocto/solana-go-sdk/types"

	"grant-settlement-sol/internal/chain/instruction"
	"grant-settlement-sol/internal/pkg/logger"
	"grant-settlement-sol/internal/types"
)

type TransferRequest struct {
	Source      types.Pubkey // 出资 token account
	Destination types.Pubkey // 收款 token account
	// DestinationOwner 收款方钱包；收款账户不存在时用于开户，并校验 Destination 是其规范账户
	DestinationOwner types.Pubkey
	Mint             types.Pubkey
	Amount           Amount
	Authority        sdktypes.Account // 出资账户 owner，同时支付手续费
	// OnSubmitted 签名后、广播前回调，用于记录在途签名
	OnSubmitted SubmittedFunc
}

// TransferRecord 已确认转账的凭证
type TransferRecord struct {
	Signature   string       `json:"signature"`
	Source      types.Pubkey `json:"source"`
	Destination types.Pubkey `json:"destination"`
	Amount      Amount       `json:"amount"`
	Slot        uint64       `json:"slot"`
}

// Transfer 按顺序检查并执行转账，任一检查失败立即返回：
//  1. amount > 0，否则 ErrInvalidAmount
//  2. 出资账户余额 >= amount，否则 ErrInsufficientBalance（仅快速失败，提交时账本的余额不足拒绝才是最终结论）
//  3. 收款账户存在，不存在则先开户
//
// 2、3 与提交、确认在出资账户锁内完成，同一出资账户上的转账串行执行。
func (e *Engine) Transfer(ctx context.Context, req TransferRequest) (TransferRecord, error) {
	if req.Amount == 0 {
		return TransferRecord{}, ErrInvalidAmount
	}

	var record TransferRecord
	err := e.locker.WithLock(ctx, req.Source.String(), func(ctx context.Context) error {
		var err error
		record, err = e.transferLocked(ctx, req)
		return err
	})
	return record, err
}

func (e *Engine) transferLocked(ctx context.Context, req TransferRequest) (TransferRecord, error) {
	start := time.Now()

	balance, err := e.Balance(ctx, req.Source)
	if err != nil {
		return TransferRecord{}, fmt.Errorf("source %s: %w", req.Source, err)
	}
	if balance < req.Amount {
		return TransferRecord{}, fmt.Errorf("%w: source %s has %d, need %d",
			ErrInsufficientBalance, req.Source, balance, req.Amount)
	}

	if err := e.ensureDestination(ctx, req); err != nil {
		return TransferRecord{}, err
	}

	if err := e.checkMint(ctx, req.Mint); err != nil {
		return TransferRecord{}, err
	}

	ix, err := instruction.TransferChecked(instruction.TransferCheckedParam{
		From:         req.Source,
		To:           req.Destination,
		Mint:         req.Mint,
		Auth:         types.PubkeyFromCommon(req.Authority.PublicKey),
		Amount:       uint64(req.Amount),
		Decimals:     e.decimals,
		TokenProgram: e.tokenProgram,
	})
	if err != nil {
		return TransferRecord{}, fmt.Errorf("build transfer instruction: %w", err)
	}

	res, err := e.submit(ctx, req.Authority, []sdktypes.Instruction{ix}, req.OnSubmitted)
	if err != nil {
		return TransferRecord{}, err
	}

	logger.Infof("[Transfer] %d minor units %s -> %s confirmed, sig=%s, slot=%d, cost=%v",
		req.Amount, req.Source, req.Destination, res.Signature, res.Slot, time.Since(start))
	return TransferRecord{
		Signature:   res.Signature,
		Source:      req.Source,
		Destination: req.Destination,
		Amount:      req.Amount,
		Slot:        res.Slot,
	}, nil
}

func (e *Engine) ensureDestination(ctx context.Context, req TransferRequest) error {
	if !req.DestinationOwner.IsZero() {
		canonical, err := e.Resolve(req.DestinationOwner, req.Mint)
		if err != nil {
			return err
		}
		if canonical != req.Destination {
			return &RejectedError{Reason: fmt.Sprintf("destination %s is not the token account of owner %s (expected %s)",
				req.Destination, req.DestinationOwner, canonical)}
		}
	}

	exists, err := e.Exists(ctx, req.Destination)
	if err != nil {
		return fmt.Errorf("destination %s: %w", req.Destination, err)
	}
	if exists {
		return nil
	}
	if req.DestinationOwner.IsZero() {
		return fmt.Errorf("destination %s: %w (owner unknown, cannot provision)", req.Destination, ErrAccountNotFound)
	}

	logger.Infof("[Transfer] destination %s missing, provisioning for owner %s", req.Destination, req.DestinationOwner)
	if _, err := e.Provision(ctx, req.DestinationOwner, req.Mint, req.Authority); err != nil {
		return fmt.Errorf("provision destination: %w", err)
	}
	return nil
}
