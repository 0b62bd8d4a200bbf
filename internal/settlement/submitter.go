package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	sdktypes "github.com/blocto/solana-go-sdk/types"
	"github.com/mr-tron/base58"

	"grant-settlement-sol/internal/chain"
	"grant-settlement-sol/internal/pkg/logger"
)

// submitResult 已确认交易的结果
type submitResult struct {
	Signature  string
	Slot       uint64
	Checkpoint chain.Checkpoint
}

// SubmittedFunc 交易签名后、广播前回调，用于持久化在途签名
type SubmittedFunc func(signature string, lastValidBlockHeight uint64)

// submit 获取新 checkpoint → 签名 → 广播 → 轮询确认直到 checkpoint 过期。
//
// 签名在广播前已确定，广播阶段的传输错误不会直接返回：交易可能已被节点接收，
// 这里继续轮询并重播同一笔已签名交易，直到确认或区块高度越过 lastValidBlockHeight。
// 只有确认交易不可能再上链时才返回 ErrExpired，调用方据此用新 checkpoint 重建整笔操作。
func (e *Engine) submit(
	ctx context.Context,
	feePayer sdktypes.Account,
	ixs []sdktypes.Instruction,
	onSubmitted SubmittedFunc,
) (submitResult, error) {
	cp, err := e.client.GetLatestBlockhash(ctx)
	if err != nil {
		return submitResult{}, fromChain("getLatestBlockhash", err)
	}

	tx, err := sdktypes.NewTransaction(sdktypes.NewTransactionParam{
		Message: sdktypes.NewMessage(sdktypes.NewMessageParam{
			FeePayer:        feePayer.PublicKey,
			RecentBlockhash: cp.Blockhash,
			Instructions:    ixs,
		}),
		Signers: []sdktypes.Account{feePayer},
	})
	if err != nil {
		return submitResult{}, fmt.Errorf("build transaction: %w", err)
	}
	if len(tx.Signatures) == 0 {
		return submitResult{}, errors.New("build transaction: no signature")
	}
	sig := base58.Encode(tx.Signatures[0])

	if onSubmitted != nil {
		onSubmitted(sig, cp.LastValidBlockHeight)
	}

	rebroadcast := false
	if _, err := e.client.SendTransaction(ctx, tx); err != nil {
		if !chain.IsTransient(err) {
			// 节点明确拒绝（preflight 失败），交易不会上链
			return submitResult{}, fromChain("sendTransaction", err)
		}
		logger.Warnf("[Submit] send %s failed transiently, will poll and rebroadcast: %v", sig, err)
		rebroadcast = true
	}

	res, err := e.awaitConfirmation(ctx, tx, sig, cp, rebroadcast)
	if err != nil {
		return submitResult{}, err
	}
	return res, nil
}

func (e *Engine) awaitConfirmation(
	ctx context.Context,
	tx sdktypes.Transaction,
	sig string,
	cp chain.Checkpoint,
	rebroadcast bool,
) (submitResult, error) {
	pending := func(cause error) error {
		return &PendingConfirmationError{Signature: sig, LastValidBlockHeight: cp.LastValidBlockHeight, Err: cause}
	}

	for {
		st, err := e.client.GetSignatureStatus(ctx, sig)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return submitResult{}, pending(ctx.Err())
			}
			logger.Warnf("[Submit] status of %s unavailable: %v", sig, err)
		case st != nil && st.Err != "":
			return submitResult{}, fromOnChainErr(sig, st.Err)
		case st != nil && st.Confirmed:
			return submitResult{Signature: sig, Slot: st.Slot, Checkpoint: cp}, nil
		}

		if st == nil && err == nil {
			expired, herr := e.checkpointExpired(ctx, cp)
			if herr == nil && expired {
				// 过期后再查一次状态，避免错过刚好在最后一个有效区块上链的交易
				final, ferr := e.client.GetSignatureStatus(ctx, sig)
				if ferr == nil {
					switch {
					case final == nil:
						return submitResult{}, fmt.Errorf("tx %s: %w (last valid block height %d)", sig, ErrExpired, cp.LastValidBlockHeight)
					case final.Err != "":
						return submitResult{}, fromOnChainErr(sig, final.Err)
					case final.Confirmed:
						return submitResult{Signature: sig, Slot: final.Slot, Checkpoint: cp}, nil
					}
				}
			}
			if rebroadcast {
				if _, serr := e.client.SendTransaction(ctx, tx); serr == nil {
					rebroadcast = false
				} else {
					logger.Debugf("[Submit] rebroadcast %s failed: %v", sig, serr)
				}
			}
		}

		select {
		case <-ctx.Done():
			return submitResult{}, pending(ctx.Err())
		case <-time.After(e.pollInterval):
		}
	}
}

func (e *Engine) checkpointExpired(ctx context.Context, cp chain.Checkpoint) (bool, error) {
	height, err := e.client.GetBlockHeight(ctx)
	if err != nil {
		return false, err
	}
	return height > cp.LastValidBlockHeight, nil
}
