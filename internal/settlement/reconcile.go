package settlement

import (
	"context"

	"grant-settlement-sol/internal/chain"
)

type SettlementState string

const (
	StateConfirmed SettlementState = "confirmed"
	StateFailed    SettlementState = "failed"
	StatePending   SettlementState = "pending" // 已见到但未达到 confirmed
	StateExpired   SettlementState = "expired" // 未上链且 checkpoint 已过期，不会再上链
	StateUnknown   SettlementState = "unknown"
)

type ReconcileResult struct {
	Signature string          `json:"signature"`
	State     SettlementState `json:"state"`
	Slot      uint64          `json:"slot,omitempty"`
	Err       string          `json:"err,omitempty"`
}

// Reconcile 查询已广播交易的最终状态。
// lastValidBlockHeight 为 0 表示未知，此时未找到的签名只能判定为 unknown。
func (e *Engine) Reconcile(ctx context.Context, signature string, lastValidBlockHeight uint64) (ReconcileResult, error) {
	res := ReconcileResult{Signature: signature, State: StateUnknown}

	st, err := e.client.GetSignatureStatus(ctx, signature)
	if err != nil {
		return res, fromChain("getSignatureStatuses", err)
	}
	if st != nil {
		res.Slot = st.Slot
		switch {
		case st.Err != "":
			res.State = StateFailed
			res.Err = st.Err
		case st.Confirmed:
			res.State = StateConfirmed
		default:
			res.State = StatePending
		}
		return res, nil
	}

	if lastValidBlockHeight == 0 {
		return res, nil
	}
	expired, err := e.checkpointExpired(ctx, chain.Checkpoint{LastValidBlockHeight: lastValidBlockHeight})
	if err != nil {
		return res, fromChain("getBlockHeight", err)
	}
	if !expired {
		res.State = StatePending
		return res, nil
	}

	// 过期后复查，避免与最后一个有效区块竞争
	st, err = e.client.GetSignatureStatus(ctx, signature)
	if err != nil {
		return res, fromChain("getSignatureStatuses", err)
	}
	switch {
	case st == nil:
		res.State = StateExpired
	case st.Err != "":
		res.State, res.Slot, res.Err = StateFailed, st.Slot, st.Err
	case st.Confirmed:
		res.State, res.Slot = StateConfirmed, st.Slot
	default:
		res.State, res.Slot = StatePending, st.Slot
	}
	return res, nil
}
