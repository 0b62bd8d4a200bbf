package grant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"grant-settlement-sol/internal/ledger"
	"grant-settlement-sol/internal/mq"
	"grant-settlement-sol/internal/pkg/logger"
	"grant-settlement-sol/internal/pkg/monitor"
	"grant-settlement-sol/internal/settlement"
	"grant-settlement-sol/internal/types"
)

type ApproveResult struct {
	Grant    *ledger.GrantRequest      `json:"grant"`
	Transfer settlement.TransferRecord `json:"transfer"`
	// AdminBalance 结算后的管理员余额（十进制），查询失败时为空
	AdminBalance string `json:"adminBalance,omitempty"`
}

// Approve 对 pending 申请执行结算，链上确认后才标记 approved。
// 任何失败都保持 pending；等待确认被中断时返回 *settlement.PendingConfirmationError。
// 交易已广播而结果未定时在途记录保留给对账流程处理。
func (s *Service) Approve(ctx context.Context, id int64) (result *ApproveResult, err error) {
	start := s.now()
	defer func() {
		monitor.ObserveSettlement(Code(err), s.now().Sub(start))
	}()

	g, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if g.Status != ledger.StatusPending {
		return nil, fmt.Errorf("grant %d is %s: %w", id, g.Status, ledger.ErrNotPending)
	}

	req, err := s.transferRequest(g)
	if err != nil {
		return nil, err
	}

	if err := s.guard.Begin(ctx, id); err != nil {
		return nil, fmt.Errorf("grant %d: %w", id, err)
	}
	keepGuard := false
	defer func() {
		if keepGuard {
			return
		}
		if rerr := s.guard.Release(context.WithoutCancel(ctx), id); rerr != nil {
			logger.Errorf("[Grant] release guard of grant %d failed: %v", id, rerr)
		}
	}()

	// submitted 表示本次尝试的交易已签名广播，链上结果未知前不能释放在途记录
	submitted := false
	req.OnSubmitted = func(sig string, lastValid uint64) {
		submitted = true
		// 广播前记录签名；写入失败不阻断结算，对账时该笔只能等 TTL 过期
		if merr := s.guard.MarkSubmitted(context.WithoutCancel(ctx), id, sig, lastValid); merr != nil {
			logger.Errorf("[Grant] record in-flight signature %s of grant %d failed: %v", sig, id, merr)
		}
	}

	record, err := settlement.WithRetry(ctx, func(ctx context.Context) (settlement.TransferRecord, error) {
		submitted = false
		if terr := s.guard.Touch(ctx, id); terr != nil {
			if errors.Is(terr, ledger.ErrGuardNotHeld) {
				return settlement.TransferRecord{}, fmt.Errorf("grant %d: %w", id, terr)
			}
			logger.Warnf("[Grant] heartbeat of grant %d failed: %v", id, terr)
		}
		return s.executor.Transfer(ctx, req)
	}, s.retryAttempts, s.retryBaseDelay)
	if err != nil {
		p, pending := settlement.IsPendingConfirmation(err)
		switch {
		case pending:
			keepGuard = true
			logger.Warnf("[Grant] grant %d settlement %s awaiting confirmation, left for reconcile", id, p.Signature)
		case errors.Is(err, ledger.ErrGuardNotHeld):
			// 记录已不属于本次审批，不能再删
			keepGuard = true
			logger.Errorf("[Grant] grant %d guard lost before transfer: %v", id, err)
		case submitted && !settledNegative(err):
			keepGuard = true
			logger.Errorf("[Grant] grant %d settlement outcome unknown after broadcast, left for reconcile: %v", id, err)
		default:
			logger.Warnf("[Grant] grant %d settlement failed, stays pending: %v", id, err)
		}
		return nil, err
	}

	if err := s.markApproved(ctx, g, record.Signature, record.Slot); err != nil {
		// 链上已确认但落库失败，保留在途记录，由对账补记
		keepGuard = true
		return nil, err
	}

	approved, err := s.store.Get(ctx, id)
	if err != nil {
		approved = g
		approved.Status, approved.Signature = ledger.StatusApproved, record.Signature
	}
	result = &ApproveResult{Grant: approved, Transfer: record}
	if bal, berr := s.engine.Balance(ctx, req.Source); berr == nil {
		result.AdminBalance = settlement.FormatAmount(bal, s.engine.Decimals())
	} else {
		logger.Warnf("[Grant] refresh admin balance failed: %v", berr)
	}
	return result, nil
}

// settledNegative 广播后已确定不会到账的错误
func settledNegative(err error) bool {
	return errors.Is(err, settlement.ErrExpired) ||
		errors.Is(err, settlement.ErrRejected) ||
		errors.Is(err, settlement.ErrInsufficientBalance)
}

// markApproved 落库并发布事件；并发对账已补记同一签名时视为成功
func (s *Service) markApproved(ctx context.Context, g *ledger.GrantRequest, signature string, slot uint64) error {
	err := s.store.MarkApproved(ctx, g.ID, signature)
	if errors.Is(err, ledger.ErrNotPending) {
		if cur, gerr := s.store.Get(ctx, g.ID); gerr == nil && cur.Status == ledger.StatusApproved && cur.Signature == signature {
			return nil
		}
	}
	if err != nil {
		logger.Errorf("[Grant] grant %d confirmed on chain (sig=%s) but mark approved failed: %v", g.ID, signature, err)
		return fmt.Errorf("mark grant %d approved: %w", g.ID, err)
	}

	logger.Infof("[Grant] grant %d approved, amount=%s, sig=%s", g.ID, g.Amount, signature)
	s.publish(ctx, &mq.SettlementEvent{
		Type:         mq.EventGrantApproved,
		GrantID:      g.ID,
		EaseliteID:   g.EaseliteID,
		Owner:        g.OwnerAddress,
		TokenAccount: g.TokenAccountAddress,
		Amount:       g.Amount,
		Signature:    signature,
		Slot:         slot,
		Time:         s.now(),
	})
	return nil
}

func (s *Service) transferRequest(g *ledger.GrantRequest) (settlement.TransferRequest, error) {
	amount, err := settlement.ParseAmount(g.Amount, s.engine.Decimals())
	if err != nil {
		return settlement.TransferRequest{}, fmt.Errorf("grant %d: %w", g.ID, err)
	}
	owner, err := types.TryPubkeyFromBase58(g.OwnerAddress)
	if err != nil {
		return settlement.TransferRequest{}, fmt.Errorf("%w: grant %d owner: %v", ErrInvalidRequest, g.ID, err)
	}
	dest, err := types.TryPubkeyFromBase58(g.TokenAccountAddress)
	if err != nil {
		return settlement.TransferRequest{}, fmt.Errorf("%w: grant %d token account: %v", ErrInvalidRequest, g.ID, err)
	}
	source, err := s.AdminTokenAccount()
	if err != nil {
		return settlement.TransferRequest{}, err
	}
	return settlement.TransferRequest{
		Source:           source,
		Destination:      dest,
		DestinationOwner: owner,
		Mint:             s.mint,
		Amount:           amount,
		Authority:        s.admin,
	}, nil
}

// Reject pending → rejected；结算在途时拒绝操作
func (s *Service) Reject(ctx context.Context, id int64, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return fmt.Errorf("%w: reject reason is required", ErrInvalidRequest)
	}
	// 与 Approve 共用在途记录，占用期间双方互斥
	if err := s.guard.Begin(ctx, id); err != nil {
		return fmt.Errorf("grant %d: %w", id, err)
	}
	defer func() {
		if rerr := s.guard.Release(context.WithoutCancel(ctx), id); rerr != nil {
			logger.Errorf("[Grant] release guard of grant %d failed: %v", id, rerr)
		}
	}()

	if err := s.store.MarkRejected(ctx, id, reason); err != nil {
		return err
	}
	logger.Infof("[Grant] grant %d rejected: %s", id, reason)

	g, err := s.store.Get(ctx, id)
	if err != nil {
		logger.Warnf("[Grant] load rejected grant %d for event failed: %v", id, err)
		return nil
	}
	s.publish(ctx, &mq.SettlementEvent{
		Type:         mq.EventGrantRejected,
		GrantID:      g.ID,
		EaseliteID:   g.EaseliteID,
		Owner:        g.OwnerAddress,
		TokenAccount: g.TokenAccountAddress,
		Amount:       g.Amount,
		Reason:       reason,
		Time:         s.now(),
	})
	return nil
}

func onPublishFailed(e *mq.SettlementEvent, err error) {
	monitor.IncPublishFailure()
	logger.Errorf("[Grant] publish %s event of grant %d failed: %v", e.Type, e.GrantID, err)
}
