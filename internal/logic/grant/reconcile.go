package grant

import (
	"context"
	"fmt"

	"grant-settlement-sol/internal/ledger"
	"grant-settlement-sol/internal/pkg/logger"
	"grant-settlement-sol/internal/pkg/monitor"
	"grant-settlement-sol/internal/settlement"
)

// Reconcile 查询某个已广播签名的最终状态
func (s *Service) Reconcile(ctx context.Context, signature string, lastValidBlockHeight uint64) (settlement.ReconcileResult, error) {
	if signature == "" {
		return settlement.ReconcileResult{}, fmt.Errorf("%w: signature is required", ErrInvalidRequest)
	}
	return s.engine.Reconcile(ctx, signature, lastValidBlockHeight)
}

type ReconcileSummary struct {
	Checked  int `json:"checked"`
	Approved int `json:"approved"` // 链上已确认，补记 approved
	Released int `json:"released"` // 确定不会上链或已失败，释放在途记录，申请保持 pending
	Pending  int `json:"pending"`  // 仍在途
}

// ReconcileInFlight 扫描 pending 申请的在途记录并推进到终态。
// 已确认 → approved；失败 / 过期 / 未签名且持有方超过 staleGuardAfter 无心跳 → 释放；其余保持不变。
func (s *Service) ReconcileInFlight(ctx context.Context) (ReconcileSummary, error) {
	var sum ReconcileSummary

	grants, err := s.store.List(ctx, ledger.ListFilter{Status: ledger.StatusPending})
	if err != nil {
		return sum, fmt.Errorf("list pending grants: %w", err)
	}

	for _, g := range grants {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		rec, err := s.guard.Get(ctx, g.ID)
		if err != nil {
			logger.Warnf("[Reconcile] read guard of grant %d failed: %v", g.ID, err)
			continue
		}
		if rec == nil {
			continue
		}
		sum.Checked++

		if err := s.reconcileOne(ctx, g, rec, &sum); err != nil {
			sum.Pending++
			logger.Warnf("[Reconcile] grant %d (sig=%s) not resolved: %v", g.ID, rec.Signature, err)
		}
	}

	monitor.SetInFlight(sum.Pending)
	if sum.Checked > 0 {
		logger.Infof("[Reconcile] checked=%d, approved=%d, released=%d, pending=%d",
			sum.Checked, sum.Approved, sum.Released, sum.Pending)
	}
	return sum, nil
}

func (s *Service) reconcileOne(ctx context.Context, g *ledger.GrantRequest, rec *ledger.GuardRecord, sum *ReconcileSummary) error {
	// 持有方仍有心跳时可能正处于两次重试之间，只有确认上链才可介入
	active := s.now().Sub(rec.LastActive()) < s.staleGuardAfter
	if rec.Signature == "" {
		if active {
			sum.Pending++
			return nil
		}
		logger.Warnf("[Reconcile] grant %d guard has no signature since %v, releasing", g.ID, rec.LastActive())
		return s.release(ctx, g.ID, sum)
	}

	res, err := s.engine.Reconcile(ctx, rec.Signature, rec.LastValidBlockHeight)
	if err != nil {
		return err
	}

	switch res.State {
	case settlement.StateConfirmed:
		if err := s.markApproved(ctx, g, res.Signature, res.Slot); err != nil {
			return err
		}
		sum.Approved++
		return s.guard.Release(ctx, g.ID)
	case settlement.StateFailed, settlement.StateExpired:
		if active {
			logger.Infof("[Reconcile] grant %d settlement %s %s but owner active at %v, keep guard",
				g.ID, res.Signature, res.State, rec.LastActive())
			sum.Pending++
			return nil
		}
		logger.Infof("[Reconcile] grant %d settlement %s %s (%s), grant stays pending", g.ID, res.Signature, res.State, res.Err)
		return s.release(ctx, g.ID, sum)
	default:
		sum.Pending++
		return nil
	}
}

func (s *Service) release(ctx context.Context, id int64, sum *ReconcileSummary) error {
	if err := s.guard.Release(ctx, id); err != nil {
		return err
	}
	sum.Released++
	return nil
}
