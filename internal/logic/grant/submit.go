package grant

import (
	"context"
	"fmt"
	"strings"

	"grant-settlement-sol/internal/ledger"
	"grant-settlement-sol/internal/pkg/logger"
	"grant-settlement-sol/internal/settlement"
	"grant-settlement-sol/internal/types"
	"grant-settlement-sol/internal/verify"
)

const maxReasonLen = 500

type SubmitRequest struct {
	EaseliteID   string
	OwnerAddress string // 学生钱包地址
	Reason       string
	Amount       string // 十进制字符串，如 "2.5"
}

func (s *Service) VerifyStudent(ctx context.Context, easeliteID string) (verify.Student, error) {
	return s.verifier.Verify(ctx, easeliteID)
}

// Submit 核验学生身份后创建 pending 申请；收款 token account 在服务端推导
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*ledger.GrantRequest, error) {
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: reason is required", ErrInvalidRequest)
	}
	if len(reason) > maxReasonLen {
		return nil, fmt.Errorf("%w: reason longer than %d characters", ErrInvalidRequest, maxReasonLen)
	}

	amount, err := settlement.ParseAmount(req.Amount, s.engine.Decimals())
	if err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, fmt.Errorf("%w: amount must be greater than 0", settlement.ErrInvalidAmount)
	}

	owner, err := types.TryPubkeyFromBase58(strings.TrimSpace(req.OwnerAddress))
	if err != nil {
		return nil, fmt.Errorf("%w: owner address: %v", ErrInvalidRequest, err)
	}
	ata, err := s.engine.Resolve(owner, s.mint)
	if err != nil {
		return nil, fmt.Errorf("%w: owner address: %v", ErrInvalidRequest, err)
	}

	student, err := s.verifier.Verify(ctx, req.EaseliteID)
	if err != nil {
		return nil, err
	}

	g, err := s.store.Create(ctx, ledger.NewGrantRequest{
		EaseliteID:          student.EaseliteID,
		DisplayName:         student.Name,
		Reason:              reason,
		Amount:              settlement.FormatAmount(amount, s.engine.Decimals()),
		OwnerAddress:        owner.String(),
		TokenAccountAddress: ata.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("create grant request: %w", err)
	}
	logger.Infof("[Grant] request %d created, student=%s, amount=%s", g.ID, g.EaseliteID, g.Amount)
	return g, nil
}

func (s *Service) List(ctx context.Context, filter ledger.ListFilter) ([]*ledger.GrantRequest, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, filter.Status)
	}
	return s.store.List(ctx, filter)
}

func (s *Service) Get(ctx context.Context, id int64) (*ledger.GrantRequest, error) {
	return s.store.Get(ctx, id)
}
