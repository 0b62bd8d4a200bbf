package grant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"grant-settlement-sol/internal/consts"
	"grant-settlement-sol/internal/pkg/logger"
	"grant-settlement-sol/internal/settlement"
	"grant-settlement-sol/internal/types"
)

// AccountView 钱包在当前 mint 下的账户概览；Exists=false 表示尚未开户
type AccountView struct {
	Owner        string `json:"owner"`
	TokenAccount string `json:"tokenAccount"`
	Exists       bool   `json:"exists"`
	Balance      string `json:"balance"`      // 十进制
	BalanceMinor uint64 `json:"balanceMinor"` // 最小单位
	Lamports     uint64 `json:"lamports"`
	Sol          string `json:"sol"`
}

func (s *Service) Account(ctx context.Context, ownerAddress string) (*AccountView, error) {
	owner, err := types.TryPubkeyFromBase58(strings.TrimSpace(ownerAddress))
	if err != nil {
		return nil, fmt.Errorf("%w: owner address: %v", ErrInvalidRequest, err)
	}
	return s.account(ctx, owner)
}

// AdminAccount 管理端展示：管理员地址、SOL 余额、token 余额或“尚未开户”
func (s *Service) AdminAccount(ctx context.Context) (*AccountView, error) {
	return s.account(ctx, s.AdminOwner())
}

func (s *Service) account(ctx context.Context, owner types.Pubkey) (*AccountView, error) {
	ata, err := s.engine.Resolve(owner, s.mint)
	if err != nil {
		return nil, err
	}
	view := &AccountView{Owner: owner.String(), TokenAccount: ata.String(), Balance: "0", Sol: "0"}

	lamports, err := s.engine.SolBalance(ctx, owner)
	if err != nil {
		return nil, err
	}
	view.Lamports = lamports
	view.Sol = settlement.FormatAmount(settlement.Amount(lamports), consts.SOLDecimals)

	bal, err := s.engine.Balance(ctx, ata)
	switch {
	case errors.Is(err, settlement.ErrAccountNotFound):
		return view, nil
	case err != nil:
		return nil, err
	}
	view.Exists = true
	view.BalanceMinor = uint64(bal)
	view.Balance = settlement.FormatAmount(bal, s.engine.Decimals())
	return view, nil
}

// EnsureAdminAccount 为管理员创建 token account（已存在直接返回），失败按 1s*attempt 重试 3 次
func (s *Service) EnsureAdminAccount(ctx context.Context) (*AccountView, error) {
	ata, err := settlement.WithRetry(ctx, func(ctx context.Context) (types.Pubkey, error) {
		return s.engine.Provision(ctx, s.AdminOwner(), s.mint, s.admin)
	}, provisionRetryAttempts, s.provisionBaseDelay)
	if err != nil {
		return nil, err
	}
	logger.Infof("[Grant] admin token account %s ready", ata)
	return s.AdminAccount(ctx)
}
