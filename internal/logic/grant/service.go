// Package grant 编排资助申请的完整流程：学生核验提交、管理员审批结算、拒绝与对账。
package grant

import (
	"context"
	"errors"
	"time"

	sdktypes "github.com/blocto/solana-go-sdk/types"

	"grant-settlement-sol/internal/ledger"
	"grant-settlement-sol/internal/mq"
	"grant-settlement-sol/internal/settlement"
	"grant-settlement-sol/internal/types"
	"grant-settlement-sol/internal/verify"
)

// ErrInvalidRequest 请求字段缺失或格式错误（地址、原因等）
var ErrInvalidRequest = errors.New("invalid request")

const (
	defaultRetryAttempts    = 3
	defaultRetryBaseDelay   = time.Second
	defaultStaleGuardAfter  = 5 * time.Minute
	defaultPublishTimeout   = 5 * time.Second
	provisionRetryAttempts  = 3
	provisionRetryBaseDelay = time.Second
)

// Verifier 学生身份核验
type Verifier interface {
	Verify(ctx context.Context, easeliteID string) (verify.Student, error)
}

type Option struct {
	Mint  types.Pubkey
	Admin sdktypes.Account // 出资账户 owner，同时支付手续费

	RetryAttempts  int           // 结算提交的最大尝试次数
	RetryBaseDelay time.Duration // 第 i 次失败后等待 RetryBaseDelay*i
	// StaleGuardAfter 持有方超过该时长无心跳视为进程中断遗留，未确认的在途记录对账时释放
	StaleGuardAfter time.Duration
}

type Deps struct {
	Engine    *settlement.Engine
	Executor  settlement.GrantExecutor // 为空时使用 Engine 直转
	Store     ledger.Store
	Guard     ledger.Guard
	Verifier  Verifier
	Publisher mq.Publisher // 为空时不发布事件
}

type Service struct {
	engine    *settlement.Engine
	executor  settlement.GrantExecutor
	store     ledger.Store
	guard     ledger.Guard
	verifier  Verifier
	publisher mq.Publisher

	mint               types.Pubkey
	admin              sdktypes.Account
	retryAttempts      int
	retryBaseDelay     time.Duration
	staleGuardAfter    time.Duration
	provisionBaseDelay time.Duration
	now                func() time.Time
}

func NewService(deps Deps, opt Option) *Service {
	if deps.Executor == nil {
		deps.Executor = deps.Engine
	}
	if deps.Publisher == nil {
		deps.Publisher = mq.NopPublisher{}
	}
	if opt.RetryAttempts <= 0 {
		opt.RetryAttempts = defaultRetryAttempts
	}
	if opt.RetryBaseDelay <= 0 {
		opt.RetryBaseDelay = defaultRetryBaseDelay
	}
	if opt.StaleGuardAfter <= 0 {
		opt.StaleGuardAfter = defaultStaleGuardAfter
	}
	return &Service{
		engine:             deps.Engine,
		executor:           deps.Executor,
		store:              deps.Store,
		guard:              deps.Guard,
		verifier:           deps.Verifier,
		publisher:          deps.Publisher,
		mint:               opt.Mint,
		admin:              opt.Admin,
		retryAttempts:      opt.RetryAttempts,
		retryBaseDelay:     opt.RetryBaseDelay,
		staleGuardAfter:    opt.StaleGuardAfter,
		provisionBaseDelay: provisionRetryBaseDelay,
		now:                time.Now,
	}
}

func (s *Service) AdminOwner() types.Pubkey {
	return types.PubkeyFromCommon(s.admin.PublicKey)
}

// AdminTokenAccount 管理员的规范 token account
func (s *Service) AdminTokenAccount() (types.Pubkey, error) {
	return s.engine.Resolve(s.AdminOwner(), s.mint)
}

// publish 事件发布失败只记录，不影响已完成的状态变更
func (s *Service) publish(ctx context.Context, e *mq.SettlementEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultPublishTimeout)
	defer cancel()
	if err := s.publisher.Publish(ctx, e); err != nil {
		onPublishFailed(e, err)
	}
}
