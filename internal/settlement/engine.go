// Package settlement 实现 grant 结算流程：
// 账户推导 → (缺失时) 开户 → 余额检查 → TransferChecked 转账 → 确认。
package settlement

import (
	"context"
	"sync"
	"time"

	"grant-settlement-sol/internal/chain"
	"grant-settlement-sol/internal/consts"
	"grant-settlement-sol/internal/settlement/lock"
	"grant-settlement-sol/internal/types"
)

const defaultPollInterval = 500 * time.Millisecond

// GrantExecutor 执行一笔 grant 资金划转。
// 当前唯一实现是管理员签名的 TransferChecked 直转；链上 grants 程序作为后续扩展接入此接口。
type GrantExecutor interface {
	Transfer(ctx context.Context, req TransferRequest) (TransferRecord, error)
}

type Option struct {
	TokenProgram types.Pubkey  // 默认 Token-2022
	Decimals     uint8         // 必须与 mint 账户记录一致
	PollInterval time.Duration // 确认轮询间隔
}

// Engine 结算流程的各个组件共享同一个链客户端与出资账户锁
type Engine struct {
	client       chain.Client
	locker       lock.Locker
	tokenProgram types.Pubkey
	decimals     uint8
	pollInterval time.Duration

	mintMu     sync.RWMutex
	mintsReady map[types.Pubkey]struct{} // 已校验通过的 mint
}

var _ GrantExecutor = (*Engine)(nil)

func NewEngine(client chain.Client, locker lock.Locker, opt Option) *Engine {
	if opt.TokenProgram.IsZero() {
		opt.TokenProgram = consts.TokenProgram2022
	}
	if opt.PollInterval <= 0 {
		opt.PollInterval = defaultPollInterval
	}
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	return &Engine{
		client:       client,
		locker:       locker,
		tokenProgram: opt.TokenProgram,
		decimals:     opt.Decimals,
		pollInterval: opt.PollInterval,
		mintsReady:   make(map[types.Pubkey]struct{}),
	}
}

func (e *Engine) Decimals() uint8 {
	return e.decimals
}

func (e *Engine) TokenProgram() types.Pubkey {
	return e.tokenProgram
}

// SolBalance 返回 owner 的 SOL 余额（lamports），用于管理端展示手续费余量
func (e *Engine) SolBalance(ctx context.Context, owner types.Pubkey) (uint64, error) {
	lamports, err := e.client.GetBalance(ctx, owner)
	if err != nil {
		return 0, fromChain("getBalance", err)
	}
	return lamports, nil
}
