package chain

import (
	"context"

	sdktypes "github.com/blocto/solana-go-sdk/types"

	"grant-settlement-sol/internal/types"
)

// AccountInfo 链上账户的最小视图
type AccountInfo struct {
	Owner    types.Pubkey // 所属程序
	Lamports uint64
	Data     []byte
}

// Checkpoint 交易新鲜度凭证：最近 blockhash 及其最后有效区块高度
type Checkpoint struct {
	Blockhash            string
	LastValidBlockHeight uint64
}

// SignatureStatus 交易签名的链上状态
type SignatureStatus struct {
	Slot      uint64
	Confirmed bool   // 已达到 confirmed / finalized
	Err       string // 非空表示交易已上链但执行失败
}

// Client 结算流程依赖的 Solana RPC 能力
type Client interface {
	// GetAccountInfo 账户不存在时返回 (nil, nil)
	GetAccountInfo(ctx context.Context, account types.Pubkey) (*AccountInfo, error)
	// GetTokenAccountBalance 返回最小单位余额；账户不存在时返回 ErrAccountNotFound
	GetTokenAccountBalance(ctx context.Context, account types.Pubkey) (uint64, error)
	// GetBalance 返回 SOL 余额（lamports）
	GetBalance(ctx context.Context, owner types.Pubkey) (uint64, error)
	GetLatestBlockhash(ctx context.Context) (Checkpoint, error)
	GetBlockHeight(ctx context.Context) (uint64, error)
	SendTransaction(ctx context.Context, tx sdktypes.Transaction) (string, error)
	// GetSignatureStatus 签名未知时返回 (nil, nil)
	GetSignatureStatus(ctx context.Context, signature string) (*SignatureStatus, error)
}
