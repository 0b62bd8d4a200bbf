package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/blocto/solana-go-sdk/client"
	"github.com/blocto/solana-go-sdk/rpc"
	sdktypes "github.com/blocto/solana-go-sdk/types"
	"golang.org/x/time/rate"

	"grant-settlement-sol/internal/pkg/logger"
	"grant-settlement-sol/internal/pkg/monitor"
	"grant-settlement-sol/internal/types"
)

type SolanaClientOption struct {
	Endpoint        string // RPC 地址，例如 https://api.devnet.solana.com
	RateLimitPerSec int    // 每秒最大请求数，<=0 表示不限速
}

// SolanaClient 基于 solana-go-sdk 的 Client 实现，带客户端限速
type SolanaClient struct {
	client  *client.Client
	limiter *rate.Limiter
}

var _ Client = (*SolanaClient)(nil)

func NewSolanaClient(opt SolanaClientOption) *SolanaClient {
	s := &SolanaClient{client: client.NewClient(opt.Endpoint)}
	if opt.RateLimitPerSec > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(opt.RateLimitPerSec), opt.RateLimitPerSec)
	}
	return s
}

func (s *SolanaClient) wait(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}

func (s *SolanaClient) GetAccountInfo(ctx context.Context, account types.Pubkey) (*AccountInfo, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	info, err := s.client.GetAccountInfo(ctx, account.String())
	monitor.ObserveRPC("getAccountInfo", err)
	if err != nil {
		return nil, classify("getAccountInfo", err)
	}
	// SDK 对不存在的账户返回零值
	if info.Lamports == 0 && len(info.Data) == 0 {
		return nil, nil
	}
	return &AccountInfo{
		Owner:    types.PubkeyFromCommon(info.Owner),
		Lamports: info.Lamports,
		Data:     info.Data,
	}, nil
}

func (s *SolanaClient) GetTokenAccountBalance(ctx context.Context, account types.Pubkey) (uint64, error) {
	if err := s.wait(ctx); err != nil {
		return 0, err
	}
	amount, err := s.client.GetTokenAccountBalance(ctx, account.String())
	monitor.ObserveRPC("getTokenAccountBalance", err)
	if err != nil {
		return 0, classify("getTokenAccountBalance", err)
	}
	return amount.Amount, nil
}

func (s *SolanaClient) GetBalance(ctx context.Context, owner types.Pubkey) (uint64, error) {
	if err := s.wait(ctx); err != nil {
		return 0, err
	}
	lamports, err := s.client.GetBalance(ctx, owner.String())
	monitor.ObserveRPC("getBalance", err)
	if err != nil {
		return 0, classify("getBalance", err)
	}
	return lamports, nil
}

func (s *SolanaClient) GetLatestBlockhash(ctx context.Context) (Checkpoint, error) {
	if err := s.wait(ctx); err != nil {
		return Checkpoint{}, err
	}
	v, err := s.client.GetLatestBlockhash(ctx)
	monitor.ObserveRPC("getLatestBlockhash", err)
	if err != nil {
		return Checkpoint{}, classify("getLatestBlockhash", err)
	}
	return Checkpoint{
		Blockhash:            v.Blockhash,
		LastValidBlockHeight: v.LatestValidBlockHeight,
	}, nil
}

func (s *SolanaClient) GetBlockHeight(ctx context.Context) (uint64, error) {
	if err := s.wait(ctx); err != nil {
		return 0, err
	}
	// client.Client 未封装 getBlockHeight，直接走 RpcClient
	res, err := s.client.RpcClient.GetBlockHeight(ctx)
	if err == nil && res.Error != nil {
		err = res.Error
	}
	monitor.ObserveRPC("getBlockHeight", err)
	if err != nil {
		return 0, classify("getBlockHeight", err)
	}
	return res.Result, nil
}

func (s *SolanaClient) SendTransaction(ctx context.Context, tx sdktypes.Transaction) (string, error) {
	if err := s.wait(ctx); err != nil {
		return "", err
	}
	start := time.Now()
	sig, err := s.client.SendTransaction(ctx, tx)
	monitor.ObserveRPC("sendTransaction", err)
	if err != nil {
		return "", classify("sendTransaction", err)
	}
	logger.Debugf("[SolanaClient] sendTransaction ok, sig=%s, cost=%v", sig, time.Since(start))
	return sig, nil
}

func (s *SolanaClient) GetSignatureStatus(ctx context.Context, signature string) (*SignatureStatus, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	st, err := s.client.GetSignatureStatus(ctx, signature)
	monitor.ObserveRPC("getSignatureStatuses", err)
	if err != nil {
		return nil, classify("getSignatureStatuses", err)
	}
	if st == nil {
		return nil, nil
	}

	out := &SignatureStatus{Slot: st.Slot}
	if st.ConfirmationStatus != nil {
		switch *st.ConfirmationStatus {
		case rpc.CommitmentConfirmed, rpc.CommitmentFinalized:
			out.Confirmed = true
		}
	}
	if st.Err != nil {
		out.Err = fmt.Sprintf("%v", st.Err)
	}
	return out, nil
}
