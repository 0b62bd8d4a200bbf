package settlement

import (
	"context"
	"errors"
	"fmt"

	"grant-settlement-sol/internal/chain"
)

var (
	ErrInvalidAmount       = errors.New("amount must be a positive number of minor units")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrAccountNotFound     = errors.New("token account not found")
	ErrExpired             = errors.New("transaction checkpoint expired before confirmation")
	ErrRejected            = errors.New("rejected by ledger")
	ErrNetwork             = errors.New("network error")
	ErrVerificationFailed  = errors.New("verification failed")
)

// RejectedError 账本明确拒绝的操作，重复提交不会改变结果
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("rejected by ledger: %s", e.Reason)
}

func (e *RejectedError) Is(target error) bool {
	return target == ErrRejected
}

// NetworkError 传输层 / 节点暂不可用，可重试
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

func (e *NetworkError) Is(target error) bool {
	return target == ErrNetwork
}

// PendingConfirmationError 交易已广播但放弃了确认等待（ctx 超时/取消）。
// 交易仍可能上链，调用方需通过 Reconcile 查询最终状态，不能当作失败处理。
type PendingConfirmationError struct {
	Signature            string
	LastValidBlockHeight uint64
	Err                  error
}

func (e *PendingConfirmationError) Error() string {
	return fmt.Sprintf("confirmation pending for %s (valid until block %d): %v",
		e.Signature, e.LastValidBlockHeight, e.Err)
}

func (e *PendingConfirmationError) Unwrap() error {
	return e.Err
}

// IsRetryable 仅网络错误与 checkpoint 过期可重试
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var pending *PendingConfirmationError
	if errors.As(err, &pending) {
		return false
	}
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrExpired)
}

func IsPendingConfirmation(err error) (*PendingConfirmationError, bool) {
	var pending *PendingConfirmationError
	if errors.As(err, &pending) {
		return pending, true
	}
	return nil, false
}

// fromChain 把 chain 包的错误映射为结算错误
func fromChain(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}

	var rpcErr *chain.RPCError
	switch {
	case chain.IsTransient(err):
		return &NetworkError{Op: op, Err: err}
	case errors.Is(err, chain.ErrBlockhashNotFound):
		return fmt.Errorf("%s: %w", op, ErrExpired)
	case errors.Is(err, chain.ErrInsufficientFunds):
		return fmt.Errorf("%s: %w: %v", op, ErrInsufficientBalance, err)
	case errors.Is(err, chain.ErrAccountNotFound):
		return fmt.Errorf("%s: %w", op, ErrAccountNotFound)
	case errors.As(err, &rpcErr):
		return &RejectedError{Reason: rpcErr.Message}
	default:
		return &NetworkError{Op: op, Err: err}
	}
}

// fromOnChainErr 把已上链交易的执行错误映射为结算错误，永远不会是成功
func fromOnChainErr(sig, txErr string) error {
	if chain.IsTokenInsufficientFunds(txErr) {
		return fmt.Errorf("tx %s: %w: %s", sig, ErrInsufficientBalance, txErr)
	}
	return &RejectedError{Reason: fmt.Sprintf("tx %s failed: %s", sig, txErr)}
}
