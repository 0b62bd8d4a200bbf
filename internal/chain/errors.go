package chain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/blocto/solana-go-sdk/rpc"
)

var (
	// ErrUnavailable 传输层失败 / 节点暂不可用，可重试
	ErrUnavailable = errors.New("rpc unavailable")
	// ErrBlockhashNotFound 交易引用的 blockhash 已过期或节点未知
	ErrBlockhashNotFound = errors.New("blockhash not found")
	// ErrInsufficientFunds 链上执行因余额不足失败（token 或手续费）
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrAccountNotFound 查询的账户不存在
	ErrAccountNotFound = errors.New("account not found")
)

// RPCError 节点明确返回的 JSON-RPC 错误（非传输层），通常不可重试
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// JSON-RPC 错误码
// 参考: https://github.com/anza-xyz/agave/blob/master/rpc-client-api/src/custom_error.rs
const (
	codeNodeUnhealthy = -32005
	codeInvalidParams = -32602
)

// Token 程序自定义错误 0x1 = InsufficientFunds（注意不能匹配 0x10 ~ 0x1f）
var tokenInsufficientFundsRe = regexp.MustCompile(`custom program error: 0x1(\D|$)`)

// IsTokenInsufficientFunds 判断错误描述是否为 Token 程序余额不足
func IsTokenInsufficientFunds(msg string) bool {
	return tokenInsufficientFundsRe.MatchString(msg) || strings.Contains(msg, "Custom:1]")
}

// classify 把 solana-go-sdk 返回的错误归类为本包的错误
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var rpcErr *rpc.JsonRpcError
	if !errors.As(err, &rpcErr) {
		// 非 JSON-RPC 错误：网络、超时、解码失败等
		return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
	}

	detail := strings.ToLower(fmt.Sprintf("%s %v", rpcErr.Message, rpcErr.Data))
	switch {
	case rpcErr.Code == codeNodeUnhealthy:
		return fmt.Errorf("%s: %w: %s", op, ErrUnavailable, rpcErr.Message)
	case strings.Contains(detail, "blockhash not found"):
		return fmt.Errorf("%s: %w", op, ErrBlockhashNotFound)
	case strings.Contains(detail, "insufficient funds"), IsTokenInsufficientFunds(detail):
		return fmt.Errorf("%s: %w: %s", op, ErrInsufficientFunds, rpcErr.Message)
	case rpcErr.Code == codeInvalidParams && strings.Contains(detail, "could not find account"):
		return fmt.Errorf("%s: %w", op, ErrAccountNotFound)
	default:
		return fmt.Errorf("%s: %w", op, &RPCError{Code: rpcErr.Code, Message: rpcErr.Message})
	}
}

// IsTransient 判断错误是否可通过重试恢复
func IsTransient(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
