package grant

import (
	"errors"

	"grant-settlement-sol/internal/ledger"
	"grant-settlement-sol/internal/settlement"
)

// 错误码，HTTP 响应与指标共用
const (
	CodeOK                  = "ok"
	CodeInvalidRequest      = "invalid_request"
	CodeInvalidAmount       = "invalid_amount"
	CodeInsufficientBalance = "insufficient_balance"
	CodeAccountNotFound     = "account_not_found"
	CodeExpired             = "expired"
	CodeRejected            = "rejected"
	CodeNetworkError        = "network_error"
	CodeVerificationFailed  = "verification_failed"
	CodeNotFound            = "not_found"
	CodeNotPending          = "not_pending"
	CodeSettlementInFlight  = "settlement_in_flight"
	CodePendingConfirmation = "pending_confirmation"
	CodeInternal            = "internal_error"
)

// Code 把错误映射为稳定的错误码。顺序有意义：待确认优先于其包装的 ctx 错误
func Code(err error) string {
	if err == nil {
		return CodeOK
	}
	if _, ok := settlement.IsPendingConfirmation(err); ok {
		return CodePendingConfirmation
	}
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return CodeInvalidRequest
	case errors.Is(err, settlement.ErrInvalidAmount):
		return CodeInvalidAmount
	case errors.Is(err, settlement.ErrInsufficientBalance):
		return CodeInsufficientBalance
	case errors.Is(err, settlement.ErrAccountNotFound):
		return CodeAccountNotFound
	case errors.Is(err, settlement.ErrExpired):
		return CodeExpired
	case errors.Is(err, settlement.ErrRejected):
		return CodeRejected
	case errors.Is(err, settlement.ErrNetwork):
		return CodeNetworkError
	case errors.Is(err, settlement.ErrVerificationFailed):
		return CodeVerificationFailed
	case errors.Is(err, ledger.ErrGrantNotFound):
		return CodeNotFound
	case errors.Is(err, ledger.ErrNotPending):
		return CodeNotPending
	case errors.Is(err, ledger.ErrSettlementInFlight), errors.Is(err, ledger.ErrGuardNotHeld):
		return CodeSettlementInFlight
	}
	return CodeInternal
}
