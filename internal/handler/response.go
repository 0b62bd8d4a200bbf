package handler

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	"grant-settlement-sol/internal/logic/grant"
	"grant-settlement-sol/internal/pkg/logger"
	"grant-settlement-sol/internal/settlement"
)

var codeStatus = map[string]int{
	grant.CodeInvalidRequest:      http.StatusBadRequest,
	grant.CodeInvalidAmount:       http.StatusBadRequest,
	grant.CodeVerificationFailed:  http.StatusForbidden,
	grant.CodeNotFound:            http.StatusNotFound,
	grant.CodeNotPending:          http.StatusConflict,
	grant.CodeSettlementInFlight:  http.StatusConflict,
	grant.CodeInsufficientBalance: http.StatusUnprocessableEntity,
	grant.CodeAccountNotFound:     http.StatusUnprocessableEntity,
	grant.CodeRejected:            http.StatusUnprocessableEntity,
	grant.CodeExpired:             http.StatusServiceUnavailable,
	grant.CodeNetworkError:        http.StatusServiceUnavailable,
	grant.CodePendingConfirmation: http.StatusAccepted,
}

// 面向用户的提示；其余错误码直接返回错误信息
var codeMessage = map[string]string{
	grant.CodeNetworkError:        "network issue, try again",
	grant.CodeExpired:             "transaction expired before confirmation, try again",
	grant.CodeInsufficientBalance: "insufficient balance",
	grant.CodeVerificationFailed:  "student verification failed",
	grant.CodeInternal:            "internal error",
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := grant.Code(err)

	if p, ok := settlement.IsPendingConfirmation(err); ok {
		httpx.WriteJsonCtx(r.Context(), w, http.StatusAccepted, PendingResp{
			Code:                 code,
			Message:              "transaction submitted, confirmation pending",
			Signature:            p.Signature,
			LastValidBlockHeight: p.LastValidBlockHeight,
		})
		return
	}

	status, ok := codeStatus[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	msg, ok := codeMessage[code]
	if !ok {
		msg = err.Error()
	}
	if status >= http.StatusInternalServerError {
		logger.Errorf("[API] %s %s failed: %v", r.Method, r.URL.Path, err)
	}
	httpx.WriteJsonCtx(r.Context(), w, status, ErrorResp{Code: code, Message: msg})
}

// writeParseError 请求解析失败统一按 invalid_request 返回
func writeParseError(w http.ResponseWriter, r *http.Request, err error) {
	httpx.WriteJsonCtx(r.Context(), w, http.StatusBadRequest, ErrorResp{Code: grant.CodeInvalidRequest, Message: err.Error()})
}
