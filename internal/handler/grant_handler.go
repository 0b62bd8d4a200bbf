package handler

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	"grant-settlement-sol/internal/ledger"
	"grant-settlement-sol/internal/logic/grant"
	"grant-settlement-sol/internal/svc"
)

func VerifyStudentHandler(sc *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req VerifyStudentReq
		if err := httpx.Parse(r, &req); err != nil {
			writeParseError(w, r, err)
			return
		}
		student, err := sc.Grant.VerifyStudent(r.Context(), req.EaseliteID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		httpx.OkJsonCtx(r.Context(), w, student)
	}
}

func SubmitGrantHandler(sc *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SubmitGrantReq
		if err := httpx.Parse(r, &req); err != nil {
			writeParseError(w, r, err)
			return
		}
		g, err := sc.Grant.Submit(r.Context(), grant.SubmitRequest{
			EaseliteID:   req.EaseliteID,
			OwnerAddress: req.OwnerAddress,
			Reason:       req.Reason,
			Amount:       req.Amount,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		httpx.WriteJsonCtx(r.Context(), w, http.StatusCreated, g)
	}
}

func ListGrantsHandler(sc *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ListGrantsReq
		if err := httpx.Parse(r, &req); err != nil {
			writeParseError(w, r, err)
			return
		}
		list, err := sc.Grant.List(r.Context(), ledger.ListFilter{Status: ledger.Status(req.Status), Limit: req.Limit})
		if err != nil {
			writeError(w, r, err)
			return
		}
		if list == nil {
			list = []*ledger.GrantRequest{}
		}
		httpx.OkJsonCtx(r.Context(), w, list)
	}
}

func ApproveGrantHandler(sc *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req GrantIDReq
		if err := httpx.Parse(r, &req); err != nil {
			writeParseError(w, r, err)
			return
		}
		res, err := sc.Grant.Approve(r.Context(), req.ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		httpx.OkJsonCtx(r.Context(), w, res)
	}
}

func RejectGrantHandler(sc *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RejectGrantReq
		if err := httpx.Parse(r, &req); err != nil {
			writeParseError(w, r, err)
			return
		}
		if err := sc.Grant.Reject(r.Context(), req.ID, req.Reason); err != nil {
			writeError(w, r, err)
			return
		}
		g, err := sc.Grant.Get(r.Context(), req.ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		httpx.OkJsonCtx(r.Context(), w, g)
	}
}
