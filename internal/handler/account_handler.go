package handler

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	"grant-settlement-sol/internal/svc"
)

func AccountHandler(sc *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AccountReq
		if err := httpx.Parse(r, &req); err != nil {
			writeParseError(w, r, err)
			return
		}
		view, err := sc.Grant.Account(r.Context(), req.Owner)
		if err != nil {
			writeError(w, r, err)
			return
		}
		httpx.OkJsonCtx(r.Context(), w, view)
	}
}

func AdminAccountHandler(sc *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := sc.Grant.AdminAccount(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		httpx.OkJsonCtx(r.Context(), w, view)
	}
}

func CreateAdminAccountHandler(sc *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := sc.Grant.EnsureAdminAccount(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		httpx.OkJsonCtx(r.Context(), w, view)
	}
}

func ReconcileHandler(sc *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ReconcileReq
		if err := httpx.Parse(r, &req); err != nil {
			writeParseError(w, r, err)
			return
		}
		res, err := sc.Grant.Reconcile(r.Context(), req.Signature, req.LastValidBlockHeight)
		if err != nil {
			writeError(w, r, err)
			return
		}
		httpx.OkJsonCtx(r.Context(), w, res)
	}
}
