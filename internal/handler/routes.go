package handler

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest"

	"grant-settlement-sol/internal/svc"
)

func RegisterHandlers(server *rest.Server, sc *svc.ServiceContext) {
	// 学生端
	server.AddRoutes(
		[]rest.Route{
			{Method: http.MethodPost, Path: "/students/verify", Handler: VerifyStudentHandler(sc)},
			{Method: http.MethodPost, Path: "/grants", Handler: SubmitGrantHandler(sc)},
			{Method: http.MethodGet, Path: "/accounts/:owner", Handler: AccountHandler(sc)},
		},
		rest.WithPrefix("/api"),
	)

	// 管理端
	server.AddRoutes(
		[]rest.Route{
			{Method: http.MethodGet, Path: "/grants", Handler: ListGrantsHandler(sc)},
			{Method: http.MethodPost, Path: "/grants/:id/approve", Handler: ApproveGrantHandler(sc)},
			{Method: http.MethodPost, Path: "/grants/:id/reject", Handler: RejectGrantHandler(sc)},
			{Method: http.MethodGet, Path: "/admin/account", Handler: AdminAccountHandler(sc)},
			{Method: http.MethodPost, Path: "/admin/account", Handler: CreateAdminAccountHandler(sc)},
			{Method: http.MethodGet, Path: "/settlements/:signature", Handler: ReconcileHandler(sc)},
		},
		rest.WithJwt(sc.Config.Auth.AccessSecret),
		rest.WithPrefix("/api"),
	)
}
