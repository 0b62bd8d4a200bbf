package handler

type VerifyStudentReq struct {
	EaseliteID string `json:"easeliteId"`
}

type SubmitGrantReq struct {
	EaseliteID   string `json:"easeliteId"`
	OwnerAddress string `json:"ownerAddress"`
	Reason       string `json:"reason"`
	Amount       string `json:"amount"`
}

type ListGrantsReq struct {
	Status string `form:"status,optional"`
	Limit  int    `form:"limit,optional"`
}

type GrantIDReq struct {
	ID int64 `path:"id"`
}

type RejectGrantReq struct {
	ID     int64  `path:"id"`
	Reason string `json:"reason"`
}

type AccountReq struct {
	Owner string `path:"owner"`
}

type ReconcileReq struct {
	Signature            string `path:"signature"`
	LastValidBlockHeight uint64 `form:"lastValidBlockHeight,optional"`
}

type ErrorResp struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type PendingResp struct {
	Code                 string `json:"code"`
	Message              string `json:"message"`
	Signature            string `json:"signature"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}
