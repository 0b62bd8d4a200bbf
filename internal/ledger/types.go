// Package ledger 存储学生提交的 grant 申请及其审批状态。
package ledger

import (
	"context"
	"errors"
	"time"
)

var (
	ErrGrantNotFound = errors.New("grant request not found")
	// ErrNotPending 状态只能从 pending 变更一次
	ErrNotPending = errors.New("grant request is not pending")
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

type GrantRequest struct {
	ID                  int64     `json:"id"`
	EaseliteID          string    `json:"easeliteId"`
	DisplayName         string    `json:"displayName"`
	Reason              string    `json:"reason"`
	Amount              string    `json:"amount"` // 十进制字符串，如 "2.5"
	OwnerAddress        string    `json:"ownerAddress"`
	TokenAccountAddress string    `json:"tokenAccountAddress"`
	Status              Status    `json:"status"`
	Signature           string    `json:"signature,omitempty"`    // 审批通过后的转账签名
	RejectReason        string    `json:"rejectReason,omitempty"` // 拒绝原因
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

type NewGrantRequest struct {
	EaseliteID          string
	DisplayName         string
	Reason              string
	Amount              string
	OwnerAddress        string
	TokenAccountAddress string
}

type ListFilter struct {
	Status Status // 为空表示全部
	Limit  int    // <=0 表示不限制
}

// Store grant 申请存储；List 按插入顺序返回，状态只允许 pending → approved / rejected
type Store interface {
	Create(ctx context.Context, req NewGrantRequest) (*GrantRequest, error)
	Get(ctx context.Context, id int64) (*GrantRequest, error)
	List(ctx context.Context, filter ListFilter) ([]*GrantRequest, error)
	MarkApproved(ctx context.Context, id int64, signature string) error
	MarkRejected(ctx context.Context, id int64, reason string) error
}
