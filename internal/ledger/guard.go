package ledger

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrSettlementInFlight 同一 grant 已有结算在进行
	ErrSettlementInFlight = errors.New("settlement already in flight for grant")
	// ErrGuardNotHeld 在途记录已不存在（被释放或过期）
	ErrGuardNotHeld = errors.New("settlement guard not held")
)

// GuardRecord 在途结算记录。Signature 为空表示尚未签名广播。
type GuardRecord struct {
	GrantID              int64     `json:"grantId"`
	Signature            string    `json:"signature,omitempty"`
	LastValidBlockHeight uint64    `json:"lastValidBlockHeight,omitempty"`
	StartedAt            time.Time `json:"startedAt"`
	// UpdatedAt 持有方最近一次心跳（Begin / Touch / MarkSubmitted）
	UpdatedAt time.Time `json:"updatedAt"`
}

// LastActive 持有方最近活动时间，旧记录没有心跳时退回 StartedAt
func (r *GuardRecord) LastActive() time.Time {
	if r.UpdatedAt.IsZero() {
		return r.StartedAt
	}
	return r.UpdatedAt
}

// Guard 保证同一 grant 同时只有一笔结算，并记录在途签名供对账
type Guard interface {
	// Begin 占用 grant，已被占用返回 ErrSettlementInFlight
	Begin(ctx context.Context, grantID int64) error
	// Touch 持有方心跳，记录不存在返回 ErrGuardNotHeld
	Touch(ctx context.Context, grantID int64) error
	// MarkSubmitted 记录已签名交易的签名与有效期
	MarkSubmitted(ctx context.Context, grantID int64, signature string, lastValidBlockHeight uint64) error
	// Get 不存在时返回 (nil, nil)
	Get(ctx context.Context, grantID int64) (*GuardRecord, error)
	Release(ctx context.Context, grantID int64) error
}

// MemoryGuard 进程内实现
type MemoryGuard struct {
	mu      sync.Mutex
	records map[int64]*GuardRecord
	now     func() time.Time
}

var _ Guard = (*MemoryGuard)(nil)

func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{records: make(map[int64]*GuardRecord), now: time.Now}
}

func (m *MemoryGuard) Begin(_ context.Context, grantID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[grantID]; ok {
		return ErrSettlementInFlight
	}
	now := m.now()
	m.records[grantID] = &GuardRecord{GrantID: grantID, StartedAt: now, UpdatedAt: now}
	return nil
}

func (m *MemoryGuard) Touch(_ context.Context, grantID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[grantID]
	if !ok {
		return ErrGuardNotHeld
	}
	rec.UpdatedAt = m.now()
	return nil
}

func (m *MemoryGuard) MarkSubmitted(_ context.Context, grantID int64, signature string, lastValidBlockHeight uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[grantID]
	if !ok {
		rec = &GuardRecord{GrantID: grantID, StartedAt: m.now()}
		m.records[grantID] = rec
	}
	rec.Signature = signature
	rec.LastValidBlockHeight = lastValidBlockHeight
	rec.UpdatedAt = m.now()
	return nil
}

func (m *MemoryGuard) Get(_ context.Context, grantID int64) (*GuardRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[grantID]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (m *MemoryGuard) Release(_ context.Context, grantID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, grantID)
	return nil
}
