package ledger

import (
	"context"
	"sync"
	"time"
)

// MemoryStore 进程内存储，用于本地演示与测试
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	order  []int64
	byID   map[int64]*GrantRequest
	now    func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID: 1,
		byID:   make(map[int64]*GrantRequest),
		now:    time.Now,
	}
}

func (m *MemoryStore) Create(_ context.Context, req NewGrantRequest) (*GrantRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	g := &GrantRequest{
		ID:                  m.nextID,
		EaseliteID:          req.EaseliteID,
		DisplayName:         req.DisplayName,
		Reason:              req.Reason,
		Amount:              req.Amount,
		OwnerAddress:        req.OwnerAddress,
		TokenAccountAddress: req.TokenAccountAddress,
		Status:              StatusPending,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	m.nextID++
	m.byID[g.ID] = g
	m.order = append(m.order, g.ID)

	cp := *g
	return &cp, nil
}

func (m *MemoryStore) Get(_ context.Context, id int64) (*GrantRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.byID[id]
	if !ok {
		return nil, ErrGrantNotFound
	}
	cp := *g
	return &cp, nil
}

func (m *MemoryStore) List(_ context.Context, filter ListFilter) ([]*GrantRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*GrantRequest, 0, len(m.order))
	for _, id := range m.order {
		g := m.byID[id]
		if filter.Status != "" && g.Status != filter.Status {
			continue
		}
		cp := *g
		out = append(out, &cp)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryStore) MarkApproved(_ context.Context, id int64, signature string) error {
	return m.transition(id, func(g *GrantRequest) {
		g.Status = StatusApproved
		g.Signature = signature
	})
}

func (m *MemoryStore) MarkRejected(_ context.Context, id int64, reason string) error {
	return m.transition(id, func(g *GrantRequest) {
		g.Status = StatusRejected
		g.RejectReason = reason
	})
}

func (m *MemoryStore) transition(id int64, apply func(g *GrantRequest)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.byID[id]
	if !ok {
		return ErrGrantNotFound
	}
	if g.Status != StatusPending {
		return ErrNotPending
	}
	apply(g)
	g.UpdatedAt = m.now()
	return nil
}

// SeedDemo 写入两条演示申请（仅 memory 后端使用）
func (m *MemoryStore) SeedDemo(ctx context.Context, ownerAddress, tokenAccountAddress string) error {
	demo := []NewGrantRequest{
		{EaseliteID: "EAS123", DisplayName: "Demo Student A", Reason: "Textbook expenses", Amount: "2"},
		{EaseliteID: "EAS124", DisplayName: "Demo Student B", Reason: "Laboratory fees", Amount: "3"},
	}
	for _, req := range demo {
		req.OwnerAddress = ownerAddress
		req.TokenAccountAddress = tokenAccountAddress
		if _, err := m.Create(ctx, req); err != nil {
			return err
		}
	}
	return nil
}
