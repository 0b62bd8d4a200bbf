// Package lock 提供按 key 互斥的执行区，用于串行化同一出资账户上的转账。
package lock

import (
	"context"
	"errors"
	"strings"
	"sync"
)

var (
	ErrEmptyKey    = errors.New("lock key cannot be empty")
	ErrNilFn       = errors.New("lock function is nil")
	ErrNotAcquired = errors.New("failed to acquire lock")
)

// Locker 在持有 key 对应的互斥锁期间执行 fn，任何退出路径（含 panic / ctx 取消）都会释放锁
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// LocalLocker 进程内按 key 互斥，适用于单实例部署与测试
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{} // 容量 1 的信号量
	refs int
}

var _ Locker = (*LocalLocker)(nil)

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]*slot)}
}

func (l *LocalLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}
	if fn == nil {
		return ErrNilFn
	}

	s := l.acquireSlot(key)
	defer l.releaseSlot(key, s)

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		return errors.Join(ErrNotAcquired, ctx.Err())
	}
	defer func() { <-s.ch }()

	return fn(ctx)
}

func (l *LocalLocker) acquireSlot(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

// releaseSlot 引用计数归零时回收，避免 key 无限增长
func (l *LocalLocker) releaseSlot(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}
