package lock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"

	"grant-settlement-sol/internal/pkg/logger"
	"grant-settlement-sol/internal/pkg/monitor"
)

const defaultKeyPrefix = "settle:lock:"

type RedsyncOption struct {
	Prefix     string        // key 前缀
	Expiry     time.Duration // 锁过期时间，持有期间按 Expiry/2 自动续期
	Tries      int           // 获取锁的最大尝试次数
	RetryDelay time.Duration // 两次尝试之间的间隔
}

func DefaultRedsyncOption() RedsyncOption {
	return RedsyncOption{
		Prefix:     defaultKeyPrefix,
		Expiry:     30 * time.Second,
		Tries:      60,
		RetryDelay: 500 * time.Millisecond,
	}
}

// RedsyncLocker 基于 Redis 的分布式锁，多实例部署时保证同一出资账户串行结算
type RedsyncLocker struct {
	rs  *redsync.Redsync
	opt RedsyncOption
}

var _ Locker = (*RedsyncLocker)(nil)

func NewRedsyncLocker(client redis.UniversalClient, opt RedsyncOption) *RedsyncLocker {
	def := DefaultRedsyncOption()
	if opt.Prefix == "" {
		opt.Prefix = def.Prefix
	}
	if opt.Expiry <= 0 {
		opt.Expiry = def.Expiry
	}
	if opt.Tries <= 0 {
		opt.Tries = def.Tries
	}
	if opt.RetryDelay < 0 {
		opt.RetryDelay = def.RetryDelay
	}
	return &RedsyncLocker{
		rs:  redsync.New(goredis.NewPool(client)),
		opt: opt,
	}
}

func (r *RedsyncLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}
	if fn == nil {
		return ErrNilFn
	}

	name := r.opt.Prefix + key
	mutex := r.rs.NewMutex(
		name,
		redsync.WithExpiry(r.opt.Expiry),
		redsync.WithTries(r.opt.Tries),
		redsync.WithRetryDelay(r.opt.RetryDelay),
	)

	if err := mutex.LockContext(ctx); err != nil {
		return fmt.Errorf("%w %s: %v", ErrNotAcquired, name, err)
	}
	logger.Debugf("[Lock] acquired %s", name)

	// 确认等待可能超过 Expiry，持有期间后台续期
	stop := make(chan struct{})
	lost := make(chan struct{})
	go r.keepAlive(mutex, name, stop, lost)

	defer func() {
		close(stop)
		// 调用方 ctx 可能已取消，释放锁不受其影响
		unlockCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if ok, err := mutex.UnlockContext(unlockCtx); !ok || err != nil {
			logger.Warnf("[Lock] release %s failed: ok=%v, err=%v", name, ok, err)
		} else {
			logger.Debugf("[Lock] released %s", name)
		}
	}()

	// fn 的结果原样返回：锁中途失效时 fn 可能已产生链上副作用，不能改判为失败
	err := fn(ctx)
	select {
	case <-lost:
		monitor.IncLockLost()
		logger.Errorf("[Lock] %s expired while function was running, fn err=%v", name, err)
	default:
	}
	return err
}

func (r *RedsyncLocker) keepAlive(mutex *redsync.Mutex, name string, stop <-chan struct{}, lost chan<- struct{}) {
	ticker := time.NewTicker(r.opt.Expiry / 2)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ok, err := mutex.Extend()
			if err != nil || !ok {
				logger.Errorf("[Lock] extend %s failed: ok=%v, err=%v", name, ok, err)
				close(lost)
				return
			}
		}
	}
}
