package service

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"grant-settlement-sol/internal/config"
	"grant-settlement-sol/internal/logic/grant"
	"grant-settlement-sol/internal/pkg/logger"
)

const defaultRoundTimeout = time.Minute

type InFlightReconciler interface {
	ReconcileInFlight(ctx context.Context) (grant.ReconcileSummary, error)
}

// ReconcileService 周期性推进在途结算：已上链的补记 approved，确定失败的释放
type ReconcileService struct {
	reconciler   InFlightReconciler
	interval     time.Duration
	roundTimeout time.Duration
	stopChan     chan struct{}
	ctx          context.Context
	cancel       func(err error)
	rounds       chan grant.ReconcileSummary // 仅测试观察用，可为 nil
}

func NewReconcileService(cfg config.ReconcileConfig, reconciler InFlightReconciler) *ReconcileService {
	ctx, cancel := context.WithCancelCause(context.Background())
	interval := time.Duration(cfg.IntervalS) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &ReconcileService{
		reconciler:   reconciler,
		interval:     interval,
		roundTimeout: defaultRoundTimeout,
		stopChan:     make(chan struct{}),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start 阻塞直到 Stop；启动时先执行一轮，处理上次进程退出时遗留的在途记录
func (s *ReconcileService) Start() {
	logger.Infof("[ReconcileService] started, interval=%v", s.interval)
	s.runRound()
	s.scheduleNext()
	<-s.stopChan
	logger.Infof("[ReconcileService] stopped")
}

func (s *ReconcileService) scheduleNext() {
	time.AfterFunc(s.interval, func() {
		select {
		case <-s.ctx.Done():
			return
		default:
		}
		s.runRound()
		select {
		case <-s.ctx.Done():
			return
		default:
			s.scheduleNext()
		}
	})
}

func (s *ReconcileService) Stop() {
	s.cancel(errors.New("ReconcileService stop"))
	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}
}

func (s *ReconcileService) runRound() {
	sum, err := s.round()
	if err != nil {
		if s.ctx.Err() == nil {
			logger.Warnf("[ReconcileService] 本轮对账失败: %v", err)
		}
		return
	}
	if s.rounds != nil {
		select {
		case s.rounds <- sum:
		default:
		}
	}
}

func (s *ReconcileService) round() (sum grant.ReconcileSummary, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[ReconcileService] round panic: %v\n%s", r, debug.Stack())
			err = fmt.Errorf("round panic: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(s.ctx, s.roundTimeout)
	defer cancel()
	return s.reconciler.ReconcileInFlight(ctx)
}
