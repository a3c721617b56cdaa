package schedule

// forked_count 对账：worker 的增量消息可能丢失或重复，周期性按 itinerary_forks 重算

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"Atlas/internal/repository"
	"Atlas/pkg/logger"
	"Atlas/pkg/metrics"
)

// ForkCountStore 对账只依赖这一个方法
type ForkCountStore interface {
	ReconcileForkedCounts(ctx context.Context) (int64, error)
}

var (
	schedulerOnce sync.Once
	schedulerInst *ForkCountScheduler
)

type ForkCountScheduler struct {
	store   ForkCountStore
	logger  *zap.Logger
	running bool
	mu      sync.Mutex
	lastRun time.Time
}

func GetForkCountScheduler() *ForkCountScheduler {
	schedulerOnce.Do(func() {
		schedulerInst = NewForkCountScheduler(repository.Default())
	})
	return schedulerInst
}

func NewForkCountScheduler(store ForkCountStore) *ForkCountScheduler {
	return &ForkCountScheduler{
		store:  store,
		logger: logger.Logger,
	}
}

// Reconcile 执行一次对账，上一次还没结束时直接跳过
func (s *ForkCountScheduler) Reconcile(ctx context.Context) (int64, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Info("Fork count reconcile already running, skipping")
		return 0, nil
	}
	s.running = true
	s.lastRun = time.Now()
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	start := time.Now()
	fixed, err := s.store.ReconcileForkedCounts(ctx)
	if err != nil {
		s.logger.Error("Fork count reconcile failed", zap.Error(err))
		return 0, fmt.Errorf("reconcile forked counts: %w", err)
	}

	metrics.GetMetrics().RecordForkCountDrift(ctx, fixed)

	if fixed > 0 {
		s.logger.Warn("Fork counts drifted and were corrected",
			zap.Int64("itineraries", fixed),
			zap.Duration("duration", time.Since(start)),
		)
	} else {
		s.logger.Info("Fork counts consistent", zap.Duration("duration", time.Since(start)))
	}
	return fixed, nil
}

// LastRun 最近一次开始对账的时间
func (s *ForkCountScheduler) LastRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}

// Run 启动后立即对账一次，之后按 interval 周期执行，ctx 取消时退出
func (s *ForkCountScheduler) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}

	s.runOnce(ctx, interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, interval)
		}
	}
}

func (s *ForkCountScheduler) runOnce(ctx context.Context, interval time.Duration) {
	runCtx, cancel := context.WithTimeout(ctx, interval)
	defer cancel()
	// 错误已在 Reconcile 内记录
	_, _ = s.Reconcile(runCtx)
}
