package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/musicfy-storefront/internal/config"
	"github.com/musicfy-storefront/internal/logger"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	evictSpec          = "@every 1m"
	defaultPurgeSpec   = "@every 1h"
	defaultIdleMinutes = 30
	defaultRetainDays  = 30
)

// SessionEvictor 内存会话驱逐
type SessionEvictor interface {
	Evict(idle time.Duration) int
}

// KVPurger 过期键值槽清理
type KVPurger interface {
	PurgeUpdatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Scheduler 定时维护任务：驱逐空闲会话，清理长期未更新的访客购物车
type Scheduler struct {
	name     string
	cron     *cron.Cron
	sessions SessionEvictor
	purger   KVPurger
	idle     time.Duration
	retain   time.Duration
	now      func() time.Time
}

// NewScheduler 创建维护调度器，purger 为空时只做会话驱逐
func NewScheduler(cfg config.SessionConfig, sessions SessionEvictor, purger KVPurger) (*Scheduler, error) {
	if sessions == nil {
		return nil, errors.New("session evictor is nil")
	}
	idleMinutes := cfg.IdleEvictMinutes
	if idleMinutes <= 0 {
		idleMinutes = defaultIdleMinutes
	}
	retainDays := cfg.RetainDays
	if retainDays <= 0 {
		retainDays = defaultRetainDays
	}
	retain := time.Duration(retainDays) * 24 * time.Hour
	// 保留期不短于会话令牌有效期，避免仍可恢复的会话丢失购物车
	if ttl := time.Duration(cfg.ExpireHours) * time.Hour; retain < ttl {
		retain = ttl
	}
	s := &Scheduler{
		name:     "scheduler",
		cron:     cron.New(cron.WithChain(cron.Recover(cronLogger{logger.S()}))),
		sessions: sessions,
		purger:   purger,
		idle:     time.Duration(idleMinutes) * time.Minute,
		retain:   retain,
		now:      time.Now,
	}
	if _, err := s.cron.AddFunc(evictSpec, func() { s.evict() }); err != nil {
		return nil, fmt.Errorf("register evict job: %w", err)
	}
	if purger != nil {
		spec := strings.TrimSpace(cfg.PurgeCron)
		if spec == "" {
			spec = defaultPurgeSpec
		}
		if _, err := s.cron.AddFunc(spec, func() { s.purge(context.Background()) }); err != nil {
			return nil, fmt.Errorf("register purge job %q: %w", spec, err)
		}
	}
	return s, nil
}

// Name 服务名称
func (s *Scheduler) Name() string {
	if s == nil || s.name == "" {
		return "scheduler"
	}
	return s.name
}

// Start 启动调度并阻塞到 ctx 结束
func (s *Scheduler) Start(ctx context.Context) error {
	if s == nil || s.cron == nil {
		return errors.New("scheduler not initialized")
	}
	s.cron.Start()
	<-ctx.Done()
	return nil
}

// Stop 停止调度，等待运行中的任务结束
func (s *Scheduler) Stop(ctx context.Context) error {
	if s == nil || s.cron == nil {
		return nil
	}
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce 立即执行一轮维护
func (s *Scheduler) RunOnce(ctx context.Context) (int, int64) {
	return s.evict(), s.purge(ctx)
}

func (s *Scheduler) evict() int {
	evicted := s.sessions.Evict(s.idle)
	if evicted > 0 {
		logger.Infow("scheduler_sessions_evicted", "count", evicted, "idle", s.idle.String())
	}
	return evicted
}

func (s *Scheduler) purge(ctx context.Context) int64 {
	if s.purger == nil {
		return 0
	}
	cutoff := s.now().Add(-s.retain)
	purged, err := s.purger.PurgeUpdatedBefore(ctx, cutoff)
	if err != nil {
		logger.Warnw("scheduler_kv_purge_failed", "cutoff", cutoff, "error", err)
		return 0
	}
	if purged > 0 {
		logger.Infow("scheduler_kv_purged", "count", purged, "cutoff", cutoff)
	}
	return purged
}

// cronLogger 将 cron 日志接入 zap
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw("cron_"+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw("cron_"+msg, append(keysAndValues, "error", err)...)
}
