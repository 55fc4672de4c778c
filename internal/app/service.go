package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"time"

	"go.uber.org/zap"
)

var errServiceExited = errors.New("service exited before shutdown")

// Service 由 Runner 托管的长驻服务（HTTP、会话调度、队列消费）
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Runner 并发启动全部服务；任一服务退出或收到信号后，按注册顺序在同一时限内逐个停止
type Runner struct {
	services []Service
}

// NewRunner 创建服务运行器
func NewRunner(services ...Service) *Runner {
	return &Runner{services: services}
}

// RunWithOptions 运行服务并处理系统信号
func RunWithOptions(runner *Runner, opts Options) error {
	if runner == nil {
		return errors.New("runner is nil")
	}
	opts = normalizeOptions(opts)
	ctx := context.Background()
	if len(opts.Signals) > 0 {
		var cancel context.CancelFunc
		ctx, cancel = signal.NotifyContext(ctx, opts.Signals...)
		defer cancel()
	}
	return runner.Run(ctx, opts.ShutdownTimeout, opts.Logger)
}

// Run 阻塞直到 ctx 结束或某个服务退出；正常收到信号时返回 nil
func (r *Runner) Run(ctx context.Context, stopTimeout time.Duration, log *zap.SugaredLogger) error {
	if r == nil || len(r.services) == 0 {
		return errors.New("no services to run")
	}
	for i, svc := range r.services {
		if svc == nil {
			return fmt.Errorf("service #%d is nil", i)
		}
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	exited := make(chan error, len(r.services))
	for _, svc := range r.services {
		go func(svc Service) {
			log.Infow("service_start", "service", svc.Name())
			err := svc.Start(runCtx)
			if err == nil && runCtx.Err() == nil {
				err = errServiceExited
			}
			if err != nil {
				err = fmt.Errorf("%s: %w", svc.Name(), err)
			}
			log.Infow("service_exit", "service", svc.Name(), "error", err)
			exited <- err
		}(svc)
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-exited:
	}
	cancel()

	if stopErr := r.stopAll(stopTimeout, log); runErr == nil {
		runErr = stopErr
	}
	return runErr
}

func (r *Runner) stopAll(timeout time.Duration, log *zap.SugaredLogger) error {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	stopCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	for _, svc := range r.services {
		start := time.Now()
		if err := svc.Stop(stopCtx); err != nil {
			log.Errorw("service_stop_failed", "service", svc.Name(), "error", err)
			errs = append(errs, fmt.Errorf("stop %s: %w", svc.Name(), err))
			continue
		}
		log.Infow("service_stopped", "service", svc.Name(), "elapsed_ms", time.Since(start).Milliseconds())
	}
	return errors.Join(errs...)
}
