package app

import (
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/musicfy-storefront/internal/config"
	"github.com/musicfy-storefront/internal/logger"

	"go.uber.org/zap"
)

// 启动模式：api 进程持有会话注册表与定时清理，worker 只消费订单队列
const (
	ModeAll    = "all"
	ModeAPI    = "api"
	ModeWorker = "worker"
)

// Options 应用启动选项
type Options struct {
	Config          *config.Config
	Logger          *zap.SugaredLogger
	Signals         []os.Signal
	ShutdownTimeout time.Duration
	Mode            string
}

// normalizeOptions 补齐默认参数；未指定信号时监听 SIGINT 与 SIGTERM
func normalizeOptions(opts Options) Options {
	if opts.Logger == nil {
		opts.Logger = logger.S()
	}
	if opts.Signals == nil {
		opts.Signals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	opts.Mode = strings.ToLower(strings.TrimSpace(opts.Mode))
	if opts.Mode == "" {
		opts.Mode = ModeAll
	}
	return opts
}

func validateMode(mode string) error {
	switch mode {
	case ModeAll, ModeAPI, ModeWorker:
		return nil
	default:
		return fmt.Errorf("unknown mode %q (want %s, %s or %s)", mode, ModeAll, ModeAPI, ModeWorker)
	}
}
