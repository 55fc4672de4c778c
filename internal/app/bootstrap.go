package app

import (
	"errors"
	"strings"

	"github.com/musicfy-storefront/internal/config"
	"github.com/musicfy-storefront/internal/constants"
	"github.com/musicfy-storefront/internal/provider"
	"github.com/musicfy-storefront/internal/router"
	"github.com/musicfy-storefront/internal/worker"
)

// BuildRunner 构建服务运行器
func BuildRunner(cfg *config.Config, mode string) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if err := validateMode(mode); err != nil {
		return nil, err
	}

	container := provider.NewContainer(cfg)

	var services []Service

	// 初始化 HTTP 服务
	if mode == ModeAll || mode == ModeAPI {
		engine := router.SetupRouter(cfg, container)
		addr := cfg.Server.Host + ":" + cfg.Server.Port
		httpService := NewHTTPService(addr, engine)
		services = append(services, httpService)

		// 会话驱逐与过期键值清理，跟随持有会话注册表的 API 进程
		scheduler, err := worker.NewScheduler(cfg.Session, container.Sessions, purgerFor(cfg, container))
		if err != nil {
			return nil, err
		}
		services = append(services, scheduler)
	}

	// 初始化 Worker 服务
	if mode == ModeAll || mode == ModeWorker {
		consumer := worker.NewConsumer(container)
		workerService, err := worker.NewService(&cfg.Queue, consumer)
		if err != nil {
			return nil, err
		}
		services = append(services, workerService)
	}

	// 如果没有服务被启动（例如模式错误或配置导致都没起），应该报错或至少打日志
	if len(services) == 0 {
		return nil, errors.New("no services initialized (check mode and config)")
	}

	return NewRunner(services...), nil
}

// purgerFor 仅数据库存储需要定期清理
func purgerFor(cfg *config.Config, container *provider.Container) worker.KVPurger {
	storage := strings.ToLower(strings.TrimSpace(cfg.Cart.Storage))
	if storage != "" && storage != constants.CartStorageDatabase {
		return nil
	}
	if container.KVRepo == nil {
		return nil
	}
	return container.KVRepo
}

// Run 应用启动入口
func Run(opts Options) error {
	opts = normalizeOptions(opts)
	if opts.Config == nil {
		return errors.New("config is nil")
	}

	runner, err := BuildRunner(opts.Config, opts.Mode)
	if err != nil {
		return err
	}

	addr := opts.Config.Server.Host + ":" + opts.Config.Server.Port
	opts.Logger.Infow("app_start", "addr", addr, "mode", opts.Mode)
	return RunWithOptions(runner, opts)
}
