package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/musicfy-storefront/internal/authz"
	"github.com/musicfy-storefront/internal/backend"
	"github.com/musicfy-storefront/internal/cache"
	"github.com/musicfy-storefront/internal/cart"
	"github.com/musicfy-storefront/internal/catalog"
	"github.com/musicfy-storefront/internal/config"
	"github.com/musicfy-storefront/internal/constants"
	"github.com/musicfy-storefront/internal/identity"
	"github.com/musicfy-storefront/internal/identity/firebase"
	"github.com/musicfy-storefront/internal/identity/local"
	"github.com/musicfy-storefront/internal/logger"
	"github.com/musicfy-storefront/internal/models"
	"github.com/musicfy-storefront/internal/payment/stripe"
	"github.com/musicfy-storefront/internal/postal"
	"github.com/musicfy-storefront/internal/queue"
	"github.com/musicfy-storefront/internal/repository"
	"github.com/musicfy-storefront/internal/service"
	"github.com/musicfy-storefront/internal/session"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	// Repositories
	KVRepo           repository.KVRepository
	LocalAccountRepo repository.LocalAccountRepository

	// Infrastructure
	KV       cart.KV
	Backend  *backend.Client
	Sessions *session.Registry
	Identity identity.Provider
	Authz    *authz.Service
	Postal   *postal.Client
	Catalog  *catalog.Client
	Stripe   *stripe.Config

	// Services
	CartService     *service.CartService
	AuthService     *service.AuthService
	CheckoutService *service.CheckoutService
	OrderService    *service.OrderService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化基础设施
	if err := c.initInfrastructure(); err != nil {
		logger.Errorw("provider_init_infrastructure_failed", "error", err)
		panic(err)
	}

	// 3. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	if db == nil {
		return
	}
	c.KVRepo = repository.NewKVRepository(db)
	c.LocalAccountRepo = repository.NewLocalAccountRepository(db)
}

func (c *Container) initInfrastructure() error {
	cfg := c.Config

	kv, err := c.buildKV()
	if err != nil {
		return err
	}
	c.KV = kv

	backendClient, err := backend.New(backend.Options{
		BaseURL: cfg.Backend.BaseURL,
		Timeout: cfg.Backend.Timeout(),
	})
	if err != nil {
		return fmt.Errorf("init backend client failed: %w", err)
	}
	c.Backend = backendClient

	registry, err := session.NewRegistry(c.KV, c.Backend, session.Options{
		Secret: cfg.Session.Secret,
		TTL:    time.Duration(cfg.Session.ExpireHours) * time.Hour,
		Cart: cart.Options{
			LogoutPolicy: cfg.Cart.LogoutPolicy,
			BulkSeed:     cfg.Cart.BackendBulkSeed,
		},
	})
	if err != nil {
		return fmt.Errorf("init session registry failed: %w", err)
	}
	c.Sessions = registry

	provider, err := c.buildIdentityProvider()
	if err != nil {
		return err
	}
	c.Identity = provider

	if models.DB != nil {
		authzService, err := authz.NewService(models.DB)
		if err != nil {
			return fmt.Errorf("init authz failed: %w", err)
		}
		if err := authzService.BootstrapBuiltinRoles(); err != nil {
			return fmt.Errorf("bootstrap builtin roles failed: %w", err)
		}
		if err := authzService.AssignOperators(cfg.Authz.OperatorSubjects); err != nil {
			return fmt.Errorf("assign operators failed: %w", err)
		}
		c.Authz = authzService
	}

	var postalCache postal.Cache
	if cache.Enabled() && cfg.Postal.CacheTTLSeconds > 0 {
		postalCache = cache.NewLookupCache("postal", time.Duration(cfg.Postal.CacheTTLSeconds)*time.Second)
	}
	c.Postal = postal.New(postal.Options{
		PrimaryURL:    cfg.Postal.PrimaryURL,
		SecondaryURL:  cfg.Postal.SecondaryURL,
		Timeout:       time.Duration(cfg.Postal.TimeoutMS) * time.Millisecond,
		RatePerSecond: cfg.Postal.RatePerSecond,
		Burst:         cfg.Postal.Burst,
		Cache:         postalCache,
	})

	var catalogCache catalog.Cache
	if cache.Enabled() && cfg.Catalog.CacheTTLSeconds > 0 {
		catalogCache = cache.NewLookupCache("catalog", time.Duration(cfg.Catalog.CacheTTLSeconds)*time.Second)
	}
	catalogClient, err := catalog.New(catalog.Options{
		BaseURL:     cfg.Catalog.BaseURL,
		ListPath:    cfg.Catalog.ListPath,
		ProductPath: cfg.Catalog.ProductPath,
		Timeout:     time.Duration(cfg.Catalog.TimeoutMS) * time.Millisecond,
		Cache:       catalogCache,
	})
	if err != nil {
		return fmt.Errorf("init catalog client failed: %w", err)
	}
	c.Catalog = catalogClient

	c.Stripe = stripe.FromSettings(cfg.Payment.Stripe)
	if c.Stripe.Configured() {
		if err := stripe.ValidateConfig(c.Stripe); err != nil {
			return fmt.Errorf("stripe config invalid: %w", err)
		}
	} else {
		logger.Warnw("provider_stripe_not_configured")
	}
	return nil
}

// buildKV 按 cart.storage 选择会话键值槽
func (c *Container) buildKV() (cart.KV, error) {
	storage := strings.ToLower(strings.TrimSpace(c.Config.Cart.Storage))
	switch storage {
	case "", constants.CartStorageDatabase:
		if c.KVRepo == nil {
			return nil, fmt.Errorf("cart storage %q requires a database", constants.CartStorageDatabase)
		}
		return c.KVRepo, nil
	case constants.CartStorageRedis:
		kv, err := cache.NewSessionKV(time.Duration(c.Config.Session.ExpireHours) * time.Hour)
		if err != nil {
			return nil, fmt.Errorf("init redis session storage failed: %w", err)
		}
		return kv, nil
	case constants.CartStorageMemory:
		logger.Warnw("provider_cart_storage_memory", "hint", "cart state is lost on restart")
		return cart.NewMemoryKV(), nil
	default:
		return nil, fmt.Errorf("unsupported cart storage: %s", storage)
	}
}

func (c *Container) buildIdentityProvider() (identity.Provider, error) {
	cfg := c.Config.Identity
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", constants.IdentityProviderLocal:
		if c.LocalAccountRepo == nil {
			return nil, fmt.Errorf("local identity provider requires a database")
		}
		provider, err := local.New(c.LocalAccountRepo, cfg.Local)
		if err != nil {
			return nil, fmt.Errorf("init local identity failed: %w", err)
		}
		return provider, nil
	case constants.IdentityProviderFirebase:
		provider, err := firebase.New(context.Background(), cfg.Firebase)
		if err != nil {
			return nil, fmt.Errorf("init firebase identity failed: %w", err)
		}
		return provider, nil
	default:
		return nil, fmt.Errorf("unsupported identity provider: %s", cfg.Provider)
	}
}

func (c *Container) initServices() {
	var taskQueue service.TaskQueue
	if c.QueueClient != nil {
		taskQueue = c.QueueClient
	}
	var products service.ProductCatalog
	if c.Catalog != nil {
		products = c.Catalog
	}
	c.CartService = service.NewCartService(products)
	c.AuthService = service.NewAuthService(c.Identity, c.Backend, c.Sessions)
	c.CheckoutService = service.NewCheckoutService(c.Backend, products, c.Stripe, taskQueue)
	c.OrderService = service.NewOrderService(c.Backend)
}
