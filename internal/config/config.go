package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/musicfy-storefront/internal/logger"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Session  SessionConfig  `mapstructure:"session"`
	Cart     CartConfig     `mapstructure:"cart"`
	Backend  BackendConfig  `mapstructure:"backend"`
	Identity IdentityConfig `mapstructure:"identity"`
	Postal   PostalConfig   `mapstructure:"postal"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Payment  PaymentConfig  `mapstructure:"payment"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Security SecurityConfig `mapstructure:"security"`
	Authz    AuthzConfig    `mapstructure:"authz"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug / release
}

// LogConfig 日志配置
type LogConfig struct {
	Dir        string `mapstructure:"dir"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// ToLoggerOptions 转换为 logger 配置
func (c LogConfig) ToLoggerOptions() logger.Options {
	return logger.Options{
		Dir:        c.Dir,
		Filename:   c.Filename,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
	}
}

// DatabasePoolConfig 数据库连接池配置
type DatabasePoolConfig struct {
	MaxOpenConns           int `mapstructure:"max_open_conns"`
	MaxIdleConns           int `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeSeconds int `mapstructure:"conn_max_lifetime_seconds"`
	ConnMaxIdleTimeSeconds int `mapstructure:"conn_max_idle_time_seconds"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver string             `mapstructure:"driver"` // sqlite / postgres
	DSN    string             `mapstructure:"dsn"`
	Pool   DatabasePoolConfig `mapstructure:"pool"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// QueueConfig 异步队列配置
type QueueConfig struct {
	Enabled     bool           `mapstructure:"enabled"`
	Host        string         `mapstructure:"host"`
	Port        int            `mapstructure:"port"`
	Password    string         `mapstructure:"password"`
	DB          int            `mapstructure:"db"`
	Concurrency int            `mapstructure:"concurrency"`
	Queues      map[string]int `mapstructure:"queues"`
}

// SessionConfig 浏览器会话配置
type SessionConfig struct {
	Secret           string `mapstructure:"secret"`
	ExpireHours      int    `mapstructure:"expire_hours"`
	CookieName       string `mapstructure:"cookie_name"`
	IdleEvictMinutes int    `mapstructure:"idle_evict_minutes"`
	PurgeCron        string `mapstructure:"purge_cron"`
	RetainDays       int    `mapstructure:"retain_days"`
}

// CartConfig 购物车同步配置
type CartConfig struct {
	Storage         string `mapstructure:"storage"`       // database / redis / memory
	LogoutPolicy    string `mapstructure:"logout_policy"` // clear / keep_guest
	BackendBulkSeed bool   `mapstructure:"backend_bulk_seed"`
}

// BackendConfig 远端 REST 后端配置
type BackendConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	TimeoutMS int    `mapstructure:"timeout_ms"`
}

// Timeout 返回请求超时
func (c BackendConfig) Timeout() time.Duration {
	return durationMS(c.TimeoutMS, 10000)
}

// IdentityConfig 身份提供方配置
type IdentityConfig struct {
	Provider string                 `mapstructure:"provider"` // local / firebase
	Local    LocalIdentityConfig    `mapstructure:"local"`
	Firebase FirebaseIdentityConfig `mapstructure:"firebase"`
}

// LocalIdentityConfig 本地身份提供方配置
type LocalIdentityConfig struct {
	TokenSecret       string `mapstructure:"token_secret"`
	TokenIssuer       string `mapstructure:"token_issuer"`
	MinPasswordLength int    `mapstructure:"min_password_length"`
}

// FirebaseIdentityConfig Firebase 身份提供方配置
type FirebaseIdentityConfig struct {
	ProjectID       string `mapstructure:"project_id"`
	CredentialsFile string `mapstructure:"credentials_file"`
	APIKey          string `mapstructure:"api_key"`
	IdentityToolkit string `mapstructure:"identity_toolkit_url"`
	TimeoutMS       int    `mapstructure:"timeout_ms"`
}

// PostalConfig 邮编查询配置
type PostalConfig struct {
	PrimaryURL      string  `mapstructure:"primary_url"`
	SecondaryURL    string  `mapstructure:"secondary_url"`
	TimeoutMS       int     `mapstructure:"timeout_ms"`
	RatePerSecond   float64 `mapstructure:"rate_per_second"`
	Burst           int     `mapstructure:"burst"`
	CacheTTLSeconds int     `mapstructure:"cache_ttl_seconds"`
}

// CatalogConfig 商品目录配置，价格以目录为准
type CatalogConfig struct {
	BaseURL         string `mapstructure:"base_url"`
	ListPath        string `mapstructure:"list_path"`
	ProductPath     string `mapstructure:"product_path"`
	TimeoutMS       int    `mapstructure:"timeout_ms"`
	CacheTTLSeconds int    `mapstructure:"cache_ttl_seconds"`
}

// PaymentConfig 支付配置
type PaymentConfig struct {
	Stripe StripeConfig `mapstructure:"stripe"`
}

// StripeConfig Stripe Checkout 配置
type StripeConfig struct {
	SecretKey        string `mapstructure:"secret_key"`
	WebhookSecret    string `mapstructure:"webhook_secret"`
	APIBaseURL       string `mapstructure:"api_base_url"`
	SuccessURL       string `mapstructure:"success_url"`
	CancelURL        string `mapstructure:"cancel_url"`
	Currency         string `mapstructure:"currency"`
	WebhookTolerance int    `mapstructure:"webhook_tolerance_seconds"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	LoginRateLimit  RateLimitConfig `mapstructure:"login_rate_limit"`
	PostalRateLimit RateLimitConfig `mapstructure:"postal_rate_limit"`
}

// RateLimitConfig 接口限流配置
type RateLimitConfig struct {
	WindowSeconds int `mapstructure:"window_seconds"`
	MaxAttempts   int `mapstructure:"max_attempts"`
}

// AuthzConfig 权限配置
type AuthzConfig struct {
	OperatorSubjects []string `mapstructure:"operator_subjects"`
}

// Load 从 config.yml 加载配置
func Load() *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./")
	viper.AddConfigPath("../")   // 如果从 cmd/server 运行
	viper.AddConfigPath("./etc") // etc 文件夹

	setDefaults(viper.GetViper())

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // cart.logout_policy -> CART_LOGOUT_POLICY

	if err := viper.ReadInConfig(); err != nil {
		logger.Warnw("config_file_read_failed",
			"error", err,
			"fallback", "env_or_defaults",
		)
	} else {
		logger.Infow("config_file_loaded", "file", viper.ConfigFileUsed())
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		logger.Errorw("config_unmarshal_failed", "error", err)
		panic(fmt.Errorf("配置解析失败: %w", err))
	}
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("log.dir", "")
	v.SetDefault("log.filename", "storefront.log")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./db/storefront.db")
	v.SetDefault("database.pool.max_open_conns", 1)
	v.SetDefault("database.pool.max_idle_conns", 1)
	v.SetDefault("database.pool.conn_max_lifetime_seconds", 0)
	v.SetDefault("database.pool.conn_max_idle_time_seconds", 0)
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "sf")
	v.SetDefault("queue.enabled", true)
	v.SetDefault("queue.host", "127.0.0.1")
	v.SetDefault("queue.port", 6379)
	v.SetDefault("queue.password", "")
	v.SetDefault("queue.db", 1)
	v.SetDefault("queue.concurrency", 10)
	v.SetDefault("queue.queues", map[string]int{
		"default":  10,
		"critical": 5,
	})
	v.SetDefault("session.secret", "session-change-me-in-production")
	v.SetDefault("session.expire_hours", 720)
	v.SetDefault("session.cookie_name", "sf_session")
	v.SetDefault("session.idle_evict_minutes", 30)
	v.SetDefault("session.purge_cron", "@every 1h")
	v.SetDefault("session.retain_days", 30)
	v.SetDefault("cart.storage", "database")
	v.SetDefault("cart.logout_policy", "clear")
	v.SetDefault("cart.backend_bulk_seed", false)
	v.SetDefault("backend.base_url", "http://localhost:3000")
	v.SetDefault("backend.timeout_ms", 10000)
	v.SetDefault("identity.provider", "local")
	v.SetDefault("identity.local.token_secret", "identity-change-me-in-production")
	v.SetDefault("identity.local.token_issuer", "storefront-local")
	v.SetDefault("identity.local.min_password_length", 6)
	v.SetDefault("identity.firebase.project_id", "")
	v.SetDefault("identity.firebase.credentials_file", "")
	v.SetDefault("identity.firebase.api_key", "")
	v.SetDefault("identity.firebase.identity_toolkit_url", "https://identitytoolkit.googleapis.com/v1")
	v.SetDefault("identity.firebase.timeout_ms", 10000)
	v.SetDefault("postal.primary_url", "https://brasilapi.com.br/api/cep/v2")
	v.SetDefault("postal.secondary_url", "https://viacep.com.br/ws")
	v.SetDefault("postal.timeout_ms", 5000)
	v.SetDefault("postal.rate_per_second", 5)
	v.SetDefault("postal.burst", 10)
	v.SetDefault("postal.cache_ttl_seconds", 86400)

	v.SetDefault("catalog.base_url", "https://fakestoreapi.com")
	v.SetDefault("catalog.list_path", "/products/category/electronics")
	v.SetDefault("catalog.product_path", "/products")
	v.SetDefault("catalog.timeout_ms", 5000)
	v.SetDefault("catalog.cache_ttl_seconds", 300)
	v.SetDefault("payment.stripe.secret_key", "")
	v.SetDefault("payment.stripe.webhook_secret", "")
	v.SetDefault("payment.stripe.api_base_url", "https://api.stripe.com")
	v.SetDefault("payment.stripe.success_url", "http://localhost:5173/success?session_id={CHECKOUT_SESSION_ID}")
	v.SetDefault("payment.stripe.cancel_url", "http://localhost:5173/checkout")
	v.SetDefault("payment.stripe.currency", "brl")
	v.SetDefault("payment.stripe.webhook_tolerance_seconds", 300)
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{
		"Content-Type",
		"Content-Length",
		"Accept-Encoding",
		"Accept-Language",
		"Authorization",
		"Cache-Control",
		"X-Requested-With",
		"X-Session-Token",
	})
	v.SetDefault("cors.allow_credentials", true)
	v.SetDefault("cors.max_age", 600)
	v.SetDefault("security.login_rate_limit.window_seconds", 300)
	v.SetDefault("security.login_rate_limit.max_attempts", 5)
	v.SetDefault("security.postal_rate_limit.window_seconds", 60)
	v.SetDefault("security.postal_rate_limit.max_attempts", 30)
	v.SetDefault("authz.operator_subjects", []string{})
}

func durationMS(value int, fallback int) time.Duration {
	if value <= 0 {
		value = fallback
	}
	return time.Duration(value) * time.Millisecond
}
