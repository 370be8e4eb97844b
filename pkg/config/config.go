// Package config 提供 TOML 配置加载、环境变量覆盖与配置校验
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config 服务配置
type Config struct {
	// 服务名称
	ServiceName string `mapstructure:"service_name"`
	// 服务版本
	Version string `mapstructure:"version"`
	// 环境：dev, staging, prod
	Environment string `mapstructure:"environment"`

	HTTP      HTTPConfig      `mapstructure:"http"`
	GRPC      GRPCConfig      `mapstructure:"grpc"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Pricing   PricingConfig   `mapstructure:"pricing"`
	Order     OrderConfig     `mapstructure:"order"`
	Payment   PaymentConfig   `mapstructure:"payment"`
	Outbox    OutboxConfig    `mapstructure:"outbox"`
}

// HTTPConfig HTTP 服务配置
type HTTPConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// 读超时（秒）
	ReadTimeout int `mapstructure:"read_timeout"`
	// 写超时（秒）
	WriteTimeout int `mapstructure:"write_timeout"`
}

// GRPCConfig gRPC 服务配置（仅暴露健康检查）
type GRPCConfig struct {
	Host                 string `mapstructure:"host"`
	Port                 int    `mapstructure:"port"`
	MaxConcurrentStreams int    `mapstructure:"max_concurrent_streams"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// 驱动：mysql, postgres, sqlite
	Driver string `mapstructure:"driver"`
	// 数据源名称
	DSN string `mapstructure:"dsn"`
	// 最大连接数
	MaxOpenConns int `mapstructure:"max_open_conns"`
	// 最大空闲连接数
	MaxIdleConns int `mapstructure:"max_idle_conns"`
	// 连接最大生命周期（秒）
	ConnMaxLifetime int `mapstructure:"conn_max_lifetime"`
	// 是否启用 SQL 日志
	LogEnabled bool `mapstructure:"log_enabled"`
	// 慢查询阈值（毫秒）
	SlowQueryThreshold int `mapstructure:"slow_query_threshold"`
	// 启动时自动迁移表结构
	AutoMigrate bool `mapstructure:"auto_migrate"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 为空时不启用 Redis（规则缓存与限流随之关闭）
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	MaxPoolSize  int    `mapstructure:"max_pool_size"`
	ConnTimeout  int    `mapstructure:"conn_timeout"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// KafkaConfig Kafka 配置
type KafkaConfig struct {
	// Broker 地址列表，为空时 outbox 消息只落库不投递
	Brokers      []string `mapstructure:"brokers"`
	MaxRetries   int      `mapstructure:"max_retries"`
	RetryBackoff int      `mapstructure:"retry_backoff"`
}

// LoggerConfig 日志配置
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
	WithCaller bool   `mapstructure:"with_caller"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled"`
	QPS     int  `mapstructure:"qps"`
	Burst   int  `mapstructure:"burst"`

	// 下单接口单独的规则，0 表示沿用 QPS/Burst
	PlaceOrderQPS   int `mapstructure:"place_order_qps"`
	PlaceOrderBurst int `mapstructure:"place_order_burst"`

	Prefix string `mapstructure:"prefix"`
}

// PricingConfig 定价配置
type PricingConfig struct {
	// 规则快照缓存时长（秒），0 表示不缓存
	RuleCacheTTL int `mapstructure:"rule_cache_ttl"`
}

// OrderConfig 订单策略配置，金额均为最小货币单位
type OrderConfig struct {
	DiscountRate          string `mapstructure:"discount_rate"`
	TaxRate               string `mapstructure:"tax_rate"`
	FreeShippingThreshold int64  `mapstructure:"free_shipping_threshold"`
	ShippingFee           int64  `mapstructure:"shipping_fee"`
	ReturnWindowDays      int    `mapstructure:"return_window_days"`
	// 提交后清空购物车的超时（秒）
	CartClearTimeout int `mapstructure:"cart_clear_timeout"`
}

// PaymentConfig 支付网关配置
type PaymentConfig struct {
	// 网关地址，为空时只做签名校验
	BaseURL   string `mapstructure:"base_url"`
	KeyID     string `mapstructure:"key_id"`
	KeySecret string `mapstructure:"key_secret"`
	// 校验超时（毫秒）
	Timeout int `mapstructure:"timeout"`
	// 熔断：连续失败次数
	BreakerFailures int `mapstructure:"breaker_failures"`
	// 熔断：打开状态持续时间（秒）
	BreakerOpenSeconds int `mapstructure:"breaker_open_seconds"`
}

// OutboxConfig outbox 投递配置
type OutboxConfig struct {
	// 轮询间隔（毫秒）
	Interval    int    `mapstructure:"interval"`
	BatchSize   int    `mapstructure:"batch_size"`
	TopicPrefix string `mapstructure:"topic_prefix"`

	// 单条消息最大投递次数，超过后停止重试
	MaxAttempts int `mapstructure:"max_attempts"`
}

// Load 从 TOML 文件加载配置，文件不存在时使用默认值，支持 APP_ 前缀的环境变量覆盖
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(configPath); statErr == nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate 验证配置的有效性
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service_name is required")
	}
	if c.Environment == "" {
		c.Environment = "dev"
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTP.Port)
	}
	if c.GRPC.Port <= 0 || c.GRPC.Port > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.GRPC.Port)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database DSN is required for %s driver", c.Database.Driver)
	}
	if c.Order.ReturnWindowDays < 0 {
		return fmt.Errorf("invalid return window: %d", c.Order.ReturnWindowDays)
	}
	if c.Payment.Timeout <= 0 {
		return fmt.Errorf("payment timeout must be positive")
	}
	return nil
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "order")
	v.SetDefault("version", "dev")
	v.SetDefault("environment", "dev")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", 30)
	v.SetDefault("http.write_timeout", 30)

	v.SetDefault("grpc.host", "0.0.0.0")
	v.SetDefault("grpc.port", 50051)
	v.SetDefault("grpc.max_concurrent_streams", 1000)

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 300)
	v.SetDefault("database.log_enabled", false)
	v.SetDefault("database.slow_query_threshold", 1000)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.max_pool_size", 10)
	v.SetDefault("redis.conn_timeout", 5)
	v.SetDefault("redis.read_timeout", 3)
	v.SetDefault("redis.write_timeout", 3)

	v.SetDefault("kafka.max_retries", 3)
	v.SetDefault("kafka.retry_backoff", 100)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.file_path", "logs/app.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 10)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.with_caller", true)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("ratelimit.enabled", false)
	v.SetDefault("ratelimit.qps", 50)
	v.SetDefault("ratelimit.burst", 100)
	v.SetDefault("ratelimit.place_order_qps", 5)
	v.SetDefault("ratelimit.place_order_burst", 10)

	v.SetDefault("pricing.rule_cache_ttl", 60)

	v.SetDefault("order.discount_rate", "0.15")
	v.SetDefault("order.tax_rate", "0.18")
	v.SetDefault("order.free_shipping_threshold", 49900)
	v.SetDefault("order.shipping_fee", 4000)
	v.SetDefault("order.return_window_days", 9)
	v.SetDefault("order.cart_clear_timeout", 5)

	v.SetDefault("payment.timeout", 5000)
	v.SetDefault("payment.breaker_failures", 5)
	v.SetDefault("payment.breaker_open_seconds", 30)

	v.SetDefault("outbox.interval", 1000)
	v.SetDefault("outbox.batch_size", 100)
	v.SetDefault("outbox.topic_prefix", "ecommerce")
	v.SetDefault("outbox.max_attempts", 10)
}
