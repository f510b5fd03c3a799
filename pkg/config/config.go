// Package config 提供 TOML 配置加载、环境变量覆盖与 schema 校验
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 基础配置结构
type Config struct {
	// 服务名称
	ServiceName string `mapstructure:"service_name"`
	// 服务版本
	Version string `mapstructure:"version"`
	// 环境：dev, staging, prod
	Environment string `mapstructure:"environment"`
	// HTTP 服务配置
	HTTP HTTPConfig `mapstructure:"http"`
	// 数据库配置（行情镜像表）
	Database DatabaseConfig `mapstructure:"database"`
	// Redis 配置
	Redis RedisConfig `mapstructure:"redis"`
	// Kafka 配置
	Kafka KafkaConfig `mapstructure:"kafka"`
	// 日志配置
	Logger LoggerConfig `mapstructure:"logger"`
	// 指标配置
	Metrics MetricsConfig `mapstructure:"metrics"`
	// 限流配置
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	// 贵金属行情配置
	Feed FeedConfig `mapstructure:"feed"`
}

// HTTPConfig HTTP 服务配置
type HTTPConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// DatabaseConfig 数据库配置，DSN 为空时不启用镜像写入
type DatabaseConfig struct {
	// 驱动：mysql, postgres
	Driver          string `mapstructure:"driver"`
	DSN             string `mapstructure:"dsn"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	LogEnabled      bool   `mapstructure:"log_enabled"`
	// 慢查询阈值（毫秒）
	SlowQueryThreshold int  `mapstructure:"slow_query_threshold"`
	AutoMigrate        bool `mapstructure:"auto_migrate"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	Password    string `mapstructure:"password"`
	DB          int    `mapstructure:"db"`
	MaxPoolSize int    `mapstructure:"max_pool_size"`
	// 超时（秒）
	ConnTimeout  int `mapstructure:"conn_timeout"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

// KafkaConfig Kafka 配置，Brokers 为空时不发布快照事件
type KafkaConfig struct {
	Brokers      []string `mapstructure:"brokers"`
	Topic        string   `mapstructure:"topic"`
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

// RateLimitConfig 手动刷新接口的限流配置
type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// 每个周期允许的请求数
	Rate   int           `mapstructure:"rate"`
	Burst  int           `mapstructure:"burst"`
	Period time.Duration `mapstructure:"period"`
}

// FeedConfig 行情源、缓存与派生价格配置
type FeedConfig struct {
	// 快照缓存有效期
	TTL time.Duration `mapstructure:"ttl"`
	// 单次外部请求超时
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	// 源币种到基础币种的换算系数
	ConversionRate float64 `mapstructure:"conversion_rate"`
	BaseCurrency   string  `mapstructure:"base_currency"`
	// 直接源页面，按金属键配置（gold, silver）
	Sources map[string]string `mapstructure:"sources"`
	// 页面解析方式：pattern（HTML 中的货币金额）或 json
	Parser string `mapstructure:"parser"`
	// Parser 为 json 时价格字段的路径，例如 data.price
	JSONField string `mapstructure:"json_field"`
	// 派生金属相对黄金的比例（platinum, palladium）
	Ratios map[string]float64 `mapstructure:"ratios"`
	// 上一次价格的持久化方式：redis 或 memory
	DeltaStore string `mapstructure:"delta_store"`
	// 上一次价格的存储键
	DeltaStoreKey string `mapstructure:"delta_store_key"`
	// 后台预热间隔，0 表示不启用
	WarmInterval time.Duration `mapstructure:"warm_interval"`
	// 异步持久化/镜像/事件任务的超时
	BackgroundTimeout time.Duration `mapstructure:"background_timeout"`
	// 熔断：连续失败次数阈值与打开时长
	BreakerFailures int           `mapstructure:"breaker_failures"`
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout"`
}

// Load 从 TOML 文件加载配置，文件不存在时仅使用默认值与环境变量
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			v.SetConfigType("toml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	// 环境变量覆盖，例如 APP_FEED_TTL=2h
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
	if c.Feed.TTL <= 0 {
		return fmt.Errorf("feed.ttl must be positive")
	}
	if c.Feed.FetchTimeout <= 0 {
		return fmt.Errorf("feed.fetch_timeout must be positive")
	}
	if c.Feed.ConversionRate <= 0 {
		return fmt.Errorf("feed.conversion_rate must be positive")
	}
	for _, metal := range []string{"gold", "silver"} {
		if c.Feed.Sources[metal] == "" {
			return fmt.Errorf("feed.sources.%s is required", metal)
		}
	}
	if err := c.Feed.validateRatios(); err != nil {
		return err
	}
	switch c.Feed.Parser {
	case "pattern":
	case "json":
		if c.Feed.JSONField == "" {
			return fmt.Errorf("feed.json_field is required for the json parser")
		}
	default:
		return fmt.Errorf("unsupported feed.parser: %s", c.Feed.Parser)
	}
	switch c.Feed.DeltaStore {
	case "redis", "memory":
	default:
		return fmt.Errorf("unsupported feed.delta_store: %s", c.Feed.DeltaStore)
	}
	if c.Database.DSN != "" && c.Database.Driver != "mysql" && c.Database.Driver != "postgres" {
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	return nil
}

// derivedMetals 无直接源、按比例派生价格的金属
var derivedMetals = []string{"platinum", "palladium"}

// validateRatios 比例只能配置给派生金属，且每个派生金属都必须有正比例
func (f *FeedConfig) validateRatios() error {
	for name, ratio := range f.Ratios {
		known := false
		for _, m := range derivedMetals {
			if strings.EqualFold(name, m) {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("feed.ratios.%s is not allowed: only %v are derived", name, derivedMetals)
		}
		if ratio <= 0 {
			return fmt.Errorf("feed.ratios.%s must be positive", name)
		}
	}
	for _, m := range derivedMetals {
		if _, ok := f.Ratios[m]; !ok {
			return fmt.Errorf("feed.ratios.%s is required", m)
		}
	}
	return nil
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "metalprice")
	v.SetDefault("version", "dev")
	v.SetDefault("environment", "dev")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", 30)
	v.SetDefault("http.write_timeout", 30)

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", 300)
	v.SetDefault("database.log_enabled", false)
	v.SetDefault("database.slow_query_threshold", 1000)
	v.SetDefault("database.auto_migrate", false)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.max_pool_size", 10)
	v.SetDefault("redis.conn_timeout", 5)
	v.SetDefault("redis.read_timeout", 3)
	v.SetDefault("redis.write_timeout", 3)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "metal.price.snapshot")
	v.SetDefault("kafka.max_retries", 3)
	v.SetDefault("kafka.retry_backoff", 100)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.file_path", "logs/metalprice.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 10)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.with_caller", false)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.rate", 5)
	v.SetDefault("rate_limit.burst", 5)
	v.SetDefault("rate_limit.period", time.Minute)

	v.SetDefault("feed.ttl", 6*time.Hour)
	v.SetDefault("feed.fetch_timeout", 10*time.Second)
	v.SetDefault("feed.conversion_rate", 1.25)
	v.SetDefault("feed.base_currency", "USD")
	v.SetDefault("feed.sources", map[string]string{
		"gold":   "https://www.bullionbypost.co.uk/gold-price/gold-price-per-ounce/",
		"silver": "https://www.bullionbypost.co.uk/silver-price/silver-price-per-ounce/",
	})
	v.SetDefault("feed.parser", "pattern")
	v.SetDefault("feed.json_field", "")
	v.SetDefault("feed.ratios", map[string]float64{
		"platinum":  0.7,
		"palladium": 1.0,
	})
	v.SetDefault("feed.delta_store", "redis")
	v.SetDefault("feed.delta_store_key", "metalprice:previous_prices")
	v.SetDefault("feed.warm_interval", 0)
	v.SetDefault("feed.background_timeout", 5*time.Second)
	v.SetDefault("feed.breaker_failures", 5)
	v.SetDefault("feed.breaker_timeout", time.Minute)
}

// GetEnv 获取环境变量，支持默认值
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
