package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 主配置结构
type Config struct {
	// 缓存引擎配置
	Cache CacheConfig `mapstructure:"cache"`

	// 远程缓存（Redis）配置
	Redis RedisConfig `mapstructure:"redis"`

	// 远程缓存熔断器配置
	Breaker BreakerConfig `mapstructure:"breaker"`

	// 指标上报配置
	Metrics MetricsConfig `mapstructure:"metrics"`

	// 日志配置
	Logger LoggerConfig `mapstructure:"logger"`
}

// CacheConfig 缓存引擎配置
type CacheConfig struct {
	DefaultTTL      time.Duration `mapstructure:"default_ttl"`      // 默认生存时间
	DefaultCapacity int           `mapstructure:"default_capacity"` // 内存命名空间默认容量
	DefaultPolicy   string        `mapstructure:"default_policy"`   // 默认淘汰策略 (lru, lfu, fifo)
	SweepSchedule   string        `mapstructure:"sweep_schedule"`   // 过期条目清扫的cron表达式
}

// RedisConfig 远程缓存连接配置
type RedisConfig struct {
	Addr           string        `mapstructure:"addr"`            // 服务器地址
	Password       string        `mapstructure:"password"`        // 密码
	DB             int           `mapstructure:"db"`              // 数据库编号
	DialTimeout    time.Duration `mapstructure:"dial_timeout"`    // 连接超时
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`    // 读超时
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`   // 写超时
	RequestTimeout time.Duration `mapstructure:"request_timeout"` // 单次操作超时
	PoolSize       int           `mapstructure:"pool_size"`       // 连接池大小
}

// BreakerConfig 熔断器配置
type BreakerConfig struct {
	Enabled     bool          `mapstructure:"enabled"`       // 是否启用熔断器
	MaxRequests uint32        `mapstructure:"max_requests"`  // 半开状态下的最大请求数
	Interval    time.Duration `mapstructure:"interval"`      // 统计窗口时间
	Timeout     time.Duration `mapstructure:"timeout"`       // 熔断器打开后的超时时间
	ReadyToTrip uint32        `mapstructure:"ready_to_trip"` // 触发熔断的连续失败次数阈值
}

// MetricsConfig 指标上报配置
type MetricsConfig struct {
	Enabled  bool          `mapstructure:"enabled"`  // 是否启用指标上报
	URL      string        `mapstructure:"url"`      // InfluxDB 地址
	Token    string        `mapstructure:"token"`    // 访问令牌
	Org      string        `mapstructure:"org"`      // 组织
	Bucket   string        `mapstructure:"bucket"`   // 存储桶
	Interval time.Duration `mapstructure:"interval"` // 上报间隔
}

// LoggerConfig 日志配置
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // 日志级别 (debug, info, warn, error)
	Format string `mapstructure:"format"` // 日志格式 (text, json)
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Cache: CacheConfig{
			DefaultTTL:      3600 * time.Second,
			DefaultCapacity: 1500,
			DefaultPolicy:   "lru",
			SweepSchedule:   "@every 1m",
		},
		Redis: RedisConfig{
			Addr:           "localhost:6379",
			Password:       "",
			DB:             0,
			DialTimeout:    5 * time.Second,
			ReadTimeout:    3 * time.Second,
			WriteTimeout:   3 * time.Second,
			RequestTimeout: 2 * time.Second,
			PoolSize:       10,
		},
		Breaker: BreakerConfig{
			Enabled:     true,
			MaxRequests: 5,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: 5,
		},
		Metrics: MetricsConfig{
			Enabled:  false,
			URL:      "http://localhost:8086",
			Org:      "methodcache",
			Bucket:   "cache_stats",
			Interval: 30 * time.Second,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load 从配置文件和环境变量加载配置
func Load() (*Config, error) {
	viper.SetConfigName("methodcache")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	def := Default()
	viper.SetDefault("cache.default_ttl", def.Cache.DefaultTTL)
	viper.SetDefault("cache.default_capacity", def.Cache.DefaultCapacity)
	viper.SetDefault("cache.default_policy", def.Cache.DefaultPolicy)
	viper.SetDefault("cache.sweep_schedule", def.Cache.SweepSchedule)
	viper.SetDefault("redis.addr", def.Redis.Addr)
	viper.SetDefault("redis.password", def.Redis.Password)
	viper.SetDefault("redis.db", def.Redis.DB)
	viper.SetDefault("redis.dial_timeout", def.Redis.DialTimeout)
	viper.SetDefault("redis.read_timeout", def.Redis.ReadTimeout)
	viper.SetDefault("redis.write_timeout", def.Redis.WriteTimeout)
	viper.SetDefault("redis.request_timeout", def.Redis.RequestTimeout)
	viper.SetDefault("redis.pool_size", def.Redis.PoolSize)
	viper.SetDefault("breaker.enabled", def.Breaker.Enabled)
	viper.SetDefault("breaker.max_requests", def.Breaker.MaxRequests)
	viper.SetDefault("breaker.interval", def.Breaker.Interval)
	viper.SetDefault("breaker.timeout", def.Breaker.Timeout)
	viper.SetDefault("breaker.ready_to_trip", def.Breaker.ReadyToTrip)
	viper.SetDefault("metrics.enabled", def.Metrics.Enabled)
	viper.SetDefault("metrics.url", def.Metrics.URL)
	viper.SetDefault("metrics.token", def.Metrics.Token)
	viper.SetDefault("metrics.org", def.Metrics.Org)
	viper.SetDefault("metrics.bucket", def.Metrics.Bucket)
	viper.SetDefault("metrics.interval", def.Metrics.Interval)
	viper.SetDefault("logger.level", def.Logger.Level)
	viper.SetDefault("logger.format", def.Logger.Format)

	// 环境变量覆盖
	viper.SetEnvPrefix("METHODCACHE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Cache.DefaultTTL < 0 {
		return errors.New("cache default_ttl cannot be negative")
	}

	if c.Cache.DefaultCapacity <= 0 {
		return errors.New("cache default_capacity must be positive")
	}

	switch c.Cache.DefaultPolicy {
	case "lru", "lfu", "fifo":
	default:
		return fmt.Errorf("unknown eviction policy: %s", c.Cache.DefaultPolicy)
	}

	if c.Redis.Addr == "" {
		return errors.New("redis addr cannot be empty")
	}

	if c.Redis.RequestTimeout <= 0 {
		return errors.New("redis request_timeout must be positive")
	}

	if c.Metrics.Enabled {
		if c.Metrics.URL == "" {
			return errors.New("metrics url cannot be empty when metrics are enabled")
		}
		if c.Metrics.Interval <= 0 {
			return errors.New("metrics interval must be positive")
		}
	}

	return nil
}

// SetDefaultTTL 设置默认生存时间
func (c *Config) SetDefaultTTL(ttl time.Duration) *Config {
	c.Cache.DefaultTTL = ttl
	return c
}

// SetDefaultCapacity 设置内存命名空间默认容量
func (c *Config) SetDefaultCapacity(capacity int) *Config {
	c.Cache.DefaultCapacity = capacity
	return c
}

// SetLogLevel 设置日志级别
func (c *Config) SetLogLevel(level string) *Config {
	c.Logger.Level = level
	return c
}
