package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"methodcache/pkg/logger"
)

// RedisStoreConfig 远程缓存配置
type RedisStoreConfig struct {
	Addr           string        // 服务器地址
	Password       string        // 密码
	DB             int           // 数据库编号
	DialTimeout    time.Duration // 连接超时
	ReadTimeout    time.Duration // 读超时
	WriteTimeout   time.Duration // 写超时
	RequestTimeout time.Duration // 单次操作超时，超时视同后端不可达
	PoolSize       int           // 连接池大小

	// 熔断器配置。Breaker 为 nil 时不启用熔断。
	Breaker *BreakerSettings
}

// BreakerSettings 远程后端熔断器配置
type BreakerSettings struct {
	MaxRequests uint32        // 半开状态下的最大请求数
	Interval    time.Duration // 统计窗口时间
	Timeout     time.Duration // 熔断器打开后的超时时间
	ReadyToTrip uint32        // 触发熔断的连续失败次数阈值
}

// RedisStore 基于Redis的远程缓存后端。
// 所有网络操作都受 RequestTimeout 约束，超时与传输错误一律映射为
// ErrBackendUnavailable，调用方（决策引擎）据此失败开放，永远不会
// 因为远程缓存故障而中断被包装的计算。
// 可选的熔断器让连续失败后的调用直接短路，不再触网。
type RedisStore struct {
	mu        sync.RWMutex
	client    *redis.Client
	config    RedisStoreConfig
	breaker   *gobreaker.CircuitBreaker
	log       *logrus.Entry
	connected bool
	hitCount  int64
	missCount int64
}

// getResult 包装一次远程读取的结果，让缓存未命中不被熔断器记为失败。
type getResult struct {
	found bool
	raw   string
}

// NewRedisStore 创建Redis远程缓存后端
func NewRedisStore(config RedisStoreConfig) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		PoolSize:     config.PoolSize,
	})

	store := &RedisStore{
		client: client,
		config: config,
		log:    logger.WithComponent("RedisStore"),
	}

	if config.Breaker != nil {
		settings := gobreaker.Settings{
			Name:        "RedisStore",
			MaxRequests: config.Breaker.MaxRequests,
			Interval:    config.Breaker.Interval,
			Timeout:     config.Breaker.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= config.Breaker.ReadyToTrip
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				store.log.WithFields(logrus.Fields{
					"from": from.String(),
					"to":   to.String(),
				}).Warn("Remote cache circuit breaker state changed")
			},
		}
		store.breaker = gobreaker.NewCircuitBreaker(settings)
	}

	return store
}

// Connect 连接到远程缓存服务器。连接失败是可恢复的可报告状态。
func (rs *RedisStore) Connect(ctx context.Context) error {
	timeout := rs.config.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := rs.client.Ping(pingCtx).Err(); err != nil {
		rs.setConnected(false)
		rs.log.WithError(err).WithField("addr", rs.config.Addr).Error("Failed to connect to remote cache")
		return WrapCacheError(ErrBackendUnavailable, "remote cache connect failed", err)
	}

	rs.setConnected(true)
	rs.log.WithField("addr", rs.config.Addr).Info("Connected to remote cache")
	return nil
}

// IsConnected 检查是否已连接
func (rs *RedisStore) IsConnected() bool {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return rs.connected
}

// Ping 检查连接状态
func (rs *RedisStore) Ping(ctx context.Context) error {
	opCtx, cancel := rs.opContext(ctx)
	defer cancel()

	if err := rs.client.Ping(opCtx).Err(); err != nil {
		rs.setConnected(false)
		return WrapCacheError(ErrBackendUnavailable, "remote cache ping failed", err)
	}
	rs.setConnected(true)
	return nil
}

// Get 从远程缓存获取数据。未命中返回 ErrCacheMiss；
// 超时、传输错误或熔断器打开返回 ErrBackendUnavailable。
func (rs *RedisStore) Get(ctx context.Context, key string) (interface{}, error) {
	result, err := rs.execute(func() (interface{}, error) {
		opCtx, cancel := rs.opContext(ctx)
		defer cancel()

		raw, err := rs.client.Get(opCtx, key).Result()
		if err == redis.Nil {
			return getResult{found: false}, nil
		}
		if err != nil {
			return nil, err
		}
		return getResult{found: true, raw: raw}, nil
	})
	if err != nil {
		rs.log.WithError(err).WithField("key", key).Warn("Remote cache read failed")
		return nil, rs.unavailable("remote cache read failed", err)
	}

	res := result.(getResult)
	if !res.found {
		rs.countMiss()
		return nil, ErrCacheMissNotFound
	}

	var value interface{}
	if err := json.Unmarshal([]byte(res.raw), &value); err != nil {
		rs.log.WithError(err).WithField("key", key).Warn("Failed to decode remote cache value")
		return nil, WrapCacheError(ErrBackendUnavailable, "failed to decode remote cache value", err)
	}

	rs.countHit()
	rs.log.WithField("key", key).Debug("Remote cache read")
	return value, nil
}

// Set 向远程缓存写入数据。负数TTL被拒绝；TTL为0的条目写入即过期，
// 因此直接跳过网络写入。
func (rs *RedisStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl < 0 {
		err := NewCacheError(ErrInvalidTTL, "negative ttl is not allowed")
		err.WithContext("key", key)
		return err
	}
	if ttl == 0 {
		rs.log.WithField("key", key).Debug("Skipping remote write for zero ttl entry")
		return nil
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return WrapCacheError(ErrBackendUnavailable, "failed to encode value for remote cache", err)
	}

	_, err = rs.execute(func() (interface{}, error) {
		opCtx, cancel := rs.opContext(ctx)
		defer cancel()
		return nil, rs.client.Set(opCtx, key, payload, ttl).Err()
	})
	if err != nil {
		rs.log.WithError(err).WithField("key", key).Warn("Remote cache write failed")
		return rs.unavailable("remote cache write failed", err)
	}

	rs.log.WithFields(logrus.Fields{
		"key": key,
		"ttl": ttl.String(),
	}).Debug("Remote cache write")
	return nil
}

// Delete 从远程缓存删除数据
func (rs *RedisStore) Delete(ctx context.Context, key string) error {
	_, err := rs.execute(func() (interface{}, error) {
		opCtx, cancel := rs.opContext(ctx)
		defer cancel()
		return nil, rs.client.Del(opCtx, key).Err()
	})
	if err != nil {
		return rs.unavailable("remote cache delete failed", err)
	}
	return nil
}

// Clear 清空当前数据库的所有条目
func (rs *RedisStore) Clear(ctx context.Context) error {
	_, err := rs.execute(func() (interface{}, error) {
		opCtx, cancel := rs.opContext(ctx)
		defer cancel()
		return nil, rs.client.FlushDB(opCtx).Err()
	})
	if err != nil {
		return rs.unavailable("remote cache clear failed", err)
	}
	return nil
}

// Stats 获取客户端侧的统计信息
func (rs *RedisStore) Stats() Stats {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	var hitRate float64
	if total := rs.hitCount + rs.missCount; total > 0 {
		hitRate = float64(rs.hitCount) / float64(total)
	}

	return Stats{
		HitCount:  rs.hitCount,
		MissCount: rs.missCount,
		HitRate:   hitRate,
	}
}

// Close 关闭连接
func (rs *RedisStore) Close() error {
	rs.setConnected(false)
	return rs.client.Close()
}

// execute 让操作经过熔断器（如启用）执行
func (rs *RedisStore) execute(op func() (interface{}, error)) (interface{}, error) {
	if rs.breaker == nil {
		return op()
	}
	return rs.breaker.Execute(op)
}

// unavailable 把任意底层错误映射为 ErrBackendUnavailable
func (rs *RedisStore) unavailable(message string, cause error) error {
	if errors.Is(cause, gobreaker.ErrOpenState) || errors.Is(cause, gobreaker.ErrTooManyRequests) {
		return WrapCacheError(ErrBackendUnavailable, "remote cache circuit breaker open", cause)
	}
	return WrapCacheError(ErrBackendUnavailable, message, cause)
}

func (rs *RedisStore) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := rs.config.RequestTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

func (rs *RedisStore) setConnected(connected bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.connected = connected
}

func (rs *RedisStore) countHit() {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.hitCount++
}

func (rs *RedisStore) countMiss() {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.missCount++
}

var _ RemoteStore = (*RedisStore)(nil)
