package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestDefault 测试默认配置是否正确
func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 3600*time.Second, cfg.Cache.DefaultTTL)
	assert.Equal(t, 1500, cfg.Cache.DefaultCapacity)
	assert.Equal(t, "lru", cfg.Cache.DefaultPolicy)
	assert.Equal(t, "@every 1m", cfg.Cache.SweepSchedule)

	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 0, cfg.Redis.DB)
	assert.Equal(t, 5*time.Second, cfg.Redis.DialTimeout)
	assert.Equal(t, 2*time.Second, cfg.Redis.RequestTimeout)
	assert.Equal(t, 10, cfg.Redis.PoolSize)

	assert.True(t, cfg.Breaker.Enabled)
	assert.Equal(t, uint32(5), cfg.Breaker.MaxRequests)
	assert.Equal(t, uint32(5), cfg.Breaker.ReadyToTrip)

	assert.False(t, cfg.Metrics.Enabled)

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "text", cfg.Logger.Format)
}

// TestValidate 测试配置验证功能
func TestValidate(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate(), "默认配置应该是有效的")

	// 负数TTL
	cfg = Default()
	cfg.Cache.DefaultTTL = -time.Second
	assert.Error(t, cfg.Validate(), "负数默认TTL应该返回错误")

	// 容量必须为正
	cfg = Default()
	cfg.Cache.DefaultCapacity = 0
	assert.Error(t, cfg.Validate(), "容量为0时应该返回错误")

	// 未知淘汰策略
	cfg = Default()
	cfg.Cache.DefaultPolicy = "random"
	assert.Error(t, cfg.Validate(), "未知淘汰策略应该返回错误")

	// Redis地址为空
	cfg = Default()
	cfg.Redis.Addr = ""
	assert.Error(t, cfg.Validate(), "Redis地址为空时应该返回错误")

	// 操作超时必须为正
	cfg = Default()
	cfg.Redis.RequestTimeout = 0
	assert.Error(t, cfg.Validate(), "操作超时为0时应该返回错误")

	// 启用指标上报时必须提供地址
	cfg = Default()
	cfg.Metrics.Enabled = true
	cfg.Metrics.URL = ""
	assert.Error(t, cfg.Validate(), "启用指标上报但地址为空时应该返回错误")

	cfg = Default()
	cfg.Metrics.Enabled = true
	cfg.Metrics.Interval = 0
	assert.Error(t, cfg.Validate(), "启用指标上报但间隔为0时应该返回错误")
}

// TestSetters 测试链式设置
func TestSetters(t *testing.T) {
	cfg := Default().
		SetDefaultTTL(10 * time.Minute).
		SetDefaultCapacity(200).
		SetLogLevel("debug")

	assert.Equal(t, 10*time.Minute, cfg.Cache.DefaultTTL)
	assert.Equal(t, 200, cfg.Cache.DefaultCapacity)
	assert.Equal(t, "debug", cfg.Logger.Level)
}
