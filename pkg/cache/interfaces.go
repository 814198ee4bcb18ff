package cache

import (
	"context"
	"time"
)

// Store 定义了缓存后端的行为接口。
// 内存后端（MemoryStore）与远程后端（RedisStore）都遵循此接口，
// 决策引擎仅依赖该接口，与具体后端无关。
type Store interface {
	// Get 从缓存中获取一个值。未命中时返回 ErrCacheMiss 类错误。
	Get(ctx context.Context, key string) (interface{}, error)
	// Set 向缓存中设置一个值，并指定TTL（生存时间）。
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	// Delete 从缓存中删除一个值。
	Delete(ctx context.Context, key string) error
	// Clear 清空所有缓存条目。
	Clear(ctx context.Context) error
	// Stats 获取缓存的统计信息。
	Stats() Stats
}

// RemoteStore 远程缓存后端接口。
// 在 Store 之上增加连接管理；连接失败永远是可恢复的可报告状态，
// 而不是致命错误。
type RemoteStore interface {
	Store

	// Connect 连接到远程缓存服务器
	Connect(ctx context.Context) error
	// IsConnected 检查是否已连接
	IsConnected() bool
	// Ping 检查连接状态
	Ping(ctx context.Context) error
	// Close 关闭连接并释放资源
	Close() error
}

// Entry 代表缓存中的一个条目。
// 条目归创建它的后端所有：每次读取更新 AccessTime 和 HitCount，
// 过期检查失败、显式删除或容量淘汰时销毁。
type Entry struct {
	Value      interface{} // 缓存的值
	ExpireTime time.Time   // 过期时间
	AccessTime time.Time   // 最后访问时间
	CreateTime time.Time   // 创建时间
	HitCount   int64       // 命中次数
}

// Expired 判断条目在指定时刻是否已过期。
func (e *Entry) Expired(now time.Time) bool {
	return !now.Before(e.ExpireTime)
}

// Stats 包含了缓存后端的统计信息。
type Stats struct {
	Size      int64         `json:"size"`       // 当前缓存中的条目数
	Capacity  int64         `json:"capacity"`   // 缓存最大容量（0表示无界）
	HitCount  int64         `json:"hit_count"`  // 命中次数
	MissCount int64         `json:"miss_count"` // 未命中次数
	HitRate   float64       `json:"hit_rate"`   // 命中率
	TTL       time.Duration `json:"ttl"`        // 默认的生存时间
	LastSweep time.Time     `json:"last_sweep"` // 最后一次清扫过期条目的时间
}
