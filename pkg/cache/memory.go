package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryStoreConfig 内存后端配置
type MemoryStoreConfig struct {
	Capacity int            // 最大条目数量
	Policy   PolicyType     // 淘汰策略
	Clock    func() time.Time // 时间源，nil时使用 time.Now（测试用）
}

// MemoryStore 线程安全的有界内存缓存，对应一个缓存命名空间。
// 容量与淘汰策略在创建时固定，运行期不可变。
// 单把互斥锁覆盖完整的"查找-淘汰-插入"序列，保证并发写入下
// size ≤ capacity 的容量不变式。
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*Entry
	policy  EvictionPolicy

	capacity  int
	clock     func() time.Time
	hitCount  int64
	missCount int64
	lastSweep time.Time
}

// NewMemoryStore 创建新的内存后端
func NewMemoryStore(config MemoryStoreConfig) *MemoryStore {
	capacity := config.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	clock := config.Clock
	if clock == nil {
		clock = time.Now
	}

	return &MemoryStore{
		entries:  make(map[string]*Entry),
		policy:   NewEvictionPolicy(config.Policy),
		capacity: capacity,
		clock:    clock,
	}
}

// Get 获取缓存值。条目不存在或已过期（惰性过期，过期条目在此处删除）
// 时返回 ErrCacheMiss。命中时更新条目的访问元数据。
func (ms *MemoryStore) Get(ctx context.Context, key string) (interface{}, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	entry, exists := ms.entries[key]
	if !exists {
		ms.missCount++
		return nil, ErrCacheMissNotFound
	}

	now := ms.clock()
	if entry.Expired(now) {
		delete(ms.entries, key)
		ms.policy.OnRemove(key, entry)
		ms.missCount++
		return nil, NewCacheError(ErrCacheMiss, "cache entry expired")
	}

	entry.AccessTime = now
	entry.HitCount++
	ms.policy.OnAccess(key, entry)
	ms.hitCount++

	return entry.Value, nil
}

// Set 设置缓存值。负数TTL被拒绝并返回 ErrInvalidTTL；
// TTL为0的条目写入即过期（下一次读取删除它）。
// 新键写入且容量已满时，先按策略淘汰恰好一个条目再插入。
func (ms *MemoryStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl < 0 {
		err := NewCacheError(ErrInvalidTTL, "negative ttl is not allowed")
		err.WithContext("key", key)
		err.WithContext("ttl", ttl.String())
		return err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	_, exists := ms.entries[key]
	if !exists && len(ms.entries) >= ms.capacity {
		victim := ms.policy.SelectVictim(ms.entries)
		if victim != "" {
			evicted := ms.entries[victim]
			delete(ms.entries, victim)
			ms.policy.OnRemove(victim, evicted)
		}
	}

	now := ms.clock()
	entry := &Entry{
		Value:      value,
		ExpireTime: now.Add(ttl),
		AccessTime: now,
		CreateTime: now,
		HitCount:   1,
	}

	ms.entries[key] = entry
	ms.policy.OnInsert(key, entry)

	return nil
}

// Delete 删除缓存值
func (ms *MemoryStore) Delete(ctx context.Context, key string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if entry, exists := ms.entries[key]; exists {
		delete(ms.entries, key)
		ms.policy.OnRemove(key, entry)
	}
	return nil
}

// Clear 清空缓存
func (ms *MemoryStore) Clear(ctx context.Context) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	for key, entry := range ms.entries {
		ms.policy.OnRemove(key, entry)
	}
	ms.entries = make(map[string]*Entry)
	ms.hitCount = 0
	ms.missCount = 0
	return nil
}

// Sweep 主动清除已过期的条目，返回清除的数量。
// 惰性过期之外的补充手段，由 Janitor 周期调用。
func (ms *MemoryStore) Sweep() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := ms.clock()
	removed := 0
	for key, entry := range ms.entries {
		if entry.Expired(now) {
			delete(ms.entries, key)
			ms.policy.OnRemove(key, entry)
			removed++
		}
	}

	if removed > 0 {
		ms.lastSweep = now
	}
	return removed
}

// Len 返回当前条目数
func (ms *MemoryStore) Len() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return len(ms.entries)
}

// Stats 获取缓存统计信息
func (ms *MemoryStore) Stats() Stats {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	var hitRate float64
	if total := ms.hitCount + ms.missCount; total > 0 {
		hitRate = float64(ms.hitCount) / float64(total)
	}

	return Stats{
		Size:      int64(len(ms.entries)),
		Capacity:  int64(ms.capacity),
		HitCount:  ms.hitCount,
		MissCount: ms.missCount,
		HitRate:   hitRate,
		LastSweep: ms.lastSweep,
	}
}

var _ Store = (*MemoryStore)(nil)
