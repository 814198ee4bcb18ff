package cache

// PolicyType 淘汰策略类型
type PolicyType string

const (
	PolicyLRU  PolicyType = "lru"  // Least Recently Used
	PolicyLFU  PolicyType = "lfu"  // Least Frequently Used
	PolicyFIFO PolicyType = "fifo" // First In First Out
)

// EvictionPolicy 缓存淘汰策略。
// 所有回调都在持有命名空间锁的情况下被调用，选择只依赖条目元数据，
// 相同元数据下的选择结果是确定的（便于测试）。
type EvictionPolicy interface {
	// OnInsert 新条目插入后的回调
	OnInsert(key string, entry *Entry)
	// OnAccess 条目命中后的回调，条目的 AccessTime/HitCount 已由存储更新
	OnAccess(key string, entry *Entry)
	// OnRemove 条目被删除（过期、显式删除或淘汰）后的回调
	OnRemove(key string, entry *Entry)
	// SelectVictim 在容量已满时选出应淘汰的键，空存储返回空串
	SelectVictim(entries map[string]*Entry) string
}

// NewEvictionPolicy 创建淘汰策略
func NewEvictionPolicy(policyType PolicyType) EvictionPolicy {
	switch policyType {
	case PolicyLFU:
		return &LFUPolicy{}
	case PolicyFIFO:
		return &FIFOPolicy{}
	default:
		return &LRUPolicy{} // 默认使用LRU
	}
}

// LRUPolicy LRU淘汰策略：淘汰最久未被访问的条目。
type LRUPolicy struct{}

func (lru *LRUPolicy) OnInsert(key string, entry *Entry) {}

func (lru *LRUPolicy) OnAccess(key string, entry *Entry) {}

func (lru *LRUPolicy) OnRemove(key string, entry *Entry) {}

// SelectVictim 选出 AccessTime 最早的条目，时间相同时取字典序最小的键。
func (lru *LRUPolicy) SelectVictim(entries map[string]*Entry) string {
	var victim string
	for key, entry := range entries {
		if victim == "" {
			victim = key
			continue
		}
		cur := entries[victim]
		if entry.AccessTime.Before(cur.AccessTime) ||
			(entry.AccessTime.Equal(cur.AccessTime) && key < victim) {
			victim = key
		}
	}
	return victim
}

// LFUPolicy LFU淘汰策略：淘汰命中次数最少的条目，
// 次数相同时淘汰创建时间最早的。
type LFUPolicy struct{}

func (lfu *LFUPolicy) OnInsert(key string, entry *Entry) {}

func (lfu *LFUPolicy) OnAccess(key string, entry *Entry) {}

func (lfu *LFUPolicy) OnRemove(key string, entry *Entry) {}

// SelectVictim 选出 HitCount 最小的条目；平局按最早 CreateTime，
// 再平局按字典序最小的键。
func (lfu *LFUPolicy) SelectVictim(entries map[string]*Entry) string {
	var victim string
	for key, entry := range entries {
		if victim == "" {
			victim = key
			continue
		}
		cur := entries[victim]
		switch {
		case entry.HitCount < cur.HitCount:
			victim = key
		case entry.HitCount == cur.HitCount:
			if entry.CreateTime.Before(cur.CreateTime) ||
				(entry.CreateTime.Equal(cur.CreateTime) && key < victim) {
				victim = key
			}
		}
	}
	return victim
}

// FIFOPolicy FIFO淘汰策略：淘汰最早创建的条目，访问不影响顺序。
type FIFOPolicy struct{}

func (fifo *FIFOPolicy) OnInsert(key string, entry *Entry) {}

// OnAccess FIFO策略不需要处理访问事件
func (fifo *FIFOPolicy) OnAccess(key string, entry *Entry) {}

func (fifo *FIFOPolicy) OnRemove(key string, entry *Entry) {}

// SelectVictim 选出 CreateTime 最早的条目，时间相同时取字典序最小的键。
func (fifo *FIFOPolicy) SelectVictim(entries map[string]*Entry) string {
	var victim string
	for key, entry := range entries {
		if victim == "" {
			victim = key
			continue
		}
		cur := entries[victim]
		if entry.CreateTime.Before(cur.CreateTime) ||
			(entry.CreateTime.Equal(cur.CreateTime) && key < victim) {
			victim = key
		}
	}
	return victim
}

var (
	_ EvictionPolicy = (*LRUPolicy)(nil)
	_ EvictionPolicy = (*LFUPolicy)(nil)
	_ EvictionPolicy = (*FIFOPolicy)(nil)
)
