package cache

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	baseerr "methodcache/pkg/error"
	"methodcache/pkg/logger"
)

// ComputeFunc 被包装的真实计算。缓存未命中或失败开放时由引擎调用。
type ComputeFunc func() (interface{}, error)

// EngineConfig 决策引擎配置
type EngineConfig struct {
	// Remote 远程后端。为 nil 时，声明 remote 后端的调用点一律失败开放。
	Remote RemoteStore
}

// Engine 缓存决策引擎。
//
// 每次调用走一条固定路径：构造键 → 选择后端 → 查询 → 命中返回，
// 未命中则执行计算并写回。任何引擎层错误（参数缺失、字段缺失、
// 非法TTL、后端不可达）都转为失败开放：计算照常执行，结果照常返回，
// 只是不写缓存；引擎错误永远不会传播给被包装计算的调用方，
// 唯一的可见痕迹是日志诊断。
type Engine struct {
	mu         sync.RWMutex
	namespaces map[string]*MemoryStore
	remote     RemoteStore
	log        *logrus.Entry
	instanceID string
}

// NewEngine 创建缓存决策引擎
func NewEngine(config EngineConfig) *Engine {
	instanceID := uuid.NewString()

	return &Engine{
		namespaces: make(map[string]*MemoryStore),
		remote:     config.Remote,
		instanceID: instanceID,
		log: logger.WithComponent("CacheEngine").
			WithField("engine_id", instanceID),
	}
}

// Resolve 解析一次被拦截的调用。
//
// 返回 (值, 是否缓存命中, 错误)。返回的错误只可能来自 compute 本身；
// 缓存层的任何问题都已在引擎内部处理。命中时不调用 compute。
func (e *Engine) Resolve(ctx context.Context, spec Spec, args map[string]interface{}, compute ComputeFunc) (interface{}, bool, error) {
	spec = spec.Normalized()

	if err := spec.Validate(); err != nil {
		e.diagnose(spec, "", err, "Invalid cache spec, computing without cache")
		return e.failOpen(compute)
	}

	// 负数TTL在查询之前拒绝，条目永远不会被写入
	if spec.TTLSeconds != nil && *spec.TTLSeconds < 0 {
		err := NewCacheError(ErrInvalidTTL, "negative ttl is not allowed")
		err.WithContext("ttl_seconds", *spec.TTLSeconds)
		e.diagnose(spec, "", err, "Negative TTL rejected, computing without cache")
		return e.failOpen(compute)
	}

	key, err := BuildKey(spec.Key, spec.ParameterMappings, args)
	if err != nil {
		e.diagnose(spec, "", err, "Key build failed, computing without cache")
		return e.failOpen(compute)
	}

	store, err := e.storeFor(spec)
	if err != nil {
		e.diagnose(spec, key, err, "No usable backend, computing without cache")
		return e.failOpen(compute)
	}

	value, err := store.Get(ctx, key)
	if err == nil {
		return value, true, nil
	}
	if !IsMiss(err) {
		// 后端不可达或其他存储层错误：失败开放
		e.diagnose(spec, key, err, "Cache lookup failed, computing without cache")
		return e.failOpen(compute)
	}

	// 未命中：执行真实计算
	value, computeErr := compute()
	if computeErr != nil {
		return value, false, computeErr
	}

	// 写回失败只记录日志，计算结果仍然返回给调用方
	if err := store.Set(ctx, key, value, spec.TTL()); err != nil {
		e.diagnose(spec, key, err, "Cache write failed, returning uncached result")
	}

	return value, false, nil
}

// Invalidate 使一个缓存条目失效：按同样的规则构造键并从选定后端删除。
func (e *Engine) Invalidate(ctx context.Context, spec Spec, args map[string]interface{}) error {
	spec = spec.Normalized()

	if err := spec.Validate(); err != nil {
		return err
	}

	key, err := BuildKey(spec.Key, spec.ParameterMappings, args)
	if err != nil {
		return err
	}

	store, err := e.storeFor(spec)
	if err != nil {
		return err
	}

	return store.Delete(ctx, key)
}

// SweepExpired 清扫所有内存命名空间中已过期的条目，返回清除总数。
// 由 Janitor 周期调用。
func (e *Engine) SweepExpired() int {
	e.mu.RLock()
	stores := make([]*MemoryStore, 0, len(e.namespaces))
	for _, store := range e.namespaces {
		stores = append(stores, store)
	}
	e.mu.RUnlock()

	removed := 0
	for _, store := range stores {
		removed += store.Sweep()
	}

	if removed > 0 {
		e.log.WithField("removed", removed).Debug("Swept expired cache entries")
	}
	return removed
}

// Stats 返回各命名空间（以及远程后端）的统计信息
func (e *Engine) Stats() map[string]Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	stats := make(map[string]Stats, len(e.namespaces)+1)
	for name, store := range e.namespaces {
		stats[name] = store.Stats()
	}
	if e.remote != nil {
		stats["remote"] = e.remote.Stats()
	}
	return stats
}

// storeFor 按规格选择后端。内存命名空间在首次使用时以规格声明的
// 容量和策略创建，之后不再变化。
func (e *Engine) storeFor(spec Spec) (Store, error) {
	switch spec.Backend {
	case BackendRemote:
		if e.remote == nil {
			return nil, NewCacheError(ErrBackendUnavailable, "remote backend is not configured")
		}
		return e.remote, nil

	default:
		e.mu.RLock()
		store, exists := e.namespaces[spec.Key]
		e.mu.RUnlock()
		if exists {
			return store, nil
		}

		e.mu.Lock()
		defer e.mu.Unlock()
		if store, exists = e.namespaces[spec.Key]; exists {
			return store, nil
		}
		store = NewMemoryStore(MemoryStoreConfig{
			Capacity: spec.Capacity,
			Policy:   spec.EvictionPolicy,
		})
		e.namespaces[spec.Key] = store
		return store, nil
	}
}

// failOpen 失败开放：计算照常执行，结果不写缓存。
func (e *Engine) failOpen(compute ComputeFunc) (interface{}, bool, error) {
	value, err := compute()
	return value, false, err
}

// diagnose 输出引擎层错误的日志诊断，附带错误代码与上下文
func (e *Engine) diagnose(spec Spec, key string, err error, message string) {
	fields := logrus.Fields{
		"namespace": spec.Key,
		"backend":   string(spec.Backend),
	}
	if key != "" {
		fields["key"] = key
	}

	var be *baseerr.BaseError
	var ce *CacheError
	if errors.As(err, &ce) {
		fields["code"] = string(ce.Code)
		for k, v := range ce.Context {
			fields[k] = v
		}
	} else if errors.As(err, &be) {
		fields["code"] = string(be.Code)
	}

	e.log.WithError(err).WithFields(fields).Warn(message)
}
