package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRemote 测试用远程后端
type stubRemote struct {
	data        map[string]interface{}
	failGet     bool
	failSet     bool
	setAttempts int
}

func newStubRemote() *stubRemote {
	return &stubRemote{data: make(map[string]interface{})}
}

func (s *stubRemote) Get(ctx context.Context, key string) (interface{}, error) {
	if s.failGet {
		return nil, NewCacheError(ErrBackendUnavailable, "stub backend down")
	}
	value, ok := s.data[key]
	if !ok {
		return nil, ErrCacheMissNotFound
	}
	return value, nil
}

func (s *stubRemote) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	s.setAttempts++
	if s.failSet {
		return NewCacheError(ErrBackendUnavailable, "stub backend down")
	}
	s.data[key] = value
	return nil
}

func (s *stubRemote) Delete(ctx context.Context, key string) error {
	delete(s.data, key)
	return nil
}

func (s *stubRemote) Clear(ctx context.Context) error {
	s.data = make(map[string]interface{})
	return nil
}

func (s *stubRemote) Stats() Stats                      { return Stats{Size: int64(len(s.data))} }
func (s *stubRemote) Connect(ctx context.Context) error { return nil }
func (s *stubRemote) IsConnected() bool                 { return true }
func (s *stubRemote) Ping(ctx context.Context) error    { return nil }
func (s *stubRemote) Close() error                      { return nil }

var _ RemoteStore = (*stubRemote)(nil)

// counter 记录真实计算被执行的次数
type counter struct {
	calls int
	value interface{}
	err   error
}

func (c *counter) compute() (interface{}, error) {
	c.calls++
	return c.value, c.err
}

func productSpec(capacity int) Spec {
	return Spec{
		Key: "ProductCache",
		ParameterMappings: []ParameterMapping{
			{ParameterName: "id"},
		},
		TTLSeconds:     TTLSet(600),
		Backend:        BackendMemory,
		EvictionPolicy: PolicyLRU,
		Capacity:       capacity,
	}
}

func idArgs(id string) map[string]interface{} {
	return map[string]interface{}{"id": id}
}

// 第一次调用未命中并触发计算，TTL内的重复调用命中且不再计算
func TestEngine_MissThenHit(t *testing.T) {
	ctx := context.Background()
	engine := NewEngine(EngineConfig{})
	spec := productSpec(10)
	c := &counter{value: "result-42"}

	value, hit, err := engine.Resolve(ctx, spec, idArgs("42"), c.compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "result-42", value)
	assert.Equal(t, 1, c.calls)

	value, hit, err = engine.Resolve(ctx, spec, idArgs("42"), c.compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "result-42", value)
	assert.Equal(t, 1, c.calls, "命中时不应再次执行计算")
}

// 不同参数产生不同的键，互不命中
func TestEngine_DistinctArgumentsDistinctEntries(t *testing.T) {
	ctx := context.Background()
	engine := NewEngine(EngineConfig{})
	spec := productSpec(10)

	c42 := &counter{value: "v42"}
	c7 := &counter{value: "v7"}

	_, hit, err := engine.Resolve(ctx, spec, idArgs("42"), c42.compute)
	require.NoError(t, err)
	assert.False(t, hit)

	value, hit, err := engine.Resolve(ctx, spec, idArgs("7"), c7.compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "v7", value)
	assert.Equal(t, 1, c42.calls)
	assert.Equal(t, 1, c7.calls)
}

// 容量2的LRU场景：插入 42、7、9 后 42 被淘汰
func TestEngine_LRUEvictionScenario(t *testing.T) {
	ctx := context.Background()
	engine := NewEngine(EngineConfig{})
	spec := productSpec(2)

	c := &counter{value: "v"}
	_, _, err := engine.Resolve(ctx, spec, idArgs("42"), c.compute)
	require.NoError(t, err)
	_, hit, err := engine.Resolve(ctx, spec, idArgs("42"), c.compute)
	require.NoError(t, err)
	assert.True(t, hit)

	_, _, err = engine.Resolve(ctx, spec, idArgs("7"), c.compute)
	require.NoError(t, err)
	_, _, err = engine.Resolve(ctx, spec, idArgs("9"), c.compute)
	require.NoError(t, err)

	// 42 被淘汰，重新解析又是未命中
	calls := c.calls
	_, hit, err = engine.Resolve(ctx, spec, idArgs("42"), c.compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, calls+1, c.calls)

	stats := engine.Stats()["ProductCache"]
	assert.Equal(t, int64(2), stats.Size)
}

// 参数缺失：失败开放，计算照常执行，缓存状态不变
func TestEngine_FailOpenOnParameterNotFound(t *testing.T) {
	ctx := context.Background()
	engine := NewEngine(EngineConfig{})
	spec := productSpec(10)
	c := &counter{value: "v"}

	value, hit, err := engine.Resolve(ctx, spec, map[string]interface{}{"other": 1}, c.compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "v", value)
	assert.Equal(t, 1, c.calls)

	// 失败开放不应创建或修改任何命名空间
	assert.Empty(t, engine.Stats())
}

// 字段缺失：失败开放
func TestEngine_FailOpenOnIdentifierNotFound(t *testing.T) {
	ctx := context.Background()
	engine := NewEngine(EngineConfig{})
	spec := Spec{
		Key: "UserCache",
		ParameterMappings: []ParameterMapping{
			{ParameterName: "user", RequestIdentifier: "Nope"},
		},
	}
	c := &counter{value: "v"}

	value, hit, err := engine.Resolve(ctx, spec,
		map[string]interface{}{"user": user{Username: "alice"}}, c.compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "v", value)
	assert.Equal(t, 1, c.calls)
}

// 负数TTL：拒绝缓存但结果照常返回，且永远不会产生存储条目
func TestEngine_FailOpenOnNegativeTTL(t *testing.T) {
	ctx := context.Background()
	engine := NewEngine(EngineConfig{})
	spec := productSpec(10)
	spec.TTLSeconds = TTLSet(-1)
	c := &counter{value: "v"}

	for i := 0; i < 2; i++ {
		value, hit, err := engine.Resolve(ctx, spec, idArgs("42"), c.compute)
		require.NoError(t, err)
		assert.False(t, hit)
		assert.Equal(t, "v", value)
	}
	assert.Equal(t, 2, c.calls, "负数TTL下每次调用都应重新计算")
	assert.Empty(t, engine.Stats())
}

// TTL为0：条目写入即过期，每次调用都重新计算
func TestEngine_ZeroTTLNeverHits(t *testing.T) {
	ctx := context.Background()
	engine := NewEngine(EngineConfig{})
	spec := productSpec(10)
	spec.TTLSeconds = TTLSet(0)
	c := &counter{value: "v"}

	for i := 0; i < 2; i++ {
		_, hit, err := engine.Resolve(ctx, spec, idArgs("42"), c.compute)
		require.NoError(t, err)
		assert.False(t, hit)
	}
	assert.Equal(t, 2, c.calls)
}

// 空键规格：失败开放
func TestEngine_FailOpenOnInvalidSpec(t *testing.T) {
	ctx := context.Background()
	engine := NewEngine(EngineConfig{})
	c := &counter{value: "v"}

	value, hit, err := engine.Resolve(ctx, Spec{}, nil, c.compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "v", value)
	assert.Equal(t, 1, c.calls)
}

// 计算本身的错误原样传播，不写缓存
func TestEngine_ComputeErrorPropagates(t *testing.T) {
	ctx := context.Background()
	engine := NewEngine(EngineConfig{})
	spec := productSpec(10)
	boom := errors.New("downstream failure")
	c := &counter{err: boom}

	_, hit, err := engine.Resolve(ctx, spec, idArgs("42"), c.compute)
	assert.False(t, hit)
	assert.ErrorIs(t, err, boom)

	stats := engine.Stats()["ProductCache"]
	assert.Equal(t, int64(0), stats.Size, "失败的计算结果不应被缓存")
}

// 远程后端：未命中→计算→写回→命中
func TestEngine_RemoteBackendMissThenHit(t *testing.T) {
	ctx := context.Background()
	remote := newStubRemote()
	engine := NewEngine(EngineConfig{Remote: remote})
	spec := productSpec(10)
	spec.Backend = BackendRemote
	c := &counter{value: "v42"}

	value, hit, err := engine.Resolve(ctx, spec, idArgs("42"), c.compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "v42", value)

	value, hit, err = engine.Resolve(ctx, spec, idArgs("42"), c.compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "v42", value)
	assert.Equal(t, 1, c.calls)
}

// 远程后端不可达：失败开放
func TestEngine_FailOpenOnRemoteUnavailable(t *testing.T) {
	ctx := context.Background()
	remote := newStubRemote()
	remote.failGet = true
	engine := NewEngine(EngineConfig{Remote: remote})
	spec := productSpec(10)
	spec.Backend = BackendRemote
	c := &counter{value: "v"}

	for i := 0; i < 2; i++ {
		value, hit, err := engine.Resolve(ctx, spec, idArgs("42"), c.compute)
		require.NoError(t, err)
		assert.False(t, hit)
		assert.Equal(t, "v", value)
	}
	assert.Equal(t, 2, c.calls)
}

// 未配置远程后端时声明 remote 的调用点失败开放
func TestEngine_FailOpenOnRemoteNotConfigured(t *testing.T) {
	ctx := context.Background()
	engine := NewEngine(EngineConfig{})
	spec := productSpec(10)
	spec.Backend = BackendRemote
	c := &counter{value: "v"}

	value, hit, err := engine.Resolve(ctx, spec, idArgs("42"), c.compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "v", value)
	assert.Equal(t, 1, c.calls)
}

// 远程写入失败被忽略：新计算的结果仍然返回
func TestEngine_RemoteWriteFailureIgnored(t *testing.T) {
	ctx := context.Background()
	remote := newStubRemote()
	remote.failSet = true
	engine := NewEngine(EngineConfig{Remote: remote})
	spec := productSpec(10)
	spec.Backend = BackendRemote
	c := &counter{value: "v"}

	value, hit, err := engine.Resolve(ctx, spec, idArgs("42"), c.compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "v", value)
	assert.Equal(t, 1, remote.setAttempts)
}

// Invalidate 之后再次解析是未命中
func TestEngine_Invalidate(t *testing.T) {
	ctx := context.Background()
	engine := NewEngine(EngineConfig{})
	spec := productSpec(10)
	c := &counter{value: "v"}

	_, _, err := engine.Resolve(ctx, spec, idArgs("42"), c.compute)
	require.NoError(t, err)

	require.NoError(t, engine.Invalidate(ctx, spec, idArgs("42")))

	_, hit, err := engine.Resolve(ctx, spec, idArgs("42"), c.compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, c.calls)
}

func TestEngine_InvalidateErrors(t *testing.T) {
	ctx := context.Background()
	engine := NewEngine(EngineConfig{})

	// 空键规格
	assert.Error(t, engine.Invalidate(ctx, Spec{}, nil))

	// 参数缺失
	spec := productSpec(10)
	assert.Error(t, engine.Invalidate(ctx, spec, map[string]interface{}{}))
}

// 同一命名空间的容量和策略在首次使用时固定
func TestEngine_NamespaceCreatedOnce(t *testing.T) {
	ctx := context.Background()
	engine := NewEngine(EngineConfig{})
	spec := productSpec(2)
	c := &counter{value: "v"}

	_, _, err := engine.Resolve(ctx, spec, idArgs("1"), c.compute)
	require.NoError(t, err)

	// 后续即使声明不同容量也不会重建命名空间
	bigger := productSpec(100)
	_, _, err = engine.Resolve(ctx, bigger, idArgs("2"), c.compute)
	require.NoError(t, err)
	_, _, err = engine.Resolve(ctx, bigger, idArgs("3"), c.compute)
	require.NoError(t, err)

	stats := engine.Stats()["ProductCache"]
	assert.Equal(t, int64(2), stats.Capacity)
	assert.LessOrEqual(t, stats.Size, int64(2))
}

// SweepExpired 清除过期条目
func TestEngine_SweepExpired(t *testing.T) {
	ctx := context.Background()
	engine := NewEngine(EngineConfig{})
	spec := productSpec(10)
	spec.TTLSeconds = TTLSet(0) // 写入即过期
	c := &counter{value: "v"}

	_, _, err := engine.Resolve(ctx, spec, idArgs("42"), c.compute)
	require.NoError(t, err)

	removed := engine.SweepExpired()
	assert.Equal(t, 1, removed)
	assert.Equal(t, int64(0), engine.Stats()["ProductCache"].Size)
}
