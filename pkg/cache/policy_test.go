package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func entryAt(create, access time.Time, hits int64) *Entry {
	return &Entry{
		CreateTime: create,
		AccessTime: access,
		HitCount:   hits,
	}
}

func TestNewEvictionPolicy(t *testing.T) {
	assert.IsType(t, &LRUPolicy{}, NewEvictionPolicy(PolicyLRU))
	assert.IsType(t, &LFUPolicy{}, NewEvictionPolicy(PolicyLFU))
	assert.IsType(t, &FIFOPolicy{}, NewEvictionPolicy(PolicyFIFO))
	// 未知类型默认使用LRU
	assert.IsType(t, &LRUPolicy{}, NewEvictionPolicy(PolicyType("unknown")))
}

func TestLRUPolicy_SelectVictim(t *testing.T) {
	base := time.Now()
	entries := map[string]*Entry{
		"a": entryAt(base, base.Add(3*time.Second), 1),
		"b": entryAt(base, base.Add(1*time.Second), 5),
		"c": entryAt(base, base.Add(2*time.Second), 1),
	}

	policy := NewEvictionPolicy(PolicyLRU)
	// 最久未访问的是 b，命中次数不影响LRU
	assert.Equal(t, "b", policy.SelectVictim(entries))
}

func TestLRUPolicy_TieBreaksOnKey(t *testing.T) {
	base := time.Now()
	entries := map[string]*Entry{
		"z": entryAt(base, base, 1),
		"a": entryAt(base, base, 1),
	}

	policy := NewEvictionPolicy(PolicyLRU)
	assert.Equal(t, "a", policy.SelectVictim(entries))
}

func TestLFUPolicy_SelectVictim(t *testing.T) {
	base := time.Now()
	entries := map[string]*Entry{
		"a": entryAt(base, base, 3),
		"b": entryAt(base, base, 1),
		"c": entryAt(base, base, 2),
	}

	policy := NewEvictionPolicy(PolicyLFU)
	assert.Equal(t, "b", policy.SelectVictim(entries))
}

// LFU平局时淘汰创建时间最早的
func TestLFUPolicy_TieBreaksOnCreateTime(t *testing.T) {
	base := time.Now()
	entries := map[string]*Entry{
		"newer": entryAt(base.Add(time.Second), base, 1),
		"older": entryAt(base, base, 1),
	}

	policy := NewEvictionPolicy(PolicyLFU)
	assert.Equal(t, "older", policy.SelectVictim(entries))
}

func TestFIFOPolicy_SelectVictim(t *testing.T) {
	base := time.Now()
	entries := map[string]*Entry{
		"first":  entryAt(base, base.Add(time.Hour), 100),
		"second": entryAt(base.Add(time.Second), base, 1),
	}

	policy := NewEvictionPolicy(PolicyFIFO)
	// 访问信息不影响FIFO，最早创建的被淘汰
	assert.Equal(t, "first", policy.SelectVictim(entries))
}

func TestSelectVictim_EmptyStore(t *testing.T) {
	for _, pt := range []PolicyType{PolicyLRU, PolicyLFU, PolicyFIFO} {
		policy := NewEvictionPolicy(pt)
		assert.Equal(t, "", policy.SelectVictim(map[string]*Entry{}))
	}
}

// 相同元数据下选择必须是确定的
func TestSelectVictim_Deterministic(t *testing.T) {
	base := time.Now()
	entries := map[string]*Entry{
		"a": entryAt(base, base, 1),
		"b": entryAt(base, base, 1),
		"c": entryAt(base, base, 1),
	}

	for _, pt := range []PolicyType{PolicyLRU, PolicyLFU, PolicyFIFO} {
		policy := NewEvictionPolicy(pt)
		first := policy.SelectVictim(entries)
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, policy.SelectVictim(entries))
		}
	}
}
