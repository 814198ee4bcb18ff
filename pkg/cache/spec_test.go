package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSpec_Defaults(t *testing.T) {
	spec := Spec{Key: "K"}.Normalized()

	assert.Equal(t, BackendMemory, spec.Backend)
	assert.Equal(t, PolicyLRU, spec.EvictionPolicy)
	assert.Equal(t, DefaultCapacity, spec.Capacity)
	assert.Equal(t, 3600*time.Second, spec.TTL())
}

func TestSpec_ExplicitTTL(t *testing.T) {
	spec := Spec{Key: "K", TTLSeconds: TTLSet(600)}
	assert.Equal(t, 600*time.Second, spec.TTL())

	// 显式的0与未设置是可区分的
	spec = Spec{Key: "K", TTLSeconds: TTLSet(0)}
	assert.Equal(t, time.Duration(0), spec.TTL())
}

func TestSpec_Validate(t *testing.T) {
	valid := Spec{Key: "K"}
	assert.NoError(t, valid.Validate())

	missing := Spec{}
	assert.Error(t, missing.Validate())

	badBackend := Spec{Key: "K", Backend: BackendType("tape")}
	assert.Error(t, badBackend.Validate())

	badPolicy := Spec{Key: "K", EvictionPolicy: PolicyType("random")}
	assert.Error(t, badPolicy.Validate())

	badMapping := Spec{Key: "K", ParameterMappings: []ParameterMapping{{}}}
	assert.Error(t, badMapping.Validate())
}

func TestCacheError_Codes(t *testing.T) {
	miss := NewCacheError(ErrCacheMiss, "nope")
	assert.True(t, IsMiss(miss))
	assert.False(t, IsUnavailable(miss))

	down := NewCacheError(ErrBackendUnavailable, "down")
	assert.True(t, IsUnavailable(down))
	assert.False(t, IsMiss(down))

	assert.False(t, IsMiss(nil))
	assert.False(t, IsMiss(assert.AnError))
}
