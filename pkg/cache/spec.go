package cache

import (
	"errors"
	"time"
)

// BackendType 缓存后端类型
type BackendType string

const (
	BackendMemory BackendType = "memory" // 进程内存后端
	BackendRemote BackendType = "remote" // 远程后端（如Redis）
)

// 调用点声明的默认值。
const (
	DefaultTTLSeconds = 3600
	DefaultCapacity   = 1500
)

// ParameterMapping 把一个调用参数（可选地，参数对象的一个字段）映射为
// 缓存键的一个片段。在 Spec.ParameterMappings 中的顺序影响键的组成。
type ParameterMapping struct {
	ParameterName     string `json:"parameter_name" yaml:"parameter_name"`                             // 调用参数名
	RequestIdentifier string `json:"request_identifier,omitempty" yaml:"request_identifier,omitempty"` // 从参数对象中提取的字段名（可选）
}

// Spec 描述一个逻辑缓存命名空间，附着在调用点上，一经创建不可变。
type Spec struct {
	Key               string             `json:"key" yaml:"key"`                             // 键前缀，必填，同时是命名空间名
	ParameterMappings []ParameterMapping `json:"parameter_mappings" yaml:"parameter_mappings"` // 有序的参数映射
	TTLSeconds        *int               `json:"ttl_seconds" yaml:"ttl_seconds"`             // 生存时间（秒），nil表示默认3600
	Backend           BackendType        `json:"backend" yaml:"backend"`                     // 后端类型，默认memory
	EvictionPolicy    PolicyType         `json:"eviction_policy" yaml:"eviction_policy"`    // 淘汰策略，默认lru
	Capacity          int                `json:"capacity" yaml:"capacity"`                   // 容量，仅memory后端有效，默认1500
}

// TTL 返回规格声明的生存时间。未显式声明时使用默认值3600秒；
// 显式的0表示写入即过期。
func (s *Spec) TTL() time.Duration {
	if s.TTLSeconds == nil {
		return DefaultTTLSeconds * time.Second
	}
	return time.Duration(*s.TTLSeconds) * time.Second
}

// TTLSet 构造一个显式TTL值，便于声明 Spec 字面量。
func TTLSet(seconds int) *int {
	return &seconds
}

// Normalized 返回一份填充了默认值的规格副本。原规格不会被修改。
func (s Spec) Normalized() Spec {
	if s.Backend == "" {
		s.Backend = BackendMemory
	}
	if s.EvictionPolicy == "" {
		s.EvictionPolicy = PolicyLRU
	}
	if s.Capacity <= 0 {
		s.Capacity = DefaultCapacity
	}
	return s
}

// Validate 验证规格
func (s *Spec) Validate() error {
	if s.Key == "" {
		return errors.New("spec key cannot be empty")
	}

	switch s.Backend {
	case "", BackendMemory, BackendRemote:
	default:
		return errors.New("unknown backend type: " + string(s.Backend))
	}

	switch s.EvictionPolicy {
	case "", PolicyLRU, PolicyLFU, PolicyFIFO:
	default:
		return errors.New("unknown eviction policy: " + string(s.EvictionPolicy))
	}

	for _, m := range s.ParameterMappings {
		if m.ParameterName == "" {
			return errors.New("parameter mapping requires a parameter name")
		}
	}

	return nil
}
