package cache

import (
	"errors"

	baseerr "methodcache/pkg/error"
)

// CacheError 缓存层错误类型
type CacheError struct {
	baseerr.BaseError
}

const (
	// ErrCacheMiss 表示在缓存中未找到请求的条目。
	ErrCacheMiss baseerr.ErrorCode = "CACHE_MISS"
	// ErrCacheTimeout 表示缓存操作超时。
	ErrCacheTimeout baseerr.ErrorCode = "CACHE_TIMEOUT"
	// ErrParameterNotFound 表示参数映射引用的参数在调用参数集中不存在。
	ErrParameterNotFound baseerr.ErrorCode = "PARAMETER_NOT_FOUND"
	// ErrIdentifierNotFound 表示参数映射引用的字段在参数对象上不存在或不可访问。
	ErrIdentifierNotFound baseerr.ErrorCode = "IDENTIFIER_NOT_FOUND"
	// ErrInvalidTTL 表示提供了负数TTL。
	ErrInvalidTTL baseerr.ErrorCode = "INVALID_TTL"
	// ErrBackendUnavailable 表示远程后端不可达（连接失败或超时）。
	ErrBackendUnavailable baseerr.ErrorCode = "BACKEND_UNAVAILABLE"
)

var (
	ErrCacheMissNotFound = NewCacheError(ErrCacheMiss, "cache entry not found")
)

// NewCacheError 创建缓存层错误
func NewCacheError(code baseerr.ErrorCode, message string) *CacheError {
	return &CacheError{
		BaseError: *baseerr.NewError(code, message),
	}
}

// WrapCacheError 包装底层错误为缓存层错误
func WrapCacheError(code baseerr.ErrorCode, message string, cause error) *CacheError {
	return &CacheError{
		BaseError: *baseerr.WrapError(code, message, cause),
	}
}

// IsMiss 判断错误是否为缓存未命中
func IsMiss(err error) bool {
	return hasCode(err, ErrCacheMiss)
}

// IsUnavailable 判断错误是否为远程后端不可达
func IsUnavailable(err error) bool {
	return hasCode(err, ErrBackendUnavailable)
}

func hasCode(err error, code baseerr.ErrorCode) bool {
	var ce *CacheError
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}
