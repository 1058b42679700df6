// Package errors provides standardized error types for the cache.
// Rejections and internal failures are never raised from the public Set/Get
// contract; these errors explain a rejection to callers that ask for it
// (Cache.TrySet) and carry internal eviction faults to the circuit breaker.
//
// Package errors 提供缓存的标准化错误类型。
// 拒绝和内部故障不会从公开的Set/Get接口抛出；这些错误用于向需要原因的调用方
// （Cache.TrySet）解释拒绝原因，并将内部淘汰故障传递给熔断器。
package errors

import (
	"errors"
	"fmt"
)

// Standard errors that can be returned by the cache.
//
// 缓存可能返回的标准错误。
var (
	// ErrKeyEmpty is returned when an empty key is provided.
	// 当提供空键时返回ErrKeyEmpty。
	ErrKeyEmpty = errors.New("cache: key is empty")

	// ErrValueTooLarge is returned when an entry's estimated size exceeds the per-entry limit.
	// 当条目的估算大小超过单条目限制时返回ErrValueTooLarge。
	ErrValueTooLarge = errors.New("cache: value too large")

	// ErrAdmissionDenied is returned when a low-priority write is refused under memory pressure.
	// 当低优先级写入在内存压力下被拒绝时返回ErrAdmissionDenied。
	ErrAdmissionDenied = errors.New("cache: admission denied")

	// ErrInvalidPriority is returned when a priority is not one of the four defined levels.
	// 当优先级不是四个已定义等级之一时返回ErrInvalidPriority。
	ErrInvalidPriority = errors.New("cache: invalid priority")

	// ErrClosed is returned when an operation is performed on a cache that was reset.
	// 当对已重置的缓存执行操作时返回ErrClosed。
	ErrClosed = errors.New("cache: cache is closed")

	// ErrEvictionFailed wraps faults raised inside the eviction pipeline.
	// ErrEvictionFailed 包装淘汰流程内部产生的故障。
	ErrEvictionFailed = errors.New("cache: eviction failed")
)

// KeyError represents an error related to a specific key.
// It wraps an underlying error with the key that caused the error.
//
// KeyError 表示与特定键相关的错误。
// 它用导致错误的键包装底层错误。
type KeyError struct {
	Key string // The key that caused the error / 导致错误的键
	Err error  // The underlying error / 底层错误
}

// Error returns the error message.
//
// Error 返回错误消息。
func (e *KeyError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err, e.Key)
}

// Unwrap returns the underlying error.
// This allows errors.Is and errors.As to work with wrapped errors.
//
// Unwrap 返回底层错误。
func (e *KeyError) Unwrap() error {
	return e.Err
}

// NewKeyError creates a new KeyError.
//
// NewKeyError 创建一个新的KeyError。
func NewKeyError(key string, err error) *KeyError {
	return &KeyError{Key: key, Err: err}
}

// PanicError carries a value recovered from a panic inside guarded code.
//
// PanicError 携带从受保护代码的panic中恢复的值。
type PanicError struct {
	Value any
}

// Error returns the error message.
func (e *PanicError) Error() string {
	return fmt.Sprintf("recovered panic: %v", e.Value)
}

// Unwrap lets errors.Is(err, ErrEvictionFailed) match recovered panics.
func (e *PanicError) Unwrap() error {
	return ErrEvictionFailed
}

// IsValueTooLarge returns true if the error indicates that a value is too large.
//
// IsValueTooLarge 如果错误表示值太大，则返回true。
func IsValueTooLarge(err error) bool {
	return errors.Is(err, ErrValueTooLarge)
}

// IsAdmissionDenied returns true if the error indicates that admission was denied.
//
// IsAdmissionDenied 如果错误表示准入被拒绝，则返回true。
func IsAdmissionDenied(err error) bool {
	return errors.Is(err, ErrAdmissionDenied)
}

// IsClosed returns true if the error indicates that the cache is closed.
//
// IsClosed 如果错误表示缓存已关闭，则返回true。
func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}

// IsEvictionFailure returns true if the error originated in the eviction pipeline.
//
// IsEvictionFailure 如果错误源自淘汰流程，则返回true。
func IsEvictionFailure(err error) bool {
	return errors.Is(err, ErrEvictionFailed)
}
