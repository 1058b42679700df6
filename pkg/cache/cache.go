// Package cache provides a thread-safe, in-memory cache for values that are
// expensive to recompute. It combines TTL expiry, priority and recency aware
// eviction, memory pressure admission control, a circuit breaker around its own
// eviction logic, and storm and starvation safeguards.
//
// Package cache 提供线程安全的内存缓存，用于保存重新计算代价高的值。
// 它结合了TTL过期、优先级与最近访问感知的淘汰、基于内存压力的准入控制、
// 保护自身淘汰逻辑的熔断器，以及风暴和饥饿保护机制。
package cache

import (
	"time"

	"github.com/Humphrey-He/guardcache/internal/breaker"
	"github.com/Humphrey-He/guardcache/internal/metrics"
	"github.com/Humphrey-He/guardcache/internal/storage"
	"github.com/Humphrey-He/guardcache/pkg/level"
)

// DefaultProtocol is the statistics label used when a write does not name one.
//
// DefaultProtocol 写入未指定协议时使用的统计标签。
const DefaultProtocol = "default"

// ICache defines the interface for the cache.
// All methods are thread-safe and can be called concurrently.
//
// ICache 定义缓存的接口。
// 所有方法都是线程安全的，可以并发调用。
type ICache interface {
	// Set stores a value and reports whether it was accepted.
	// A rejected write leaves the cache unchanged.
	//
	// Set 存储一个值并报告是否被接受。
	// 被拒绝的写入不会改变缓存。
	//
	// Parameters:
	//   - key: The key under which to store the value
	//   - value: The value to store, never inspected beyond size estimation
	//   - opts: Protocol, priority, TTL, tags and resolution cost of the entry
	//
	// Returns:
	//   - bool: True if the value is now cached
	Set(key string, value any, opts SetOptions) bool

	// Get retrieves an entry from the cache.
	// An expired entry is removed and reported as a miss.
	//
	// Get 从缓存中检索条目。
	// 已过期的条目会被移除并计为未命中。
	//
	// Parameters:
	//   - key: The key to retrieve
	//
	// Returns:
	//   - Entry: A read view of the entry, including its metadata
	//   - bool: True if the key was found and is live
	Get(key string) (Entry, bool)

	// Delete removes a value from the cache.
	// Returns true if the key was found and removed, false if the key was not found.
	//
	// Delete 从缓存中删除值。
	// 如果找到并删除了键，则返回true；如果未找到键，则返回false。
	Delete(key string) bool

	// Clear removes every entry carrying one of tags, or every entry when no tag is given.
	//
	// Clear 删除带有任一标签的条目；未给出标签时删除所有条目。
	Clear(tags ...string) int

	// Stats returns a snapshot of the cache statistics.
	// The snapshot is a copy; mutating it never affects the cache.
	//
	// Stats 返回缓存统计信息的快照。
	// 快照是副本，修改它不会影响缓存。
	Stats() Stats

	// Cleanup stops the background sweep and clears all entries. It is idempotent.
	//
	// Cleanup 停止后台清理并清空所有条目，可重复调用。
	Cleanup()
}

// SetOptions describes an entry being written.
// The zero value is a NORMAL priority entry with the default TTL, no tags and
// the default protocol.
//
// SetOptions 描述正在写入的条目。
// 零值表示NORMAL优先级、默认TTL、无标签、默认协议的条目。
type SetOptions struct {
	// Protocol groups the entry in statistics
	// Protocol 用于统计分组
	Protocol string

	// Priority controls eviction protection and admission; zero means NORMAL
	// Priority 控制淘汰保护和准入，零值表示NORMAL
	Priority level.Priority

	// TTL is the time-to-live; zero uses the default TTL, negative never expires
	// TTL 存活时间；0使用默认TTL，负数表示永不过期
	TTL time.Duration

	// Tags enable bulk invalidation with Clear and ClearByPrefix
	// Tags 用于通过Clear和ClearByPrefix批量失效
	Tags []string

	// ResolutionCost is how expensive the value was to produce
	// ResolutionCost 生成该值的代价
	ResolutionCost time.Duration
}

// Entry is a read view of a cached entry.
// It is a copy: mutating it never changes cache state. The value itself is shared.
//
// Entry 是缓存条目的只读视图。
// 它是副本，修改它不会改变缓存状态。值本身是共享的。
type Entry struct {
	Key            string         `json:"key"`
	Value          any            `json:"value"`
	Protocol       string         `json:"protocol"`
	Priority       level.Priority `json:"priority"`
	Tags           []string       `json:"tags,omitempty"`
	SizeBytes      int64          `json:"size_bytes"`
	TTL            time.Duration  `json:"ttl"`
	ResolutionCost time.Duration  `json:"resolution_cost"`
	CreatedAt      int64          `json:"created_at"`
	LastAccessedAt int64          `json:"last_accessed_at"`
	AccessCount    int64          `json:"access_count"`
	FailureCount   int64          `json:"failure_count"`
}

func newEntryView(e *storage.Entry) Entry {
	v := Entry{
		Key:            e.Key,
		Value:          e.Value,
		Protocol:       e.Protocol,
		Priority:       e.Priority,
		SizeBytes:      e.SizeBytes,
		TTL:            e.TTL,
		ResolutionCost: e.ResolutionCost,
		CreatedAt:      e.CreatedAt,
		LastAccessedAt: e.LastAccessedAt,
		AccessCount:    e.AccessCount,
		FailureCount:   e.FailureCount,
	}
	if len(e.Tags) > 0 {
		v.Tags = append([]string(nil), e.Tags...)
	}
	return v
}

// Stats represents cache statistics.
// These metrics are collected during cache operations and can be used
// to monitor performance and adjust cache parameters.
//
// Stats 表示缓存统计信息。
// 这些指标在缓存操作期间收集，可用于监控性能和调整缓存参数。
type Stats struct {
	metrics.Snapshot

	// Pressure is the memory pressure level at snapshot time
	// Pressure 快照时的内存压力等级
	Pressure level.Pressure `json:"pressure"`

	// BreakerState is the eviction circuit breaker state at snapshot time
	// BreakerState 快照时的淘汰熔断器状态
	BreakerState breaker.State `json:"breaker_state"`

	// InGraceWindow reports whether limits are relaxed after an eviction storm
	// InGraceWindow 是否处于风暴后的限制放宽期
	InGraceWindow bool `json:"in_grace_window"`
}
