package cache

import (
	"github.com/Humphrey-He/guardcache/internal/admission"
	"github.com/Humphrey-He/guardcache/internal/breaker"
	"github.com/Humphrey-He/guardcache/internal/eviction"
	"github.com/Humphrey-He/guardcache/internal/storage"
	"github.com/Humphrey-He/guardcache/internal/ttl"
	"github.com/Humphrey-He/guardcache/pkg/errors"
	"github.com/Humphrey-He/guardcache/pkg/level"
)

var _ ICache = (*Cache)(nil)

// Set stores a value and reports whether it was accepted.
// Set(k, v, o) is equivalent to TrySet(k, v, o) == nil.
//
// Set 存储一个值并报告是否被接受。
// Set(k, v, o) 等价于 TrySet(k, v, o) == nil。
func (c *Cache) Set(key string, value any, opts SetOptions) bool {
	return c.TrySet(key, value, opts) == nil
}

// TrySet stores a value and explains a rejection.
// A priority outside LOW..CRITICAL is refused before any counter changes.
// The value is refused when its estimated size exceeds MaxEntrySizeBytes
// (an out-of-memory event) or when admission control turns a LOW priority
// write away under memory pressure. An accepted write that pushes occupancy
// over the limits triggers an eviction pass; a failing pass never fails the write.
//
// TrySet 存储一个值并说明拒绝原因。
// LOW..CRITICAL之外的优先级在任何计数器变化之前被拒绝。
// 估算大小超过MaxEntrySizeBytes（内存溢出事件），或准入控制在内存压力下拒绝LOW优先级写入时，
// 值会被拒绝。被接受的写入若使占用超限会触发淘汰；淘汰失败不会使写入失败。
//
// Parameters:
//   - key: The key under which to store the value
//   - value: The value to store
//   - opts: Entry metadata
//
// Returns:
//   - error: nil, or a *errors.KeyError wrapping ErrKeyEmpty, ErrInvalidPriority,
//     ErrValueTooLarge, ErrAdmissionDenied or ErrClosed
func (c *Cache) TrySet(key string, value any, opts SetOptions) error {
	if key == "" {
		return errors.NewKeyError(key, errors.ErrKeyEmpty)
	}
	priority := opts.Priority.OrDefault()
	if !priority.Valid() {
		return errors.NewKeyError(key, errors.ErrInvalidPriority)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.NewKeyError(key, errors.ErrClosed)
	}

	size := c.estimate(value)
	if size > c.config.MaxEntrySizeBytes {
		c.stats.RecordOutOfMemory()
		c.stats.RecordRejection()
		c.logger.Debug().Str("key", key).Int64("size_bytes", size).Msg("value exceeds the entry size limit")
		return errors.NewKeyError(key, errors.ErrValueTooLarge)
	}

	// A zero entry limit is an always-full cache that only takes HIGH and CRITICAL writes.
	zeroCapacity := c.config.MaxEntries == 0 && priority < level.High
	if zeroCapacity || c.admit.Allow(priority, c.admissionPressureLocked(), c.degradedLocked()) != admission.Admit {
		c.stats.RecordRejection()
		return errors.NewKeyError(key, errors.ErrAdmissionDenied)
	}

	ttlValue := opts.TTL
	switch {
	case ttlValue == 0:
		ttlValue = c.config.DefaultTTL
	case ttlValue < 0:
		ttlValue = 0
	}
	protocol := opts.Protocol
	if protocol == "" {
		protocol = DefaultProtocol
	}
	now := c.clock.NowMillis()

	replaced, err := c.store.Insert(&storage.Entry{
		Key:            key,
		Value:          value,
		Protocol:       protocol,
		Priority:       priority,
		Tags:           append([]string(nil), opts.Tags...),
		SizeBytes:      size,
		TTL:            ttlValue,
		ResolutionCost: opts.ResolutionCost,
		CreatedAt:      now,
		LastAccessedAt: now,
		AccessCount:    1,
	})
	if err != nil {
		c.stats.RecordRejection()
		return err
	}
	c.stats.RecordSet(replaced != nil)

	if c.engine.NeedsEviction(c.store) {
		c.evictLocked(eviction.ReasonAdmission, key)
	}
	return nil
}

// admissionPressureLocked is the level admission control sees.
// Without memory monitoring it is always LOW.
func (c *Cache) admissionPressureLocked() level.Pressure {
	if !c.config.EnableMemoryMonitoring {
		return level.PressureLow
	}
	return c.monitor.Level(c.store.SizeBytes(), c.store.Len())
}

func (c *Cache) degradedLocked() bool {
	return c.breaker.State() == breaker.Open
}

// evictLocked runs one breaker-guarded eviction pass. When the breaker is open
// or the pass fails, the single oldest non-critical entry is removed instead.
// It returns how many entries were removed.
//
// evictLocked 执行一次受熔断器保护的淘汰。熔断器打开或淘汰失败时，改为移除最旧的一个非关键条目。
// 返回移除的条目数。
func (c *Cache) evictLocked(reason eviction.Reason, exclude string) int {
	var res eviction.Result
	err := c.breaker.Execute(func() error {
		var err error
		res, err = c.engine.Evict(c.store, reason, exclude)
		return err
	})

	removed := len(res.Evicted)
	c.stats.RecordEvictions(removed)
	if res.Storm {
		c.stats.RecordStorm()
	}
	if res.Starved {
		c.stats.RecordStarvation()
	}
	if err == nil {
		return removed
	}

	if breaker.IsOpen(err) {
		c.logger.Debug().Str("reason", reason.String()).Msg("eviction breaker open, using fallback eviction")
	} else {
		c.stats.RecordEvictionFailure()
		c.logger.Error().Err(err).Str("reason", reason.String()).Msg("eviction pass failed, using fallback eviction")
	}
	if _, ok := c.engine.Fallback(c.store, exclude); ok {
		c.stats.RecordFallbackEviction()
		removed++
	}
	return removed
}

// Get retrieves an entry and records the access.
// An expired entry is removed, counted as expired and as a miss.
//
// Get 检索条目并记录访问。
// 已过期的条目会被移除，同时计为过期移除和未命中。
//
// Parameters:
//   - key: The key to retrieve
//
// Returns:
//   - Entry: A read view of the entry
//   - bool: True if the key was found and is live
func (c *Cache) Get(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.store.Peek(key)
	if !ok {
		c.stats.RecordMiss()
		return Entry{}, false
	}

	now := c.clock.NowMillis()
	if e.IsExpired(now) {
		c.store.Remove(key)
		c.stats.RecordExpired(1)
		c.stats.RecordMiss()
		return Entry{}, false
	}

	c.store.Touch(key, now)
	c.stats.RecordHit(e.Protocol)
	return newEntryView(e), true
}

// Peek returns a live entry without access bookkeeping and without counting a hit or miss.
//
// Peek 返回未过期的条目，不更新访问信息，也不计入命中或未命中。
func (c *Cache) Peek(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.store.Peek(key)
	if !ok || e.IsExpired(c.clock.NowMillis()) {
		return Entry{}, false
	}
	return newEntryView(e), true
}

// Has reports whether a live entry exists for key.
//
// Has 判断key是否存在未过期的条目。
func (c *Cache) Has(key string) bool {
	_, ok := c.Peek(key)
	return ok
}

// Delete removes an entry and reports whether it existed.
//
// Delete 删除条目并报告其是否存在。
func (c *Cache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.store.Remove(key); !ok {
		return false
	}
	c.stats.RecordDeletes(1)
	return true
}

// Clear removes the entries that carry at least one of tags.
// With no tags every entry is removed.
//
// Clear 删除至少带有一个指定标签的条目。未给出标签时删除所有条目。
//
// Parameters:
//   - tags: Tags to match (OR semantics), none means everything
//
// Returns:
//   - int: The number of entries removed
func (c *Cache) Clear(tags ...string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var n int
	if len(tags) == 0 {
		n = c.store.Clear()
	} else {
		n = c.removeKeysLocked(c.store.FindByTags(tags))
	}
	c.stats.RecordDeletes(n)
	return n
}

// ClearByPrefix removes the entries that carry a tag starting with prefix.
//
// ClearByPrefix 删除带有以prefix开头的标签的条目。
func (c *Cache) ClearByPrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.removeKeysLocked(c.store.FindByTagPrefix(prefix))
	c.stats.RecordDeletes(n)
	return n
}

func (c *Cache) removeKeysLocked(keys []string) int {
	n := 0
	for _, key := range keys {
		if _, ok := c.store.Remove(key); ok {
			n++
		}
	}
	return n
}

// CleanupExpired removes every expired entry and returns how many were removed.
// It is the manual counterpart of the background sweep.
//
// CleanupExpired 移除所有已过期条目并返回移除数量，是后台清理的手动版本。
func (c *Cache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cleanupExpiredLocked()
}

func (c *Cache) cleanupExpiredLocked() int {
	removed := ttl.SweepExpired(c.store, c.clock.NowMillis())
	if len(removed) > 0 {
		c.stats.RecordExpired(len(removed))
		c.logger.Debug().Int("removed", len(removed)).Msg("expired entries swept")
	}
	return len(removed)
}

// HandleMemoryPressure runs an eviction pass outside the write path. It
// reclaims until pressure drops below HIGH and does nothing at LOW or MEDIUM.
//
// HandleMemoryPressure 在写入路径之外执行一次淘汰，回收到压力低于HIGH为止；
// 在LOW或MEDIUM压力下不做任何事。
//
// Returns:
//   - int: The number of entries removed
func (c *Cache) HandleMemoryPressure() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handleMemoryPressureLocked()
}

func (c *Cache) handleMemoryPressureLocked() int {
	if !c.monitor.Level(c.store.SizeBytes(), c.store.Len()).AtLeast(level.PressureHigh) {
		return 0
	}
	return c.evictLocked(eviction.ReasonPressure, "")
}

// tick is the background sweep.
func (c *Cache) tick() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cleanupExpiredLocked()
	if c.config.EnableMemoryMonitoring {
		c.handleMemoryPressureLocked()
	}
}

// Stats returns a snapshot of the cache statistics.
//
// Stats 返回缓存统计信息的快照。
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Snapshot:      c.stats.Snapshot(),
		Pressure:      c.monitor.Level(c.store.SizeBytes(), c.store.Len()),
		BreakerState:  c.breaker.State(),
		InGraceWindow: c.engine.InGraceWindow(),
	}
}

// Config returns the effective configuration.
//
// Config 返回生效的配置。
func (c *Cache) Config() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config
}

// PressureLevel returns the current memory pressure level.
//
// PressureLevel 返回当前内存压力等级。
func (c *Cache) PressureLevel() level.Pressure {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.monitor.Level(c.store.SizeBytes(), c.store.Len())
}

// BreakerState returns the state of the eviction circuit breaker.
//
// BreakerState 返回淘汰熔断器的状态。
func (c *Cache) BreakerState() breaker.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.breaker.State()
}

// Keys returns the keys of all live entries, sorted.
//
// Keys 返回所有未过期条目的键，已排序。
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.NowMillis()
	keys := c.store.Keys()
	live := keys[:0]
	for _, key := range keys {
		if e, ok := c.store.Peek(key); ok && !e.IsExpired(now) {
			live = append(live, key)
		}
	}
	return live
}

// Len returns the number of stored entries, expired ones not yet swept included.
//
// Len 返回存储的条目数，包括尚未清理的过期条目。
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Len()
}

// Cleanup stops the background sweep and clears all entries.
// It is idempotent; the cache stays usable afterwards, without the sweep.
//
// Cleanup 停止后台清理并清空所有条目。
// 可重复调用；之后缓存仍然可用，但不再有后台清理。
func (c *Cache) Cleanup() {
	c.mu.Lock()
	cleaner := c.cleaner
	c.cleaner = nil
	c.mu.Unlock()

	// The sweep takes c.mu, so it must be stopped without holding it.
	if cleaner != nil {
		cleaner.Stop()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.Clear()
}
