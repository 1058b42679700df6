// Package metrics provides cache runtime statistics.
// Package metrics 提供缓存运行时统计。
//
// The Aggregator keeps running counters and a per-protocol breakdown. Derived
// metrics (hit ratio, average resolution cost, efficiency score) are computed
// on read and never stored. Snapshots are deep copies: mutating one never
// affects the aggregator.
//
// Aggregator 维护运行计数器和按协议划分的统计。派生指标（命中率、平均解析代价、
// 效率分数）在读取时计算，从不存储。快照是深拷贝，修改快照不会影响聚合器。
package metrics

import (
	"time"
)

const (
	// hitRatioWeight is the share of the hit ratio in the efficiency score.
	// hitRatioWeight 命中率在效率分数中的权重。
	hitRatioWeight = 0.7

	// evictionWeight is the share of (1 - eviction rate) in the efficiency score.
	// evictionWeight （1 - 淘汰率）在效率分数中的权重。
	evictionWeight = 0.3
)

// ProtocolStats is the per-protocol breakdown.
// ProtocolStats 按协议划分的统计。
type ProtocolStats struct {
	Entries   int64  `json:"entries"`
	Hits      uint64 `json:"hits"`
	SizeBytes int64  `json:"size_bytes"`
}

// Snapshot is an immutable view of the statistics at one point in time.
// Snapshot 是某一时刻统计信息的不可变视图。
type Snapshot struct {
	TotalEntries   int64 `json:"total_entries"`
	TotalSizeBytes int64 `json:"total_size_bytes"`

	Hits     uint64  `json:"hits"`
	Misses   uint64  `json:"misses"`
	HitRatio float64 `json:"hit_ratio"`

	Evicted           uint64 `json:"evicted"`
	ExpiredRemoved    uint64 `json:"expired_removed"`
	EvictionStorms    uint64 `json:"eviction_storms"`
	StarvationEvents  uint64 `json:"starvation_events"`
	OutOfMemoryEvents uint64 `json:"out_of_memory_events"`

	Sets              uint64 `json:"sets"`
	Overwrites        uint64 `json:"overwrites"`
	Rejections        uint64 `json:"rejections"`
	Deletes           uint64 `json:"deletes"`
	FallbackEvictions uint64 `json:"fallback_evictions"`
	EvictionFailures  uint64 `json:"eviction_failures"`
	BreakerTrips      uint64 `json:"breaker_trips"`

	AvgResolutionCostMs float64 `json:"avg_resolution_cost_ms"`
	EfficiencyScore     float64 `json:"efficiency_score"`

	Protocols map[string]ProtocolStats `json:"protocols"`
}

// Aggregator collects cache statistics.
// It is not safe for concurrent use; the cache facade serializes access.
//
// Aggregator 收集缓存统计信息。
// 它不是并发安全的，由缓存门面串行化访问。
type Aggregator struct {
	// Occupancy, maintained incrementally through EntryAdded/EntryRemoved
	// 占用情况，通过EntryAdded/EntryRemoved增量维护
	totalEntries int64
	totalSize    int64
	costSum      time.Duration

	// Read behaviour
	// 读取行为
	hits   uint64
	misses uint64

	// Removal behaviour
	// 移除行为
	evicted           uint64
	expiredRemoved    uint64
	deletes           uint64
	fallbackEvictions uint64

	// Safeguards
	// 保护机制
	evictionStorms    uint64
	starvationEvents  uint64
	outOfMemoryEvents uint64
	evictionFailures  uint64
	breakerTrips      uint64

	// Write behaviour
	// 写入行为
	sets       uint64
	overwrites uint64
	rejections uint64

	protocols map[string]*ProtocolStats
}

// NewAggregator creates an empty aggregator.
//
// NewAggregator 创建一个空的聚合器。
func NewAggregator() *Aggregator {
	return &Aggregator{protocols: make(map[string]*ProtocolStats)}
}

func (a *Aggregator) protocol(name string) *ProtocolStats {
	p, ok := a.protocols[name]
	if !ok {
		p = &ProtocolStats{}
		a.protocols[name] = p
	}
	return p
}

// EntryAdded accounts for an entry that became visible in the store.
func (a *Aggregator) EntryAdded(protocol string, size int64, cost time.Duration) {
	a.totalEntries++
	a.totalSize += size
	a.costSum += cost
	p := a.protocol(protocol)
	p.Entries++
	p.SizeBytes += size
}

// EntryRemoved accounts for an entry that left the store for any reason.
func (a *Aggregator) EntryRemoved(protocol string, size int64, cost time.Duration) {
	a.totalEntries--
	a.totalSize -= size
	a.costSum -= cost
	p := a.protocol(protocol)
	p.Entries--
	p.SizeBytes -= size
}

// RecordHit counts a successful read.
func (a *Aggregator) RecordHit(protocol string) {
	a.hits++
	a.protocol(protocol).Hits++
}

// RecordMiss counts a read that found nothing live.
func (a *Aggregator) RecordMiss() { a.misses++ }

// RecordSet counts an accepted write.
func (a *Aggregator) RecordSet(overwrite bool) {
	a.sets++
	if overwrite {
		a.overwrites++
	}
}

// RecordRejection counts a refused write of any kind.
func (a *Aggregator) RecordRejection() { a.rejections++ }

// RecordOutOfMemory counts a write refused for exceeding the per-entry size limit.
func (a *Aggregator) RecordOutOfMemory() { a.outOfMemoryEvents++ }

// RecordEvictions counts entries removed by the eviction engine.
func (a *Aggregator) RecordEvictions(n int) { a.evicted += uint64(n) }

// RecordFallbackEviction counts an entry removed by the breaker-open fallback.
// It is also counted as a regular eviction.
func (a *Aggregator) RecordFallbackEviction() {
	a.evicted++
	a.fallbackEvictions++
}

// RecordExpired counts entries removed because their TTL elapsed.
func (a *Aggregator) RecordExpired(n int) { a.expiredRemoved += uint64(n) }

// RecordDeletes counts entries removed by delete or clear.
func (a *Aggregator) RecordDeletes(n int) { a.deletes += uint64(n) }

// RecordStorm counts an eviction storm.
func (a *Aggregator) RecordStorm() { a.evictionStorms++ }

// RecordStarvation counts a pass that stopped at the floor while still critical.
func (a *Aggregator) RecordStarvation() { a.starvationEvents++ }

// RecordEvictionFailure counts an internal fault in the eviction pipeline.
func (a *Aggregator) RecordEvictionFailure() { a.evictionFailures++ }

// RecordBreakerTrip counts a transition of the breaker into the open state.
func (a *Aggregator) RecordBreakerTrip() { a.breakerTrips++ }

// HitRatio returns hits / (hits + misses), or 0 when nothing was read.
//
// HitRatio 返回命中率，没有读取时返回0。
func (a *Aggregator) HitRatio() float64 {
	total := a.hits + a.misses
	if total == 0 {
		return 0
	}
	return float64(a.hits) / float64(total)
}

// EfficiencyScore combines the hit ratio with the share of writes that did not
// cost an eviction or an out-of-memory rejection. The result is in [0, 1].
//
// EfficiencyScore 将命中率与未导致淘汰或内存拒绝的写入比例结合，结果在[0, 1]之间。
func (a *Aggregator) EfficiencyScore() float64 {
	sets := a.sets
	if sets == 0 {
		sets = 1
	}
	evictionRate := float64(a.evicted+a.outOfMemoryEvents) / float64(sets)
	if evictionRate > 1 {
		evictionRate = 1
	}
	score := hitRatioWeight*a.HitRatio() + evictionWeight*(1-evictionRate)
	switch {
	case score < 0:
		return 0
	case score > 1:
		return 1
	}
	return score
}

// Snapshot returns a deep copy of the current statistics.
//
// Snapshot 返回当前统计信息的深拷贝。
func (a *Aggregator) Snapshot() Snapshot {
	s := Snapshot{
		TotalEntries:      a.totalEntries,
		TotalSizeBytes:    a.totalSize,
		Hits:              a.hits,
		Misses:            a.misses,
		HitRatio:          a.HitRatio(),
		Evicted:           a.evicted,
		ExpiredRemoved:    a.expiredRemoved,
		EvictionStorms:    a.evictionStorms,
		StarvationEvents:  a.starvationEvents,
		OutOfMemoryEvents: a.outOfMemoryEvents,
		Sets:              a.sets,
		Overwrites:        a.overwrites,
		Rejections:        a.rejections,
		Deletes:           a.deletes,
		FallbackEvictions: a.fallbackEvictions,
		EvictionFailures:  a.evictionFailures,
		BreakerTrips:      a.breakerTrips,
		EfficiencyScore:   a.EfficiencyScore(),
		Protocols:         make(map[string]ProtocolStats, len(a.protocols)),
	}
	if a.totalEntries > 0 {
		s.AvgResolutionCostMs = float64(a.costSum.Milliseconds()) / float64(a.totalEntries)
	}
	for name, p := range a.protocols {
		s.Protocols[name] = *p
	}
	return s
}
