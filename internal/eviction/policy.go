// Package eviction provides the cache eviction engine.
// Package eviction 提供缓存淘汰引擎。
//
// Every candidate receives a composite score (priority rank dominates, then
// recency, resolution cost and access frequency) and the lowest scoring
// entries are removed one at a time until the triggering constraint is
// satisfied. The engine enforces a minimum-size floor, protects critical
// entries, detects eviction storms and reports starvation.
//
// 每个候选条目获得一个复合分数（优先级占主导，其次是最近访问时间、解析代价和访问频率），
// 分数最低的条目被逐个移除，直到触发约束得到满足。引擎保证最小容量下限、保护关键条目、
// 检测淘汰风暴并报告饥饿事件。
package eviction

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Humphrey-He/guardcache/internal/pressure"
	"github.com/Humphrey-He/guardcache/internal/storage"
	"github.com/Humphrey-He/guardcache/internal/utils"
	"github.com/Humphrey-He/guardcache/pkg/errors"
	"github.com/Humphrey-He/guardcache/pkg/level"
)

// Store is the subset of the entry store the engine needs.
// Store 是引擎需要的存储接口子集。
type Store interface {
	Len() int
	SizeBytes() int64
	Range(fn func(e *storage.Entry) bool)
	Remove(key string) (*storage.Entry, bool)
	Oldest(match func(*storage.Entry) bool) (*storage.Entry, bool)
}

// Reason identifies what triggered an eviction pass.
// Reason 标识触发淘汰的原因。
type Reason int

const (
	// ReasonAdmission is a pass triggered by a write that pushed occupancy over the limits.
	// ReasonAdmission 由写入导致占用超限触发。
	ReasonAdmission Reason = iota

	// ReasonPressure is an explicit pass that reclaims until pressure drops below HIGH.
	// ReasonPressure 显式触发，回收直到压力低于HIGH。
	ReasonPressure
)

// String returns the reason name used in logs.
func (r Reason) String() string {
	if r == ReasonPressure {
		return "pressure"
	}
	return "admission"
}

// Config defines configuration options for the eviction engine.
// Config 定义淘汰引擎的配置选项。
type Config struct {
	// MaxSize is the maximum capacity of the cache in bytes.
	// MaxSize 是缓存的最大容量（字节）。
	MaxSize int64

	// MaxEntries is the maximum number of entries the cache can hold.
	// MaxEntries 是缓存可以容纳的最大条目数。
	MaxEntries int

	// MinEntries is the floor eviction never goes below.
	// MinEntries 是淘汰永远不会低于的下限。
	MinEntries int

	// Threshold is the memory pressure threshold fraction.
	// Threshold 是内存压力阈值。
	Threshold float64

	// PriorityProtection keeps CRITICAL entries unless pressure is CRITICAL and nothing else is left.
	// PriorityProtection 保护CRITICAL条目，除非压力为CRITICAL且没有其他可淘汰条目。
	PriorityProtection bool

	// Headroom reclaims extra space below the limits at HIGH and CRITICAL pressure.
	// Headroom 在HIGH和CRITICAL压力下额外回收低于限制的空间。
	Headroom bool

	// StormThreshold is the number of evictions one admission pass needs to get back
	// under the limits that counts as a storm. Headroom reclaim is not counted.
	// StormThreshold 单次写入为回到限制以内所需的淘汰数达到该值即视为风暴，余量回收不计入。
	StormThreshold int

	// StormGraceWindow is how long limits stay relaxed after a storm.
	// StormGraceWindow 风暴后限制放宽的持续时间。
	StormGraceWindow time.Duration

	// StormCapacityFactor multiplies the limits during the grace window.
	// StormCapacityFactor 宽限期内限制的放大系数。
	StormCapacityFactor float64

	// Scorer overrides the composite scorer.
	// Scorer 覆盖默认的复合打分器。
	Scorer Scorer

	// Clock supplies monotonic milliseconds.
	// Clock 提供单调毫秒时间。
	Clock utils.Clock

	// Logger receives pass diagnostics.
	// Logger 接收淘汰过程的诊断日志。
	Logger zerolog.Logger
}

// Result describes one eviction pass.
// Result 描述一次淘汰过程。
type Result struct {
	Evicted  []*storage.Entry // Removed entries in eviction order / 按淘汰顺序排列的被移除条目
	Required int              // Evictions made while still over the limits / 仍超出限制时进行的淘汰数
	Storm    bool             // The pass counted as an eviction storm / 本次淘汰被视为风暴
	Starved  bool             // The floor stopped a pass under critical pressure / 在严重压力下因下限而停止
	Pressure level.Pressure   // Pressure level when the pass started / 淘汰开始时的压力等级
}

// Engine scores and removes victims.
// Engine is not safe for concurrent use; the cache facade serializes calls.
//
// Engine 为候选条目打分并移除淘汰对象。
// Engine 不是并发安全的，由缓存门面串行化调用。
type Engine struct {
	config     Config
	scorer     Scorer
	monitor    *pressure.Monitor
	clock      utils.Clock
	logger     zerolog.Logger
	graceUntil int64
}

// NewEngine creates a new eviction engine.
//
// NewEngine 创建一个新的淘汰引擎。
func NewEngine(config Config) *Engine {
	scorer := config.Scorer
	if scorer == nil {
		scorer = NewCompositeScorer(DefaultWeights(), true, config.PriorityProtection)
	}
	clock := config.Clock
	if clock == nil {
		clock = utils.SystemClock{}
	}
	if config.StormCapacityFactor < 1 {
		config.StormCapacityFactor = 1
	}
	return &Engine{
		config:  config,
		scorer:  scorer,
		monitor: pressure.NewMonitor(config.MaxSize, config.MaxEntries, config.Threshold),
		clock:   clock,
		logger:  config.Logger,
	}
}

// InGraceWindow reports whether limits are currently relaxed after a storm.
//
// InGraceWindow 报告当前是否处于风暴后的限制放宽期。
func (e *Engine) InGraceWindow() bool {
	return e.clock.NowMillis() < e.graceUntil
}

// effectiveLimits returns the limits used to decide whether a pass is needed.
func (e *Engine) effectiveLimits(reason Reason) (int64, int) {
	maxSize, maxEntries := e.config.MaxSize, e.config.MaxEntries
	if reason == ReasonAdmission && e.InGraceWindow() {
		f := e.config.StormCapacityFactor
		maxSize = int64(float64(maxSize) * f)
		maxEntries = int(float64(maxEntries) * f)
	}
	return maxSize, maxEntries
}

// NeedsEviction reports whether occupancy exceeds the effective limits.
//
// NeedsEviction 报告占用是否超过有效限制。
func (e *Engine) NeedsEviction(store Store) bool {
	maxSize, maxEntries := e.effectiveLimits(ReasonAdmission)
	return store.SizeBytes() > maxSize || store.Len() > maxEntries
}

type candidate struct {
	entry *storage.Entry
	score float64
}

func lessCandidate(a, b candidate) bool {
	if a.score != b.score {
		return a.score < b.score
	}
	if a.entry.LastAccessedAt != b.entry.LastAccessedAt {
		return a.entry.LastAccessedAt < b.entry.LastAccessedAt
	}
	return a.entry.Key < b.entry.Key
}

// Evict runs one eviction pass.
// An admission pass reclaims until occupancy is back under the limits minus the
// headroom of the starting pressure level; a pressure pass reclaims until the
// ratio drops below the HIGH band. The key in exclude (the entry just written)
// is never a candidate. A scoring fault aborts the pass before anything is
// removed and is returned wrapped in ErrEvictionFailed.
//
// Evict 执行一次淘汰。
// 写入触发的淘汰回收到限制减去起始压力等级对应余量以下；压力触发的淘汰回收到比例低于HIGH区间。
// exclude中的键（刚写入的条目）永远不会成为候选。打分故障会在移除任何条目之前中止本次淘汰，
// 并以ErrEvictionFailed包装返回。
//
// Parameters:
//   - store: The entry store
//   - reason: What triggered the pass
//   - exclude: Key to keep out of the candidate set, may be empty
//
// Returns:
//   - Result: What the pass did
//   - error: A scoring fault
func (e *Engine) Evict(store Store, reason Reason, exclude string) (Result, error) {
	now := e.clock.NowMillis()
	start := e.monitor.Level(store.SizeBytes(), store.Len())
	res := Result{Pressure: start}

	done := e.stopCondition(store, reason, start)
	if done() {
		return res, nil
	}

	candidates, err := e.score(store, now, exclude)
	if err != nil {
		return res, err
	}
	queue := utils.NewMinHeapFrom(candidates, lessCandidate)
	maxSize, maxEntries := e.effectiveLimits(reason)

	floorHit := false
	for !done() {
		if store.Len() <= e.config.MinEntries {
			floorHit = true
			break
		}
		c, ok := queue.RemoveTop()
		if !ok {
			break
		}
		if e.config.PriorityProtection && c.entry.Priority == level.Critical {
			// Candidates are ordered by priority first: only critical entries remain.
			if e.monitor.Level(store.SizeBytes(), store.Len()) < level.PressureCritical {
				break
			}
		}
		over := store.SizeBytes() > maxSize || store.Len() > maxEntries
		if victim, ok := store.Remove(c.entry.Key); ok {
			res.Evicted = append(res.Evicted, victim)
			if over {
				res.Required++
			}
		}
	}

	if floorHit && !done() && e.monitor.Level(store.SizeBytes(), store.Len()) == level.PressureCritical {
		res.Starved = true
		e.logger.Warn().
			Int("entries", store.Len()).
			Int64("size_bytes", store.SizeBytes()).
			Int("floor", e.config.MinEntries).
			Msg("eviction stopped at the minimum cache size under critical pressure")
	}

	// Headroom evictions are planned reclaim, only those needed to get back
	// under the limits count towards a storm.
	if reason == ReasonAdmission && e.config.StormThreshold > 0 && res.Required >= e.config.StormThreshold {
		res.Storm = true
		e.graceUntil = now + e.config.StormGraceWindow.Milliseconds()
		e.logger.Warn().
			Int("evicted", len(res.Evicted)).
			Int("required", res.Required).
			Dur("grace_window", e.config.StormGraceWindow).
			Msg("eviction storm detected, relaxing limits")
	}

	e.logger.Debug().
		Str("reason", reason.String()).
		Str("pressure", start.String()).
		Int("evicted", len(res.Evicted)).
		Int("entries", store.Len()).
		Int64("size_bytes", store.SizeBytes()).
		Msg("eviction pass finished")

	return res, nil
}

// stopCondition returns the predicate that ends a pass.
func (e *Engine) stopCondition(store Store, reason Reason, start level.Pressure) func() bool {
	if reason == ReasonPressure {
		return func() bool {
			return e.monitor.Ratio(store.SizeBytes(), store.Len()) < pressure.HighRatio
		}
	}

	maxSize, maxEntries := e.effectiveLimits(reason)
	if store.SizeBytes() <= maxSize && store.Len() <= maxEntries {
		return func() bool { return true }
	}
	p := start
	if !e.config.Headroom {
		p = level.PressureLow
	}
	sizeTarget := pressure.Target(maxSize, p)
	entriesTarget := int(pressure.Target(int64(maxEntries), p))
	return func() bool {
		return store.SizeBytes() <= sizeTarget && store.Len() <= entriesTarget
	}
}

// score builds the candidate list. Panics are left to the caller's guard.
func (e *Engine) score(store Store, now int64, exclude string) ([]candidate, error) {
	ctx := &ScoreContext{Now: now}
	store.Range(func(entry *storage.Entry) bool {
		if entry.Key != exclude {
			ctx.Observe(entry)
		}
		return true
	})

	candidates := make([]candidate, 0, store.Len())
	var scoreErr error
	store.Range(func(entry *storage.Entry) bool {
		if entry.Key == exclude {
			return true
		}
		s, err := e.scorer.Score(entry, ctx)
		if err != nil {
			scoreErr = fmt.Errorf("%w: scoring %q: %v", errors.ErrEvictionFailed, entry.Key, err)
			return false
		}
		candidates = append(candidates, candidate{entry: entry, score: s})
		return true
	})
	if scoreErr != nil {
		return nil, scoreErr
	}
	return candidates, nil
}

// Fallback removes the single least recently used non-critical entry above the floor.
// It is the minimal eviction path used while the circuit breaker is open.
//
// Fallback 移除下限之上最久未使用的一个非关键条目。
// 这是熔断器打开期间使用的最小淘汰路径。
func (e *Engine) Fallback(store Store, exclude string) (*storage.Entry, bool) {
	if store.Len() <= e.config.MinEntries {
		return nil, false
	}
	victim, ok := store.Oldest(func(entry *storage.Entry) bool {
		return entry.Key != exclude && entry.Priority != level.Critical
	})
	if !ok {
		return nil, false
	}
	store.Remove(victim.Key)
	e.logger.Debug().Str("key", victim.Key).Msg("fallback eviction")
	return victim, true
}
