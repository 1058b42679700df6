// Package admission provides cache admission control.
// Package admission 提供缓存准入控制。
//
// Admission decides whether a write may proceed given the current memory
// pressure. Refusing low-value writes up front avoids eviction churn that would
// remove useful entries only to make room for entries that are evicted next.
//
// 准入控制根据当前内存压力决定写入是否可以继续。提前拒绝低价值写入可以避免
// 为了容纳很快又会被淘汰的条目而移除有用条目的淘汰抖动。
package admission

import (
	"github.com/Humphrey-He/guardcache/pkg/level"
)

// Decision describes the outcome of an admission check.
// Decision 描述准入检查的结果。
type Decision int

const (
	// Admit lets the write proceed.
	// Admit 允许写入继续。
	Admit Decision = iota

	// RejectPressure refuses the write because of memory pressure.
	// RejectPressure 因内存压力拒绝写入。
	RejectPressure
)

// Policy defines the interface for cache admission policies.
//
// Policy 定义缓存准入策略接口。
type Policy interface {
	// Allow determines if a write with the given priority may proceed.
	//
	// Allow 判断给定优先级的写入是否可以继续。
	//
	// Parameters:
	//   - priority: Priority of the entry being written
	//   - pressure: Current memory pressure level
	//   - degraded: True while the eviction circuit breaker is open
	//
	// Returns:
	//   - Decision: Admit or the reason for rejection
	Allow(priority level.Priority, pressure level.Pressure, degraded bool) Decision
}

// PressurePolicy rejects LOW-priority writes under critical pressure.
// While degraded it also rejects them under high pressure, since the
// fallback eviction path reclaims at most one entry per write.
//
// PressurePolicy 在严重压力下拒绝LOW优先级写入。
// 降级期间在高压力下也拒绝它们，因为降级淘汰每次写入最多只回收一个条目。
type PressurePolicy struct{}

// NewPressurePolicy creates a new pressure based admission policy.
//
// NewPressurePolicy 创建一个基于压力的准入策略。
func NewPressurePolicy() *PressurePolicy {
	return &PressurePolicy{}
}

// Allow implements Policy.
func (*PressurePolicy) Allow(priority level.Priority, pressure level.Pressure, degraded bool) Decision {
	if priority > level.Low {
		return Admit
	}
	if pressure >= level.PressureCritical {
		return RejectPressure
	}
	if degraded && pressure >= level.PressureHigh {
		return RejectPressure
	}
	return Admit
}

// AlwaysAdmit admits every write. Used when memory monitoring is disabled.
//
// AlwaysAdmit 允许所有写入，在禁用内存监控时使用。
type AlwaysAdmit struct{}

// Allow implements Policy.
func (AlwaysAdmit) Allow(level.Priority, level.Pressure, bool) Decision {
	return Admit
}
