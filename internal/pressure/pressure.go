// Package pressure derives a memory pressure level from occupancy.
// Package pressure 根据占用情况计算内存压力等级。
//
// The ratio is max(size/maxSize, entries/maxEntries). Bands are fixed at 0.70
// and 0.85; the boundary between HIGH and CRITICAL follows the configured
// threshold (threshold + 0.15, clamped to [0.85, 1.0]), which is 0.95 for the
// default threshold of 0.8.
//
// 比例为max(大小/最大大小, 条目数/最大条目数)。0.70和0.85为固定分界；HIGH与CRITICAL
// 之间的分界由配置的阈值推导（阈值+0.15，限制在[0.85, 1.0]），默认阈值0.8时为0.95。
package pressure

import (
	"math"

	"github.com/Humphrey-He/guardcache/pkg/level"
)

const (
	// MediumRatio is the lower bound of the MEDIUM band.
	// MediumRatio 是MEDIUM区间的下界。
	MediumRatio = 0.70

	// HighRatio is the lower bound of the HIGH band.
	// HighRatio 是HIGH区间的下界。
	HighRatio = 0.85

	// DefaultThreshold is the default memory pressure threshold.
	// DefaultThreshold 是默认的内存压力阈值。
	DefaultThreshold = 0.8

	ceilingOffset = 0.15
)

// Monitor computes pressure levels against fixed limits.
//
// Monitor 根据固定的限制计算压力等级。
type Monitor struct {
	maxSize    int64
	maxEntries int
	ceiling    float64
}

// NewMonitor creates a monitor.
// A threshold outside (0, 1] falls back to DefaultThreshold.
//
// NewMonitor 创建一个监视器。阈值不在(0, 1]范围内时使用DefaultThreshold。
//
// Parameters:
//   - maxSize: Size limit in bytes
//   - maxEntries: Entry count limit
//   - threshold: Memory pressure threshold fraction
//
// Returns:
//   - *Monitor: The monitor
func NewMonitor(maxSize int64, maxEntries int, threshold float64) *Monitor {
	return &Monitor{
		maxSize:    maxSize,
		maxEntries: maxEntries,
		ceiling:    Ceiling(threshold),
	}
}

// Ceiling returns the ratio at which pressure becomes CRITICAL for threshold.
//
// Ceiling 返回给定阈值下压力变为CRITICAL的比例。
func Ceiling(threshold float64) float64 {
	if threshold <= 0 || threshold > 1 || math.IsNaN(threshold) {
		threshold = DefaultThreshold
	}
	c := math.Min(1.0, math.Max(HighRatio, threshold+ceilingOffset))
	// 0.8+0.15 must compare equal to 0.95
	return math.Round(c*1e9) / 1e9
}

// Ratio returns the occupancy ratio. A non-positive limit yields +Inf.
//
// Ratio 返回占用比例，非正的限制返回正无穷。
func (m *Monitor) Ratio(sizeBytes int64, entries int) float64 {
	if m.maxSize <= 0 || m.maxEntries <= 0 {
		return math.Inf(1)
	}
	return math.Max(
		float64(sizeBytes)/float64(m.maxSize),
		float64(entries)/float64(m.maxEntries),
	)
}

// Level returns the pressure band for the given occupancy.
//
// Level 返回给定占用情况的压力等级。
func (m *Monitor) Level(sizeBytes int64, entries int) level.Pressure {
	return m.LevelOf(m.Ratio(sizeBytes, entries))
}

// LevelOf bands a ratio.
func (m *Monitor) LevelOf(ratio float64) level.Pressure {
	switch {
	case ratio < MediumRatio:
		return level.PressureLow
	case ratio < HighRatio:
		return level.PressureMedium
	case ratio < m.ceiling:
		return level.PressureHigh
	default:
		return level.PressureCritical
	}
}

// Ceiling returns the CRITICAL boundary of this monitor.
func (m *Monitor) Ceiling() float64 {
	return m.ceiling
}

// Headroom returns the fraction of each limit an eviction pass reclaims below
// the limit at the given level: higher pressure reclaims more per pass.
//
// Headroom 返回在给定压力等级下淘汰过程在限制之下额外回收的比例。
func Headroom(p level.Pressure) float64 {
	switch p {
	case level.PressureHigh:
		return 0.05
	case level.PressureCritical:
		return 0.10
	default:
		return 0
	}
}

// Target returns limit reduced by the headroom for p, never below zero.
//
// Target 返回扣除压力等级对应余量后的目标值，不小于0。
func Target(limit int64, p level.Pressure) int64 {
	t := limit - int64(float64(limit)*Headroom(p))
	if t < 0 {
		return 0
	}
	return t
}
