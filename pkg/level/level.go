// Package level defines the closed, ordered enumerations shared by the cache
// engine: entry priorities and memory pressure levels.
//
// Package level 定义缓存引擎共享的有序枚举：条目优先级和内存压力级别。
package level

import (
	"fmt"
	"strings"
)

// Priority is the caller-assigned importance of an entry.
// Priorities are totally ordered: Low < Normal < High < Critical.
//
// The zero value means "unspecified" and resolves to Normal via OrDefault.
//
// Priority 是调用方为条目指定的重要程度，满足全序关系。
// 零值表示"未指定"，通过OrDefault解析为Normal。
type Priority int

const (
	// Low entries are the first to be evicted and may be refused under critical pressure.
	// Low 条目最先被淘汰，在严重内存压力下可能被拒绝写入。
	Low Priority = iota + 1

	// Normal is the default priority.
	// Normal 是默认优先级。
	Normal

	// High entries are always admitted.
	// High 条目总是会被尝试写入。
	High

	// Critical entries are only evicted under critical pressure when nothing else is left.
	// Critical 条目仅在严重压力下且无其他可淘汰条目时才会被淘汰。
	Critical
)

var priorityNames = [...]string{"low", "normal", "high", "critical"}

// String returns the lower-case name of the priority.
func (p Priority) String() string {
	if p < Low || p > Critical {
		return fmt.Sprintf("priority(%d)", int(p))
	}
	return priorityNames[p-Low]
}

// Valid reports whether p is one of the four defined priorities.
func (p Priority) Valid() bool {
	return p >= Low && p <= Critical
}

// Rank returns the position of p in the total order, starting at 0 for Low.
func (p Priority) Rank() int {
	return int(p - Low)
}

// OrDefault returns Normal for the zero value and p otherwise.
//
// OrDefault 零值返回Normal，否则返回p本身。
func (p Priority) OrDefault() Priority {
	if p == 0 {
		return Normal
	}
	return p
}

// ParsePriority parses a priority name (case-insensitive).
//
// ParsePriority 解析优先级名称（不区分大小写）。
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return Low, nil
	case "normal", "":
		return Normal, nil
	case "high":
		return High, nil
	case "critical":
		return Critical, nil
	}
	return Normal, fmt.Errorf("level: unknown priority %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (p Priority) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("level: invalid priority %d", int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Priority) UnmarshalText(text []byte) error {
	parsed, err := ParsePriority(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Pressure is a coarse band describing cache occupancy relative to its limits.
// Levels are monotonic: PressureLow < PressureMedium < PressureHigh < PressureCritical.
//
// Pressure 描述缓存占用相对于限制的粗粒度级别，单调递增。
type Pressure int

const (
	// PressureLow means occupancy is comfortably below the limits.
	PressureLow Pressure = iota

	// PressureMedium means occupancy is approaching the limits.
	PressureMedium

	// PressureHigh means eviction should reclaim extra headroom.
	PressureHigh

	// PressureCritical means the cache is at or beyond its limits.
	PressureCritical
)

var pressureNames = [...]string{"low", "medium", "high", "critical"}

// String returns the lower-case name of the pressure level.
func (p Pressure) String() string {
	if p < PressureLow || p > PressureCritical {
		return fmt.Sprintf("pressure(%d)", int(p))
	}
	return pressureNames[p]
}

// AtLeast reports whether p is at or above other.
func (p Pressure) AtLeast(other Pressure) bool {
	return p >= other
}

// MarshalText implements encoding.TextMarshaler.
func (p Pressure) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// ParsePressure parses a pressure level name (case-insensitive).
func ParsePressure(s string) (Pressure, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return PressureLow, nil
	case "medium":
		return PressureMedium, nil
	case "high":
		return PressureHigh, nil
	case "critical":
		return PressureCritical, nil
	}
	return PressureLow, fmt.Errorf("level: unknown pressure level %q", s)
}
