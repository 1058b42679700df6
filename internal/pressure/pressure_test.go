package pressure

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Humphrey-He/guardcache/pkg/level"
)

func TestBanding(t *testing.T) {
	m := NewMonitor(1000, 100, 0.8)

	tests := []struct {
		name    string
		size    int64
		entries int
		want    level.Pressure
	}{
		{"empty", 0, 0, level.PressureLow},
		{"just below medium", 699, 69, level.PressureLow},
		{"medium by size", 700, 0, level.PressureMedium},
		{"medium by entries", 0, 70, level.PressureMedium},
		{"high", 850, 10, level.PressureHigh},
		{"just below ceiling", 949, 94, level.PressureHigh},
		{"critical at ceiling", 0, 95, level.PressureCritical},
		{"over capacity", 5000, 1, level.PressureCritical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Level(tt.size, tt.entries))
		})
	}
}

func TestRatioTakesTheWorseDimension(t *testing.T) {
	m := NewMonitor(1000, 10, 0.8)
	assert.InDelta(t, 0.5, m.Ratio(100, 5), 1e-9)
	assert.InDelta(t, 0.9, m.Ratio(900, 1), 1e-9)
}

func TestDegenerateLimitsAreCritical(t *testing.T) {
	for _, m := range []*Monitor{NewMonitor(0, 10, 0.8), NewMonitor(100, 0, 0.8), NewMonitor(-1, -1, 0.8)} {
		assert.True(t, math.IsInf(m.Ratio(0, 0), 1))
		assert.Equal(t, level.PressureCritical, m.Level(0, 0))
	}
}

func TestCeiling(t *testing.T) {
	assert.InDelta(t, 0.95, Ceiling(0.8), 1e-9)
	assert.InDelta(t, 0.85, Ceiling(0.5), 1e-9, "never below the HIGH band")
	assert.InDelta(t, 1.0, Ceiling(0.95), 1e-9, "never above full")
	assert.InDelta(t, 0.95, Ceiling(0), 1e-9, "invalid threshold falls back")
	assert.InDelta(t, 0.95, Ceiling(1.5), 1e-9)
	assert.InDelta(t, 0.95, Ceiling(math.NaN()), 1e-9)
}

func TestHeadroomGrowsWithPressure(t *testing.T) {
	assert.Zero(t, Headroom(level.PressureLow))
	assert.Zero(t, Headroom(level.PressureMedium))
	assert.Less(t, Headroom(level.PressureHigh), Headroom(level.PressureCritical))

	assert.Equal(t, int64(100), Target(100, level.PressureMedium))
	assert.Equal(t, int64(95), Target(100, level.PressureHigh))
	assert.Equal(t, int64(90), Target(100, level.PressureCritical))
	assert.Equal(t, int64(9), Target(10, level.PressureCritical))
}
