package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHitRatio(t *testing.T) {
	a := NewAggregator()
	assert.Zero(t, a.HitRatio(), "no reads yet")

	a.RecordHit("ssm")
	a.RecordHit("ssm")
	a.RecordMiss()
	a.RecordMiss()
	assert.Equal(t, 0.5, a.Snapshot().HitRatio)
}

func TestOccupancyAndProtocols(t *testing.T) {
	a := NewAggregator()
	a.EntryAdded("ssm", 10, 20*time.Millisecond)
	a.EntryAdded("s3", 30, 40*time.Millisecond)
	a.RecordHit("s3")

	s := a.Snapshot()
	assert.Equal(t, int64(2), s.TotalEntries)
	assert.Equal(t, int64(40), s.TotalSizeBytes)
	assert.Equal(t, 30.0, s.AvgResolutionCostMs)
	assert.Equal(t, ProtocolStats{Entries: 1, Hits: 1, SizeBytes: 30}, s.Protocols["s3"])

	a.EntryRemoved("s3", 30, 40*time.Millisecond)
	s = a.Snapshot()
	assert.Equal(t, int64(1), s.TotalEntries)
	assert.Equal(t, 20.0, s.AvgResolutionCostMs)
	assert.Equal(t, int64(0), s.Protocols["s3"].Entries)
	assert.Equal(t, uint64(1), s.Protocols["s3"].Hits, "hits outlive the entries")
}

func TestSnapshotIsACopy(t *testing.T) {
	a := NewAggregator()
	a.EntryAdded("ssm", 10, 0)

	s := a.Snapshot()
	s.Protocols["ssm"] = ProtocolStats{Entries: 99}
	s.Hits = 1000

	fresh := a.Snapshot()
	assert.Equal(t, int64(1), fresh.Protocols["ssm"].Entries)
	assert.Zero(t, fresh.Hits)
}

func TestEfficiencyScoreBounds(t *testing.T) {
	a := NewAggregator()
	assert.InDelta(t, 0.3, a.EfficiencyScore(), 1e-9, "no reads, no evictions")

	a.RecordSet(false)
	a.RecordHit("x")
	assert.InDelta(t, 1.0, a.EfficiencyScore(), 1e-9)

	a.RecordEvictions(50)
	a.RecordOutOfMemory()
	assert.InDelta(t, 0.7, a.EfficiencyScore(), 1e-9, "eviction rate is clamped to 1")
}

func TestFallbackEvictionCountsAsEviction(t *testing.T) {
	a := NewAggregator()
	a.RecordFallbackEviction()
	s := a.Snapshot()
	assert.Equal(t, uint64(1), s.Evicted)
	assert.Equal(t, uint64(1), s.FallbackEvictions)
}

func gatherValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) (float64, bool) {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if matchLabels(m, labels) {
				return metricValue(m), true
			}
		}
	}
	return 0, false
}

func matchLabels(m *dto.Metric, labels map[string]string) bool {
	found := 0
	for _, lp := range m.GetLabel() {
		if v, ok := labels[lp.GetName()]; ok && v == lp.GetValue() {
			found++
		}
	}
	return found == len(labels)
}

func metricValue(m *dto.Metric) float64 {
	if m.GetCounter() != nil {
		return m.GetCounter().GetValue()
	}
	return m.GetGauge().GetValue()
}

func TestCollectorRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	old := registerer
	registerer = reg
	t.Cleanup(func() { registerer = old })

	a := NewAggregator()
	a.EntryAdded("ssm", 12, 0)
	a.RecordHit("ssm")
	a.RecordMiss()

	first, err := Register("params", a.Snapshot)
	require.NoError(t, err)

	v, ok := gatherValue(t, reg, "guardcache_entries", map[string]string{"cache": "params"})
	require.True(t, ok)
	assert.Equal(t, 1.0, v)

	v, ok = gatherValue(t, reg, "guardcache_hits_total", map[string]string{"cache": "params"})
	require.True(t, ok)
	assert.Equal(t, 1.0, v)

	v, ok = gatherValue(t, reg, "guardcache_protocol_size_bytes", map[string]string{"cache": "params", "protocol": "ssm"})
	require.True(t, ok)
	assert.Equal(t, 12.0, v)

	// Values are read lazily at scrape time.
	a.EntryAdded("ssm", 1, 0)
	v, _ = gatherValue(t, reg, "guardcache_entries", map[string]string{"cache": "params"})
	assert.Equal(t, 2.0, v)

	// Re-registering the same group replaces the collector instead of failing.
	second, err := Register("params", NewAggregator().Snapshot)
	require.NoError(t, err)
	v, _ = gatherValue(t, reg, "guardcache_entries", map[string]string{"cache": "params"})
	assert.Equal(t, 0.0, v)

	// A replaced collector cannot unregister its successor.
	Unregister(first)
	_, ok = gatherValue(t, reg, "guardcache_entries", map[string]string{"cache": "params"})
	assert.True(t, ok)

	Unregister(second)
	_, ok = gatherValue(t, reg, "guardcache_entries", map[string]string{"cache": "params"})
	assert.False(t, ok)
}

func TestCollectorRegistrationError(t *testing.T) {
	reg := prometheus.NewRegistry()
	old := registerer
	registerer = reg
	t.Cleanup(func() { registerer = old })

	// Another collector already owns the same descriptors.
	require.NoError(t, reg.Register(NewCollector("params", NewAggregator().Snapshot)))

	c, err := Register("params", NewAggregator().Snapshot)
	require.Error(t, err)
	assert.Nil(t, c)
	Unregister(c)
}
