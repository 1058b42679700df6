package metrics

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// 默认的Prometheus指标前缀
const defaultMetricPrefix = "guardcache"

// constMetric 单值指标定义
type constMetric struct {
	desc  *prometheus.Desc
	value func(Snapshot) float64
	kind  prometheus.ValueType
}

// Collector 在抓取时惰性读取快照并导出为Prometheus指标
// 每个缓存分组一个Collector，通过"cache"常量标签区分
type Collector struct {
	group         string
	snapshot      func() Snapshot
	metrics       []constMetric
	protoEntries  *prometheus.Desc
	protoHits     *prometheus.Desc
	protoSizeDesc *prometheus.Desc
}

// NewCollector 创建一个Collector
// snapshotFunc 在每次抓取时被调用，需要自行保证并发安全
func NewCollector(group string, snapshotFunc func() Snapshot) *Collector {
	labels := prometheus.Labels{"cache": group}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(defaultMetricPrefix+"_"+name, help, nil, labels)
	}
	counter := func(name, help string, v func(Snapshot) uint64) constMetric {
		return constMetric{
			desc:  desc(name, help),
			value: func(s Snapshot) float64 { return float64(v(s)) },
			kind:  prometheus.CounterValue,
		}
	}
	gauge := func(name, help string, v func(Snapshot) float64) constMetric {
		return constMetric{desc: desc(name, help), value: v, kind: prometheus.GaugeValue}
	}

	return &Collector{
		group:    group,
		snapshot: snapshotFunc,
		metrics: []constMetric{
			gauge("entries", "Current number of entries in the cache.",
				func(s Snapshot) float64 { return float64(s.TotalEntries) }),
			gauge("size_bytes", "Current estimated size of the cache in bytes.",
				func(s Snapshot) float64 { return float64(s.TotalSizeBytes) }),
			gauge("hit_ratio", "Cache hit ratio.",
				func(s Snapshot) float64 { return s.HitRatio }),
			gauge("efficiency_score", "Composite health score in [0, 1].",
				func(s Snapshot) float64 { return s.EfficiencyScore }),
			gauge("avg_resolution_cost_ms", "Mean resolution cost of stored entries in milliseconds.",
				func(s Snapshot) float64 { return s.AvgResolutionCostMs }),
			counter("hits_total", "Total number of cache hits.",
				func(s Snapshot) uint64 { return s.Hits }),
			counter("misses_total", "Total number of cache misses.",
				func(s Snapshot) uint64 { return s.Misses }),
			counter("evictions_total", "Total number of entries evicted from the cache.",
				func(s Snapshot) uint64 { return s.Evicted }),
			counter("expired_total", "Total number of expired entries removed.",
				func(s Snapshot) uint64 { return s.ExpiredRemoved }),
			counter("eviction_storms_total", "Total number of eviction storms.",
				func(s Snapshot) uint64 { return s.EvictionStorms }),
			counter("starvation_events_total", "Total number of eviction passes stopped at the floor under critical pressure.",
				func(s Snapshot) uint64 { return s.StarvationEvents }),
			counter("oom_events_total", "Total number of writes rejected for exceeding the entry size limit.",
				func(s Snapshot) uint64 { return s.OutOfMemoryEvents }),
			counter("rejections_total", "Total number of rejected writes.",
				func(s Snapshot) uint64 { return s.Rejections }),
			counter("breaker_trips_total", "Total number of eviction circuit breaker trips.",
				func(s Snapshot) uint64 { return s.BreakerTrips }),
		},
		protoEntries: prometheus.NewDesc(defaultMetricPrefix+"_protocol_entries",
			"Current number of entries per protocol.", []string{"protocol"}, labels),
		protoHits: prometheus.NewDesc(defaultMetricPrefix+"_protocol_hits_total",
			"Total number of hits per protocol.", []string{"protocol"}, labels),
		protoSizeDesc: prometheus.NewDesc(defaultMetricPrefix+"_protocol_size_bytes",
			"Current estimated size per protocol in bytes.", []string{"protocol"}, labels),
	}
}

// Describe 实现prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.metrics {
		ch <- m.desc
	}
	ch <- c.protoEntries
	ch <- c.protoHits
	ch <- c.protoSizeDesc
}

// Collect 实现prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.snapshot()
	for _, m := range c.metrics {
		ch <- prometheus.MustNewConstMetric(m.desc, m.kind, m.value(s))
	}
	for name, p := range s.Protocols {
		ch <- prometheus.MustNewConstMetric(c.protoEntries, prometheus.GaugeValue, float64(p.Entries), name)
		ch <- prometheus.MustNewConstMetric(c.protoHits, prometheus.CounterValue, float64(p.Hits), name)
		ch <- prometheus.MustNewConstMetric(c.protoSizeDesc, prometheus.GaugeValue, float64(p.SizeBytes), name)
	}
}

var (
	collectorsMu sync.Mutex
	collectors   = make(map[string]*Collector)
	// registerer 可在测试中替换为独立的registry
	registerer prometheus.Registerer = prometheus.DefaultRegisterer
)

// Register 为分组注册一个Collector
// 同名分组已存在时会先注销旧的，因此重复创建缓存实例是安全的
// 注册失败时返回错误，Collector不会被记录
func Register(group string, snapshotFunc func() Snapshot) (*Collector, error) {
	c := NewCollector(group, snapshotFunc)

	collectorsMu.Lock()
	defer collectorsMu.Unlock()

	if old, ok := collectors[group]; ok {
		registerer.Unregister(old)
		delete(collectors, group)
	}
	if err := registerer.Register(c); err != nil {
		return nil, fmt.Errorf("metrics: register collector %q: %w", group, err)
	}
	collectors[group] = c
	return c, nil
}

// Unregister 注销指定的Collector
// 只有当它仍是该分组当前的Collector时才会注销，旧实例不会影响新实例
func Unregister(c *Collector) {
	if c == nil {
		return
	}
	collectorsMu.Lock()
	defer collectorsMu.Unlock()

	if current, ok := collectors[c.group]; ok && current == c {
		registerer.Unregister(c)
		delete(collectors, c.group)
	}
}
