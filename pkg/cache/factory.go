package cache

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/Humphrey-He/guardcache/internal/admission"
	"github.com/Humphrey-He/guardcache/internal/breaker"
	"github.com/Humphrey-He/guardcache/internal/eviction"
	"github.com/Humphrey-He/guardcache/internal/metrics"
	"github.com/Humphrey-He/guardcache/internal/pressure"
	"github.com/Humphrey-He/guardcache/internal/storage"
	"github.com/Humphrey-He/guardcache/internal/ttl"
	"github.com/Humphrey-He/guardcache/internal/utils"
)

// Cache is the cache facade. A single mutex serializes every operation, the
// background sweep included, so each call observes a consistent serial history.
//
// Cache 是缓存门面。单一互斥锁串行化所有操作（包括后台清理），
// 因此每次调用都能观察到一致的串行历史。
type Cache struct {
	mu sync.Mutex

	config   Config
	store    *storage.Store
	stats    *metrics.Aggregator
	monitor  *pressure.Monitor
	admit    admission.Policy
	engine   *eviction.Engine
	breaker  *breaker.Breaker
	cleaner  *ttl.Cleaner
	clock    Clock
	estimate func(any) int64
	logger   zerolog.Logger
	closed   bool

	collector *metrics.Collector
}

// New creates a new cache instance.
// Non-positive limits in cfg are replaced with defaults, see Config.Normalize.
//
// New 创建一个新的缓存实例。
// cfg中的非正数限制会被替换为默认值，参见Config.Normalize。
//
// Parameters:
//   - cfg: The configuration to use for the cache
//   - opts: Logger, clock and size estimator overrides
//
// Returns:
//   - *Cache: The created cache instance
func New(cfg Config, opts ...Option) *Cache {
	s := newSettings()
	s.config = &cfg
	for _, opt := range opts {
		opt(s)
	}
	return newCache(s)
}

func newCache(s *settings) *Cache {
	cfg := NewDefaultConfig().Normalize()
	if s.config != nil {
		cfg = s.config.Normalize()
	}

	clock := s.clock
	if clock == nil {
		clock = utils.SystemClock{}
	}
	logger := s.logger.With().Str("cache", cfg.Name).Logger()

	c := &Cache{
		config:   cfg,
		stats:    metrics.NewAggregator(),
		monitor:  pressure.NewMonitor(cfg.MaxSizeBytes, cfg.MaxEntries, cfg.MemoryPressureThreshold),
		admit:    admission.NewPressurePolicy(),
		clock:    clock,
		estimate: s.sizeEstimator,
		logger:   logger,
	}

	c.store = storage.NewStore(storage.Config{
		MaxEntrySize: cfg.MaxEntrySizeBytes,
		TrackOrder:   cfg.EnableLRU,
		OnInsert: func(e *storage.Entry) {
			c.stats.EntryAdded(e.Protocol, e.SizeBytes, e.ResolutionCost)
		},
		OnRemove: func(e *storage.Entry) {
			c.stats.EntryRemoved(e.Protocol, e.SizeBytes, e.ResolutionCost)
		},
	})

	scorer := s.scorer
	if scorer == nil {
		scorer = eviction.NewCompositeScorer(eviction.DefaultWeights(), cfg.EnableLRU, cfg.EnablePriorityEviction)
	}
	c.engine = eviction.NewEngine(eviction.Config{
		MaxSize:             cfg.MaxSizeBytes,
		MaxEntries:          cfg.MaxEntries,
		MinEntries:          cfg.MinCacheSize,
		Threshold:           cfg.MemoryPressureThreshold,
		PriorityProtection:  cfg.EnablePriorityEviction,
		Headroom:            cfg.EnableMemoryMonitoring,
		StormThreshold:      cfg.EvictionStormThreshold,
		StormGraceWindow:    cfg.StormGraceWindow,
		StormCapacityFactor: cfg.StormCapacityFactor,
		Scorer:              scorer,
		Clock:               clock,
		Logger:              logger,
	})

	// Transitions only happen inside Execute, which runs under c.mu.
	c.breaker = breaker.New(breaker.Config{
		Enabled:      cfg.EnableCircuitBreaker,
		Threshold:    cfg.CircuitBreakerThreshold,
		ResetTimeout: cfg.CircuitBreakerResetTimeout,
		Logger:       logger,
		OnStateChange: func(_, to breaker.State) {
			if to == breaker.Open {
				c.stats.RecordBreakerTrip()
			}
		},
	})

	if cfg.MetricsGroup != "" {
		collector, err := metrics.Register(cfg.MetricsGroup, c.metricsSnapshot)
		if err != nil {
			logger.Warn().Err(err).Str("group", cfg.MetricsGroup).Msg("metrics collector not registered")
		}
		c.collector = collector
	}
	if cfg.EnableAutoCleanup {
		c.cleaner = ttl.NewCleaner(cfg.CleanupInterval, c.tick)
	}

	logger.Debug().
		Int64("max_size_bytes", cfg.MaxSizeBytes).
		Int("max_entries", cfg.MaxEntries).
		Bool("auto_cleanup", cfg.EnableAutoCleanup).
		Msg("cache created")
	return c
}

func (c *Cache) metricsSnapshot() metrics.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats.Snapshot()
}

// ConfigFromJSON decodes a configuration from JSON.
// Durations are expressed in nanoseconds, as encoding/json does for time.Duration.
//
// ConfigFromJSON 从JSON解码配置。时间间隔以纳秒表示。
//
// Parameters:
//   - reader: An io.Reader providing the JSON configuration data
//
// Returns:
//   - Config: The decoded configuration layered over the defaults
//   - error: An error if the configuration parsing fails
func ConfigFromJSON(reader io.Reader) (Config, error) {
	config := NewDefaultConfig()
	if err := json.NewDecoder(reader).Decode(config); err != nil {
		return Config{}, fmt.Errorf("failed to decode JSON configuration: %w", err)
	}
	return *config, nil
}

// ConfigFromYAML decodes a configuration from YAML.
// Durations may be written as Go duration strings ("30s", "5m").
//
// ConfigFromYAML 从YAML解码配置。时间间隔可以写成Go时间字符串（"30s"、"5m"）。
//
// Parameters:
//   - reader: An io.Reader providing the YAML configuration data
//
// Returns:
//   - Config: The decoded configuration layered over the defaults
//   - error: An error if the configuration parsing fails
func ConfigFromYAML(reader io.Reader) (Config, error) {
	config := NewDefaultConfig()
	if err := yaml.NewDecoder(reader).Decode(config); err != nil && err != io.EOF {
		return Config{}, fmt.Errorf("failed to decode YAML configuration: %w", err)
	}
	return *config, nil
}

// NewFromFile creates a new cache instance from a configuration file.
// The file format (JSON or YAML) is determined by the file extension.
//
// NewFromFile 从配置文件创建新的缓存实例。
// 文件格式（JSON或YAML）由文件扩展名确定。
//
// Parameters:
//   - filename: The path to the configuration file
//   - opts: Logger, clock and size estimator overrides
//
// Returns:
//   - *Cache: The created cache instance
//   - error: An error if the file reading or parsing fails
func NewFromFile(filename string, opts ...Option) (*Cache, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open configuration file: %w", err)
	}
	defer file.Close()

	var cfg Config
	switch filepath.Ext(filename) {
	case ".json":
		cfg, err = ConfigFromJSON(file)
	case ".yaml", ".yml":
		cfg, err = ConfigFromYAML(file)
	default:
		return nil, fmt.Errorf("unsupported file format for %s", filename)
	}
	if err != nil {
		return nil, err
	}
	return New(cfg, opts...), nil
}

var (
	instanceMu sync.Mutex
	instance   *Cache
)

// GetInstance returns the process-wide cache, creating it on the first call.
// The first call wins: options passed to later calls are ignored until Reset.
// Only the composition root of an application should use it; libraries should
// accept a *Cache instead.
//
// GetInstance 返回进程级缓存，首次调用时创建。
// 首次调用生效：之后调用传入的选项会被忽略，直到调用Reset。
// 只应在应用的组合根中使用，库代码应接收*Cache参数。
//
// Parameters:
//   - opts: WithConfig and other options, used only on the first call
//
// Returns:
//   - *Cache: The shared cache instance
func GetInstance(opts ...Option) *Cache {
	instanceMu.Lock()
	defer instanceMu.Unlock()

	if instance == nil {
		s := newSettings()
		for _, opt := range opts {
			opt(s)
		}
		instance = newCache(s)
	}
	return instance
}

// Reset tears down the process-wide cache: the background sweep is stopped,
// entries are cleared, the metrics collector is unregistered and the instance
// refuses further writes. The next GetInstance builds a fresh cache.
//
// Reset 销毁进程级缓存：停止后台清理、清空条目、注销指标采集器，实例不再接受写入。
// 下一次GetInstance会创建全新的缓存。
func Reset() {
	instanceMu.Lock()
	old := instance
	instance = nil
	instanceMu.Unlock()

	if old != nil {
		old.close()
	}
}

// close is Cleanup plus a permanent shutdown.
func (c *Cache) close() {
	c.Cleanup()

	c.mu.Lock()
	c.closed = true
	collector := c.collector
	c.collector = nil
	c.mu.Unlock()

	metrics.Unregister(collector)
	c.logger.Debug().Msg("cache closed")
}
