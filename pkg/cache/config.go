package cache

import (
	"fmt"
	"time"
)

// Default values used by NewDefaultConfig and by Normalize for unset fields.
//
// 默认值，用于NewDefaultConfig以及Normalize填充未设置的字段。
const (
	DefaultName                       = "guardcache"
	DefaultMaxSizeBytes               = 50 * 1024 * 1024 // 50 MB
	DefaultMaxEntries                 = 10000
	DefaultMaxEntrySizeBytes          = 1024 * 1024 // 1 MB
	DefaultMemoryPressureThreshold    = 0.8
	DefaultCircuitBreakerThreshold    = 5
	DefaultCircuitBreakerResetTimeout = time.Minute
	DefaultMinCacheSize               = 10
	DefaultCleanupInterval            = time.Minute
	DefaultTTL                        = 5 * time.Minute
	DefaultEvictionStormThreshold     = 10
	DefaultStormGraceWindow           = 5 * time.Second
	DefaultStormCapacityFactor        = 1.25
)

// Config defines the configuration options for a cache instance.
// It is fixed once the cache is constructed.
//
// Config 定义缓存实例的配置选项。
// 缓存构造完成后配置不再改变。
type Config struct {
	// Name of the cache instance, used for logging
	// 缓存实例的名称，用于日志记录
	Name string `json:"name" yaml:"name" mapstructure:"name"`

	// MaxSizeBytes is the total estimated size the cache may hold
	// MaxSizeBytes 是缓存可以容纳的估算总大小
	MaxSizeBytes int64 `json:"max_size_bytes" yaml:"max_size_bytes" mapstructure:"max_size_bytes"`

	// MaxEntries is the maximum number of entries the cache can hold
	// MaxEntries 是缓存可以容纳的最大条目数
	MaxEntries int `json:"max_entries" yaml:"max_entries" mapstructure:"max_entries"`

	// MaxEntrySizeBytes rejects single values larger than this
	// MaxEntrySizeBytes 单个值超过该大小时拒绝写入
	MaxEntrySizeBytes int64 `json:"max_entry_size_bytes" yaml:"max_entry_size_bytes" mapstructure:"max_entry_size_bytes"`

	// MemoryPressureThreshold derives the CRITICAL band: ratio >= threshold+0.15 (clamped to [0.85, 1])
	// MemoryPressureThreshold 决定CRITICAL区间：比例 >= 阈值+0.15（限制在[0.85, 1]）
	MemoryPressureThreshold float64 `json:"memory_pressure_threshold" yaml:"memory_pressure_threshold" mapstructure:"memory_pressure_threshold"`

	// EnableCircuitBreaker guards the eviction pipeline with a circuit breaker
	// EnableCircuitBreaker 是否用熔断器保护淘汰流程
	EnableCircuitBreaker bool `json:"enable_circuit_breaker" yaml:"enable_circuit_breaker" mapstructure:"enable_circuit_breaker"`

	// CircuitBreakerThreshold is the number of consecutive eviction failures that opens the breaker
	// CircuitBreakerThreshold 打开熔断器所需的连续淘汰失败次数
	CircuitBreakerThreshold int `json:"circuit_breaker_threshold" yaml:"circuit_breaker_threshold" mapstructure:"circuit_breaker_threshold"`

	// CircuitBreakerResetTimeout is how long the breaker stays open before a trial pass
	// CircuitBreakerResetTimeout 熔断器打开后到试探之前的等待时间
	CircuitBreakerResetTimeout time.Duration `json:"circuit_breaker_reset_timeout" yaml:"circuit_breaker_reset_timeout" mapstructure:"circuit_breaker_reset_timeout"`

	// EnablePriorityEviction makes priority the dominant eviction signal and protects CRITICAL entries
	// EnablePriorityEviction 使优先级成为主导的淘汰因素并保护CRITICAL条目
	EnablePriorityEviction bool `json:"enable_priority_eviction" yaml:"enable_priority_eviction" mapstructure:"enable_priority_eviction"`

	// MinCacheSize is the eviction floor
	// MinCacheSize 是淘汰下限
	MinCacheSize int `json:"min_cache_size" yaml:"min_cache_size" mapstructure:"min_cache_size"`

	// CleanupInterval is the interval of the background sweep
	// CleanupInterval 是后台清理的时间间隔
	CleanupInterval time.Duration `json:"cleanup_interval" yaml:"cleanup_interval" mapstructure:"cleanup_interval"`

	// DefaultTTL applies when a write does not carry its own TTL
	// DefaultTTL 在写入未指定TTL时使用
	DefaultTTL time.Duration `json:"default_ttl" yaml:"default_ttl" mapstructure:"default_ttl"`

	// EnableLRU adds recency to the eviction score and keeps an LRU order index
	// EnableLRU 在淘汰分数中加入最近访问因素并维护LRU顺序索引
	EnableLRU bool `json:"enable_lru" yaml:"enable_lru" mapstructure:"enable_lru"`

	// EnableAutoCleanup starts the background sweep
	// EnableAutoCleanup 是否启动后台清理
	EnableAutoCleanup bool `json:"enable_auto_cleanup" yaml:"enable_auto_cleanup" mapstructure:"enable_auto_cleanup"`

	// EnableMemoryMonitoring enables pressure based admission and headroom
	// EnableMemoryMonitoring 启用基于压力的准入控制和额外回收
	EnableMemoryMonitoring bool `json:"enable_memory_monitoring" yaml:"enable_memory_monitoring" mapstructure:"enable_memory_monitoring"`

	// EvictionStormThreshold is the number of evictions caused by one write that counts as a storm
	// EvictionStormThreshold 单次写入导致的淘汰数达到该值即视为风暴
	EvictionStormThreshold int `json:"eviction_storm_threshold" yaml:"eviction_storm_threshold" mapstructure:"eviction_storm_threshold"`

	// StormGraceWindow is how long limits stay relaxed after a storm
	// StormGraceWindow 风暴后限制放宽的持续时间
	StormGraceWindow time.Duration `json:"storm_grace_window" yaml:"storm_grace_window" mapstructure:"storm_grace_window"`

	// StormCapacityFactor multiplies the limits during the grace window
	// StormCapacityFactor 宽限期内限制的放大系数
	StormCapacityFactor float64 `json:"storm_capacity_factor" yaml:"storm_capacity_factor" mapstructure:"storm_capacity_factor"`

	// MetricsGroup registers a Prometheus collector under this label when non-empty
	// MetricsGroup 非空时以该标签注册Prometheus采集器
	MetricsGroup string `json:"metrics_group" yaml:"metrics_group" mapstructure:"metrics_group"`
}

// NewDefaultConfig returns a Config with sensible default values.
// This provides a starting point for creating a cache configuration.
//
// NewDefaultConfig 返回具有合理默认值的Config。
// 这为创建缓存配置提供了一个起点。
//
// Returns:
//   - *Config: A new configuration instance with default values
func NewDefaultConfig() *Config {
	return &Config{
		Name:                       DefaultName,
		MaxSizeBytes:               DefaultMaxSizeBytes,
		MaxEntries:                 DefaultMaxEntries,
		MaxEntrySizeBytes:          DefaultMaxEntrySizeBytes,
		MemoryPressureThreshold:    DefaultMemoryPressureThreshold,
		EnableCircuitBreaker:       true,
		CircuitBreakerThreshold:    DefaultCircuitBreakerThreshold,
		CircuitBreakerResetTimeout: DefaultCircuitBreakerResetTimeout,
		EnablePriorityEviction:     true,
		MinCacheSize:               DefaultMinCacheSize,
		CleanupInterval:            DefaultCleanupInterval,
		DefaultTTL:                 DefaultTTL,
		EnableLRU:                  true,
		EnableAutoCleanup:          true,
		EnableMemoryMonitoring:     true,
		EvictionStormThreshold:     DefaultEvictionStormThreshold,
		StormGraceWindow:           DefaultStormGraceWindow,
		StormCapacityFactor:        DefaultStormCapacityFactor,
	}
}

// Validate reports the first field that Normalize would have to replace.
// A configuration that fails validation is still usable: New normalizes it.
//
// Validate 报告Normalize需要替换的第一个字段。
// 校验失败的配置仍然可用，New会对其进行规范化。
//
// Returns:
//   - error: A description of the anomaly, nil otherwise
func (c *Config) Validate() error {
	switch {
	case c.MaxSizeBytes <= 0:
		return fmt.Errorf("max size must be positive, got %d", c.MaxSizeBytes)
	case c.MaxEntries <= 0:
		return fmt.Errorf("max entries must be positive, got %d", c.MaxEntries)
	case c.MaxEntrySizeBytes <= 0:
		return fmt.Errorf("max entry size must be positive, got %d", c.MaxEntrySizeBytes)
	case c.MemoryPressureThreshold <= 0 || c.MemoryPressureThreshold > 1:
		return fmt.Errorf("memory pressure threshold must be in (0, 1], got %g", c.MemoryPressureThreshold)
	case c.CircuitBreakerThreshold <= 0:
		return fmt.Errorf("circuit breaker threshold must be positive, got %d", c.CircuitBreakerThreshold)
	case c.CircuitBreakerResetTimeout <= 0:
		return fmt.Errorf("circuit breaker reset timeout must be positive, got %s", c.CircuitBreakerResetTimeout)
	case c.MinCacheSize < 0 || c.MinCacheSize > c.MaxEntries:
		return fmt.Errorf("min cache size must be in [0, %d], got %d", c.MaxEntries, c.MinCacheSize)
	case c.CleanupInterval <= 0:
		return fmt.Errorf("cleanup interval must be positive, got %s", c.CleanupInterval)
	case c.EvictionStormThreshold <= 0:
		return fmt.Errorf("eviction storm threshold must be positive, got %d", c.EvictionStormThreshold)
	case c.StormCapacityFactor < 1:
		return fmt.Errorf("storm capacity factor must be at least 1, got %g", c.StormCapacityFactor)
	}
	return nil
}

// Normalize returns a copy of the configuration with every non-positive limit
// replaced by its default. An explicit MaxEntries of zero is kept: the cache is
// then always at capacity and accepts HIGH and CRITICAL writes only.
// Degenerate values never make the cache unusable.
//
// Normalize 返回配置的副本，所有非正数限制都被替换为默认值。显式设置为0的MaxEntries会被保留：
// 此时缓存始终处于满载状态，只接受HIGH和CRITICAL写入。退化的配置值不会使缓存不可用。
//
// Returns:
//   - Config: The normalized configuration
func (c Config) Normalize() Config {
	if c.Name == "" {
		c.Name = DefaultName
	}
	if c.MaxSizeBytes <= 0 {
		c.MaxSizeBytes = DefaultMaxSizeBytes
	}
	if c.MaxEntries < 0 {
		c.MaxEntries = DefaultMaxEntries
	}
	if c.MaxEntrySizeBytes <= 0 {
		c.MaxEntrySizeBytes = DefaultMaxEntrySizeBytes
	}
	if c.MemoryPressureThreshold <= 0 || c.MemoryPressureThreshold > 1 {
		c.MemoryPressureThreshold = DefaultMemoryPressureThreshold
	}
	if c.CircuitBreakerThreshold <= 0 {
		c.CircuitBreakerThreshold = DefaultCircuitBreakerThreshold
	}
	if c.CircuitBreakerResetTimeout <= 0 {
		c.CircuitBreakerResetTimeout = DefaultCircuitBreakerResetTimeout
	}
	if c.MinCacheSize < 0 {
		c.MinCacheSize = 0
	}
	if c.MinCacheSize > c.MaxEntries {
		c.MinCacheSize = c.MaxEntries
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = DefaultCleanupInterval
	}
	if c.DefaultTTL < 0 {
		c.DefaultTTL = 0
	}
	if c.EvictionStormThreshold <= 0 {
		c.EvictionStormThreshold = DefaultEvictionStormThreshold
	}
	if c.StormGraceWindow < 0 {
		c.StormGraceWindow = 0
	}
	if c.StormCapacityFactor < 1 {
		c.StormCapacityFactor = DefaultStormCapacityFactor
	}
	return c
}

// WithName sets the cache name.
// The name is used for logging.
//
// WithName 设置缓存名称。
// 名称用于日志记录。
//
// Parameters:
//   - name: The name to set
//
// Returns:
//   - *Config: The modified configuration (for method chaining)
func (c *Config) WithName(name string) *Config {
	c.Name = name
	return c
}

// WithMaxEntries sets the maximum number of entries.
//
// WithMaxEntries 设置最大条目数。
//
// Parameters:
//   - max: The maximum number of entries
//
// Returns:
//   - *Config: The modified configuration (for method chaining)
func (c *Config) WithMaxEntries(max int) *Config {
	c.MaxEntries = max
	return c
}

// WithMaxSize sets the maximum total estimated size in bytes.
//
// WithMaxSize 设置最大估算总大小（字节）。
//
// Parameters:
//   - maxBytes: The maximum total size in bytes
//
// Returns:
//   - *Config: The modified configuration (for method chaining)
func (c *Config) WithMaxSize(maxBytes int64) *Config {
	c.MaxSizeBytes = maxBytes
	return c
}

// WithMaxEntrySize sets the per-entry size limit in bytes.
//
// WithMaxEntrySize 设置单个条目的大小上限（字节）。
//
// Parameters:
//   - maxBytes: The per-entry limit in bytes
//
// Returns:
//   - *Config: The modified configuration (for method chaining)
func (c *Config) WithMaxEntrySize(maxBytes int64) *Config {
	c.MaxEntrySizeBytes = maxBytes
	return c
}

// WithMemoryPressureThreshold sets the fraction the CRITICAL band is derived from.
//
// WithMemoryPressureThreshold 设置用于推导CRITICAL区间的阈值。
func (c *Config) WithMemoryPressureThreshold(threshold float64) *Config {
	c.MemoryPressureThreshold = threshold
	return c
}

// WithCircuitBreaker configures the eviction circuit breaker.
//
// WithCircuitBreaker 配置淘汰熔断器。
//
// Parameters:
//   - enabled: Whether to guard eviction with the breaker
//   - threshold: Consecutive failures that open the breaker
//   - resetTimeout: Time before a trial pass is allowed
//
// Returns:
//   - *Config: The modified configuration (for method chaining)
func (c *Config) WithCircuitBreaker(enabled bool, threshold int, resetTimeout time.Duration) *Config {
	c.EnableCircuitBreaker = enabled
	c.CircuitBreakerThreshold = threshold
	c.CircuitBreakerResetTimeout = resetTimeout
	return c
}

// WithPriorityEviction enables or disables priority aware eviction.
//
// WithPriorityEviction 启用或禁用优先级感知淘汰。
func (c *Config) WithPriorityEviction(enabled bool) *Config {
	c.EnablePriorityEviction = enabled
	return c
}

// WithMinCacheSize sets the eviction floor.
//
// WithMinCacheSize 设置淘汰下限。
func (c *Config) WithMinCacheSize(n int) *Config {
	c.MinCacheSize = n
	return c
}

// WithDefaultTTL sets the default time-to-live for cache entries.
// If set to 0, entries don't expire by default.
//
// WithDefaultTTL 设置缓存条目的默认生存时间。
// 如果设置为0，则条目默认不过期。
//
// Parameters:
//   - ttl: The default time-to-live duration
//
// Returns:
//   - *Config: The modified configuration (for method chaining)
func (c *Config) WithDefaultTTL(ttl time.Duration) *Config {
	c.DefaultTTL = ttl
	return c
}

// WithLRU enables or disables recency tracking.
//
// WithLRU 启用或禁用最近访问跟踪。
func (c *Config) WithLRU(enabled bool) *Config {
	c.EnableLRU = enabled
	return c
}

// WithAutoCleanup enables the background sweep at the given interval.
//
// WithAutoCleanup 以给定间隔启用后台清理。
//
// Parameters:
//   - enabled: Whether to start the background sweep
//   - interval: The sweep interval
//
// Returns:
//   - *Config: The modified configuration (for method chaining)
func (c *Config) WithAutoCleanup(enabled bool, interval time.Duration) *Config {
	c.EnableAutoCleanup = enabled
	c.CleanupInterval = interval
	return c
}

// WithMemoryMonitoring enables or disables pressure based admission.
//
// WithMemoryMonitoring 启用或禁用基于压力的准入控制。
func (c *Config) WithMemoryMonitoring(enabled bool) *Config {
	c.EnableMemoryMonitoring = enabled
	return c
}

// WithStormProtection configures eviction storm detection.
//
// WithStormProtection 配置淘汰风暴检测。
//
// Parameters:
//   - threshold: Evictions caused by one write that count as a storm
//   - window: How long limits stay relaxed afterwards
//   - factor: Multiplier applied to the limits during the window
//
// Returns:
//   - *Config: The modified configuration (for method chaining)
func (c *Config) WithStormProtection(threshold int, window time.Duration, factor float64) *Config {
	c.EvictionStormThreshold = threshold
	c.StormGraceWindow = window
	c.StormCapacityFactor = factor
	return c
}

// WithMetricsGroup registers the cache with Prometheus under group.
//
// WithMetricsGroup 以group为标签将缓存注册到Prometheus。
func (c *Config) WithMetricsGroup(group string) *Config {
	c.MetricsGroup = group
	return c
}
