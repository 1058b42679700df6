package cache

import (
	"github.com/rs/zerolog"

	"github.com/Humphrey-He/guardcache/internal/eviction"
	"github.com/Humphrey-He/guardcache/pkg/codec"
)

// Clock supplies monotonic milliseconds. It lets tests drive TTL expiry and
// storm grace windows without sleeping.
//
// Clock 提供单调毫秒时间，测试可以借此驱动TTL过期和风暴宽限期而无需等待。
type Clock interface {
	NowMillis() int64
}

// settings collects everything an Option can change.
type settings struct {
	config        *Config
	logger        zerolog.Logger
	clock         Clock
	sizeEstimator func(any) int64
	scorer        eviction.Scorer
}

func newSettings() *settings {
	return &settings{
		logger:        zerolog.Nop(),
		sizeEstimator: codec.EstimateSize,
	}
}

// Option is a function that configures a cache at construction time.
// This pattern allows for flexible and readable configuration of cache instances.
//
// Option 是在构造时配置缓存的函数。
// 这种模式允许灵活且可读地配置缓存实例。
type Option func(*settings)

// WithConfig sets the configuration. It is used by GetInstance; New takes the
// configuration as its first argument and lets this option override it.
//
// WithConfig 设置配置。供GetInstance使用；New的第一个参数即为配置，该选项可以覆盖它。
//
// Parameters:
//   - cfg: The cache configuration
//
// Returns:
//   - Option: A configuration option
func WithConfig(cfg Config) Option {
	return func(s *settings) {
		s.config = &cfg
	}
}

// WithLogger sets the logger that receives eviction, storm and breaker events.
// Without it the cache performs no logging.
//
// WithLogger 设置接收淘汰、风暴和熔断事件的日志器。
// 未设置时缓存不输出任何日志。
//
// Parameters:
//   - logger: The zerolog logger to use
//
// Returns:
//   - Option: A configuration option
func WithLogger(logger zerolog.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithClock replaces the monotonic clock.
//
// WithClock 替换单调时钟。
func WithClock(clock Clock) Option {
	return func(s *settings) {
		s.clock = clock
	}
}

// WithSizeEstimator replaces the size estimator. The default measures the JSON
// encoding of composite values.
//
// WithSizeEstimator 替换大小估算函数。默认按复合值的JSON编码长度估算。
//
// Parameters:
//   - fn: Returns the estimated size of a value in bytes
//
// Returns:
//   - Option: A configuration option
func WithSizeEstimator(fn func(any) int64) Option {
	return func(s *settings) {
		if fn != nil {
			s.sizeEstimator = fn
		}
	}
}
