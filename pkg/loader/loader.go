// Package loader provides interfaces for loading data into the cache
// when a cache miss occurs.
//
// The cache itself never calls out to a data source: callers fetch a value,
// measure how long it took, and store it together with that resolution cost.
// ReadThrough packages that pattern, retrying failed loads with a failsafe-go
// retry policy and treating cache failures as non-fatal.
//
// Package loader 提供接口用于在缓存未命中时将数据加载到缓存中。
//
// 缓存本身从不访问数据源：调用方获取值、测量耗时，并连同解析代价一起存入缓存。
// ReadThrough 封装了这一模式，使用failsafe-go重试策略重试失败的加载，并将缓存失败视为非致命错误。
package loader

import (
	"context"
	"fmt"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/rs/zerolog"

	"github.com/Humphrey-He/guardcache/pkg/cache"
)

// Loader is the interface that wraps the basic Load method.
//
// Load retrieves data for the given key from a data source.
// It returns the loaded value, a TTL for the cache entry, and any error encountered.
// If the returned TTL is zero, the TTL of the read-through options is used.
//
// Loader 是包装基本Load方法的接口。
//
// Load 从数据源检索给定键的数据。
// 它返回加载的值、缓存条目的TTL以及遇到的任何错误。
// 如果返回的TTL为零，将使用读穿选项中的TTL。
type Loader[T any] interface {
	Load(ctx context.Context, key string) (value T, ttl time.Duration, err error)
}

// LoaderFunc is a function type that implements the Loader interface.
//
// LoaderFunc 是实现Loader接口的函数类型。
type LoaderFunc[T any] func(ctx context.Context, key string) (T, time.Duration, error)

// Load calls the function itself.
//
// Load 调用函数本身。
func (f LoaderFunc[T]) Load(ctx context.Context, key string) (T, time.Duration, error) {
	return f(ctx, key)
}

// NewFunctionLoader creates a new Loader from a function that retrieves data.
// The function should return the value and an error. The TTL will be set to the default.
//
// NewFunctionLoader 从检索数据的函数创建一个新的Loader。
// 该函数应返回值和错误。TTL将设置为默认值。
func NewFunctionLoader[T any](fn func(ctx context.Context, key string) (T, error)) Loader[T] {
	return LoaderFunc[T](func(ctx context.Context, key string) (T, time.Duration, error) {
		value, err := fn(ctx, key)
		return value, 0, err
	})
}

// FallbackLoader provides a fallback mechanism when the primary loader fails.
//
// FallbackLoader 提供当主加载器失败时的后备机制。
type FallbackLoader[T any] struct {
	Primary   Loader[T]
	Secondary Loader[T]
}

// Load attempts to load data using the primary loader.
// If the primary loader fails, it falls back to the secondary loader.
//
// Load 尝试使用主加载器加载数据。
// 如果主加载器失败，它会回退到次要加载器。
func (f *FallbackLoader[T]) Load(ctx context.Context, key string) (T, time.Duration, error) {
	value, ttl, err := f.Primary.Load(ctx, key)
	if err != nil && f.Secondary != nil {
		return f.Secondary.Load(ctx, key)
	}
	return value, ttl, err
}

// NewFallbackLoader creates a new FallbackLoader with the given primary and secondary loaders.
//
// NewFallbackLoader 使用给定的主加载器和次要加载器创建一个新的FallbackLoader。
func NewFallbackLoader[T any](primary, secondary Loader[T]) *FallbackLoader[T] {
	return &FallbackLoader[T]{
		Primary:   primary,
		Secondary: secondary,
	}
}

// Cache is the part of the cache facade a read-through loader needs.
//
// Cache 是读穿加载器需要的缓存门面子集。
type Cache interface {
	Get(key string) (cache.Entry, bool)
	Set(key string, value any, opts cache.SetOptions) bool
}

const (
	defaultRetries    = 2
	defaultRetryDelay = 50 * time.Millisecond
)

type config struct {
	options    cache.SetOptions
	optionsFor func(key string) cache.SetOptions
	retries    int
	retryDelay time.Duration
	abortOn    []error
	logger     zerolog.Logger
}

// Option configures a ReadThrough.
//
// Option 配置ReadThrough。
type Option func(*config)

// WithSetOptions sets the metadata stored with every loaded value.
// ResolutionCost is always replaced by the measured load time.
//
// WithSetOptions 设置与每个加载值一起存储的元数据。ResolutionCost总是被实际加载耗时替换。
func WithSetOptions(opts cache.SetOptions) Option {
	return func(c *config) {
		c.options = opts
	}
}

// WithSetOptionsFunc derives the metadata from the key, for example a priority
// or tags taken from a parameter path. It takes precedence over WithSetOptions.
//
// WithSetOptionsFunc 根据键推导元数据，例如从参数路径得到优先级或标签。优先于WithSetOptions。
func WithSetOptionsFunc(fn func(key string) cache.SetOptions) Option {
	return func(c *config) {
		c.optionsFor = fn
	}
}

// WithRetries sets how many times a failed load is retried and the delay between attempts.
//
// WithRetries 设置加载失败后的重试次数和重试间隔。
func WithRetries(retries int, delay time.Duration) Option {
	return func(c *config) {
		c.retries = retries
		c.retryDelay = delay
	}
}

// WithAbortOn lists errors that are returned at once instead of retried,
// such as a not-found error from the data source. Matching uses errors.Is.
//
// WithAbortOn 列出立即返回而不重试的错误，例如数据源的未找到错误。使用errors.Is匹配。
func WithAbortOn(errs ...error) Option {
	return func(c *config) {
		c.abortOn = append(c.abortOn, errs...)
	}
}

// WithLogger sets the logger that reports load failures and refused writes.
//
// WithLogger 设置报告加载失败和写入被拒绝的日志器。
func WithLogger(logger zerolog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

type loaded[T any] struct {
	value T
	ttl   time.Duration
}

// ReadThrough serves values from the cache and loads misses from a Loader.
//
// ReadThrough 从缓存提供值，未命中时通过Loader加载。
type ReadThrough[T any] struct {
	cache      Cache
	loader     Loader[T]
	options    cache.SetOptions
	optionsFor func(key string) cache.SetOptions
	retry      retrypolicy.RetryPolicy[loaded[T]]
	logger     zerolog.Logger
}

// NewReadThrough creates a read-through loader.
//
// NewReadThrough 创建一个读穿加载器。
//
// Parameters:
//   - c: The cache to read from and populate
//   - l: The data source used on a miss
//   - opts: Set options, retries and logger
//
// Returns:
//   - *ReadThrough[T]: The read-through loader
func NewReadThrough[T any](c Cache, l Loader[T], opts ...Option) *ReadThrough[T] {
	cfg := &config{
		retries:    defaultRetries,
		retryDelay: defaultRetryDelay,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.retries < 0 {
		cfg.retries = 0
	}

	retry := retrypolicy.NewBuilder[loaded[T]]().
		WithMaxRetries(cfg.retries).
		WithDelay(cfg.retryDelay).
		AbortOnErrors(append([]error{context.Canceled, context.DeadlineExceeded}, cfg.abortOn...)...).
		ReturnLastFailure().
		Build()

	return &ReadThrough[T]{
		cache:      c,
		loader:     l,
		options:    cfg.options,
		optionsFor: cfg.optionsFor,
		retry:      retry,
		logger:     cfg.logger,
	}
}

// Get returns the cached value for key, loading and caching it on a miss.
// A cached value of another type is treated as a miss and overwritten.
// Failing to cache a loaded value is not an error.
//
// Get 返回key的缓存值，未命中时加载并缓存。
// 类型不匹配的缓存值视为未命中并被覆盖。缓存加载值失败不视为错误。
//
// Parameters:
//   - ctx: Context passed to the loader, cancelling it aborts retries and their delay
//   - key: The key to retrieve
//
// Returns:
//   - T: The value
//   - error: The last load error once retries are exhausted
func (r *ReadThrough[T]) Get(ctx context.Context, key string) (T, error) {
	if e, ok := r.cache.Get(key); ok {
		if v, ok := e.Value.(T); ok {
			return v, nil
		}
		r.logger.Debug().Str("key", key).Msgf("cached value has type %T, reloading", e.Value)
	}

	start := time.Now()
	res, err := failsafe.With[loaded[T]](r.retry).WithContext(ctx).Get(func() (loaded[T], error) {
		if err := ctx.Err(); err != nil {
			return loaded[T]{}, err
		}
		v, ttl, err := r.loader.Load(ctx, key)
		return loaded[T]{value: v, ttl: ttl}, err
	})
	if err != nil {
		r.logger.Warn().Err(err).Str("key", key).Msg("load failed")
		var zero T
		return zero, fmt.Errorf("loader: load %q: %w", key, err)
	}

	opts := r.options
	if r.optionsFor != nil {
		opts = r.optionsFor(key)
	}
	opts.ResolutionCost = time.Since(start)
	if res.ttl != 0 {
		opts.TTL = res.ttl
	}
	if !r.cache.Set(key, res.value, opts) {
		r.logger.Debug().Str("key", key).Msg("loaded value was not cached")
	}
	return res.value, nil
}
