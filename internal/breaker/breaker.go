// Package breaker isolates faults inside the eviction pipeline.
// Package breaker 隔离淘汰流程内部的故障。
//
// The breaker wraps a failsafe-go circuit breaker. It opens after a number of
// consecutive failures, lets exactly one trial through once the reset timeout
// has elapsed, and closes again when that trial succeeds. Panics raised by the
// guarded function are recovered into errors and count as failures.
//
// 熔断器封装了failsafe-go的熔断器。连续失败达到阈值后打开，重置超时后只允许一次试探调用，
// 试探成功后重新关闭。被保护函数中的panic会被恢复为错误并计为失败。
package breaker

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/rs/zerolog"

	cacheerrors "github.com/Humphrey-He/guardcache/pkg/errors"
)

// ErrOpen is returned by Execute without running the function while the breaker is open.
// ErrOpen 在熔断器打开时由Execute返回，且不会执行函数。
var ErrOpen = circuitbreaker.ErrOpen

// State is the breaker state.
// State 熔断器状态。
type State int

const (
	// Closed lets every call through.
	// Closed 允许所有调用通过。
	Closed State = iota

	// Open rejects calls until the reset timeout elapses.
	// Open 在重置超时之前拒绝调用。
	Open

	// HalfOpen lets a single trial call through.
	// HalfOpen 允许一次试探调用通过。
	HalfOpen
)

// String returns the state name used in logs and diagnostics.
func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// MarshalText lets the state render as its name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func fromFailsafe(s circuitbreaker.State) State {
	switch s {
	case circuitbreaker.OpenState:
		return Open
	case circuitbreaker.HalfOpenState:
		return HalfOpen
	default:
		return Closed
	}
}

// Config defines configuration options for the breaker.
// Config 定义熔断器的配置选项。
type Config struct {
	// Enabled turns the breaker on. A disabled breaker runs every call and never opens.
	// Enabled 是否启用。禁用的熔断器执行所有调用且永不打开。
	Enabled bool

	// Threshold is the number of consecutive failures that opens the breaker.
	// Threshold 打开熔断器所需的连续失败次数。
	Threshold int

	// ResetTimeout is how long the breaker stays open before allowing a trial.
	// ResetTimeout 熔断器打开后允许试探之前的等待时间。
	ResetTimeout time.Duration

	// OnStateChange is called synchronously on every transition.
	// OnStateChange 在每次状态转换时同步调用。
	OnStateChange func(from, to State)

	// Logger receives transition logs.
	// Logger 接收状态转换日志。
	Logger zerolog.Logger
}

// Breaker guards a fallible function.
// Breaker 保护一个可能失败的函数。
type Breaker struct {
	cb      circuitbreaker.CircuitBreaker[any]
	enabled bool
	timeout time.Duration
	logger  zerolog.Logger
	trips   atomic.Uint64

	mu       sync.Mutex
	openedAt time.Time
}

// New creates a breaker.
//
// New 创建一个熔断器。
func New(cfg Config) *Breaker {
	if cfg.Threshold < 1 {
		cfg.Threshold = 1
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = time.Second
	}

	b := &Breaker{
		enabled: cfg.Enabled,
		timeout: cfg.ResetTimeout,
		logger:  cfg.Logger,
	}
	b.cb = circuitbreaker.NewBuilder[any]().
		WithFailureThreshold(uint(cfg.Threshold)).
		WithDelay(cfg.ResetTimeout).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			from, to := fromFailsafe(e.OldState), fromFailsafe(e.NewState)
			if to == Open {
				b.trips.Add(1)
				b.mu.Lock()
				b.openedAt = time.Now()
				b.mu.Unlock()
			}
			b.logger.Warn().
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("eviction circuit breaker state changed")
			if cfg.OnStateChange != nil {
				cfg.OnStateChange(from, to)
			}
		}).
		Build()
	return b
}

// Execute runs fn through the breaker.
// While open it returns ErrOpen without running fn. A panic in fn is recovered
// into a *errors.PanicError and counts as a failure.
//
// Execute 通过熔断器执行fn。
// 打开期间直接返回ErrOpen而不执行fn。fn中的panic会被恢复为*errors.PanicError并计为失败。
func (b *Breaker) Execute(fn func() error) error {
	if !b.enabled {
		return guard(fn)
	}
	return failsafe.With[any](b.cb).Run(func() error { return guard(fn) })
}

func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &cacheerrors.PanicError{Value: r}
		}
	}()
	return fn()
}

// State returns the current state. An open breaker whose reset timeout has
// elapsed reports HalfOpen: the next call is the trial.
//
// State 返回当前状态。重置超时已过的打开状态报告为HalfOpen，下一次调用即为试探。
func (b *Breaker) State() State {
	if !b.enabled {
		return Closed
	}
	s := fromFailsafe(b.cb.State())
	if s == Open {
		b.mu.Lock()
		elapsed := time.Since(b.openedAt)
		b.mu.Unlock()
		if elapsed >= b.timeout {
			return HalfOpen
		}
	}
	return s
}

// Trips returns how many times the breaker has opened.
//
// Trips 返回熔断器打开的次数。
func (b *Breaker) Trips() uint64 {
	return b.trips.Load()
}

// IsOpen reports whether err is the open-breaker rejection.
//
// IsOpen 判断err是否为熔断器打开时的拒绝错误。
func IsOpen(err error) bool {
	return errors.Is(err, ErrOpen)
}
