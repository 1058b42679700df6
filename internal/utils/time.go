// Package utils 提供缓存引擎内部使用的通用工具
package utils

import (
	"sync"
	"sync/atomic"
	"time"
)

// Clock 提供单调递增的毫秒时间
// 引擎只通过Clock读取时间，测试可以注入ManualClock
type Clock interface {
	NowMillis() int64
}

// processStart 进程内单调时间的基准点
var processStart = time.Now()

// SystemClock 基于time.Since的单调时钟，不受墙上时间回拨影响
type SystemClock struct{}

// NowMillis 返回自进程启动以来的毫秒数
func (SystemClock) NowMillis() int64 {
	return time.Since(processStart).Milliseconds()
}

// ManualClock 手动推进的时钟，用于测试
type ManualClock struct {
	mu  sync.Mutex
	now int64
}

// NewManualClock 创建一个从start（毫秒）开始的手动时钟
func NewManualClock(start int64) *ManualClock {
	return &ManualClock{now: start}
}

// NowMillis 返回当前毫秒数
func (c *ManualClock) NowMillis() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance 将时钟向前推进d
// 负值会被忽略，保证单调性
func (c *ManualClock) Advance(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	c.now += d.Milliseconds()
	c.mu.Unlock()
}

// Set 设置当前毫秒数，不允许回退
func (c *ManualClock) Set(ms int64) {
	c.mu.Lock()
	if ms > c.now {
		c.now = ms
	}
	c.mu.Unlock()
}

// Counter 原子计数器
type Counter struct {
	v atomic.Int64
}

// Inc 加一并返回新值
func (c *Counter) Inc() int64 { return c.v.Add(1) }

// Load 读取当前值
func (c *Counter) Load() int64 { return c.v.Load() }
