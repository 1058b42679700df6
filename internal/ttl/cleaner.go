// Package ttl 提供缓存项生命周期管理
package ttl

import (
	"sync"
	"sync/atomic"
	"time"
)

// 默认清理间隔
const defaultCleanInterval = 30 * time.Second

// Cleaner 周期性执行清理任务的后台协程
// Stop返回后不会再有任何一次清理在运行
type Cleaner struct {
	cleanInterval time.Duration  // 清理间隔
	task          func()         // 清理任务，由调用方负责加锁
	closeChan     chan struct{}  // 关闭信号
	closeOnce     sync.Once      // 确保只关闭一次
	wg            sync.WaitGroup // 等待组
	cleanCount    uint64         // 清理次数
	cleanDuration int64          // 最近一次清理耗时（纳秒）
}

// NewCleaner 创建并启动一个清理器
// interval 非正数时使用默认间隔
func NewCleaner(interval time.Duration, task func()) *Cleaner {
	if interval <= 0 {
		interval = defaultCleanInterval
	}

	c := &Cleaner{
		cleanInterval: interval,
		task:          task,
		closeChan:     make(chan struct{}),
	}

	// 启动清理协程
	c.wg.Add(1)
	go c.cleanerLoop()

	return c
}

// cleanerLoop 清理循环
func (c *Cleaner) cleanerLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cleanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			// 关闭信号优先，避免Stop之后还执行一次
			select {
			case <-c.closeChan:
				return
			default:
			}
			start := time.Now()
			c.task()
			atomic.AddUint64(&c.cleanCount, 1)
			atomic.StoreInt64(&c.cleanDuration, time.Since(start).Nanoseconds())
		case <-c.closeChan:
			return
		}
	}
}

// Stop 停止清理器并等待协程退出，可重复调用
// 不能在task内部调用，否则会死锁
func (c *Cleaner) Stop() {
	c.closeOnce.Do(func() {
		close(c.closeChan)
	})
	c.wg.Wait()
}

// Runs 返回已执行的清理次数
func (c *Cleaner) Runs() uint64 {
	return atomic.LoadUint64(&c.cleanCount)
}

// LastDuration 返回最近一次清理的耗时
func (c *Cleaner) LastDuration() time.Duration {
	return time.Duration(atomic.LoadInt64(&c.cleanDuration))
}
