package http

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/Humphrey-He/guardcache/pkg/cache"
)

// RequestLogger returns a middleware that logs one line per request.
//
// RequestLogger 返回一个为每个请求记录一行日志的中间件。
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := logger.Info()
		if status >= 500 {
			event = logger.Error()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("request")
	}
}

// StatsSource provides statistics for response headers.
//
// StatsSource 为响应头提供统计信息。
type StatsSource interface {
	Stats() cache.Stats
}

// CacheHeaders returns a middleware that adds cache statistics to response headers.
// Headers are set before the handler runs, so they describe the cache as the
// request found it.
//
// CacheHeaders 返回一个将缓存统计添加到响应头的中间件。
// 响应头在处理程序运行前设置，描述请求到达时的缓存状态。
func CacheHeaders(source StatsSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := source.Stats()
		c.Header("X-Cache-Hits", strconv.FormatUint(stats.Hits, 10))
		c.Header("X-Cache-Misses", strconv.FormatUint(stats.Misses, 10))
		c.Header("X-Cache-Hit-Ratio", strconv.FormatFloat(stats.HitRatio, 'f', 2, 64))
		c.Header("X-Cache-Entries", strconv.FormatInt(stats.TotalEntries, 10))
		c.Header("X-Cache-Pressure", stats.Pressure.String())
		c.Next()
	}
}
