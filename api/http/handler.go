// Package http exposes a diagnostics surface for a guardcache instance over gin.
// It reports statistics, configuration and pressure, lets an operator trigger a
// sweep, relieve pressure or invalidate a tag, and serves Prometheus metrics.
// It never exposes remote get or set.
//
// Package http 通过gin为guardcache实例提供诊断接口。
// 它报告统计信息、配置和压力，允许运维人员触发清理、缓解压力或按标签失效，
// 并提供Prometheus指标。它不提供远程读写。
package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Humphrey-He/guardcache/internal/breaker"
	"github.com/Humphrey-He/guardcache/pkg/cache"
	"github.com/Humphrey-He/guardcache/pkg/level"
)

// Cache is the part of the cache facade the diagnostics handlers use.
//
// Cache 是诊断处理程序使用的缓存门面子集。
type Cache interface {
	Stats() cache.Stats
	Config() cache.Config
	PressureLevel() level.Pressure
	BreakerState() breaker.State
	Len() int
	CleanupExpired() int
	HandleMemoryPressure() int
	Clear(tags ...string) int
	ClearByPrefix(prefix string) int
}

// PressureResponse is the body of GET /pressure.
//
// PressureResponse 是GET /pressure的响应体。
type PressureResponse struct {
	Level         level.Pressure `json:"level"`
	BreakerState  breaker.State  `json:"breaker_state"`
	Entries       int            `json:"entries"`
	InGraceWindow bool           `json:"in_grace_window"`
}

// Handler serves the diagnostics endpoints.
//
// Handler 提供诊断端点。
type Handler struct {
	cache  Cache
	logger zerolog.Logger
}

// NewHandler creates a diagnostics handler for c.
//
// NewHandler 为c创建诊断处理程序。
//
// Parameters:
//   - c: The cache to inspect
//   - logger: Logger for operator actions
//
// Returns:
//   - *Handler: A new handler instance
func NewHandler(c Cache, logger zerolog.Logger) *Handler {
	return &Handler{
		cache:  c,
		logger: logger,
	}
}

// Register mounts the diagnostics routes on r.
//
// Register 将诊断路由挂载到r上。
func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/stats", h.GetStats)
	r.GET("/config", h.GetConfig)
	r.GET("/pressure", h.GetPressure)
	r.POST("/cleanup/expired", h.CleanupExpired)
	r.POST("/pressure/relieve", h.RelievePressure)
	r.DELETE("/tags/*tag", h.DeleteTag)
}

// GetStats returns a statistics snapshot.
//
// GetStats 返回统计快照。
func (h *Handler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.cache.Stats())
}

// GetConfig returns the effective cache configuration.
//
// GetConfig 返回生效的缓存配置。
func (h *Handler) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.cache.Config())
}

// GetPressure returns the pressure level and breaker state.
//
// GetPressure 返回压力等级和熔断器状态。
func (h *Handler) GetPressure(c *gin.Context) {
	stats := h.cache.Stats()
	c.JSON(http.StatusOK, PressureResponse{
		Level:         stats.Pressure,
		BreakerState:  stats.BreakerState,
		Entries:       int(stats.TotalEntries),
		InGraceWindow: stats.InGraceWindow,
	})
}

// CleanupExpired sweeps expired entries.
//
// CleanupExpired 清理过期条目。
func (h *Handler) CleanupExpired(c *gin.Context) {
	removed := h.cache.CleanupExpired()
	h.logger.Info().Int("removed", removed).Msg("expired entries swept on request")
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// RelievePressure runs a pressure eviction pass. Nothing is evicted below HIGH.
//
// RelievePressure 执行一次压力淘汰。压力低于HIGH时不淘汰。
func (h *Handler) RelievePressure(c *gin.Context) {
	evicted := h.cache.HandleMemoryPressure()
	h.logger.Info().Int("evicted", evicted).Msg("pressure relieved on request")
	c.JSON(http.StatusOK, gin.H{
		"evicted":  evicted,
		"pressure": h.cache.PressureLevel(),
	})
}

// DeleteTag removes every entry carrying the tag. With ?prefix=true every tag
// starting with the given value matches.
//
// DeleteTag 删除带有该标签的所有条目。带?prefix=true时匹配所有以该值开头的标签。
func (h *Handler) DeleteTag(c *gin.Context) {
	tag := strings.TrimPrefix(c.Param("tag"), "/")
	if tag == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tag is required"})
		return
	}

	var removed int
	if c.Query("prefix") == "true" {
		removed = h.cache.ClearByPrefix(tag)
	} else {
		removed = h.cache.Clear(tag)
	}
	h.logger.Info().Str("tag", tag).Int("removed", removed).Msg("tag invalidated on request")
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// MetricsHandler serves the default Prometheus registry, which holds the
// collector of every cache created with a metrics group.
//
// MetricsHandler 提供默认Prometheus注册表，其中包含所有设置了指标分组的缓存采集器。
func MetricsHandler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
