package middleware

import (
	"time"

	"polar-keeper/services"

	"github.com/gin-gonic/gin"
)

/**
 * HTTP请求统计中间件
 * @description
 * - 统计控制面板API收到的请求数量
 * - 记录请求处理时间
 * - 区分成功和失败的请求
 * - 为就绪探针提供请求数据
 */
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 记录请求开始时间
		start := time.Now()

		// 处理请求
		c.Next()

		// 计算请求处理时间
		duration := time.Since(start).Seconds()

		// 获取请求状态码
		statusCode := c.Writer.Status()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unknown"
		}

		services.IncrementRequestCount(endpoint)
		services.RecordRequestDuration(endpoint, duration)

		// 如果是错误请求（状态码 >= 400），增加错误请求计数
		if statusCode >= 400 {
			services.IncrementErrorCount(endpoint)
		}
	}
}
