package health

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterHTTPRoutes 注册健康检查路由：
// /health 详细报告，/health/ready 与 /health/live 供探针使用
func RegisterHTTPRoutes(r gin.IRoutes, aggregator *Aggregator) {
	r.GET("/health/ready", func(c *gin.Context) {
		if !aggregator.Ready(c.Request.Context()) {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": StatusUnhealthy,
				"ready":  false,
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"ready":  true,
		})
	})

	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"alive": aggregator.Alive()})
	})

	r.GET("/health", func(c *gin.Context) {
		report := aggregator.Report(c.Request.Context())

		// 降级仍返回 200
		code := http.StatusOK
		if report.Status == StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, report)
	})
}
