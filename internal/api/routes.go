package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/flexispot-bridge/internal/api/middleware"
)

// RouteOptions 路由参数
type RouteOptions struct {
	APIKeys []string
	Limiter *middleware.RateLimiter // 为 nil 时运动命令不限流
	Logger  *zap.Logger
}

// RegisterDeskRoutes 注册 /api/desk 路由。运动类请求限流，查询不限流
func RegisterDeskRoutes(r gin.IRouter, h *DeskHandler, opts RouteOptions) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	api := r.Group("/api")
	api.Use(middleware.APIKeyAuth(opts.APIKeys, logger))
	if len(opts.APIKeys) > 0 {
		logger.Info("api authentication enabled", zap.Int("api_keys_count", len(opts.APIKeys)))
	} else {
		logger.Warn("api authentication disabled")
	}

	deskGroup := api.Group("/desk")
	deskGroup.GET("/height", h.GetHeight)

	motion := deskGroup.Group("")
	if opts.Limiter != nil {
		motion.Use(middleware.RateLimit(opts.Limiter))
	}
	motion.POST("/presets/:preset", h.RecallPreset)
	motion.POST("/commands/:name", h.SendCommand)

	logger.Info("desk routes registered", zap.Int("endpoints", 3))
}
