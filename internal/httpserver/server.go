package httpserver

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	cfgpkg "github.com/taoyao-code/flexispot-bridge/internal/config"
)

// Server HTTP 服务封装
type Server struct {
	srv    *http.Server
	engine *gin.Engine
}

// New 创建并配置 Gin + HTTP Server，注册 /healthz、/readyz 与指标路由
func New(cfg cfgpkg.HTTPConfig, metricsPath string, metricsHandler http.Handler, readyFn func() bool) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.GET("/readyz", func(c *gin.Context) {
		if readyFn == nil || readyFn() {
			c.String(http.StatusOK, "ready")
			return
		}
		c.String(http.StatusServiceUnavailable, "not-ready")
	})
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	if metricsHandler != nil {
		r.GET(metricsPath, gin.WrapH(metricsHandler))
	}

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return &Server{srv: srv, engine: r}
}

// Register 挂载额外路由（健康报告、桌子控制接口）
func (s *Server) Register(fns ...func(r *gin.Engine)) {
	for _, fn := range fns {
		fn(s.engine)
	}
}

// Handler 返回根 handler，供测试直接调用
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Start 启动 HTTP 服务（阻塞），正常关闭时返回 nil
func (s *Server) Start() error {
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown 优雅关闭
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
