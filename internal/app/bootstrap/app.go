package bootstrap

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/flexispot-bridge/internal/api"
	"github.com/taoyao-code/flexispot-bridge/internal/api/middleware"
	"github.com/taoyao-code/flexispot-bridge/internal/app"
	cfgpkg "github.com/taoyao-code/flexispot-bridge/internal/config"
	"github.com/taoyao-code/flexispot-bridge/internal/controller"
	"github.com/taoyao-code/flexispot-bridge/internal/health"
	"github.com/taoyao-code/flexispot-bridge/internal/logging"
	"github.com/taoyao-code/flexispot-bridge/internal/metrics"
)

const shutdownTimeout = 10 * time.Second

// Run 统一启动流程：串口 → MQTT → Redis(可选) → HTTP → 控制器。
// 阻塞直到收到 SIGINT/SIGTERM 或控制器因串口错误退出。
func Run(cfg *cfgpkg.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting flexispot bridge",
		zap.String("name", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.Bool("mock", cfg.Desk.Mock))

	// ========== 阶段1: 基础组件 ==========
	reg, appm := app.NewMetrics()
	ready := health.New()

	// ========== 阶段2: 串口（失败直接返回）==========
	deskHandle, err := app.OpenDesk(cfg, log, appm)
	if err != nil {
		log.Error("serial initialization failed", zap.Error(err))
		return err
	}
	defer func() {
		if err := deskHandle.Close(); err != nil {
			log.Warn("close serial failed", zap.Error(err))
		}
	}()
	ready.SetSerialReady(true)

	// ========== 阶段3: MQTT ==========
	mqttClient, err := app.ConnectMQTT(ctx, cfg.MQTT, log)
	if err != nil {
		log.Error("mqtt connect failed", zap.String("broker", cfg.MQTT.BrokerURL()), zap.Error(err))
		return err
	}
	ready.SetMQTT(mqttClient)

	// ========== 阶段4: Redis 高度镜像（可选）==========
	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Error("redis initialization failed", zap.Error(err))
		mqttClient.Disconnect()
		return err
	}
	defer redisClient.Close()

	ctrlOpts := controller.Options{
		TopicPrefix:       cfg.MQTT.TopicPrefix,
		HeartbeatInterval: cfg.Desk.HeartbeatInterval,
		InboundBuffer:     cfg.MQTT.InboundBuffer,
		Logger:            logging.Component(log, "controller"),
		Metrics:           appm,
	}
	if mirror := app.NewHeightMirror(redisClient, cfg.Redis); mirror != nil {
		ctrlOpts.Sink = mirror
		log.Info("height mirror enabled", zap.String("key", mirror.Key()), zap.String("channel", mirror.Channel()))
	}
	ctrl := controller.New(mqttClient, deskHandle.Desk, ctrlOpts)

	// ========== 阶段5: 健康检查与 HTTP（非阻塞）==========
	healthAgg := app.NewHealthAggregator(mqttClient, cfg.MQTT.BrokerURL())
	app.AddSerialChecker(healthAgg, deskHandle)
	app.AddRedisChecker(healthAgg, redisClient)

	var httpSrv interface{ Shutdown(context.Context) error }
	if cfg.HTTP.Enable {
		var metricsHandler = metrics.Handler(reg)
		if !cfg.Metrics.Enable {
			metricsHandler = nil
		}
		srv := app.NewHTTPServer(cfg.HTTP, cfg.Metrics.Path, metricsHandler, ready.Ready)
		handler := api.NewDeskHandler(deskHandle.Desk, ctrl.LastHeight, appm, logging.Component(log, "api"))
		srv.Register(func(r *gin.Engine) {
			app.RegisterHealthRoutes(r, healthAgg)
			api.RegisterDeskRoutes(r, handler, api.RouteOptions{
				APIKeys: cfg.API.Keys,
				Limiter: middleware.NewRateLimiter(cfg.API.RecallRate, cfg.API.RecallBurst),
				Logger:  log,
			})
		})
		go func() {
			if err := srv.Start(); err != nil {
				log.Error("http server error", zap.Error(err))
			}
		}()
		httpSrv = srv
		log.Info("http server started", zap.String("addr", cfg.HTTP.Addr))
	}

	// ========== 阶段6: 控制器（阻塞）==========
	log.Info("all services ready")
	runErr := ctrl.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("controller stopped", zap.Error(runErr))
	} else {
		runErr = nil
		log.Info("received shutdown signal, gracefully shutting down...")
	}

	// ========== 阶段7: 关闭 ==========
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if httpSrv != nil {
		_ = httpSrv.Shutdown(shutdownCtx)
		log.Info("http server stopped")
	}

	// 主动下线；异常退出时由遗嘱消息通知
	if err := mqttClient.Publish(ctrl.Topics().Online, controller.AtLeastOnce, false, controller.PayloadFalse); err != nil {
		log.Warn("publish offline failed", zap.Error(err))
	}
	mqttClient.Disconnect()
	log.Info("mqtt disconnected")

	log.Info("shutdown complete")
	return runErr
}
