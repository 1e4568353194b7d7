package app

import (
	"github.com/gin-gonic/gin"

	"github.com/taoyao-code/flexispot-bridge/internal/health"
	redisstorage "github.com/taoyao-code/flexispot-bridge/internal/storage/redis"
)

// serialStaleFactor 超过若干个心跳周期没有成功通信视为降级
const serialStaleFactor = 5

// NewHealthAggregator 创建健康检查聚合器，初始只有 MQTT 检查
func NewHealthAggregator(conn health.ConnState, broker string) *health.Aggregator {
	return health.NewAggregator(health.NewMQTTChecker(conn, broker))
}

// RegisterHealthRoutes 注册健康检查HTTP路由
func RegisterHealthRoutes(r *gin.Engine, aggregator *health.Aggregator) {
	health.RegisterHTTPRoutes(r, aggregator)
}

// AddSerialChecker 添加串口检查器；模拟模式下 h.Port 为 nil，不添加
func AddSerialChecker(aggregator *health.Aggregator, h *DeskHandle) {
	if h == nil || h.Port == nil {
		return
	}
	aggregator.AddChecker(health.NewSerialChecker(h.Port, h.Device, serialStaleFactor*h.Heartbeat))
}

// AddRedisChecker 添加Redis检查器到聚合器
func AddRedisChecker(aggregator *health.Aggregator, redisClient *redisstorage.Client) {
	if redisClient != nil {
		aggregator.AddChecker(health.NewRedisChecker(redisClient))
	}
}
