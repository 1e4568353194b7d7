package health

import (
	"context"
	"time"
)

// MQTTChecker broker 连接检查。断线期间客户端自动重连，此时报告不健康
type MQTTChecker struct {
	conn   ConnState
	broker string
}

// NewMQTTChecker 创建 MQTT 检查器
func NewMQTTChecker(conn ConnState, broker string) *MQTTChecker {
	return &MQTTChecker{conn: conn, broker: broker}
}

func (c *MQTTChecker) Name() string { return "mqtt" }

func (c *MQTTChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	details := map[string]any{"broker": c.broker}
	if !c.conn.IsConnected() {
		return CheckResult{
			Status:  StatusUnhealthy,
			Message: "not connected",
			Details: details,
			Latency: time.Since(start),
		}
	}
	return CheckResult{
		Status:  StatusHealthy,
		Message: "ok",
		Details: details,
		Latency: time.Since(start),
	}
}
