package health

import (
	"context"
	"fmt"
	"time"

	redisstorage "github.com/taoyao-code/flexispot-bridge/internal/storage/redis"
)

// RedisChecker 高度镜像所用 Redis 的检查器。
// Redis 只是旁路，失败时报告降级而不是不健康
type RedisChecker struct {
	client *redisstorage.Client
}

// NewRedisChecker 创建Redis健康检查器
func NewRedisChecker(client *redisstorage.Client) *RedisChecker {
	return &RedisChecker{client: client}
}

// Name 返回检查器名称
func (c *RedisChecker) Name() string {
	return "redis"
}

// Check 执行健康检查
func (c *RedisChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()

	if err := c.client.HealthCheck(ctx); err != nil {
		return CheckResult{
			Status:  StatusDegraded,
			Message: fmt.Sprintf("ping failed: %v", err),
			Latency: time.Since(start),
		}
	}

	stats := c.client.Stats()

	utilization := 0.0
	if stats.TotalConns > 0 {
		utilization = float64(stats.TotalConns-stats.IdleConns) / float64(stats.TotalConns)
	}

	status := StatusHealthy
	message := "ok"

	if utilization > 0.9 {
		status = StatusDegraded
		message = "connection pool near limit"
	}

	if stats.Misses > stats.Hits && stats.Hits > 0 {
		status = StatusDegraded
		message = "low connection pool hit rate"
	}

	return CheckResult{
		Status:  status,
		Message: message,
		Details: map[string]any{
			"total_conns": stats.TotalConns,
			"idle_conns":  stats.IdleConns,
			"stale_conns": stats.StaleConns,
			"hits":        stats.Hits,
			"misses":      stats.Misses,
			"timeouts":    stats.Timeouts,
			"utilization": fmt.Sprintf("%.1f%%", utilization*100),
		},
		Latency: time.Since(start),
	}
}
