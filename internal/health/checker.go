package health

import (
	"context"
	"time"
)

// Status 健康状态
type Status string

const (
	StatusHealthy   Status = "healthy"   // 健康
	StatusDegraded  Status = "degraded"  // 降级（部分功能受损但仍可服务）
	StatusUnhealthy Status = "unhealthy" // 不健康（无法服务）
)

// CheckResult 健康检查结果
type CheckResult struct {
	Status  Status         `json:"status"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
	Latency time.Duration  `json:"latency"`
}

// Checker 健康检查器接口
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// checkerFunc 用函数实现 Checker
type checkerFunc struct {
	name string
	fn   func(ctx context.Context) CheckResult
}

// CheckerFunc 把一个函数包装成命名检查器
func CheckerFunc(name string, fn func(ctx context.Context) CheckResult) Checker {
	return checkerFunc{name: name, fn: fn}
}

func (c checkerFunc) Name() string                          { return c.name }
func (c checkerFunc) Check(ctx context.Context) CheckResult { return c.fn(ctx) }
