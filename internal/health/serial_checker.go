package health

import (
	"context"
	"time"

	"github.com/taoyao-code/flexispot-bridge/internal/desk"
)

// SerialStatus 能报告串口最近状态的组件（desk.Port）
type SerialStatus interface {
	Status() desk.Status
}

// SerialChecker 串口检查：最近一次操作失败为不健康，
// 长时间没有成功操作为降级
type SerialChecker struct {
	src        SerialStatus
	device     string
	staleAfter time.Duration
	now        func() time.Time
}

// NewSerialChecker staleAfter 通常取心跳间隔的若干倍
func NewSerialChecker(src SerialStatus, device string, staleAfter time.Duration) *SerialChecker {
	return &SerialChecker{src: src, device: device, staleAfter: staleAfter, now: time.Now}
}

func (c *SerialChecker) Name() string { return "serial" }

func (c *SerialChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	st := c.src.Status()
	details := map[string]any{"device": c.device}
	if !st.LastSuccess.IsZero() {
		details["last_success"] = st.LastSuccess
	}

	result := CheckResult{Status: StatusHealthy, Message: "ok", Details: details}
	switch {
	case st.LastError != "":
		result.Status = StatusUnhealthy
		result.Message = st.LastError
	case st.LastSuccess.IsZero():
		result.Status = StatusDegraded
		result.Message = "no traffic yet"
	case c.staleAfter > 0 && c.now().Sub(st.LastSuccess) > c.staleAfter:
		result.Status = StatusDegraded
		result.Message = "no recent traffic"
	}
	result.Latency = time.Since(start)
	return result
}
