package health

import "sync/atomic"

// ConnState 能报告连接状态的组件（MQTT 客户端）
type ConnState interface {
	IsConnected() bool
}

// Readiness 就绪状态：串口已打开且 MQTT 已连接
type Readiness struct {
	serialReady atomic.Bool
	mqtt        atomic.Pointer[ConnState]
}

func New() *Readiness { return &Readiness{} }

func (r *Readiness) SetSerialReady(v bool) { r.serialReady.Store(v) }

func (r *Readiness) SetMQTT(c ConnState) { r.mqtt.Store(&c) }

// Ready 总体就绪：各子系统均就绪
func (r *Readiness) Ready() bool {
	if !r.serialReady.Load() {
		return false
	}
	c := r.mqtt.Load()
	return c != nil && *c != nil && (*c).IsConnected()
}
