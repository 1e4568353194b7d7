package app

import (
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/flexispot-bridge/internal/config"
	"github.com/taoyao-code/flexispot-bridge/internal/desk"
	"github.com/taoyao-code/flexispot-bridge/internal/logging"
	"github.com/taoyao-code/flexispot-bridge/internal/metrics"
	"github.com/taoyao-code/flexispot-bridge/internal/serialport"
)

// DeskHandle 打开后的桌子：Port 仅在真实串口模式下非空
type DeskHandle struct {
	Desk      desk.Desk
	Port      *desk.Port
	Device    string
	Heartbeat time.Duration
	closer    io.Closer
}

// Close 关闭串口，模拟模式下为空操作
func (h *DeskHandle) Close() error {
	if h == nil || h.closer == nil {
		return nil
	}
	return h.closer.Close()
}

// opener 便于测试替换
var opener = func(cfg cfgpkg.SerialConfig) (io.ReadWriteCloser, error) {
	return serialport.Open(cfg)
}

// OpenDesk 按配置打开串口并创建 desk.Port；desk.mock 为 true 时返回 desk.Mock
func OpenDesk(cfg *cfgpkg.Config, log *zap.Logger, appm *metrics.AppMetrics) (*DeskHandle, error) {
	dlog := logging.Component(log, "desk")
	h := &DeskHandle{Device: cfg.Serial.Device, Heartbeat: cfg.Desk.HeartbeatInterval}

	if cfg.Desk.Mock {
		log.Warn("desk mock mode enabled, serial port not opened")
		h.Desk = desk.NewMock(dlog)
		h.Device = "mock"
		return h, nil
	}

	rw, err := opener(cfg.Serial)
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", cfg.Serial.Device, err)
	}
	h.closer = rw
	h.Port = desk.NewPort(rw, desk.Options{
		SettleDelay:    cfg.Desk.SettleDelay,
		ReadBufferSize: cfg.Desk.ReadBufferSize,
		Logger:         dlog,
		Metrics:        appm,
	})
	h.Desk = h.Port
	log.Info("serial port opened",
		zap.String("device", cfg.Serial.Device),
		zap.Int("baud", cfg.Serial.BaudRate))
	return h, nil
}
