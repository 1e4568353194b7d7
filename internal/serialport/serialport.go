package serialport

import (
	"fmt"
	"io"
	"strings"

	"go.bug.st/serial"

	cfgpkg "github.com/taoyao-code/flexispot-bridge/internal/config"
)

// Port 控制盒串口。读超时由设备层负责，超时返回 (0, nil)。
type Port interface {
	io.ReadWriteCloser
}

// Open 按配置打开串口并设置读超时
func Open(cfg cfgpkg.SerialConfig) (Port, error) {
	mode, err := modeFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	p, err := serial.Open(cfg.Device, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", cfg.Device, err)
	}
	if cfg.ReadTimeout > 0 {
		if err := p.SetReadTimeout(cfg.ReadTimeout); err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("set read timeout on %s: %w", cfg.Device, err)
		}
	}
	// 丢弃打开前积压的状态帧
	if err := p.ResetInputBuffer(); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("reset input buffer on %s: %w", cfg.Device, err)
	}
	return p, nil
}

func modeFromConfig(cfg cfgpkg.SerialConfig) (*serial.Mode, error) {
	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
	}
	switch strings.ToLower(cfg.Parity) {
	case "", "none":
		mode.Parity = serial.NoParity
	case "odd":
		mode.Parity = serial.OddParity
	case "even":
		mode.Parity = serial.EvenParity
	default:
		return nil, fmt.Errorf("unsupported parity %q", cfg.Parity)
	}
	switch cfg.StopBits {
	case 0, 1:
		mode.StopBits = serial.OneStopBit
	case 2:
		mode.StopBits = serial.TwoStopBits
	default:
		return nil, fmt.Errorf("unsupported stop bits %d", cfg.StopBits)
	}
	return mode, nil
}

// ListPorts 枚举可用串口，启动日志中用于排查设备路径
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}
