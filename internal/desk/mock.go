package desk

import (
	"go.uber.org/zap"

	"github.com/taoyao-code/flexispot-bridge/internal/protocol/flexispot"
)

// Mock 没有串口时使用：只记录日志，永远读不到高度
type Mock struct {
	log *zap.Logger
}

var _ Desk = (*Mock)(nil)

func NewMock(log *zap.Logger) *Mock {
	if log == nil {
		log = zap.NewNop()
	}
	return &Mock{log: log}
}

func (m *Mock) RecallPreset(p flexispot.Preset) error {
	m.log.Info("mock desk: preset called", zap.Stringer("preset", p))
	return nil
}

func (m *Mock) SendCommand(c flexispot.Command) error {
	m.log.Info("mock desk: command sent", zap.Stringer("command", c))
	return nil
}

func (m *Mock) Height() (float64, bool, error) {
	return 0, false, nil
}
