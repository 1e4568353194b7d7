package app

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/flexispot-bridge/internal/config"
	"github.com/taoyao-code/flexispot-bridge/internal/desk"
	"github.com/taoyao-code/flexispot-bridge/internal/health"
)

type nopPort struct{ closed bool }

func (p *nopPort) Read([]byte) (int, error)    { return 0, io.EOF }
func (p *nopPort) Write(b []byte) (int, error) { return len(b), nil }
func (p *nopPort) Close() error                { p.closed = true; return nil }

type connState bool

func (c connState) IsConnected() bool { return bool(c) }

func withOpener(t *testing.T, fn func(cfgpkg.SerialConfig) (io.ReadWriteCloser, error)) {
	orig := opener
	opener = fn
	t.Cleanup(func() { opener = orig })
}

func baseConfig() *cfgpkg.Config {
	return &cfgpkg.Config{
		Serial: cfgpkg.SerialConfig{Device: "/dev/ttyTEST", BaudRate: 9600},
		Desk:   cfgpkg.DeskConfig{HeartbeatInterval: time.Second, ReadBufferSize: 64},
	}
}

func TestOpenDesk(t *testing.T) {
	_, appm := NewMetrics()

	t.Run("模拟模式", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Desk.Mock = true

		h, err := OpenDesk(cfg, zap.NewNop(), appm)
		require.NoError(t, err)
		assert.Nil(t, h.Port)
		assert.IsType(t, &desk.Mock{}, h.Desk)
		assert.NoError(t, h.Close())
	})

	t.Run("串口模式", func(t *testing.T) {
		port := &nopPort{}
		withOpener(t, func(cfgpkg.SerialConfig) (io.ReadWriteCloser, error) { return port, nil })

		h, err := OpenDesk(baseConfig(), zap.NewNop(), appm)
		require.NoError(t, err)
		require.NotNil(t, h.Port)
		assert.Same(t, h.Port, h.Desk)

		require.NoError(t, h.Close())
		assert.True(t, port.closed)
	})

	t.Run("打开失败", func(t *testing.T) {
		withOpener(t, func(cfgpkg.SerialConfig) (io.ReadWriteCloser, error) { return nil, errors.New("no such device") })

		_, err := OpenDesk(baseConfig(), zap.NewNop(), appm)
		assert.ErrorContains(t, err, "/dev/ttyTEST")
	})
}

func TestHealthAggregatorWiring(t *testing.T) {
	port := &nopPort{}
	withOpener(t, func(cfgpkg.SerialConfig) (io.ReadWriteCloser, error) { return port, nil })
	_, appm := NewMetrics()
	h, err := OpenDesk(baseConfig(), zap.NewNop(), appm)
	require.NoError(t, err)

	agg := NewHealthAggregator(connState(true), "tcp://localhost:1883")
	AddSerialChecker(agg, h)
	AddSerialChecker(agg, nil)
	AddRedisChecker(agg, nil)

	results := agg.CheckAll(context.Background())
	assert.Len(t, results, 2)
	assert.Equal(t, health.StatusHealthy, results["mqtt"].Status)
	assert.Equal(t, health.StatusDegraded, results["serial"].Status, "尚未通信")
}

func TestNewRedisClient_Disabled(t *testing.T) {
	c, err := NewRedisClient(context.Background(), cfgpkg.RedisConfig{}, zap.NewNop())
	assert.NoError(t, err)
	assert.Nil(t, c)
	assert.Nil(t, NewHeightMirror(nil, cfgpkg.RedisConfig{}))
}
