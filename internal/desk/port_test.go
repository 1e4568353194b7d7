package desk

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/flexispot-bridge/internal/metrics"
	"github.com/taoyao-code/flexispot-bridge/internal/protocol/flexispot"
)

type op struct {
	kind string // write|read
	data []byte
}

// recordingTransport 记录所有读写顺序的模拟串口
type recordingTransport struct {
	mu       sync.Mutex
	ops      []op
	reads    [][]byte
	writeErr error
	readErr  error
}

func (t *recordingTransport) Write(b []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.writeErr != nil {
		return 0, t.writeErr
	}
	t.ops = append(t.ops, op{kind: "write", data: append([]byte(nil), b...)})
	return len(b), nil
}

func (t *recordingTransport) Read(b []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.readErr != nil {
		return 0, t.readErr
	}
	t.ops = append(t.ops, op{kind: "read"})
	if len(t.reads) == 0 {
		// 模拟读超时
		return 0, nil
	}
	n := copy(b, t.reads[0])
	t.reads = t.reads[1:]
	return n, nil
}

func (t *recordingTransport) snapshot() []op {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]op(nil), t.ops...)
}

var capturedStream = []byte{
	0xC3, 0x9D,
	0x9B, 0x04, 0x11, 0x7C, 0xC3, 0x9D,
	0x9B, 0x04, 0x11, 0x7C, 0xC3, 0x9D,
	0x9B, 0x04, 0x11, 0x7C, 0xC3, 0x9D,
	0x9B, 0x07, 0x12, 0x07, 0xED, 0x6F, 0x05, 0x28, 0x9D,
	0x9B, 0x04, 0x11, 0x7C, 0xC3, 0x9D,
	0x9B, 0x07, 0x12, 0x00, 0x00, 0x00, 0xB8, 0x94, 0x9D,
	0x9B,
}

func noSleep(time.Duration) {}

func TestPort_GetDeskHeight(t *testing.T) {
	t.Run("抓包数据取到75.9", func(t *testing.T) {
		tr := &recordingTransport{reads: [][]byte{capturedStream}}
		p := NewPort(tr, Options{Sleep: noSleep})

		h, ok, err := p.GetDeskHeight()
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, 75.9, h)
	})

	t.Run("只有未知与休眠帧", func(t *testing.T) {
		stream := []byte{
			0x9B, 0x04, 0x11, 0x7C, 0xC3, 0x9D,
			0x9B, 0x07, 0x12, 0x00, 0x00, 0x00, 0xB8, 0x94, 0x9D,
		}
		tr := &recordingTransport{reads: [][]byte{stream}}
		p := NewPort(tr, Options{Sleep: noSleep})

		_, ok, err := p.GetDeskHeight()
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("读超时无数据", func(t *testing.T) {
		p := NewPort(&recordingTransport{}, Options{Sleep: noSleep})
		_, ok, err := p.Height()
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("多个高度取最新", func(t *testing.T) {
		stream := append(flexispot.EncodeHeightSpan(720), flexispot.EncodeHeightSpan(735)...)
		stream = append(stream, 0x9B, 0x07, 0x12) // 截断的新帧
		tr := &recordingTransport{reads: [][]byte{stream}}
		p := NewPort(tr, Options{Sleep: noSleep})

		h, ok, err := p.GetDeskHeight()
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, 73.5, h)
	})

	t.Run("只解析本次读到的字节", func(t *testing.T) {
		tr := &recordingTransport{reads: [][]byte{flexispot.EncodeHeightSpan(1100), {0xC3}}}
		p := NewPort(tr, Options{Sleep: noSleep, ReadBufferSize: 64})

		h, ok, err := p.GetDeskHeight()
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, 110.0, h)

		// 第二次读到的只有噪声，不能复用上一次缓冲中的残留
		_, ok, err = p.GetDeskHeight()
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("读失败", func(t *testing.T) {
		tr := &recordingTransport{readErr: errors.New("device unplugged")}
		p := NewPort(tr, Options{Sleep: noSleep})

		_, _, err := p.GetDeskHeight()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrTransport)
		assert.Contains(t, p.Status().LastError, "device unplugged")
	})
}

func TestPort_RecallPreset(t *testing.T) {
	var slept []time.Duration
	tr := &recordingTransport{}
	p := NewPort(tr, Options{
		SettleDelay: 500 * time.Millisecond,
		Sleep:       func(d time.Duration) { slept = append(slept, d) },
	})

	require.NoError(t, p.RecallPreset(flexispot.Preset3))

	ops := tr.snapshot()
	require.Len(t, ops, 2)
	assert.Equal(t, flexispot.Encode(flexispot.CmdWakeup).Bytes(), ops[0].data)
	assert.Equal(t, flexispot.Encode(flexispot.CmdPreset3).Bytes(), ops[1].data)
	assert.Equal(t, []time.Duration{500 * time.Millisecond}, slept)
	assert.False(t, p.Status().LastSuccess.IsZero())
	assert.Empty(t, p.Status().LastError)
}

func TestPort_RecallPreset_Invalid(t *testing.T) {
	tr := &recordingTransport{}
	p := NewPort(tr, Options{Sleep: noSleep})

	assert.Error(t, p.RecallPreset(flexispot.Preset(9)))
	assert.Empty(t, tr.snapshot(), "非法记忆位不应写串口")
}

func TestPort_WriteFailureStopsSequence(t *testing.T) {
	tr := &recordingTransport{writeErr: errors.New("i/o error")}
	slept := false
	p := NewPort(tr, Options{Sleep: func(time.Duration) { slept = true }})

	err := p.RecallPreset(flexispot.Preset1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.False(t, slept, "唤醒失败后不应继续等待与发送")
}

func TestPort_SendCommand(t *testing.T) {
	tr := &recordingTransport{}
	p := NewPort(tr, Options{Sleep: noSleep})

	require.NoError(t, p.SendCommand(flexispot.CmdUp))
	require.NoError(t, p.SendCommand(flexispot.CmdWakeup))
	assert.Error(t, p.SendCommand(flexispot.Command(99)))

	ops := tr.snapshot()
	require.Len(t, ops, 3)
	assert.Equal(t, flexispot.Encode(flexispot.CmdWakeup).Bytes(), ops[0].data)
	assert.Equal(t, flexispot.Encode(flexispot.CmdUp).Bytes(), ops[1].data)
	assert.Equal(t, flexispot.Encode(flexispot.CmdWakeup).Bytes(), ops[2].data)
}

func TestPort_IndividualOperations(t *testing.T) {
	tr := &recordingTransport{}
	var slept time.Duration
	p := NewPort(tr, Options{SettleDelay: time.Second, Sleep: func(d time.Duration) { slept = d }})

	require.NoError(t, p.Wakeup())
	p.FriendlySleep()
	require.NoError(t, p.CallPreset(flexispot.Preset4))

	ops := tr.snapshot()
	require.Len(t, ops, 2)
	assert.Equal(t, flexispot.Encode(flexispot.CmdPreset4).Bytes(), ops[1].data)
	assert.Equal(t, time.Second, slept)
}

// 命令序列执行期间到来的轮询必须等到整个 唤醒->等待->发送 完成后才能读串口
func TestPort_PollWaitsForRecallSequence(t *testing.T) {
	tr := &recordingTransport{reads: [][]byte{flexispot.EncodeHeightSpan(759)}}
	sleeping := make(chan struct{})
	release := make(chan struct{})
	p := NewPort(tr, Options{
		SettleDelay: time.Second,
		Sleep: func(time.Duration) {
			close(sleeping)
			<-release
		},
	})

	recallErr := make(chan error, 1)
	go func() { recallErr <- p.RecallPreset(flexispot.Preset2) }()
	<-sleeping

	type result struct {
		h   float64
		ok  bool
		err error
	}
	polled := make(chan result, 1)
	go func() {
		h, ok, err := p.GetDeskHeight()
		polled <- result{h, ok, err}
	}()

	// 轮询应阻塞在锁上
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, tr.snapshot(), 1, "等待期间不应有读操作")
	select {
	case <-polled:
		t.Fatal("poll finished while recall sequence held the port")
	default:
	}

	close(release)
	require.NoError(t, <-recallErr)
	res := <-polled
	require.NoError(t, res.err)
	require.True(t, res.ok)
	assert.Equal(t, 75.9, res.h)

	ops := tr.snapshot()
	require.Len(t, ops, 3)
	assert.Equal(t, "write", ops[0].kind)
	assert.True(t, bytes.Equal(flexispot.Encode(flexispot.CmdWakeup).Bytes(), ops[0].data))
	assert.Equal(t, "write", ops[1].kind)
	assert.True(t, bytes.Equal(flexispot.Encode(flexispot.CmdPreset2).Bytes(), ops[1].data))
	assert.Equal(t, "read", ops[2].kind)
}

func TestPort_Metrics(t *testing.T) {
	m := metrics.NewNopMetrics()
	tr := &recordingTransport{reads: [][]byte{capturedStream}}
	p := NewPort(tr, Options{Sleep: noSleep, Metrics: m})

	require.NoError(t, p.RecallPreset(flexispot.Preset1))
	_, _, err := p.GetDeskHeight()
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CommandsSent.WithLabelValues("wakeup")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CommandsSent.WithLabelValues("preset1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HeightPolls.WithLabelValues("height")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.PacketsDecoded.WithLabelValues("unknown")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PacketsDecoded.WithLabelValues("sleep")))
	assert.Equal(t, float64(len(capturedStream)), testutil.ToFloat64(m.BytesRead))
}
