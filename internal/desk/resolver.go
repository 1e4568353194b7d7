package desk

import (
	"fmt"
	"io"

	"github.com/taoyao-code/flexispot-bridge/internal/metrics"
	"github.com/taoyao-code/flexispot-bridge/internal/protocol/flexispot"
)

// DefaultReadBufferSize 单次轮询读取上限，足够容纳一秒内控制盒推送的状态帧
const DefaultReadBufferSize = 512

// HeightResolver 从串口读取一次并解析出最新高度
type HeightResolver struct {
	r       io.Reader
	buf     []byte
	metrics *metrics.AppMetrics
}

// NewHeightResolver 创建解析器，bufSize<=0 时使用默认值
func NewHeightResolver(r io.Reader, bufSize int, m *metrics.AppMetrics) *HeightResolver {
	if bufSize <= 0 {
		bufSize = DefaultReadBufferSize
	}
	if m == nil {
		m = metrics.NewNopMetrics()
	}
	return &HeightResolver{r: r, buf: make([]byte, bufSize), metrics: m}
}

// Resolve 读取一次串口，返回缓冲中最后一个高度读数。
// 没有读到高度（设备关机、休眠或只有噪声）返回 ok=false 且 err=nil；只有读失败才返回错误。
// 非并发安全，由 Port 的锁保护。
func (h *HeightResolver) Resolve() (height float64, ok bool, err error) {
	n, err := h.r.Read(h.buf)
	if err != nil && err != io.EOF {
		h.metrics.TransportErrors.WithLabelValues("read").Inc()
		h.metrics.HeightPolls.WithLabelValues("error").Inc()
		return 0, false, fmt.Errorf("%w: read: %w", ErrTransport, err)
	}
	h.metrics.BytesRead.Add(float64(n))

	packets := flexispot.DecodeAll(h.buf[:n])
	for _, p := range packets {
		h.metrics.PacketsDecoded.WithLabelValues(p.Kind.String()).Inc()
	}

	height, ok = flexispot.LastHeight(packets)
	if !ok {
		h.metrics.HeightPolls.WithLabelValues("none").Inc()
		return 0, false, nil
	}
	h.metrics.HeightPolls.WithLabelValues("height").Inc()
	h.metrics.CurrentHeight.Set(height)
	return height, true, nil
}
