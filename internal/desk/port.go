package desk

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/flexispot-bridge/internal/metrics"
	"github.com/taoyao-code/flexispot-bridge/internal/protocol/flexispot"
)

// DefaultSettleDelay 唤醒后控制盒接受运动命令前需要的静默时间
const DefaultSettleDelay = 500 * time.Millisecond

// ErrTransport 串口读写失败。不重试，由调用方决定是否退出进程。
var ErrTransport = errors.New("desk transport failure")

// Desk 控制器与 HTTP 接口依赖的桌子操作
type Desk interface {
	// RecallPreset 唤醒、等待、调用记忆位，整个序列不可被打断
	RecallPreset(p flexispot.Preset) error
	// SendCommand 唤醒后发送单条命令（上升、下降、M 键等）
	SendCommand(c flexispot.Command) error
	// Height 读取一次最新高度，ok=false 表示当前没有读数
	Height() (height float64, ok bool, err error)
}

// Options Port 构造参数
type Options struct {
	SettleDelay    time.Duration
	ReadBufferSize int
	Logger         *zap.Logger
	Metrics        *metrics.AppMetrics
	// Sleep 替换阻塞等待，测试使用
	Sleep func(time.Duration)
}

// Port 串口的唯一持有者。所有读写与唤醒等待都经过同一把互斥锁，
// 持锁期间（包括唤醒等待）心跳轮询无法读取串口，保证多帧命令序列中间不会插入读操作。
type Port struct {
	mu       sync.Mutex
	rw       io.ReadWriter
	resolver *HeightResolver
	settle   time.Duration
	sleep    func(time.Duration)
	log      *zap.Logger
	metrics  *metrics.AppMetrics

	lastSuccess atomic.Int64 // unix nano
	lastErr     atomic.Pointer[string]
}

var _ Desk = (*Port)(nil)

// NewPort 创建 Port，rw 之后不得再被其他协程直接使用
func NewPort(rw io.ReadWriter, opts Options) *Port {
	if opts.SettleDelay < 0 {
		opts.SettleDelay = 0
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewNopMetrics()
	}
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}
	return &Port{
		rw:       rw,
		resolver: NewHeightResolver(rw, opts.ReadBufferSize, opts.Metrics),
		settle:   opts.SettleDelay,
		sleep:    opts.Sleep,
		log:      opts.Logger,
		metrics:  opts.Metrics,
	}
}

// Session 持锁期间可用的操作集合。只在 Do 的回调内有效，不要保存。
type Session struct {
	p *Port
}

// Do 独占串口执行 fn。锁按获取顺序先到先得，不区分命令与轮询。
func (p *Port) Do(fn func(s *Session) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	err := fn(&Session{p: p})
	p.record(err)
	return err
}

// Wakeup 发送唤醒帧
func (s *Session) Wakeup() error {
	return s.Send(flexispot.CmdWakeup)
}

// FriendlySleep 唤醒后的静默等待。控制盒在唤醒脉冲后需要一段时间才会响应运动命令，
// 这是协议时序要求，等待期间继续持锁。
func (s *Session) FriendlySleep() {
	if s.p.settle > 0 {
		s.p.sleep(s.p.settle)
	}
}

// CallPreset 发送记忆位调用帧
func (s *Session) CallPreset(preset flexispot.Preset) error {
	if !preset.Valid() {
		return fmt.Errorf("invalid preset %d", preset)
	}
	return s.Send(preset.Command())
}

// Send 编码并写出一条命令帧
func (s *Session) Send(c flexispot.Command) error {
	if !c.Valid() {
		return fmt.Errorf("invalid command %s", c)
	}
	frame := flexispot.Encode(c)
	if _, err := s.p.rw.Write(frame.Bytes()); err != nil {
		s.p.metrics.TransportErrors.WithLabelValues("write").Inc()
		return fmt.Errorf("%w: write %s: %w", ErrTransport, c, err)
	}
	s.p.metrics.CommandsSent.WithLabelValues(c.String()).Inc()
	s.p.log.Debug("command sent", zap.Stringer("command", c), zap.Binary("frame", frame.Bytes()))
	return nil
}

// GetDeskHeight 读取一次并返回最新高度
func (s *Session) GetDeskHeight() (float64, bool, error) {
	return s.p.resolver.Resolve()
}

// Wakeup 独占串口发送唤醒帧
func (p *Port) Wakeup() error {
	return p.Do(func(s *Session) error { return s.Wakeup() })
}

// FriendlySleep 独占串口执行唤醒等待
func (p *Port) FriendlySleep() {
	_ = p.Do(func(s *Session) error {
		s.FriendlySleep()
		return nil
	})
}

// CallPreset 独占串口发送记忆位调用帧（不含唤醒）
func (p *Port) CallPreset(preset flexispot.Preset) error {
	return p.Do(func(s *Session) error { return s.CallPreset(preset) })
}

// GetDeskHeight 独占串口读取一次高度
func (p *Port) GetDeskHeight() (float64, bool, error) {
	var (
		height float64
		ok     bool
	)
	err := p.Do(func(s *Session) error {
		var err error
		height, ok, err = s.GetDeskHeight()
		return err
	})
	return height, ok, err
}

// RecallPreset 唤醒 -> 等待 -> 调用记忆位，整个序列在一次加锁内完成
func (p *Port) RecallPreset(preset flexispot.Preset) error {
	if !preset.Valid() {
		return fmt.Errorf("invalid preset %d", preset)
	}
	return p.Do(func(s *Session) error {
		if err := s.Wakeup(); err != nil {
			return err
		}
		s.FriendlySleep()
		return s.CallPreset(preset)
	})
}

// SendCommand 唤醒 -> 等待 -> 发送命令；命令本身是唤醒时只发一次
func (p *Port) SendCommand(c flexispot.Command) error {
	if !c.Valid() {
		return fmt.Errorf("invalid command %s", c)
	}
	return p.Do(func(s *Session) error {
		if err := s.Wakeup(); err != nil {
			return err
		}
		if c == flexispot.CmdWakeup {
			return nil
		}
		s.FriendlySleep()
		return s.Send(c)
	})
}

// Height 实现 Desk
func (p *Port) Height() (float64, bool, error) {
	return p.GetDeskHeight()
}

// Status 串口最近一次成功/失败情况，供健康检查使用
type Status struct {
	LastSuccess time.Time
	LastError   string
}

// Status 返回最近一次操作状态
func (p *Port) Status() Status {
	st := Status{}
	if ns := p.lastSuccess.Load(); ns > 0 {
		st.LastSuccess = time.Unix(0, ns)
	}
	if e := p.lastErr.Load(); e != nil {
		st.LastError = *e
	}
	return st
}

func (p *Port) record(err error) {
	if err == nil {
		p.lastSuccess.Store(time.Now().UnixNano())
		p.lastErr.Store(nil)
		return
	}
	msg := err.Error()
	p.lastErr.Store(&msg)
}
