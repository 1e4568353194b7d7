package controller

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/flexispot-bridge/internal/desk"
	"github.com/taoyao-code/flexispot-bridge/internal/metrics"
	"github.com/taoyao-code/flexispot-bridge/internal/protocol/flexispot"
)

// PubSub 控制器依赖的发布订阅能力（由 mqttclient.Client 实现）
type PubSub interface {
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error
	Publish(topic string, qos byte, retained bool, payload string) error
}

// HeightSink 高度读数的旁路输出（Redis 镜像），失败只记日志
type HeightSink interface {
	StoreHeight(ctx context.Context, height float64, at time.Time) error
}

// Options 控制器参数
type Options struct {
	TopicPrefix       string
	HeartbeatInterval time.Duration
	InboundBuffer     int
	Logger            *zap.Logger
	Metrics           *metrics.AppMetrics
	Sink              HeightSink
}

type inbound struct {
	topic   string
	payload string
}

// Controller 两个并发区域共享同一个 desk.Desk：
// 调度区域消费订阅消息并执行记忆位调用，心跳区域定时读取高度并发布状态。
// 两者都经过 desk 的同一把锁串行访问串口。
type Controller struct {
	ps       PubSub
	desk     desk.Desk
	topics   Topics
	interval time.Duration
	events   chan inbound
	log      *zap.Logger
	metrics  *metrics.AppMetrics
	sink     HeightSink

	last  atomic.Pointer[float64] // 最近一次读到的高度
	ticks uint64                  // 仅心跳协程访问
}

// New 创建控制器
func New(ps PubSub, d desk.Desk, opts Options) *Controller {
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = time.Second
	}
	if opts.InboundBuffer <= 0 {
		opts.InboundBuffer = 10
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewNopMetrics()
	}
	return &Controller{
		ps:       ps,
		desk:     d,
		topics:   NewTopics(opts.TopicPrefix),
		interval: opts.HeartbeatInterval,
		events:   make(chan inbound, opts.InboundBuffer),
		log:      opts.Logger,
		metrics:  opts.Metrics,
		sink:     opts.Sink,
	}
}

// Topics 返回控制器使用的主题表
func (c *Controller) Topics() Topics { return c.topics }

// LastHeight 最近一次心跳读到的高度，从未读到时 ok 为 false
func (c *Controller) LastHeight() (height float64, ok bool) {
	if p := c.last.Load(); p != nil {
		return *p, true
	}
	return 0, false
}

// Run 订阅记忆位主题并启动心跳，阻塞直到 ctx 结束或串口出错。
// 串口错误不重试，作为返回值交给上层退出进程。
func (c *Controller) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	defer wg.Wait()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for _, p := range flexispot.Presets {
		topic := c.topics.PresetSet(p)
		if err := c.ps.Subscribe(topic, AtMostOnce, c.enqueue(ctx)); err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
	}
	c.log.Info("controller subscribed", zap.Int("presets", len(flexispot.Presets)))

	fatal := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := c.heartbeatLoop(ctx); err != nil {
			fatal <- err
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-fatal:
			return err
		case ev := <-c.events:
			if err := c.Dispatch(ev.topic, ev.payload); err != nil {
				return err
			}
		}
	}
}

// enqueue 订阅回调：消息放入队列，由 Run 顺序处理；队列满时阻塞 broker 回调
func (c *Controller) enqueue(ctx context.Context) func(topic string, payload []byte) {
	return func(topic string, payload []byte) {
		select {
		case c.events <- inbound{topic: topic, payload: string(payload)}:
		case <-ctx.Done():
		}
	}
}

// Dispatch 处理一条订阅消息。只有 presetN/set + "true" 会触发调用，其余忽略。
func (c *Controller) Dispatch(topic, payload string) error {
	c.log.Debug("mqtt message", zap.String("topic", topic), zap.String("payload", payload))

	preset, ok := c.topics.MatchPresetSet(topic)
	if !ok || payload != PayloadTrue {
		c.metrics.MQTTInboundTotal.WithLabelValues("false").Inc()
		return nil
	}
	c.metrics.MQTTInboundTotal.WithLabelValues("true").Inc()

	c.log.Info("[begin] desk-switch preset set", zap.Stringer("preset", preset))
	if err := c.desk.RecallPreset(preset); err != nil {
		c.log.Error("preset recall failed", zap.Stringer("preset", preset), zap.Error(err))
		return fmt.Errorf("recall %s: %w", preset, err)
	}
	c.metrics.PresetRecalls.WithLabelValues(preset.String(), "mqtt").Inc()
	c.log.Info("[ end ] desk-switch preset set", zap.Stringer("preset", preset))
	return nil
}

func (c *Controller) heartbeatLoop(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		if err := c.Heartbeat(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Heartbeat 执行一次心跳：读取高度并发布状态主题。
// 读不到高度时沿用上次读数；从未读到过则不发布高度主题。
// 只有串口错误会返回，发布失败记日志后继续（重连由 MQTT 客户端负责）。
func (c *Controller) Heartbeat(ctx context.Context) error {
	c.ticks++

	height, ok, err := c.desk.Height()
	if err != nil {
		c.log.Error("height poll failed", zap.Error(err))
		return fmt.Errorf("poll height: %w", err)
	}
	if ok {
		c.last.Store(&height)
		if c.sink != nil {
			if err := c.sink.StoreHeight(ctx, height, time.Now()); err != nil && !errors.Is(err, context.Canceled) {
				c.log.Warn("height mirror failed", zap.Error(err))
			}
		}
	}
	last, known := c.LastHeight()
	c.log.Debug("current height",
		zap.Uint64("tick", c.ticks),
		zap.Bool("fresh", ok),
		zap.Float64("height", last),
		zap.Bool("known", known))

	c.publish(c.topics.Online, AtLeastOnce, PayloadTrue)
	if known {
		h := FormatHeight(last)
		c.publish(c.topics.CurrentHeight, AtMostOnce, h)
		c.publish(c.topics.TargetHeight, AtMostOnce, h)
	}
	c.publish(c.topics.HeightState, AtMostOnce, HeightStopped)
	for _, p := range flexispot.Presets {
		// 记忆位开关是瞬时触发，每次心跳复位
		c.publish(c.topics.PresetGet(p), AtLeastOnce, PayloadFalse)
	}
	return nil
}

func (c *Controller) publish(topic string, qos byte, payload string) {
	if err := c.ps.Publish(topic, qos, false, payload); err != nil {
		c.metrics.MQTTPublishTotal.WithLabelValues("error").Inc()
		c.log.Warn("mqtt publish failed", zap.String("topic", topic), zap.Error(err))
		return
	}
	c.metrics.MQTTPublishTotal.WithLabelValues("ok").Inc()
}

// FormatHeight 高度格式化为最短十进制表示（75.9、110）
func FormatHeight(h float64) string {
	return strconv.FormatFloat(h, 'f', -1, 64)
}
