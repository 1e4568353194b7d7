package mqttclient

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/flexispot-bridge/internal/config"
)

// ErrTimeout broker 未在超时时间内确认
var ErrTimeout = errors.New("mqtt operation timed out")

type subscription struct {
	qos     byte
	handler func(topic string, payload []byte)
}

// Client paho 客户端封装：断线自动重连，重连后恢复订阅
type Client struct {
	c       mqtt.Client
	log     *zap.Logger
	timeout time.Duration

	mu   sync.Mutex
	subs map[string]subscription
}

// ClientID 生成客户端 ID。unique 为 true 时格式为 {base}-{hostname}-{uuid8}
func ClientID(base string, unique bool) string {
	if base == "" {
		base = "flexispot-bridge"
	}
	if !unique {
		return base
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("%s-%s-%s", base, hostname, uuid.New().String()[:8])
}

// New 根据配置创建客户端，willTopic 非空时设置遗嘱消息 "false"
func New(cfg cfgpkg.MQTTConfig, willTopic string, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cl := &Client{
		log:     log,
		timeout: timeout,
		subs:    make(map[string]subscription),
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL()).
		SetClientID(ClientID(cfg.ClientID, cfg.UniqueClientID)).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetKeepAlive(cfg.KeepAlive).
		SetConnectTimeout(timeout).
		SetAutoReconnect(true).
		SetCleanSession(true).
		SetOnConnectHandler(cl.onConnect).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Warn("mqtt connection lost", zap.Error(err))
		})
	if willTopic != "" {
		opts.SetWill(willTopic, "false", 1, false)
	}
	cl.c = mqtt.NewClient(opts)
	return cl
}

// Connect 连接 broker，阻塞到成功、失败或 ctx 结束
func (c *Client) Connect(ctx context.Context) error {
	if err := c.wait(ctx, c.c.Connect()); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	return nil
}

// onConnect 首次连接与每次重连后恢复订阅
func (c *Client) onConnect(mc mqtt.Client) {
	c.mu.Lock()
	subs := make(map[string]subscription, len(c.subs))
	for t, s := range c.subs {
		subs[t] = s
	}
	c.mu.Unlock()

	c.log.Info("mqtt connected", zap.Int("subscriptions", len(subs)))
	for topic, s := range subs {
		tok := mc.Subscribe(topic, s.qos, wrap(s.handler))
		go func(topic string, tok mqtt.Token) {
			if !tok.WaitTimeout(c.timeout) {
				c.log.Error("mqtt resubscribe timed out", zap.String("topic", topic))
				return
			}
			if err := tok.Error(); err != nil {
				c.log.Error("mqtt resubscribe failed", zap.String("topic", topic), zap.Error(err))
			}
		}(topic, tok)
	}
}

func wrap(h func(topic string, payload []byte)) mqtt.MessageHandler {
	return func(_ mqtt.Client, m mqtt.Message) {
		h(m.Topic(), m.Payload())
	}
}

// Subscribe 订阅主题并登记，重连后自动恢复
func (c *Client) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	c.mu.Lock()
	c.subs[topic] = subscription{qos: qos, handler: handler}
	c.mu.Unlock()

	if err := c.wait(context.Background(), c.c.Subscribe(topic, qos, wrap(handler))); err != nil {
		return fmt.Errorf("mqtt subscribe %s: %w", topic, err)
	}
	c.log.Info("mqtt subscribed", zap.String("topic", topic), zap.Uint8("qos", qos))
	return nil
}

// Publish 发布消息并等待确认（QoS0 立即返回）
func (c *Client) Publish(topic string, qos byte, retained bool, payload string) error {
	if err := c.wait(context.Background(), c.c.Publish(topic, qos, retained, payload)); err != nil {
		return fmt.Errorf("mqtt publish %s: %w", topic, err)
	}
	return nil
}

// IsConnected 当前是否连接（重连中返回 false）
func (c *Client) IsConnected() bool {
	return c.c.IsConnectionOpen()
}

// Disconnect 等待最多 250ms 发送完剩余消息后断开
func (c *Client) Disconnect() {
	c.c.Disconnect(250)
}

func (c *Client) wait(ctx context.Context, tok mqtt.Token) error {
	timer := time.NewTimer(c.timeout)
	defer timer.Stop()
	select {
	case <-tok.Done():
		return tok.Error()
	case <-timer.C:
		return ErrTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}
