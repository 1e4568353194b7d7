package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/flexispot-bridge/internal/config"
	"github.com/taoyao-code/flexispot-bridge/internal/controller"
	"github.com/taoyao-code/flexispot-bridge/internal/logging"
	"github.com/taoyao-code/flexispot-bridge/internal/mqttclient"
)

// ConnectMQTT 创建客户端并连接 broker，遗嘱消息发布到 {prefix}online
func ConnectMQTT(ctx context.Context, cfg cfgpkg.MQTTConfig, log *zap.Logger) (*mqttclient.Client, error) {
	willTopic := controller.NewTopics(cfg.TopicPrefix).Online
	client := mqttclient.New(cfg, willTopic, logging.Component(log, "mqtt"))

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}
	log.Info("mqtt connected", zap.String("broker", cfg.BrokerURL()), zap.String("will", willTopic))
	return client, nil
}
