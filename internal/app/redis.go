package app

import (
	"context"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/flexispot-bridge/internal/config"
	redisstorage "github.com/taoyao-code/flexispot-bridge/internal/storage/redis"
)

// NewRedisClient 创建Redis客户端，未启用时返回 nil, nil
func NewRedisClient(ctx context.Context, cfg cfgpkg.RedisConfig, logger *zap.Logger) (*redisstorage.Client, error) {
	if !cfg.Enabled {
		logger.Info("redis is disabled, skipping initialization")
		return nil, nil
	}

	client, err := redisstorage.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	logger.Info("redis client initialized",
		zap.String("addr", cfg.Addr),
		zap.Int("pool_size", cfg.PoolSize))

	return client, nil
}

// NewHeightMirror 创建高度镜像，client 为 nil 时返回 nil
func NewHeightMirror(client *redisstorage.Client, cfg cfgpkg.RedisConfig) *redisstorage.HeightMirror {
	if client == nil {
		return nil
	}
	return redisstorage.NewHeightMirror(client, cfg.KeyPrefix, cfg.HeightTTL)
}
