package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	heightKey    = "height"
	heightEvents = "height-events"
)

// HeightRecord 写入 Redis 的高度快照
type HeightRecord struct {
	Height float64   `json:"height"`
	At     time.Time `json:"at"`
}

// HeightMirror 把最新高度写入 {prefix}height 并发布到 {prefix}height-events。
// 只写不读，进程重启后不会从这里恢复状态。
type HeightMirror struct {
	rdb    redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewHeightMirror 创建高度镜像，ttl <= 0 表示不过期
func NewHeightMirror(rdb redis.Cmdable, prefix string, ttl time.Duration) *HeightMirror {
	if ttl < 0 {
		ttl = 0
	}
	return &HeightMirror{rdb: rdb, prefix: prefix, ttl: ttl}
}

// Key 高度快照的键名
func (m *HeightMirror) Key() string { return m.prefix + heightKey }

// Channel 高度事件的频道名
func (m *HeightMirror) Channel() string { return m.prefix + heightEvents }

// StoreHeight 用一个 pipeline 完成 SET 与 PUBLISH
func (m *HeightMirror) StoreHeight(ctx context.Context, height float64, at time.Time) error {
	data, err := json.Marshal(HeightRecord{Height: height, At: at.UTC()})
	if err != nil {
		return fmt.Errorf("marshal height: %w", err)
	}

	pipe := m.rdb.TxPipeline()
	pipe.Set(ctx, m.Key(), data, m.ttl)
	pipe.Publish(ctx, m.Channel(), data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("mirror height: %w", err)
	}
	return nil
}
