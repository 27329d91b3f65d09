package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/NAREN-BHARGAV/CodeBlueHalo/internal/monitor"
	"github.com/NAREN-BHARGAV/CodeBlueHalo/internal/store"
	"go.uber.org/zap"
)

const snapshotKeyPattern = "codeblue:view:*:snapshot"

// SnapshotKey 视图快照缓存 key
func SnapshotKey(view string) string {
	return fmt.Sprintf("codeblue:view:%s:snapshot", view)
}

// SnapshotCache Redis 快照缓存（供其他进程 / 前端直接读取）
type SnapshotCache struct {
	kv     store.KVStore
	ttl    func(view string) time.Duration
	logger *zap.Logger
}

// NewSnapshotCache 创建快照缓存，ttl 按视图返回过期时间（<= 0 不过期）
func NewSnapshotCache(kv store.KVStore, ttl func(view string) time.Duration, logger *zap.Logger) *SnapshotCache {
	if ttl == nil {
		ttl = func(string) time.Duration { return 0 }
	}
	return &SnapshotCache{kv: kv, ttl: ttl, logger: logger}
}

// PublishSnapshot 写入快照
func (c *SnapshotCache) PublishSnapshot(ctx context.Context, snap *monitor.Snapshot) error {
	key := SnapshotKey(snap.View)

	jsonData, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := c.kv.Set(ctx, key, string(jsonData), c.ttl(snap.View)); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}

	c.logger.Debug("Updated snapshot cache",
		zap.String("view", snap.View),
		zap.String("key", key),
		zap.Uint64("seq", snap.Seq),
	)
	return nil
}

// GetSnapshot 读取缓存的快照
func (c *SnapshotCache) GetSnapshot(ctx context.Context, view string) (*monitor.Snapshot, error) {
	raw, err := c.kv.Get(ctx, SnapshotKey(view))
	if err != nil {
		if errors.Is(err, store.ErrCacheMiss) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get snapshot cache: %w", err)
	}
	var snap monitor.Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// CachedViews 当前缓存中存在快照的视图
func (c *SnapshotCache) CachedViews(ctx context.Context) ([]string, error) {
	keys, err := c.kv.ScanKeys(ctx, snapshotKeyPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to scan snapshot keys: %w", err)
	}
	views := make([]string, 0, len(keys))
	for _, k := range keys {
		name := strings.TrimSuffix(strings.TrimPrefix(k, "codeblue:view:"), ":snapshot")
		views = append(views, name)
	}
	return views, nil
}
