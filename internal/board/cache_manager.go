package board

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"wisefido-discharge-board/internal/models"

	"go.uber.org/zap"
)

// BoardCacheKey Redis key of the full board snapshot
const BoardCacheKey = "discharge-board:board:full"

// CacheManager 看板缓存管理器
type CacheManager struct {
	kv     KVStore
	ttl    time.Duration
	logger *zap.Logger
}

// NewCacheManager ttl <= 0 keeps the snapshot until the next rebuild overwrites it.
func NewCacheManager(kv KVStore, ttl time.Duration, logger *zap.Logger) *CacheManager {
	return &CacheManager{
		kv:     kv,
		ttl:    ttl,
		logger: logger,
	}
}

// UpdateBoardCache 写入完整看板
func (c *CacheManager) UpdateBoardCache(ctx context.Context, b *models.DischargeBoard) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to marshal discharge board: %w", err)
	}

	if err := c.kv.Set(ctx, BoardCacheKey, string(data), c.ttl); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}

	c.logger.Debug("Updated board cache",
		zap.String("key", BoardCacheKey),
		zap.Int("within_24h", b.Within24hCount),
		zap.Int("within_48h", b.Within48hCount),
		zap.Int("pending", b.PendingCount),
	)
	return nil
}

// GetBoard ErrCacheMiss when no snapshot is cached
func (c *CacheManager) GetBoard(ctx context.Context) (*models.DischargeBoard, error) {
	raw, err := c.kv.Get(ctx, BoardCacheKey)
	if err != nil {
		return nil, err
	}

	var b models.DischargeBoard
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		return nil, fmt.Errorf("failed to unmarshal discharge board: %w", err)
	}
	return &b, nil
}
