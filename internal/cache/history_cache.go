package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"buildscope/internal/model"
)

// HistoryCache holds the recent-turn window per project and conversation
// type. A short-lived dirty marker is set while a turn is being committed so
// readers neither trust nor repopulate a window that is about to change.
type HistoryCache struct {
	client         *redisv9.Client
	historyTTL     time.Duration
	dirtyMarkerTTL time.Duration
}

func NewHistoryCache(client *redisv9.Client, historyTTL, dirtyMarkerTTL time.Duration) *HistoryCache {
	if historyTTL <= 0 {
		historyTTL = 60 * time.Second
	}
	if dirtyMarkerTTL <= 0 {
		dirtyMarkerTTL = 5 * time.Second
	}
	return &HistoryCache{
		client:         client,
		historyTTL:     historyTTL,
		dirtyMarkerTTL: dirtyMarkerTTL,
	}
}

func (c *HistoryCache) GetHistory(ctx context.Context, projectID string, convType model.ConversationType) ([]model.ChatTurn, bool, error) {
	raw, err := c.client.Get(ctx, HistoryKey(projectID, convType)).Result()
	if err == redisv9.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get history failed: %w", err)
	}

	var turns []model.ChatTurn
	if err := json.Unmarshal([]byte(raw), &turns); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached history failed: %w", err)
	}
	return turns, true, nil
}

func (c *HistoryCache) SetHistory(ctx context.Context, projectID string, convType model.ConversationType, turns []model.ChatTurn) error {
	payload, err := json.Marshal(turns)
	if err != nil {
		return fmt.Errorf("marshal history cache failed: %w", err)
	}
	if err := c.client.Set(ctx, HistoryKey(projectID, convType), payload, c.historyTTL).Err(); err != nil {
		return fmt.Errorf("redis set history failed: %w", err)
	}
	return nil
}

// DeleteHistory drops the cached window after a commit. The dirty marker is
// refreshed rather than removed: a reader that loaded the window before the
// commit must still see it as dirty when it goes to cache that window.
func (c *HistoryCache) DeleteHistory(ctx context.Context, projectID string, convType model.ConversationType) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redisv9.Pipeliner) error {
		pipe.Del(ctx, HistoryKey(projectID, convType))
		pipe.Set(ctx, dirtyKey(projectID, convType), "1", c.dirtyMarkerTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete history failed: %w", err)
	}
	return nil
}

func (c *HistoryCache) MarkDirty(ctx context.Context, projectID string, convType model.ConversationType) error {
	if err := c.client.Set(ctx, dirtyKey(projectID, convType), "1", c.dirtyMarkerTTL).Err(); err != nil {
		return fmt.Errorf("redis set dirty marker failed: %w", err)
	}
	return nil
}

func (c *HistoryCache) IsDirty(ctx context.Context, projectID string, convType model.ConversationType) (bool, error) {
	exists, err := c.client.Exists(ctx, dirtyKey(projectID, convType)).Result()
	if err != nil {
		return false, fmt.Errorf("redis check dirty marker failed: %w", err)
	}
	return exists > 0, nil
}

func HistoryKey(projectID string, convType model.ConversationType) string {
	return fmt.Sprintf("chat:history:%s:%s", projectID, convType)
}

func dirtyKey(projectID string, convType model.ConversationType) string {
	return fmt.Sprintf("chat:history:dirty:%s:%s", projectID, convType)
}
