package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core"
	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core/model"
	"github.com/wisesdn-io/wisesdn/pkg/log"
	"github.com/wisesdn-io/wisesdn/pkg/options"
)

var _ core.HistoryStore = (*RedisHistory)(nil)

// RedisHistory keeps the most recent executions in a redis list, newest at
// the head.
type RedisHistory struct {
	client redis.UniversalClient
	key    string
	limit  int64
}

// NewRedisHistory connects to the configured redis server.
func NewRedisHistory(ctx context.Context, opts *options.RedisOptions) (*RedisHistory, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis %s: %w", opts.Addr, err)
	}
	log.Info("Execution history stored in redis", "addr", opts.Addr, "key", opts.Key)
	return NewRedisHistoryWithClient(client, opts.Key), nil
}

// NewRedisHistoryWithClient wraps an existing client.
func NewRedisHistoryWithClient(client redis.UniversalClient, key string) *RedisHistory {
	return &RedisHistory{client: client, key: key, limit: MaxHistory}
}

// Append pushes rec to the head of the list and trims the tail.
func (h *RedisHistory) Append(ctx context.Context, rec *model.ExecutionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode execution %s: %w", rec.ExecutionID, err)
	}

	pipe := h.client.TxPipeline()
	pipe.LPush(ctx, h.key, data)
	pipe.LTrim(ctx, h.key, 0, h.limit-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append execution %s: %w", rec.ExecutionID, err)
	}
	return nil
}

// List returns the stored records, newest first.
func (h *RedisHistory) List(ctx context.Context) ([]*model.ExecutionRecord, error) {
	values, err := h.client.LRange(ctx, h.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}

	out := make([]*model.ExecutionRecord, 0, len(values))
	for _, v := range values {
		rec := &model.ExecutionRecord{}
		if err := json.Unmarshal([]byte(v), rec); err != nil {
			log.Warn("Skipping undecodable execution record", "key", h.key, "error", err.Error())
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Close releases the redis connection pool.
func (h *RedisHistory) Close() error {
	return h.client.Close()
}
