// Package repo holds the Redis-backed persistence for conversation state and
// long-term memories.
package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chative/botcore/internal/agent/model"
	errx "github.com/chative/botcore/internal/core/error"
	logx "github.com/chative/botcore/pkg/logger"
)

const DefaultTranscriptLimit = 500

// RedisContextRepository stores one JSON snapshot per conversation plus an
// append-only, bounded transcript list.
type RedisContextRepository struct {
	rdb             redis.Cmdable
	prefix          string
	ttl             time.Duration
	transcriptLimit int64
}

func NewRedisContextRepository(rdb redis.Cmdable, prefix string, ttl time.Duration) *RedisContextRepository {
	return &RedisContextRepository{
		rdb:             rdb,
		prefix:          prefix,
		ttl:             ttl,
		transcriptLimit: DefaultTranscriptLimit,
	}
}

func (r *RedisContextRepository) contextKey(conversationID string) string {
	return fmt.Sprintf("%s:conversation:%s:context", r.prefix, conversationID)
}

func (r *RedisContextRepository) transcriptKey(conversationID string) string {
	return fmt.Sprintf("%s:conversation:%s:messages", r.prefix, conversationID)
}

func (r *RedisContextRepository) Load(ctx context.Context, conversationID string) (*model.ConversationContext, error) {
	key := r.contextKey(conversationID)
	raw, err := r.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load conversation context from redis")
		return nil, errx.WrapRedis(err)
	}
	var c model.ConversationContext
	if err := json.Unmarshal(raw, &c); err != nil {
		logx.Error().Err(err).Str("conversationID", conversationID).Msg("failed to unmarshal conversation context")
		return nil, fmt.Errorf("unmarshal context: %w", err)
	}
	return &c, nil
}

func (r *RedisContextRepository) Save(ctx context.Context, c *model.ConversationContext) error {
	if c == nil || c.ID == "" {
		return errx.Validation(nil, "conversation id is required")
	}
	b, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal context: %w", err)
	}
	key := r.contextKey(c.ID)
	if err := r.rdb.Set(ctx, key, b, r.ttl).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to save conversation context to redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisContextRepository) Delete(ctx context.Context, conversationID string) error {
	if err := r.rdb.Del(ctx, r.contextKey(conversationID), r.transcriptKey(conversationID)).Err(); err != nil {
		logx.Error().Err(err).Str("conversationID", conversationID).Msg("failed to delete conversation from redis")
		return errx.WrapRedis(err)
	}
	return nil
}

// AppendMessage adds one message to the transcript and refreshes its TTL.
// Only the newest transcriptLimit entries are kept.
func (r *RedisContextRepository) AppendMessage(ctx context.Context, conversationID string, msg model.HistoryMessage) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	key := r.transcriptKey(conversationID)

	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, b)
		pipe.LTrim(ctx, key, -r.transcriptLimit, -1)
		if r.ttl > 0 {
			pipe.Expire(ctx, key, r.ttl)
		}
		return nil
	})
	if err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to append message to redis")
		return errx.WrapRedis(err)
	}
	return nil
}

// Transcript returns the stored transcript, oldest first.
func (r *RedisContextRepository) Transcript(ctx context.Context, conversationID string) ([]model.HistoryMessage, error) {
	key := r.transcriptKey(conversationID)
	rows, err := r.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		logx.Error().Err(err).Str("key", key).Msg("failed to load transcript from redis")
		return nil, errx.WrapRedis(err)
	}
	msgs := make([]model.HistoryMessage, 0, len(rows))
	for i, s := range rows {
		var m model.HistoryMessage
		if err := json.Unmarshal([]byte(s), &m); err != nil {
			return nil, fmt.Errorf("unmarshal message at index %d: %w", i, err)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

var _ model.ContextRepository = (*RedisContextRepository)(nil)
