package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chative/botcore/internal/agent/memory"
	"github.com/chative/botcore/internal/agent/model"
	errx "github.com/chative/botcore/internal/core/error"
	logx "github.com/chative/botcore/pkg/logger"
)

// RedisMemoryStore keeps each user's memories in a hash (id -> JSON) with a
// sorted set (id scored by importance) as the retrieval index.
type RedisMemoryStore struct {
	rdb        redis.Cmdable
	prefix     string
	maxPerUser int
	ids        *memory.IDGenerator
	now        func() time.Time
}

func NewRedisMemoryStore(rdb redis.Cmdable, prefix string, maxPerUser int) *RedisMemoryStore {
	if maxPerUser <= 0 {
		maxPerUser = memory.DefaultMaxPerUser
	}
	return &RedisMemoryStore{
		rdb:        rdb,
		prefix:     prefix,
		maxPerUser: maxPerUser,
		ids:        memory.NewIDGenerator(),
		now:        time.Now,
	}
}

func (s *RedisMemoryStore) indexKey(userID string) string {
	return fmt.Sprintf("%s:memory:%s:index", s.prefix, userID)
}

func (s *RedisMemoryStore) itemsKey(userID string) string {
	return fmt.Sprintf("%s:memory:%s:items", s.prefix, userID)
}

func (s *RedisMemoryStore) Add(ctx context.Context, userID string, in memory.Input) (*model.Memory, error) {
	if userID == "" {
		return nil, errx.Validation(nil, "user id is required")
	}
	now := s.now()
	m := &model.Memory{
		ID:           s.ids.New(now),
		UserID:       userID,
		Type:         in.Type,
		Content:      in.Content,
		Importance:   model.ClampImportance(in.Importance),
		Metadata:     in.Metadata,
		CreatedAt:    now,
		LastAccessed: now,
	}
	if err := s.write(ctx, m); err != nil {
		return nil, err
	}
	if err := s.enforceCapacity(ctx, userID); err != nil {
		logx.Warn().Err(err).Str("userID", userID).Msg("failed to enforce memory capacity")
	}
	return m, nil
}

func (s *RedisMemoryStore) Retrieve(ctx context.Context, userID string, f memory.Filter) ([]model.Memory, error) {
	min := "-inf"
	if f.MinImportance > 0 {
		min = strconv.Itoa(f.MinImportance)
	}
	ids, err := s.rdb.ZRevRangeByScore(ctx, s.indexKey(userID), &redis.ZRangeBy{Min: min, Max: "+inf"}).Result()
	if err != nil {
		logx.Error().Err(err).Str("userID", userID).Msg("failed to read memory index from redis")
		return nil, errx.WrapRedis(err)
	}
	out := []model.Memory{}
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.rdb.HMGet(ctx, s.itemsKey(userID), ids...).Result()
	if err != nil {
		return nil, errx.WrapRedis(err)
	}

	now := s.now()
	touched := make([]any, 0, 2*len(rows))
	for _, row := range rows {
		str, ok := row.(string)
		if !ok {
			continue
		}
		var m model.Memory
		if err := json.Unmarshal([]byte(str), &m); err != nil {
			logx.Warn().Err(err).Str("userID", userID).Msg("skipping corrupt memory record")
			continue
		}
		if !f.Matches(m) {
			continue
		}
		m.LastAccessed = now
		b, err := json.Marshal(m)
		if err == nil {
			touched = append(touched, m.ID, b)
		}
		out = append(out, m)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	if len(touched) > 0 {
		if err := s.rdb.HSet(ctx, s.itemsKey(userID), touched...).Err(); err != nil {
			logx.Warn().Err(err).Str("userID", userID).Msg("failed to update memory access time")
		}
	}
	return out, nil
}

func (s *RedisMemoryStore) Update(ctx context.Context, userID, id string, p memory.Patch) (*model.Memory, error) {
	m, err := s.get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if p.Type != nil {
		m.Type = *p.Type
	}
	if p.Content != nil {
		m.Content = *p.Content
	}
	if p.Importance != nil {
		m.Importance = model.ClampImportance(*p.Importance)
	}
	if p.Metadata != nil {
		m.Metadata = p.Metadata
	}
	now := s.now()
	m.LastModified = &now
	if err := s.write(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *RedisMemoryStore) Delete(ctx context.Context, userID, id string) error {
	removed, err := s.rdb.ZRem(ctx, s.indexKey(userID), id).Result()
	if err != nil {
		return errx.WrapRedis(err)
	}
	if removed == 0 {
		return errx.NotFound(memory.ErrMemoryNotFound, "memory not found")
	}
	if err := s.rdb.HDel(ctx, s.itemsKey(userID), id).Err(); err != nil {
		return errx.WrapRedis(err)
	}
	return nil
}

func (s *RedisMemoryStore) Clear(ctx context.Context, userID string) error {
	if err := s.rdb.Del(ctx, s.indexKey(userID), s.itemsKey(userID)).Err(); err != nil {
		logx.Error().Err(err).Str("userID", userID).Msg("failed to clear memories")
		return errx.WrapRedis(err)
	}
	return nil
}

func (s *RedisMemoryStore) get(ctx context.Context, userID, id string) (*model.Memory, error) {
	raw, err := s.rdb.HGet(ctx, s.itemsKey(userID), id).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errx.NotFound(memory.ErrMemoryNotFound, "memory not found")
		}
		return nil, errx.WrapRedis(err)
	}
	var m model.Memory
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("unmarshal memory: %w", err)
	}
	return &m, nil
}

func (s *RedisMemoryStore) write(ctx context.Context, m *model.Memory) error {
	b, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal memory: %w", err)
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.itemsKey(m.UserID), m.ID, b)
		pipe.ZAdd(ctx, s.indexKey(m.UserID), redis.Z{Score: float64(m.Importance), Member: m.ID})
		return nil
	})
	if err != nil {
		logx.Error().Err(err).Str("userID", m.UserID).Msg("failed to write memory to redis")
		return errx.WrapRedis(err)
	}
	return nil
}

// enforceCapacity pops the lowest-scored ids once the user is over the cap.
func (s *RedisMemoryStore) enforceCapacity(ctx context.Context, userID string) error {
	n, err := s.rdb.ZCard(ctx, s.indexKey(userID)).Result()
	if err != nil {
		return errx.WrapRedis(err)
	}
	excess := n - int64(s.maxPerUser)
	if excess <= 0 {
		return nil
	}
	popped, err := s.rdb.ZPopMin(ctx, s.indexKey(userID), excess).Result()
	if err != nil {
		return errx.WrapRedis(err)
	}
	ids := make([]string, 0, len(popped))
	for _, z := range popped {
		if id, ok := z.Member.(string); ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	return errx.WrapRedis(s.rdb.HDel(ctx, s.itemsKey(userID), ids...).Err())
}

var _ memory.Store = (*RedisMemoryStore)(nil)
