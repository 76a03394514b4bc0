package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"voyago/backend/internal/cache"
	"voyago/backend/internal/models"
)

// ITypingStore persists typing presence records.
type ITypingStore interface {
	Set(ctx context.Context, conversationKey, userID string, typing bool) error
	Get(ctx context.Context, conversationKey, userID string) (*models.TypingPresence, error)
}

// typingRecordTTL only keeps Redis tidy; readers apply their own staleness rule.
const typingRecordTTL = time.Minute

type redisTypingStore struct {
	rdb *redis.Client
}

// NewRedisTypingStore creates a typing store on Redis keys typing:{conversationKey}_{userId}.
func NewRedisTypingStore(rdb *redis.Client) ITypingStore {
	return &redisTypingStore{rdb: rdb}
}

func (s *redisTypingStore) Set(ctx context.Context, conversationKey, userID string, typing bool) error {
	payload, err := json.Marshal(models.TypingPresence{IsTyping: typing, UpdatedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, cache.TypingKey(conversationKey, userID), payload, typingRecordTTL).Err(); err != nil {
		return fmt.Errorf("failed to store typing presence: %w", err)
	}
	return nil
}

// Get returns nil without error when no record exists.
func (s *redisTypingStore) Get(ctx context.Context, conversationKey, userID string) (*models.TypingPresence, error) {
	raw, err := s.rdb.Get(ctx, cache.TypingKey(conversationKey, userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read typing presence: %w", err)
	}
	var p models.TypingPresence
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("failed to decode typing presence: %w", err)
	}
	return &p, nil
}
