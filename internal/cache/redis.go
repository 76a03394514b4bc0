package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ConnectRedis initializes and returns a Redis client instance.
func ConnectRedis(addr, password string, db int, log *zap.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info("Connected to Redis", zap.String("addr", addr))
	return rdb, nil
}

// DisconnectRedis closes the Redis client connection.
func DisconnectRedis(client *redis.Client, log *zap.Logger) error {
	if client == nil {
		return nil
	}
	if err := client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis connection: %w", err)
	}
	log.Info("Redis connection closed")
	return nil
}

// ChatChannel is the pub/sub channel carrying new messages for one conversation.
func ChatChannel(conversationKey string) string {
	return "chat:" + conversationKey
}

// BookingChatChannel carries new messages attached to one booking.
func BookingChatChannel(bookingID string) string {
	return "chat:booking:" + bookingID
}

// TypingKey is the presence key for one user typing in one conversation.
func TypingKey(conversationKey, userID string) string {
	return fmt.Sprintf("typing:%s_%s", conversationKey, userID)
}
