package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"voyago/backend/internal/cache"
	"voyago/backend/internal/metrics"
	"voyago/backend/internal/models"
)

// IChatHub fans new messages out to live subscribers.
type IChatHub interface {
	Publish(ctx context.Context, channels []string, msg *models.Message) error
	Subscribe(ctx context.Context, channels []string) (<-chan models.Message, error)
}

// subscriberBuffer is how many undelivered messages a slow subscriber may hold.
const subscriberBuffer = 32

type redisChatHub struct {
	rdb     *redis.Client
	log     *zap.Logger
	metrics *metrics.Metrics
}

// NewRedisChatHub creates a hub backed by Redis pub/sub.
func NewRedisChatHub(rdb *redis.Client, log *zap.Logger, m *metrics.Metrics) IChatHub {
	return &redisChatHub{rdb: rdb, log: log, metrics: m}
}

func (h *redisChatHub) Publish(ctx context.Context, channels []string, msg *models.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	for _, ch := range channels {
		if err := h.rdb.Publish(ctx, ch, payload).Err(); err != nil {
			return fmt.Errorf("failed to publish to %s: %w", ch, err)
		}
	}
	return nil
}

// Subscribe opens one Redis subscription covering channels. The returned
// channel is closed, and the subscription released, when ctx is done.
func (h *redisChatHub) Subscribe(ctx context.Context, channels []string) (<-chan models.Message, error) {
	pubsub := h.rdb.Subscribe(ctx, channels...)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %v: %w", channels, err)
	}

	out := make(chan models.Message, subscriberBuffer)
	h.metrics.LiveSubscriptions.Inc()
	go func() {
		defer func() {
			_ = pubsub.Close()
			close(out)
			h.metrics.LiveSubscriptions.Dec()
		}()
		seen := newRecentIDs(subscriberBuffer * 4)
		in := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-in:
				if !ok {
					return
				}
				var msg models.Message
				if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
					h.log.Warn("Dropping undecodable chat payload", zap.String("channel", raw.Channel), zap.Error(err))
					continue
				}
				// A message is published on its pair channel and its booking channel.
				if !seen.add(msg.ID.String()) {
					continue
				}
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// recentIDs remembers the last n IDs seen.
type recentIDs struct {
	ring []string
	set  map[string]struct{}
	next int
}

func newRecentIDs(n int) *recentIDs {
	return &recentIDs{ring: make([]string, n), set: make(map[string]struct{}, n)}
}

// add reports false if id was already seen.
func (r *recentIDs) add(id string) bool {
	if _, ok := r.set[id]; ok {
		return false
	}
	if old := r.ring[r.next]; old != "" {
		delete(r.set, old)
	}
	r.ring[r.next] = id
	r.set[id] = struct{}{}
	r.next = (r.next + 1) % len(r.ring)
	return true
}

// messageChannels lists the channels a message is published on.
func messageChannels(msg *models.Message) []string {
	channels := []string{cache.ChatChannel(msg.ConversationID)}
	if !msg.BookingID.IsZero() {
		channels = append(channels, cache.BookingChatChannel(msg.BookingID.String()))
	}
	return channels
}
