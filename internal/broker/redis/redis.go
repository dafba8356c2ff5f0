package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Icerzack/codecollab/internal/broker"
)

const channelPrefix = "codecollab:room:"

// Broker relays room messages through redis pub/sub, one channel per room.
type Broker struct {
	client *redis.Client

	mtx     sync.Mutex
	pubsubs map[*redis.PubSub]struct{}
	closed  bool

	logger *zap.Logger
}

func NewBroker(client *redis.Client, logger *zap.Logger) *Broker {
	return &Broker{
		client:  client,
		pubsubs: make(map[*redis.PubSub]struct{}),
		logger:  logger,
	}
}

func channel(roomID string) string {
	return channelPrefix + roomID
}

func (b *Broker) Publish(ctx context.Context, msg broker.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("error marshaling broker message: %w", err)
	}
	if err := b.client.Publish(ctx, channel(msg.RoomID), data).Err(); err != nil {
		return fmt.Errorf("error publishing to redis: %w", err)
	}
	return nil
}

func (b *Broker) Subscribe(ctx context.Context, roomID string, h broker.Handler) (func(), error) {
	b.mtx.Lock()
	if b.closed {
		b.mtx.Unlock()
		return nil, broker.ErrClosed
	}
	b.mtx.Unlock()

	pubsub := b.client.Subscribe(ctx, channel(roomID))
	// Wait for the subscription to be confirmed so no publish after return is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("error subscribing to redis: %w", err)
	}

	b.mtx.Lock()
	b.pubsubs[pubsub] = struct{}{}
	b.mtx.Unlock()

	go func() {
		for m := range pubsub.Channel() {
			var msg broker.Message
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				b.logger.Warn("Dropping undecodable broker message", zap.String("channel", m.Channel), zap.Error(err))
				continue
			}
			h(msg)
		}
	}()
	b.logger.Debug("Subscribed to room channel", zap.String("roomID", roomID))

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mtx.Lock()
			delete(b.pubsubs, pubsub)
			b.mtx.Unlock()
			if err := pubsub.Close(); err != nil {
				b.logger.Debug("Failed to close subscription", zap.Error(err))
			}
		})
	}, nil
}

func (b *Broker) Close() error {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	b.closed = true
	for pubsub := range b.pubsubs {
		_ = pubsub.Close()
	}
	b.pubsubs = make(map[*redis.PubSub]struct{})
	return nil
}
