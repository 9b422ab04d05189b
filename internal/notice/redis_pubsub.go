package notice

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	channelPrefix = "notices:"
	publishTTL    = 5 * time.Second
)

// RedisPubSub publishes notices on a per-session Redis channel so any server
// instance holding the panel's WebSocket can relay them.
type RedisPubSub struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisPubSub creates a Redis pub/sub bridge for notices.
func NewRedisPubSub(client *redis.Client, logger *zap.Logger) *RedisPubSub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPubSub{client: client, logger: logger}
}

// Notify implements Notifier.
func (r *RedisPubSub) Notify(ctx context.Context, n Notice) {
	if n.SessionID == "" {
		return
	}
	body, err := json.Marshal(n)
	if err != nil {
		r.logger.Warn("marshal notice", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTTL)
	defer cancel()
	if err := r.client.Publish(ctx, channelPrefix+n.SessionID, body).Err(); err != nil {
		r.logger.Warn("publish notice", zap.String("session_id", n.SessionID), zap.Error(err))
	}
}

// Subscribe delivers notices for sessionID to handler until the returned cancel is called.
func (r *RedisPubSub) Subscribe(sessionID string, handler func(Notice)) (cancel func(), err error) {
	ctx, cancelCtx := context.WithCancel(context.Background())
	pubsub := r.client.Subscribe(ctx, channelPrefix+sessionID)
	if _, err = pubsub.Receive(ctx); err != nil {
		cancelCtx()
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var n Notice
				if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
					continue
				}
				handler(n)
			}
		}
	}()
	return cancelCtx, nil
}
