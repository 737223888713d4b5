package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/anonto42/followpulse/backend/internal/models"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// DefaultRedisChannel is the pub/sub channel persisted notifications are published on.
const DefaultRedisChannel = "notification-events"

// RedisPublisher re-publishes persisted notifications on a Redis channel so
// other processes can fan them out to their own clients.
type RedisPublisher struct {
	client  redis.UniversalClient
	channel string
	timeout time.Duration
	logger  *zap.Logger
}

// NewRedisPublisher creates a publisher. An empty channel uses DefaultRedisChannel.
func NewRedisPublisher(client redis.UniversalClient, channel string, logger *zap.Logger) *RedisPublisher {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPublisher{client: client, channel: channel, timeout: 2 * time.Second, logger: logger.Named("redis_publisher")}
}

// NotificationPersisted publishes n. Failures are logged; the notification is already durable.
func (p *RedisPublisher) NotificationPersisted(n models.Notification) {
	payload, err := json.Marshal(n.ToPayload())
	if err != nil {
		p.logger.Error("encoding notification", zap.Uint("id", n.ID), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		p.logger.Warn("publishing notification to redis",
			zap.String("channel", p.channel), zap.Uint("id", n.ID), zap.Error(err))
	}
}
