package live

import (
	"context"
	"strings"

	"github.com/dalemusser/sharedcart/internal/domain/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const channelPrefix = "collab:live:"

// RedisBridge relays snapshots through Redis pub/sub so that subscribers
// connected to any replica see writes made on every other replica.
// Publish goes to Redis only; Run delivers what Redis sends back into the
// local Hub.
type RedisBridge struct {
	client redis.UniversalClient
	hub    *Hub
	log    *zap.Logger
}

// NewRedisBridge creates a bridge feeding hub.
func NewRedisBridge(client redis.UniversalClient, hub *Hub, logger *zap.Logger) *RedisBridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBridge{client: client, hub: hub, log: logger}
}

// Publish sends sess to all replicas.
func (b *RedisBridge) Publish(ctx context.Context, sess models.CollabSession) {
	data, err := Encode(sess)
	if err != nil {
		b.log.Warn("live encode failed", zap.String("session_id", sess.SessionID), zap.Error(err))
		return
	}
	if err := b.client.Publish(ctx, channelPrefix+sess.SessionID, data).Err(); err != nil {
		b.log.Warn("live publish failed, delivering locally", zap.String("session_id", sess.SessionID), zap.Error(err))
		b.hub.Deliver(sess.SessionID, data)
	}
}

// Run relays Redis messages into the hub until ctx is cancelled.
func (b *RedisBridge) Run(ctx context.Context) error {
	ps := b.client.PSubscribe(ctx, channelPrefix+"*")
	defer ps.Close()

	if _, err := ps.Receive(ctx); err != nil {
		return err
	}
	b.log.Info("live redis bridge subscribed", zap.String("pattern", channelPrefix+"*"))

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			sessionID := strings.TrimPrefix(msg.Channel, channelPrefix)
			b.hub.Deliver(sessionID, []byte(msg.Payload))
		}
	}
}
