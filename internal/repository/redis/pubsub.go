package redis

import (
	"context"
	"encoding/json"

	"github.com/kirinyoku/slotbook/internal/domain"
	"github.com/redis/go-redis/v9"
)

// WebhookPubSub fans due webhooks out to delivery workers.
type WebhookPubSub struct {
	rdb     *redis.Client
	channel string
}

func NewWebhookPubSub(rdb *redis.Client) *WebhookPubSub {
	return &WebhookPubSub{
		rdb:     rdb,
		channel: ChannelWebhooks(),
	}
}

func (p *WebhookPubSub) Publish(ctx context.Context, w domain.Webhook) error {
	b, err := json.Marshal(w)
	if err != nil {
		return err
	}

	return p.rdb.Publish(ctx, p.channel, b).Err()
}

func (p *WebhookPubSub) Subscribe(ctx context.Context, handler func(ctx context.Context, w domain.Webhook)) error {
	sub := p.rdb.Subscribe(ctx, p.channel)
	defer sub.Close()

	ch := sub.Channel(redis.WithChannelSize(256))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var w domain.Webhook
			if err := json.Unmarshal([]byte(m.Payload), &w); err == nil && w.Trigger != "" {
				handler(ctx, w)
			}
		}
	}
}
