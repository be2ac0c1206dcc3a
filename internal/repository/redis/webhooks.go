package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kirinyoku/slotbook/internal/domain"
	"github.com/redis/go-redis/v9"
)

// Lua script popping due webhooks.
// KEYS[1] = queue (zset, score = deliver at ms)
// KEYS[2] = payloads (hash)
// ARGV[1] = now_ms
// ARGV[2] = limit
const luaPopDue = `
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
local out = {}
for _, id in ipairs(ids) do
  redis.call('ZREM', KEYS[1], id)
  local payload = redis.call('HGET', KEYS[2], id)
  redis.call('HDEL', KEYS[2], id)
  if payload then
    table.insert(out, payload)
  end
end
return out
`

// WebhookQueue schedules webhook triggers in a sorted set keyed by delivery
// time. Each (subject, trigger) pair is accepted once.
type WebhookQueue struct {
	rdb      *redis.Client
	dedupTTL time.Duration
	popDue   *redis.Script
	now      func() time.Time
}

func NewWebhookQueue(rdb *redis.Client, dedupTTL time.Duration) *WebhookQueue {
	if dedupTTL <= 0 {
		dedupTTL = 7 * 24 * time.Hour
	}

	return &WebhookQueue{
		rdb:      rdb,
		dedupTTL: dedupTTL,
		popDue:   redis.NewScript(luaPopDue),
		now:      time.Now,
	}
}

func webhookID(w domain.Webhook) string {
	return w.Payload.Subject() + ":" + string(w.Trigger)
}

// Schedule enqueues w. A repeated (subject, trigger) pair is dropped, so a retry
// after a partial failure never delivers twice.
func (q *WebhookQueue) Schedule(ctx context.Context, w domain.Webhook) error {
	const op = "redis.WebhookQueue.Schedule"

	now := q.now()
	deliverAt := now
	if w.DeliverAt != nil {
		deliverAt = *w.DeliverAt
	}

	ttl := q.dedupTTL
	if deliverAt.After(now) {
		ttl += deliverAt.Sub(now)
	}

	fresh, err := q.rdb.SetNX(ctx,
		KeyWebhookDedup(w.Payload.Subject(), string(w.Trigger)),
		deliverAt.UnixMilli(),
		ttl,
	).Result()
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}
	if !fresh {
		return nil
	}

	b, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	id := webhookID(w)
	_, err = q.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, KeyWebhookPayloads(), id, b)
		p.ZAdd(ctx, KeyWebhookQueue(), redis.Z{Score: float64(deliverAt.UnixMilli()), Member: id})
		p.SAdd(ctx, KeyWebhookIndex(w.Payload.UID), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

// Cancel drops every undelivered webhook of a booking.
func (q *WebhookQueue) Cancel(ctx context.Context, uid string) error {
	const op = "redis.WebhookQueue.Cancel"

	ids, err := q.rdb.SMembers(ctx, KeyWebhookIndex(uid)).Result()
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}
	if len(ids) == 0 {
		return nil
	}

	members := make([]any, len(ids))
	for i, id := range ids {
		members[i] = id
	}

	_, err = q.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZRem(ctx, KeyWebhookQueue(), members...)
		p.HDel(ctx, KeyWebhookPayloads(), ids...)
		p.Del(ctx, KeyWebhookIndex(uid))
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

// PopDue atomically removes and returns up to limit webhooks due at now.
func (q *WebhookQueue) PopDue(ctx context.Context, now time.Time, limit int) ([]domain.Webhook, error) {
	const op = "redis.WebhookQueue.PopDue"

	res, err := q.popDue.Run(ctx, q.rdb,
		[]string{KeyWebhookQueue(), KeyWebhookPayloads()},
		now.UnixMilli(), limit,
	).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	out := make([]domain.Webhook, 0, len(res))
	for _, raw := range res {
		var w domain.Webhook
		if err := json.Unmarshal([]byte(raw), &w); err != nil {
			return out, fmt.Errorf("%s:%w", op, err)
		}
		out = append(out, w)
	}

	return out, nil
}

// Requeue puts a popped webhook back for delivery at at. The dedup key is
// left alone, so it is not subject to the once-per-pair check.
func (q *WebhookQueue) Requeue(ctx context.Context, w domain.Webhook, at time.Time) error {
	const op = "redis.WebhookQueue.Requeue"

	b, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	id := webhookID(w)
	_, err = q.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, KeyWebhookPayloads(), id, b)
		p.ZAdd(ctx, KeyWebhookQueue(), redis.Z{Score: float64(at.UnixMilli()), Member: id})
		p.SAdd(ctx, KeyWebhookIndex(w.Payload.UID), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

// Pending reports the number of queued webhooks.
func (q *WebhookQueue) Pending(ctx context.Context) (int64, error) {
	return q.rdb.ZCard(ctx, KeyWebhookQueue()).Result()
}
