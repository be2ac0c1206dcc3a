package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kirinyoku/slotbook/internal/domain"
	"github.com/redis/go-redis/v9"
)

// NotificationStream appends email/SMS jobs to a capped Redis stream that
// the delivery service consumes.
type NotificationStream struct {
	rdb    *redis.Client
	stream string
	maxLen int64
}

func NewNotificationStream(rdb *redis.Client, maxLen int64) *NotificationStream {
	if maxLen <= 0 {
		maxLen = 100_000
	}

	return &NotificationStream{
		rdb:    rdb,
		stream: StreamNotifications(),
		maxLen: maxLen,
	}
}

func (s *NotificationStream) Send(ctx context.Context, n domain.Notification) error {
	const op = "redis.NotificationStream.Send"

	recipients, err := json.Marshal(n.Recipients)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	err = s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]any{
			"template":   string(n.Template),
			"recipients": string(recipients),
			"payload":    string(payload),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

type StreamEntry struct {
	ID           string
	Notification domain.Notification
}

// Read returns entries after lastID, waiting up to block for new ones. Use
// "0" to read from the start and "$" for new entries only.
func (s *NotificationStream) Read(ctx context.Context, lastID string, count int64, block time.Duration) ([]StreamEntry, error) {
	const op = "redis.NotificationStream.Read"

	res, err := s.rdb.XRead(ctx, &redis.XReadArgs{
		Streams: []string{s.stream, lastID},
		Count:   count,
		Block:   block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	var out []StreamEntry
	for _, st := range res {
		for _, msg := range st.Messages {
			e := StreamEntry{ID: msg.ID}
			e.Notification.Template = domain.Template(fmt.Sprint(msg.Values["template"]))
			if raw, ok := msg.Values["recipients"].(string); ok {
				if err := json.Unmarshal([]byte(raw), &e.Notification.Recipients); err != nil {
					return out, fmt.Errorf("%s:%w", op, err)
				}
			}
			if raw, ok := msg.Values["payload"].(string); ok {
				if err := json.Unmarshal([]byte(raw), &e.Notification.Payload); err != nil {
					return out, fmt.Errorf("%s:%w", op, err)
				}
			}
			out = append(out, e)
		}
	}

	return out, nil
}
