package redis

import "fmt"

const ns = "slotbook:v1"

func KeyEventType(eventTypeID int64) string {
	return fmt.Sprintf("%s:event_type:%d", ns, eventTypeID)
}

func KeyRateLimit(scope, id string) string {
	return fmt.Sprintf("%s:rl:%s:%s", ns, scope, id)
}

func KeyIdemBooking(idemKey string) string {
	return fmt.Sprintf("%s:idem:bookings:%s", ns, idemKey)
}

func KeyWebhookQueue() string { return ns + ":webhooks:queue" }

func KeyWebhookPayloads() string { return ns + ":webhooks:payloads" }

func KeyWebhookDedup(subject, trigger string) string {
	return fmt.Sprintf("%s:webhooks:dedup:%s:%s", ns, subject, trigger)
}

func KeyWebhookIndex(uid string) string {
	return fmt.Sprintf("%s:webhooks:booking:%s", ns, uid)
}

func StreamNotifications() string { return ns + ":notifications" }

func ChannelWebhooks() string { return ns + ":webhooks:due" }
