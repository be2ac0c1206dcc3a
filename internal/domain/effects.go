package domain

import "time"

type WebhookTrigger string

const (
	TriggerBookingCreated     WebhookTrigger = "BOOKING_CREATED"
	TriggerBookingRescheduled WebhookTrigger = "BOOKING_RESCHEDULED"
	TriggerBookingRequested   WebhookTrigger = "BOOKING_REQUESTED"
	TriggerBookingCancelled   WebhookTrigger = "BOOKING_CANCELLED"
	TriggerMeetingStarted     WebhookTrigger = "MEETING_STARTED"
	TriggerMeetingEnded       WebhookTrigger = "MEETING_ENDED"
)

type WebhookPayload struct {
	BookingID        int64         `json:"booking_id"`
	UID              string        `json:"uid"`
	EventTypeID      int64         `json:"event_type_id"`
	Status           BookingStatus `json:"status"`
	StartTime        time.Time     `json:"start_time"`
	EndTime          time.Time     `json:"end_time"`
	RescheduleUID    string        `json:"reschedule_uid,omitempty"`
	SeatReferenceUID string        `json:"seat_reference_uid,omitempty"`
}

// Subject identifies what the webhook is about: the booking, or one seat of it.
func (p WebhookPayload) Subject() string {
	if p.SeatReferenceUID != "" {
		return p.UID + "/" + p.SeatReferenceUID
	}
	return p.UID
}

// Webhook is a trigger to deliver now, or at DeliverAt when set.
type Webhook struct {
	Trigger   WebhookTrigger `json:"trigger"`
	Payload   WebhookPayload `json:"payload"`
	DeliverAt *time.Time     `json:"deliver_at,omitempty"`
}

type Template string

const (
	TemplateScheduled       Template = "scheduled"
	TemplateRescheduled     Template = "rescheduled"
	TemplateCancelled       Template = "cancelled"
	TemplateRequested       Template = "requested"
	TemplateRequestReceived Template = "request_received"
	TemplateSeatBooked      Template = "seat_booked"
)

type NotificationPayload struct {
	BookingUID         string    `json:"booking_uid"`
	Title              string    `json:"title"`
	StartTime          time.Time `json:"start_time"`
	EndTime            time.Time `json:"end_time"`
	Organizer          Person    `json:"organizer"`
	MeetingURL         string    `json:"meeting_url,omitempty"`
	RescheduledFromUID string    `json:"rescheduled_from_uid,omitempty"`
	CancellationReason string    `json:"cancellation_reason,omitempty"`
}

type Notification struct {
	Template   Template            `json:"template"`
	Recipients []Person            `json:"recipients"`
	Payload    NotificationPayload `json:"payload"`
}
