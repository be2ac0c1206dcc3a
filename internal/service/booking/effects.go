package booking

import (
	"context"
	"errors"
	"log/slog"

	"github.com/kirinyoku/slotbook/internal/domain"
	"github.com/kirinyoku/slotbook/internal/logging"
	"github.com/kirinyoku/slotbook/internal/repository"
)

type meetingAction int

const (
	meetingNone meetingAction = iota
	meetingCreate
	meetingUpdate
)

// effects is everything emitted after a booking change commits.
type effects struct {
	change change

	rescheduleUID string
	linkHash      string

	// meeting is performed after commit; with FailOnMeetingError it was
	// already done before the transaction and is meetingNone here.
	meeting        meetingAction
	meetingRef     domain.BookingReference
	deleteMeetings []domain.BookingReference

	// cancelTriggersOf drops the pending triggers of a superseded booking.
	cancelTriggersOf string
}

// emit runs the post-commit contract in order: meeting provisioning, the
// booking trigger, the meeting start and end triggers, notifications and the
// single-use link. Failures are logged and never undo the booking.
func (s *Service) emit(ctx context.Context, e effects) {
	b := e.change.booking
	log := logging.ServiceLogger(ctx, s.log, "booking", "emit", "booking_uid", b.UID)

	if e.cancelTriggersOf != "" && s.webhooks != nil {
		if err := s.webhooks.Cancel(ctx, e.cancelTriggersOf); err != nil {
			warnDelivery(log, "cancel triggers", err)
		}
	}

	s.provisionMeeting(ctx, log, e)

	plan := planNotifications(e.change)

	if s.webhooks != nil {
		payload := domain.WebhookPayload{
			BookingID:     b.ID,
			UID:           b.UID,
			EventTypeID:   b.EventTypeID,
			Status:        b.Status,
			StartTime:     b.StartTime,
			EndTime:       b.EndTime,
			RescheduleUID: e.rescheduleUID,
		}
		if e.change.seat != nil {
			payload.SeatReferenceUID = e.change.seat.SeatReferenceUID
		}

		hooks := []domain.Webhook{{Trigger: plan.Trigger, Payload: payload}}
		if b.Status == domain.BookingAccepted && e.change.kind != changeCancelled {
			meetingPayload := payload
			meetingPayload.SeatReferenceUID = ""
			start, end := b.StartTime, b.EndTime
			hooks = append(hooks,
				domain.Webhook{Trigger: domain.TriggerMeetingStarted, Payload: meetingPayload, DeliverAt: &start},
				domain.Webhook{Trigger: domain.TriggerMeetingEnded, Payload: meetingPayload, DeliverAt: &end},
			)
		}

		for _, w := range hooks {
			if err := s.webhooks.Schedule(ctx, w); err != nil {
				warnDelivery(log, "schedule webhook "+string(w.Trigger), err)
			}
		}
	}

	if s.notifier != nil {
		for _, n := range plan.Messages {
			if err := s.notifier.Send(ctx, n); err != nil {
				warnDelivery(log, "send "+string(n.Template), err)
			}
		}
	}

	if e.linkHash != "" {
		err := s.store.HashedLinks().MarkUsed(ctx, e.linkHash, s.now().UTC())
		if err != nil && !errors.Is(err, repository.ErrConflict) {
			log.Warn("hashed link not invalidated", "error", err)
		}
	}
}

func (s *Service) provisionMeeting(ctx context.Context, log *slog.Logger, e effects) {
	if s.meetings == nil {
		return
	}

	b := e.change.booking
	for _, ref := range e.deleteMeetings {
		if err := s.meetings.DeleteMeeting(ctx, ref); err != nil {
			log.Warn("meeting not deleted", "error_kind", ErrorKind(ErrMeetingProvider), "meeting_uid", ref.UID, "error", err)
		}
	}

	var (
		ref domain.BookingReference
		err error
	)
	switch e.meeting {
	case meetingCreate:
		ref, err = s.meetings.CreateMeeting(ctx, *b)
	case meetingUpdate:
		ref, err = s.meetings.UpdateMeeting(ctx, e.meetingRef, *b)
	default:
		return
	}
	if err != nil {
		log.Warn("booking kept without meeting", "error_kind", ErrorKind(ErrMeetingProvider), "error", err)
		return
	}

	if err := s.store.Bookings().AddReference(ctx, b.ID, ref); err != nil {
		log.Warn("meeting reference not stored", "error", err)
	}
	b.References = append(b.References, ref)
}

func warnDelivery(log *slog.Logger, what string, err error) {
	log.Warn(what+" failed", "error_kind", "notification_delivery", "error", err)
}
