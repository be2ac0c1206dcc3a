package booking

import (
	"strings"

	"github.com/kirinyoku/slotbook/internal/domain"
)

type changeKind int

const (
	changeCreated changeKind = iota
	changeSeatAdded
	changeRescheduled
	changeCancelled
)

// outcome is the key of the notification decision table.
type outcome struct {
	kind             changeKind
	pending          bool
	organizerChanged bool
}

// change is what happened to a booking, as seen by the notification planner.
type change struct {
	kind      changeKind
	booking   *domain.Booking
	organizer domain.Person

	// previous and previousOrganizer are set for reschedules.
	previous          *domain.Booking
	previousOrganizer domain.Person

	// seat is set when an attendee joined an existing slot.
	seat *domain.Attendee
}

func (c change) outcome() outcome {
	o := outcome{kind: c.kind, pending: c.booking.Status == domain.BookingPending}
	if c.previous != nil {
		o.organizerChanged = c.previous.OrganizerID != c.booking.OrganizerID
	}
	return o
}

// NotificationPlan is the webhook trigger and messages produced by a change.
type NotificationPlan struct {
	Trigger  domain.WebhookTrigger
	Messages []domain.Notification
}

type planRule struct {
	when     outcome
	trigger  domain.WebhookTrigger
	messages func(c change) []domain.Notification
}

// planTable is keyed by (kind, pending, organizer changed).
var planTable = []planRule{
	{outcome{changeCreated, false, false}, domain.TriggerBookingCreated, scheduledMessages},
	{outcome{changeCreated, true, false}, domain.TriggerBookingRequested, requestedMessages},
	{outcome{changeSeatAdded, false, false}, domain.TriggerBookingCreated, seatMessages},
	{outcome{changeRescheduled, false, false}, domain.TriggerBookingRescheduled, rescheduledMessages},
	{outcome{changeRescheduled, false, true}, domain.TriggerBookingRescheduled, reassignedMessages},
	{outcome{changeRescheduled, true, false}, domain.TriggerBookingRequested, requestedMessages},
	{outcome{changeRescheduled, true, true}, domain.TriggerBookingRequested, reassignedRequestMessages},
	{outcome{changeCancelled, false, false}, domain.TriggerBookingCancelled, cancelledMessages},
}

func planNotifications(c change) NotificationPlan {
	o := c.outcome()
	if c.kind == changeCancelled || c.kind == changeSeatAdded {
		o = outcome{kind: c.kind}
	}

	rule := planTable[0]
	for _, r := range planTable {
		if r.when == o {
			rule = r
			break
		}
	}

	var msgs []domain.Notification
	for _, m := range rule.messages(c) {
		if len(m.Recipients) > 0 {
			msgs = append(msgs, m)
		}
	}

	return NotificationPlan{Trigger: rule.trigger, Messages: msgs}
}

func scheduledMessages(c change) []domain.Notification {
	return []domain.Notification{message(domain.TemplateScheduled, members(c.organizer, c.booking), c.booking, c.organizer)}
}

func requestedMessages(c change) []domain.Notification {
	return []domain.Notification{
		message(domain.TemplateRequested, hosts(c.organizer, c.booking), c.booking, c.organizer),
		message(domain.TemplateRequestReceived, guests(c.booking), c.booking, c.organizer),
	}
}

func seatMessages(c change) []domain.Notification {
	recipients := []domain.Person{c.organizer}
	if c.seat != nil {
		recipients = append(recipients, c.seat.Person())
	}
	return []domain.Notification{message(domain.TemplateSeatBooked, recipients, c.booking, c.organizer)}
}

func rescheduledMessages(c change) []domain.Notification {
	return []domain.Notification{message(domain.TemplateRescheduled, members(c.organizer, c.booking), c.booking, c.organizer)}
}

// reassignedMessages splits the members of the old and new booking by email:
// newcomers get the scheduled template, members who left get a cancellation of
// the old booking and everyone else gets the rescheduled template.
func reassignedMessages(c change) []domain.Notification {
	added, removed, kept := diffMembers(
		members(c.previousOrganizer, c.previous),
		members(c.organizer, c.booking),
	)

	return []domain.Notification{
		message(domain.TemplateRescheduled, kept, c.booking, c.organizer),
		message(domain.TemplateCancelled, removed, c.previous, c.previousOrganizer),
		message(domain.TemplateScheduled, added, c.booking, c.organizer),
	}
}

func reassignedRequestMessages(c change) []domain.Notification {
	_, removed, _ := diffMembers(
		members(c.previousOrganizer, c.previous),
		members(c.organizer, c.booking),
	)

	return append(
		[]domain.Notification{message(domain.TemplateCancelled, removed, c.previous, c.previousOrganizer)},
		requestedMessages(c)...,
	)
}

func cancelledMessages(c change) []domain.Notification {
	return []domain.Notification{message(domain.TemplateCancelled, members(c.organizer, c.booking), c.booking, c.organizer)}
}

func message(t domain.Template, to []domain.Person, b *domain.Booking, organizer domain.Person) domain.Notification {
	return domain.Notification{
		Template:   t,
		Recipients: to,
		Payload: domain.NotificationPayload{
			BookingUID:         b.UID,
			Title:              b.Title,
			StartTime:          b.StartTime,
			EndTime:            b.EndTime,
			Organizer:          organizer,
			MeetingURL:         meetingURL(b),
			RescheduledFromUID: b.RescheduledFromUID,
			CancellationReason: b.CancellationReason,
		},
	}
}

func meetingURL(b *domain.Booking) string {
	for _, ref := range b.References {
		if ref.MeetingURL != "" {
			return ref.MeetingURL
		}
	}
	return ""
}

// members lists the organizer followed by every attendee, once per email.
func members(organizer domain.Person, b *domain.Booking) []domain.Person {
	out := []domain.Person{organizer}
	for _, a := range b.Attendees {
		out = append(out, a.Person())
	}
	return uniquePeople(out)
}

func hosts(organizer domain.Person, b *domain.Booking) []domain.Person {
	out := []domain.Person{organizer}
	for _, a := range b.HostAttendees() {
		out = append(out, a.Person())
	}
	return uniquePeople(out)
}

func guests(b *domain.Booking) []domain.Person {
	var out []domain.Person
	for _, a := range b.Guests() {
		out = append(out, a.Person())
	}
	return uniquePeople(out)
}

func uniquePeople(in []domain.Person) []domain.Person {
	seen := make(map[string]struct{}, len(in))
	out := make([]domain.Person, 0, len(in))
	for _, p := range in {
		key := strings.ToLower(strings.TrimSpace(p.Email))
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}
	return out
}

// diffMembers compares two member lists by email.
func diffMembers(before, after []domain.Person) (added, removed, kept []domain.Person) {
	prior := make(map[string]struct{}, len(before))
	for _, p := range before {
		prior[strings.ToLower(p.Email)] = struct{}{}
	}
	next := make(map[string]struct{}, len(after))
	for _, p := range after {
		key := strings.ToLower(p.Email)
		next[key] = struct{}{}
		if _, ok := prior[key]; ok {
			kept = append(kept, p)
		} else {
			added = append(added, p)
		}
	}
	for _, p := range before {
		if _, ok := next[strings.ToLower(p.Email)]; !ok {
			removed = append(removed, p)
		}
	}
	return added, removed, kept
}

func equalEmail(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
