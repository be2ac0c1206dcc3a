// Package meeting provides the default conferencing provider: a stable room
// link per booking.
package meeting

import (
	"context"
	"errors"
	"strings"

	"github.com/kirinyoku/slotbook/internal/domain"
)

const ReferenceType = "link"

var ErrNoBaseURL = errors.New("meeting base url is not configured")

type LinkProvider struct {
	baseURL string
}

func NewLinkProvider(baseURL string) *LinkProvider {
	return &LinkProvider{baseURL: strings.TrimRight(baseURL, "/")}
}

func (p *LinkProvider) CreateMeeting(_ context.Context, b domain.Booking) (domain.BookingReference, error) {
	if p.baseURL == "" {
		return domain.BookingReference{}, ErrNoBaseURL
	}

	return domain.BookingReference{
		Type:       ReferenceType,
		UID:        b.UID,
		MeetingURL: p.baseURL + "/" + b.UID,
	}, nil
}

// UpdateMeeting keeps the room of ref, so attendees keep their link across
// reschedules.
func (p *LinkProvider) UpdateMeeting(ctx context.Context, ref domain.BookingReference, b domain.Booking) (domain.BookingReference, error) {
	if ref.Type != ReferenceType || ref.UID == "" {
		return p.CreateMeeting(ctx, b)
	}
	return ref, nil
}

func (p *LinkProvider) DeleteMeeting(context.Context, domain.BookingReference) error {
	return nil
}
