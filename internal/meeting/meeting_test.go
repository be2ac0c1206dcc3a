package meeting

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/slotbook/internal/domain"
)

func TestLinkProvider(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := NewLinkProvider("https://meet.example.com/")

	ref, err := p.CreateMeeting(ctx, domain.Booking{UID: "abc"})
	require.NoError(t, err)
	assert.Equal(t, "https://meet.example.com/abc", ref.MeetingURL)

	moved, err := p.UpdateMeeting(ctx, ref, domain.Booking{UID: "def"})
	require.NoError(t, err)
	assert.Equal(t, ref, moved)

	fresh, err := p.UpdateMeeting(ctx, domain.BookingReference{Type: "other"}, domain.Booking{UID: "def"})
	require.NoError(t, err)
	assert.Equal(t, "https://meet.example.com/def", fresh.MeetingURL)

	_, err = NewLinkProvider("").CreateMeeting(ctx, domain.Booking{UID: "abc"})
	assert.ErrorIs(t, err, ErrNoBaseURL)
}
