package booking

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kirinyoku/slotbook/internal/domain"
)

var uidNamespace = uuid.MustParse("6f1d3c52-8a4e-4d7b-9b0e-2c5a9e7f1a34")

// bookingUID derives a stable uid from the organizer, the window and a nonce.
func bookingUID(organizerID int64, w domain.TimeWindow, nonce string) string {
	name := fmt.Sprintf("%d|%s|%s|%s",
		organizerID,
		w.Start.UTC().Format(time.RFC3339),
		w.End.UTC().Format(time.RFC3339),
		nonce,
	)
	return uuid.NewSHA1(uidNamespace, []byte(name)).String()
}

func iCalUID(uid, host string) string {
	if host == "" {
		host = defaultICalDomain
	}
	return uid + "@" + host
}
