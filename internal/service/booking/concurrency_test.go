package booking

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/slotbook/internal/domain"
	"github.com/kirinyoku/slotbook/internal/repository"
)

// barrier releases its waiters once two of them have arrived.
type barrier struct {
	mu      sync.Mutex
	arrived int
	open    chan struct{}
}

func newBarrier() *barrier { return &barrier{open: make(chan struct{})} }

func (b *barrier) wait() {
	b.mu.Lock()
	b.arrived++
	if b.arrived == 2 {
		close(b.open)
	}
	b.mu.Unlock()
	<-b.open
}

// gatedStore holds each request at the barrier after its availability read,
// so both requests see the slot as free before either writes. The read has to
// finish first: sqlite runs on one connection, and a read queued behind the
// other request's transaction would already see its booking.
type gatedStore struct {
	repository.Store
	gate *barrier
}

func (s gatedStore) Bookings() repository.BookingRepository {
	return gatedBookings{BookingRepository: s.Store.Bookings(), gate: s.gate}
}

type gatedBookings struct {
	repository.BookingRepository
	gate *barrier
}

func (b gatedBookings) FindOverlapping(ctx context.Context, q repository.OverlapQuery) ([]domain.Booking, error) {
	out, err := b.BookingRepository.FindOverlapping(ctx, q)
	b.gate.wait()
	return out, err
}

func TestIdenticalConcurrentRequestsConflict(t *testing.T) {
	t.Parallel()

	gate := newBarrier()
	f := newFixture(t, func(d *Deps, _ *Config) {
		d.Store = gatedStore{Store: d.Store, gate: gate}
	})
	host := f.host("Asha", "UTC")
	et := f.eventType(domain.EventType{}, host)
	req := f.request(et, at(0, 10, 0), "guest@example.com")

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		ok   []*Result
		errs []error
	)
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.svc.Create(f.ctx, req)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			ok = append(ok, res)
		}()
	}
	wg.Wait()

	require.Len(t, ok, 1)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrBookingConflict)
	assert.Equal(t, "booking_conflict", ErrorKind(errs[0]))
	assert.Equal(t, domain.BookingAccepted, ok[0].Booking.Status)

	active := f.activeBookings(host, domain.TimeWindow{Start: at(0, 10, 0), End: at(0, 10, 30)})
	require.Len(t, active, 1)
	assert.Equal(t, ok[0].Booking.UID, active[0].UID)
}
